package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const SchemaVersionV1 uint32 = 1

// Manifest records what has been deployed on a network so later commands can
// find the lock and library cells without being told.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Network       string `json:"network"`

	LockCodeHashHex   string `json:"lock_code_hash,omitempty"`
	LockOutPointHex   string `json:"lock_out_point,omitempty"`
	RSALibCodeHashHex string `json:"rsa_lib_code_hash,omitempty"`
	RSALibOutPointHex string `json:"rsa_lib_out_point,omitempty"`
	Revision          string `json:"revision,omitempty"`
	NextCellNonce     uint64 `json:"next_cell_nonce"`
}

func manifestPath(networkDir string) string {
	return filepath.Join(networkDir, "MANIFEST.json")
}

func readManifest(networkDir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(networkDir)) // #nosec G304 -- path is derived from operator-controlled datadir.
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest json: %w", err)
	}
	return &m, nil
}

// writeManifestAtomic writes MANIFEST.json as a crash-safe commit point:
// write temp -> fsync temp -> rename -> fsync dir.
func writeManifestAtomic(networkDir string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest: nil")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest json: %w", err)
	}
	b = append(b, '\n')

	final := manifestPath(networkDir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- tmp path is derived from operator-controlled datadir.
	if err != nil {
		return fmt.Errorf("manifest open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	switch {
	case werr != nil:
		return fmt.Errorf("manifest write tmp: %w", werr)
	case serr != nil:
		return fmt.Errorf("manifest fsync tmp: %w", serr)
	case cerr != nil:
		return fmt.Errorf("manifest close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("manifest rename: %w", err)
	}

	d, err := os.Open(networkDir) // #nosec G304 -- networkDir is derived from operator-controlled datadir.
	if err != nil {
		return fmt.Errorf("manifest fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("manifest fsync dir: %w", err)
	}
	return d.Close()
}
