//go:build rsa_dylib

package dl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readCapped reads path through a single handle, refusing files larger than
// capacity without reading past capacity+1 bytes.
func readCapped(path string, capacity int) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path is derived from a hex code hash.
	if err != nil {
		return nil, err
	}
	defer f.Close()
	blob, err := io.ReadAll(io.LimitReader(f, int64(capacity)+1))
	if err != nil {
		return nil, err
	}
	if len(blob) > capacity {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOutOfCapacity, capacity)
	}
	return blob, nil
}

// stageBlob writes blob to a fresh private directory under dir (the system
// temp dir when empty) so the dynamic linker maps exactly the bytes that were
// hashed. cleanup removes the directory.
func stageBlob(dir string, blob []byte) (path string, cleanup func(), err error) {
	tmp, err := os.MkdirTemp(dir, "rsalock-dl-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("dl: stage: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(tmp) }

	path = filepath.Join(tmp, "module.so")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- path is inside a directory created above.
	if err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("dl: stage: %w", err)
	}
	_, werr := f.Write(blob)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("dl: stage: %w", err)
	}
	return path, cleanup, nil
}
