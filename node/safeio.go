package node

import (
	"crypto/rsa"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
)

func readFileByPath(path string) ([]byte, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	return readFileFromDir(dir, name)
}

func readFileFromDir(dir, name string) ([]byte, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid file name: %q", name)
	}
	return fs.ReadFile(os.DirFS(dir), name)
}

// ReadFile reads a single named file without following path traversal in the
// final component.
func ReadFile(path string) ([]byte, error) {
	return readFileByPath(path)
}

// LoadTxFile reads a JSON transaction fixture.
func LoadTxFile(path string) (*consensus.Transaction, error) {
	b, err := readFileByPath(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalTxJSON(b)
}

// WriteTxFile writes tx as a JSON fixture with mode 0600.
func WriteTxFile(path string, tx *consensus.Transaction) error {
	b, err := MarshalTxJSON(tx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}

func LoadPrivateKeyFile(path string) (*rsa.PrivateKey, error) {
	b, err := readFileByPath(path)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePrivateKeyPEM(b)
}

// LoadPublicKeyFile accepts public or private key PEM files.
func LoadPublicKeyFile(path string) (*rsa.PublicKey, error) {
	b, err := readFileByPath(path)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePublicKeyPEM(b)
}
