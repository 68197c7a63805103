package consensus

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"rsalock.dev/lock/crypto"
)

func mustTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	pemBytes, err := os.ReadFile(filepath.Join("..", "crypto", "testdata", "key1024.pem"))
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	priv, err := crypto.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM: %v", err)
	}
	return priv
}

// signedWitnesses builds witness 0 carrying a bundle signed over the digest
// of txHash and the trailing witnesses.
func signedWitnesses(t *testing.T, priv *rsa.PrivateKey, txHash [32]byte, rest [][]byte) ([][]byte, *SignatureBundle) {
	t.Helper()
	p := crypto.StdProvider{}
	ks := uint32(priv.Size() * 8)
	placeholder := BundleLen(ks)

	ws := append([][]byte{WitnessArgs{Lock: make([]byte, placeholder)}.Serialize()}, rest...)
	digest, err := ComputeDigest(p, txHash, ws, placeholder)
	if err != nil {
		t.Fatalf("ComputeDigest: %v", err)
	}
	sig, err := crypto.SignSHA256(priv, digest[:])
	if err != nil {
		t.Fatalf("SignSHA256: %v", err)
	}
	b, err := NewBundle(&priv.PublicKey, sig)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	ws[0] = WitnessArgs{Lock: b.Encode()}.Serialize()
	return ws, b
}
