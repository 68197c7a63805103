package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// ReverseBytes returns a reversed copy of b.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// PublicKeyFromLE rebuilds an RSA public key from a little-endian modulus and
// a 32-bit exponent, the way keys travel inside a signature bundle.
func PublicKeyFromLE(exponent uint32, modulusLE []byte) (*rsa.PublicKey, error) {
	if exponent < 3 || exponent%2 == 0 {
		return nil, fmt.Errorf("rsa: invalid public exponent %d", exponent)
	}
	n := new(big.Int).SetBytes(ReverseBytes(modulusLE))
	if n.Sign() <= 0 {
		return nil, errors.New("rsa: zero modulus")
	}
	return &rsa.PublicKey{N: n, E: int(exponent)}, nil
}

// ModulusLE returns the modulus of pub as size little-endian bytes, zero
// padded on the high end.
func ModulusLE(pub *rsa.PublicKey, size int) ([]byte, error) {
	be := pub.N.Bytes()
	if len(be) > size {
		return nil, fmt.Errorf("rsa: modulus is %d bytes, want at most %d", len(be), size)
	}
	out := make([]byte, size)
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out, nil
}

// SignSHA256 signs SHA-256(msg) with PKCS#1 v1.5 padding.
func SignSHA256(priv *rsa.PrivateKey, msg []byte) ([]byte, error) {
	sum := sha256.Sum256(msg)
	return rsa.SignPKCS1v15(rand.Reader, priv, stdcrypto.SHA256, sum[:])
}

// ParsePrivateKeyPEM accepts "RSA PRIVATE KEY" (PKCS#1) and "PRIVATE KEY"
// (PKCS#8) blocks.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("pem: no block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		priv, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("pem: PKCS#8 key is %T, not RSA", k)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("pem: unsupported block type %q", block.Type)
	}
}

// ParsePublicKeyPEM accepts public key blocks and, for convenience, private
// key blocks (the public half is returned).
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("pem: no block found")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("pem: PKIX key is %T, not RSA", k)
		}
		return pub, nil
	case "RSA PRIVATE KEY", "PRIVATE KEY":
		priv, err := ParsePrivateKeyPEM(data)
		if err != nil {
			return nil, err
		}
		return &priv.PublicKey, nil
	default:
		return nil, fmt.Errorf("pem: unsupported block type %q", block.Type)
	}
}
