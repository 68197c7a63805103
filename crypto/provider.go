package crypto

import (
	"crypto/rsa"
	"hash"
)

// Hasher is the narrow hashing interface used by consensus code.
type Hasher interface {
	Blake2b256(input []byte) [32]byte
	NewBlake2b256() hash.Hash
}

// RSAVerifier checks RSA PKCS#1 v1.5 signatures made over SHA-256(msg).
type RSAVerifier interface {
	VerifyRSASHA256(pub *rsa.PublicKey, sig []byte, msg []byte) bool
}

// CryptoProvider bundles both primitives. Implementations may be native Go or
// backed by a loaded library.
type CryptoProvider interface {
	Hasher
	RSAVerifier
}

// Blake160 is the first 20 bytes of blake2b-256.
func Blake160(p Hasher, input []byte) [20]byte {
	sum := p.Blake2b256(input)
	var out [20]byte
	copy(out[:], sum[:20])
	return out
}
