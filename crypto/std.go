package crypto

import (
	stdcrypto "crypto"
	"crypto/rsa"
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// StdProvider is the pure-Go provider: blake2b from x/crypto, RSA from the
// standard library.
type StdProvider struct{}

func (StdProvider) Blake2b256(input []byte) [32]byte {
	return blake2b.Sum256(input)
}

func (StdProvider) NewBlake2b256() hash.Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

func (StdProvider) VerifyRSASHA256(pub *rsa.PublicKey, sig []byte, msg []byte) bool {
	if pub == nil || pub.N == nil {
		return false
	}
	sum := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(pub, stdcrypto.SHA256, sum[:], sig) == nil
}
