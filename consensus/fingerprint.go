package consensus

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"rsalock.dev/lock/crypto"
)

const FINGERPRINT_BYTES = 20

// Fingerprint is blake160 of a bundle's key material.
type Fingerprint [FINGERPRINT_BYTES]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Fingerprint hashes key_size ‖ exponent ‖ modulus. The signature is excluded.
func (b *SignatureBundle) Fingerprint(p crypto.Hasher) Fingerprint {
	return Fingerprint(crypto.Blake160(p, b.KeyMaterial()))
}

// ParseFingerprint reads the claimed fingerprint from the lock script args.
func ParseFingerprint(args []byte) (Fingerprint, error) {
	var f Fingerprint
	if len(args) != FINGERPRINT_BYTES {
		return f, lockerr(ERR_FORMAT, fmt.Sprintf("args: %d bytes, want %d", len(args), FINGERPRINT_BYTES))
	}
	copy(f[:], args)
	return f, nil
}

// FingerprintMatches compares in constant time.
func FingerprintMatches(claimed, recomputed Fingerprint) bool {
	return subtle.ConstantTimeCompare(claimed[:], recomputed[:]) == 1
}

// RawKeyMatches is the RevisionRawKey predicate: args must equal
// exponent ‖ modulus byte for byte.
func RawKeyMatches(args []byte, b *SignatureBundle) bool {
	raw := b.RawKey()
	if len(args) != len(raw) {
		return false
	}
	return subtle.ConstantTimeCompare(args, raw) == 1
}
