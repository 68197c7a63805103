package consensus

import (
	"crypto/rsa"
	"fmt"

	"rsalock.dev/lock/crypto"
)

const (
	BUNDLE_HEADER_BYTES = 8

	KEY_SIZE_1024 uint32 = 1024
	KEY_SIZE_2048 uint32 = 2048
	KEY_SIZE_4096 uint32 = 4096
)

// SupportedKeySize reports whether ks is one of the modulus sizes the lock accepts.
func SupportedKeySize(ks uint32) bool {
	switch ks {
	case KEY_SIZE_1024, KEY_SIZE_2048, KEY_SIZE_4096:
		return true
	default:
		return false
	}
}

// SignatureBundle is the public key and signature carried in the lock field
// of witness 0. Modulus is little-endian; Signature is big-endian as produced
// by the RSA primitive.
type SignatureBundle struct {
	KeySize   uint32
	Exponent  uint32
	Modulus   []byte
	Signature []byte
}

// BundleLen is the exact serialized length for a bundle of key size ks.
func BundleLen(keySize uint32) int {
	return BUNDLE_HEADER_BYTES + 2*int(keySize/8)
}

// NewBundle packs a public key and a signature produced with it.
func NewBundle(pub *rsa.PublicKey, sig []byte) (*SignatureBundle, error) {
	if pub == nil {
		return nil, lockerr(ERR_FORMAT, "nil public key")
	}
	ks := uint32(pub.Size() * 8) // #nosec G115 -- rejected below unless it is a supported key size.
	if !SupportedKeySize(ks) {
		return nil, lockerr(ERR_FORMAT, fmt.Sprintf("unsupported key size %d", ks))
	}
	if pub.E <= 0 || uint64(pub.E) > uint64(^uint32(0)) {
		return nil, lockerr(ERR_FORMAT, "exponent does not fit in 4 bytes")
	}
	if len(sig) != int(ks/8) {
		return nil, lockerr(ERR_FORMAT, "signature length does not match key size")
	}
	mod, err := crypto.ModulusLE(pub, int(ks/8))
	if err != nil {
		return nil, lockerr(ERR_FORMAT, err.Error())
	}
	return &SignatureBundle{
		KeySize:   ks,
		Exponent:  uint32(pub.E), // #nosec G115 -- range checked above.
		Modulus:   mod,
		Signature: append([]byte(nil), sig...),
	}, nil
}

// DecodeBundle parses an encoded bundle. The input must be exactly
// BundleLen(key_size) bytes long.
func DecodeBundle(b []byte) (*SignatureBundle, error) {
	off := 0
	ks, err := readU32le(b, &off)
	if err != nil {
		return nil, lockerr(ERR_FORMAT, "bundle: truncated key size")
	}
	if !SupportedKeySize(ks) {
		return nil, lockerr(ERR_FORMAT, fmt.Sprintf("bundle: unsupported key size %d", ks))
	}
	want := BundleLen(ks)
	if len(b) < want {
		return nil, lockerr(ERR_FORMAT, fmt.Sprintf("bundle: %d bytes, need %d", len(b), want))
	}
	if len(b) > want {
		return nil, lockerr(ERR_FORMAT, fmt.Sprintf("bundle: %d trailing bytes", len(b)-want))
	}
	exp, err := readU32le(b, &off)
	if err != nil {
		return nil, lockerr(ERR_FORMAT, "bundle: truncated exponent")
	}
	n := int(ks / 8)
	mod, err := readBytes(b, &off, n)
	if err != nil {
		return nil, lockerr(ERR_FORMAT, "bundle: truncated modulus")
	}
	sig, err := readBytes(b, &off, n)
	if err != nil {
		return nil, lockerr(ERR_FORMAT, "bundle: truncated signature")
	}
	return &SignatureBundle{
		KeySize:   ks,
		Exponent:  exp,
		Modulus:   append([]byte(nil), mod...),
		Signature: append([]byte(nil), sig...),
	}, nil
}

// KeyMaterial is key_size ‖ exponent ‖ modulus, zero-padded to key_size/8.
// The signature is not part of it.
func (b *SignatureBundle) KeyMaterial() []byte {
	n := int(b.KeySize / 8)
	out := make([]byte, 0, BUNDLE_HEADER_BYTES+n)
	out = appendU32le(out, b.KeySize)
	out = appendU32le(out, b.Exponent)
	mod := make([]byte, n)
	copy(mod, b.Modulus)
	return append(out, mod...)
}

// Encode serializes the bundle. Short modulus and signature fields are
// zero-padded; long ones are truncated to key_size/8.
func (b *SignatureBundle) Encode() []byte {
	n := int(b.KeySize / 8)
	out := b.KeyMaterial()
	sig := make([]byte, n)
	copy(sig, b.Signature)
	return append(out, sig...)
}

// PublicKey rebuilds the RSA public key carried by the bundle.
func (b *SignatureBundle) PublicKey() (*rsa.PublicKey, error) {
	if !SupportedKeySize(b.KeySize) {
		return nil, lockerr(ERR_FORMAT, fmt.Sprintf("unsupported key size %d", b.KeySize))
	}
	pub, err := crypto.PublicKeyFromLE(b.Exponent, b.Modulus)
	if err != nil {
		return nil, lockerr(ERR_FORMAT, err.Error())
	}
	return pub, nil
}

// RawKey is exponent ‖ modulus, the lock argument under RevisionRawKey.
func (b *SignatureBundle) RawKey() []byte {
	km := b.KeyMaterial()
	return km[4:]
}
