// Package rsalib is the external RSA verifier module. Its image is deployed
// as cell data and loaded by code hash; the routine it exports checks
// RSA PKCS#1 v1.5 over SHA-256 of the signed digest.
package rsalib

import (
	"encoding/binary"
	"sync"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
)

// NATIVE_NAME is the registry key the image binds VALIDATE_RSA_SIGHASH_ALL to.
const NATIVE_NAME = "rsalib/pkcs1v15-sha256/v1"

// Return codes of the verifier routine.
const (
	RC_OK                int32 = 0
	RC_ARG_TOO_SHORT     int32 = 1
	RC_BAD_BUNDLE        int32 = 2
	RC_UNSUPPORTED_KEY   int32 = 3
	RC_SIGNATURE_INVALID int32 = 4
)

var supportedKeySizes = []uint32{consensus.KEY_SIZE_1024, consensus.KEY_SIZE_2048, consensus.KEY_SIZE_4096}

var (
	imageOnce sync.Once
	imageBlob []byte
)

// Image returns the deployable module bytes. The data segment lists the key
// sizes the routine accepts as u32le values.
func Image() []byte {
	imageOnce.Do(func() {
		data := make([]byte, 0, 4*len(supportedKeySizes))
		for _, ks := range supportedKeySizes {
			data = binary.LittleEndian.AppendUint32(data, ks)
		}
		im := &dl.Image{
			Exports: []dl.Export{{Symbol: consensus.VALIDATE_RSA_SIGHASH_ALL, Native: NATIVE_NAME}},
			Data:    data,
		}
		b, err := im.Encode()
		if err != nil {
			panic(err)
		}
		imageBlob = b
	})
	return append([]byte(nil), imageBlob...)
}

// CodeHash is the content hash the lock is configured with.
func CodeHash(p crypto.Hasher) [32]byte {
	return p.Blake2b256(Image())
}

// Register installs the verifier routine into reg.
func Register(reg *dl.Registry, p crypto.RSAVerifier) error {
	if p == nil {
		p = crypto.StdProvider{}
	}
	return reg.Register(NATIVE_NAME, Validator(p))
}

// Validator returns the routine behind VALIDATE_RSA_SIGHASH_ALL. The argument
// is digest(32) ‖ bundle.
func Validator(p crypto.RSAVerifier) dl.Native {
	return func(data, arg []byte) int32 {
		if len(arg) < consensus.DIGEST_BYTES+consensus.BUNDLE_HEADER_BYTES {
			return RC_ARG_TOO_SHORT
		}
		digest := arg[:consensus.DIGEST_BYTES]
		b, err := consensus.DecodeBundle(arg[consensus.DIGEST_BYTES:])
		if err != nil {
			return RC_BAD_BUNDLE
		}
		if !keySizeAllowed(data, b.KeySize) {
			return RC_UNSUPPORTED_KEY
		}
		pub, err := b.PublicKey()
		if err != nil {
			return RC_UNSUPPORTED_KEY
		}
		if !p.VerifyRSASHA256(pub, b.Signature, digest) {
			return RC_SIGNATURE_INVALID
		}
		return RC_OK
	}
}

func keySizeAllowed(data []byte, ks uint32) bool {
	for i := 0; i+4 <= len(data); i += 4 {
		if binary.LittleEndian.Uint32(data[i:]) == ks {
			return true
		}
	}
	return false
}
