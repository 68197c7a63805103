package node

import (
	"errors"
	"fmt"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/dl"
)

const lockBinaryTag = "rsa-sighash-all"

// EncodeLockBinary builds the cell data deployed for the RSA lock. The
// deployment parameters are part of the code, so a lock script's code hash
// pins its revision, library and symbol.
//
// data = tag ‖ revision u8 ‖ lib_code_hash(32) ‖ symbol
func EncodeLockBinary(cfg consensus.LockConfig) ([]byte, error) {
	data := make([]byte, 0, len(lockBinaryTag)+1+32+len(cfg.Symbol))
	data = append(data, lockBinaryTag...)
	data = append(data, byte(cfg.Revision))
	data = append(data, cfg.LibCodeHash[:]...)
	data = append(data, cfg.Symbol...)
	return (&dl.Image{Data: data}).Encode()
}

// DecodeLockBinary is the inverse of EncodeLockBinary. Cells that are not an
// RSA lock yield an error.
func DecodeLockBinary(b []byte) (consensus.LockConfig, error) {
	im, err := dl.DecodeImage(b)
	if err != nil {
		return consensus.LockConfig{}, err
	}
	d := im.Data
	if len(d) < len(lockBinaryTag)+1+32 || string(d[:len(lockBinaryTag)]) != lockBinaryTag {
		return consensus.LockConfig{}, errors.New("not an rsa lock binary")
	}
	d = d[len(lockBinaryTag):]
	rev := consensus.Revision(d[0])
	if rev != consensus.RevisionFingerprint && rev != consensus.RevisionRawKey {
		return consensus.LockConfig{}, fmt.Errorf("lock binary: unknown revision %d", d[0])
	}
	var cfg consensus.LockConfig
	cfg.Revision = rev
	copy(cfg.LibCodeHash[:], d[1:33])
	cfg.Symbol = string(d[33:])
	return cfg, nil
}
