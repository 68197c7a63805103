package consensus

import (
	"encoding/binary"
	"hash"

	"rsalock.dev/lock/crypto"
)

const DIGEST_BYTES = 32

func writeLenPrefixed(h hash.Hash, b []byte) {
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(len(b)))
	_, _ = h.Write(tmp8[:])
	_, _ = h.Write(b)
}

// ComputeDigest builds the message that is signed:
//
//	blake2b256(tx_hash ‖ len(w0') ‖ w0' ‖ len(w1) ‖ w1 ‖ ... ‖ len(wN-1) ‖ wN-1)
//
// where w0' is witness 0 with its lock field replaced by placeholderLen zero
// bytes and lengths are u64le. witnesses[0] must decode as WitnessArgs.
func ComputeDigest(p crypto.Hasher, txHash [32]byte, witnesses [][]byte, placeholderLen int) ([32]byte, error) {
	if len(witnesses) == 0 {
		return [32]byte{}, lockerr(ERR_INDEX_OUT_OF_BOUND, "authorization witness missing")
	}
	auth, err := ParseWitnessArgs(witnesses[0])
	if err != nil {
		return [32]byte{}, err
	}
	return digestWithAuth(p, txHash, *auth, witnesses[1:], placeholderLen)
}

func digestWithAuth(p crypto.Hasher, txHash [32]byte, auth WitnessArgs, rest [][]byte, placeholderLen int) ([32]byte, error) {
	if placeholderLen < 0 {
		return [32]byte{}, lockerr(ERR_FORMAT, "negative placeholder length")
	}
	// Separate buffer: the witness being signed is never mutated.
	zeroed := auth.WithLock(make([]byte, placeholderLen)).Serialize()

	h := p.NewBlake2b256()
	_, _ = h.Write(txHash[:])
	writeLenPrefixed(h, zeroed)
	for _, w := range rest {
		writeLenPrefixed(h, w)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// hostWitnesses reads the transaction hash and every witness through sys and
// splits off witness 0 as the authorization witness.
func hostWitnesses(sys Syscalls) (txHash [32]byte, auth *WitnessArgs, rest [][]byte, err error) {
	txHash, err = sys.LoadTxHash()
	if err != nil {
		return txHash, nil, nil, fromSysError(err)
	}
	witnesses, err := LoadWitnesses(sys)
	if err != nil {
		return txHash, nil, nil, err
	}
	auth, err = ParseWitnessArgs(witnesses[0])
	if err != nil {
		return txHash, nil, nil, err
	}
	return txHash, auth, witnesses[1:], nil
}

// DigestFromHost reads the transaction hash and every witness through sys and
// computes the digest over them.
func DigestFromHost(p crypto.Hasher, sys Syscalls, placeholderLen int) ([32]byte, error) {
	txHash, auth, rest, err := hostWitnesses(sys)
	if err != nil {
		return [32]byte{}, err
	}
	return digestWithAuth(p, txHash, *auth, rest, placeholderLen)
}
