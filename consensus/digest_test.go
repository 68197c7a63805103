package consensus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"rsalock.dev/lock/crypto"
)

func TestComputeDigest_MatchesManualPreimage(t *testing.T) {
	p := crypto.StdProvider{}
	var txHash [32]byte
	txHash[31] = 0x01
	real := WitnessArgs{Lock: bytes.Repeat([]byte{0xee}, 264)}.Serialize()
	extra := []byte{0x05, 0x06}

	digest, err := ComputeDigest(p, txHash, [][]byte{real, extra}, 264)
	require.NoError(t, err)

	zeroed := WitnessArgs{Lock: make([]byte, 264)}.Serialize()
	var preimage []byte
	preimage = append(preimage, txHash[:]...)
	preimage = appendU64le(preimage, uint64(len(zeroed)))
	preimage = append(preimage, zeroed...)
	preimage = appendU64le(preimage, uint64(len(extra)))
	preimage = append(preimage, extra...)
	require.Equal(t, p.Blake2b256(preimage), digest)
}

func TestComputeDigest_SingleWitness(t *testing.T) {
	p := crypto.StdProvider{}
	var txHash [32]byte
	w0 := WitnessArgs{Lock: make([]byte, 10)}.Serialize()

	digest, err := ComputeDigest(p, txHash, [][]byte{w0}, 10)
	require.NoError(t, err)

	var preimage []byte
	preimage = append(preimage, txHash[:]...)
	preimage = appendU64le(preimage, uint64(len(w0)))
	preimage = append(preimage, w0...)
	require.Equal(t, p.Blake2b256(preimage), digest)
}

func TestComputeDigest_IgnoresLockContent(t *testing.T) {
	p := crypto.StdProvider{}
	var txHash [32]byte
	a := WitnessArgs{Lock: bytes.Repeat([]byte{1}, 16)}.Serialize()
	b := WitnessArgs{Lock: bytes.Repeat([]byte{2}, 16)}.Serialize()
	da, err := ComputeDigest(p, txHash, [][]byte{a}, 16)
	require.NoError(t, err)
	db, err := ComputeDigest(p, txHash, [][]byte{b}, 16)
	require.NoError(t, err)
	require.Equal(t, da, db)
}

func TestComputeDigest_PlaceholderLengthCommits(t *testing.T) {
	p := crypto.StdProvider{}
	var txHash [32]byte
	w0 := WitnessArgs{Lock: make([]byte, 16)}.Serialize()
	d16, err := ComputeDigest(p, txHash, [][]byte{w0}, 16)
	require.NoError(t, err)
	d15, err := ComputeDigest(p, txHash, [][]byte{w0}, 15)
	require.NoError(t, err)
	require.NotEqual(t, d16, d15)
}

func TestComputeDigest_KeepsStructuralFields(t *testing.T) {
	p := crypto.StdProvider{}
	var txHash [32]byte
	a := WitnessArgs{Lock: make([]byte, 4), InputType: []byte{1}}.Serialize()
	b := WitnessArgs{Lock: make([]byte, 4), InputType: []byte{2}}.Serialize()
	da, err := ComputeDigest(p, txHash, [][]byte{a}, 4)
	require.NoError(t, err)
	db, err := ComputeDigest(p, txHash, [][]byte{b}, 4)
	require.NoError(t, err)
	require.NotEqual(t, da, db)
}

func TestComputeDigest_DoesNotMutateInput(t *testing.T) {
	w0 := WitnessArgs{Lock: bytes.Repeat([]byte{0x77}, 8)}.Serialize()
	orig := append([]byte{}, w0...)
	_, err := ComputeDigest(crypto.StdProvider{}, [32]byte{}, [][]byte{w0}, 8)
	require.NoError(t, err)
	require.Equal(t, orig, w0)
}

func TestComputeDigest_Errors(t *testing.T) {
	p := crypto.StdProvider{}
	_, err := ComputeDigest(p, [32]byte{}, nil, 0)
	require.Equal(t, ERR_INDEX_OUT_OF_BOUND, mustLockErrCode(t, err))

	_, err = ComputeDigest(p, [32]byte{}, [][]byte{{0x01}}, 0)
	require.Equal(t, ERR_ENCODING, mustLockErrCode(t, err))

	_, err = ComputeDigest(p, [32]byte{}, [][]byte{WitnessArgs{}.Serialize()}, -1)
	require.Equal(t, ERR_FORMAT, mustLockErrCode(t, err))
}

func witnessesGen() *rapid.Generator[[][]byte] {
	return rapid.Custom(func(t *rapid.T) [][]byte {
		lock := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "lock")
		ws := [][]byte{WitnessArgs{Lock: lock}.Serialize()}
		rest := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 32), 0, 4).Draw(t, "rest")
		return append(ws, rest...)
	})
}

func TestComputeDigest_Deterministic(t *testing.T) {
	p := crypto.StdProvider{}
	rapid.Check(t, func(t *rapid.T) {
		var txHash [32]byte
		copy(txHash[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "tx_hash"))
		ws := witnessesGen().Draw(t, "witnesses")
		placeholder := rapid.IntRange(0, 64).Draw(t, "placeholder")

		d1, err := ComputeDigest(p, txHash, ws, placeholder)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		d2, err := ComputeDigest(p, txHash, ws, placeholder)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		if d1 != d2 {
			t.Fatalf("digest not deterministic")
		}
	})
}

func TestComputeDigest_SensitiveToTrailingWitnesses(t *testing.T) {
	p := crypto.StdProvider{}
	rapid.Check(t, func(t *rapid.T) {
		ws := witnessesGen().Filter(func(ws [][]byte) bool {
			for _, w := range ws[1:] {
				if len(w) > 0 {
					return true
				}
			}
			return false
		}).Draw(t, "witnesses")

		var nonEmpty []int
		for i := 1; i < len(ws); i++ {
			if len(ws[i]) > 0 {
				nonEmpty = append(nonEmpty, i)
			}
		}
		idx := rapid.SampledFrom(nonEmpty).Draw(t, "index")
		pos := rapid.IntRange(0, len(ws[idx])-1).Draw(t, "pos")
		bit := rapid.IntRange(0, 7).Draw(t, "bit")

		before, err := ComputeDigest(p, [32]byte{}, ws, 8)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		tampered := cloneByteSlices(ws)
		tampered[idx][pos] ^= 1 << bit
		after, err := ComputeDigest(p, [32]byte{}, tampered, 8)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		if before == after {
			t.Fatalf("witness %d byte %d ignored by digest", idx, pos)
		}
	})
}
