package consensus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type witnessOnlySys struct {
	witnesses [][]byte
	failAt    int
	failErr   error
}

func (s *witnessOnlySys) LoadTxHash() ([32]byte, error) { return [32]byte{}, nil }
func (s *witnessOnlySys) LoadScript() (Script, error)   { return Script{}, nil }
func (s *witnessOnlySys) LoadWitness(i int) ([]byte, error) {
	if s.failErr != nil && i == s.failAt {
		return nil, s.failErr
	}
	if i >= len(s.witnesses) {
		return nil, &SysError{Code: SYS_INDEX_OUT_OF_BOUND}
	}
	return s.witnesses[i], nil
}

func TestFromSysErrorExhaustiveMapping(t *testing.T) {
	cases := []struct {
		code uint64
		want ErrorCode
	}{
		{SYS_INDEX_OUT_OF_BOUND, ERR_INDEX_OUT_OF_BOUND},
		{SYS_ITEM_MISSING, ERR_ITEM_MISSING},
		{SYS_LENGTH_NOT_ENOUGH, ERR_LENGTH_NOT_ENOUGH},
		{SYS_ENCODING, ERR_ENCODING},
	}
	for _, tc := range cases {
		err := fromSysError(&SysError{Code: tc.code, Available: 7})
		require.Equal(t, tc.want, mustLockErrCode(t, err))
	}
	require.NoError(t, fromSysError(nil))
}

func TestFromSysErrorUnknownCodeAborts(t *testing.T) {
	require.PanicsWithValue(t, HostAbort{Code: 99}, func() {
		_ = fromSysError(&SysError{Code: 99})
	})
}

func TestFromSysErrorForeignErrorAborts(t *testing.T) {
	foreign := errors.New("disk on fire")
	require.PanicsWithValue(t, HostAbort{Err: foreign}, func() {
		_ = fromSysError(foreign)
	})
}

func TestSysErrorMessages(t *testing.T) {
	require.Contains(t, (&SysError{Code: SYS_LENGTH_NOT_ENOUGH, Available: 12}).Error(), "12 available")
	require.Contains(t, (&SysError{Code: 77}).Error(), "unknown error 77")
	require.Contains(t, HostAbort{Code: 77}.Error(), "77")
}

func TestLoadWitnessesStopsAtIndexOutOfBound(t *testing.T) {
	sys := &witnessOnlySys{witnesses: [][]byte{{1}, {2}, {3}}}
	ws, err := LoadWitnesses(sys)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{1}, {2}, {3}}, ws)
}

func TestLoadWitnessesRequiresWitnessZero(t *testing.T) {
	_, err := LoadWitnesses(&witnessOnlySys{})
	require.Equal(t, ERR_INDEX_OUT_OF_BOUND, mustLockErrCode(t, err))
}

func TestLoadWitnessesPropagatesOtherErrors(t *testing.T) {
	sys := &witnessOnlySys{
		witnesses: [][]byte{{1}, {2}},
		failAt:    1,
		failErr:   &SysError{Code: SYS_ITEM_MISSING},
	}
	_, err := LoadWitnesses(sys)
	require.Equal(t, ERR_ITEM_MISSING, mustLockErrCode(t, err))
}
