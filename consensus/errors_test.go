package consensus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockError_ErrorFormatting(t *testing.T) {
	var e *LockError
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("nil receiver: %q", got)
	}

	e = &LockError{Code: ERR_FORMAT, Msg: ""}
	if got := e.Error(); got != "FormatError" {
		t.Fatalf("empty msg: %q", got)
	}

	e = &LockError{Code: ERR_FORMAT, Msg: "bad"}
	if got := e.Error(); got != "FormatError: bad" {
		t.Fatalf("with msg: %q", got)
	}
}

func TestLockerrReturnsLockError(t *testing.T) {
	err := lockerr(ERR_SYMBOL, "x")
	le, ok := err.(*LockError)
	if !ok {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if le.Code != ERR_SYMBOL || le.Msg != "x" {
		t.Fatalf("unexpected fields: %#v", le)
	}
}

func TestExitCodes(t *testing.T) {
	require.Equal(t, int8(0), ExitCode(nil))
	cases := map[ErrorCode]int8{
		ERR_INDEX_OUT_OF_BOUND:   1,
		ERR_ITEM_MISSING:         2,
		ERR_LENGTH_NOT_ENOUGH:    3,
		ERR_ENCODING:             4,
		ERR_FORMAT:               5,
		ERR_LOAD:                 6,
		ERR_SYMBOL:               7,
		ERR_AUTHORIZATION_FAILED: 8,
	}
	for code, want := range cases {
		require.Equal(t, want, ExitCode(lockerr(code, "")), code.String())
	}
	require.Len(t, errorCodeNames, len(cases))
}

func TestExitCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("input 3: %w", lockerr(ERR_LOAD, "missing"))
	require.Equal(t, int8(6), ExitCode(err))
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.True(t, code.Environmental())
	require.False(t, ERR_AUTHORIZATION_FAILED.Environmental())
}

func TestExitCodePanicsOnUntypedError(t *testing.T) {
	require.Panics(t, func() { ExitCode(errors.New("boom")) })
}

func TestErrorCodeStringUnknown(t *testing.T) {
	require.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}
