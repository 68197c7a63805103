package consensus

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed failure taxonomy of the lock. The numeric value is
// the process status code.
type ErrorCode int8

const (
	ERR_INDEX_OUT_OF_BOUND   ErrorCode = 1
	ERR_ITEM_MISSING         ErrorCode = 2
	ERR_LENGTH_NOT_ENOUGH    ErrorCode = 3
	ERR_ENCODING             ErrorCode = 4
	ERR_FORMAT               ErrorCode = 5
	ERR_LOAD                 ErrorCode = 6
	ERR_SYMBOL               ErrorCode = 7
	ERR_AUTHORIZATION_FAILED ErrorCode = 8
)

var errorCodeNames = map[ErrorCode]string{
	ERR_INDEX_OUT_OF_BOUND:   "IndexOutOfBound",
	ERR_ITEM_MISSING:         "ItemMissing",
	ERR_LENGTH_NOT_ENOUGH:    "LengthNotEnough",
	ERR_ENCODING:             "Encoding",
	ERR_FORMAT:               "FormatError",
	ERR_LOAD:                 "LoadError",
	ERR_SYMBOL:               "SymbolError",
	ERR_AUTHORIZATION_FAILED: "AuthorizationFailure",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int8(c))
}

// Environmental reports whether the code points at the deployment rather than
// at the spender's data.
func (c ErrorCode) Environmental() bool {
	return c == ERR_LOAD || c == ERR_SYMBOL
}

type LockError struct {
	Code ErrorCode
	Msg  string
}

func (e *LockError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func lockerr(code ErrorCode, msg string) error {
	return &LockError{Code: code, Msg: msg}
}

// CodeOf extracts the taxonomy code from err. ok is false for errors that did
// not originate in this package.
func CodeOf(err error) (ErrorCode, bool) {
	var le *LockError
	if errors.As(err, &le) && le != nil {
		return le.Code, true
	}
	return 0, false
}

// ExitCode collapses a verification result into the process status byte.
// Errors outside the taxonomy are programming errors and abort.
func ExitCode(err error) int8 {
	if err == nil {
		return 0
	}
	code, ok := CodeOf(err)
	if !ok {
		panic(fmt.Sprintf("untyped lock failure: %v", err))
	}
	return int8(code)
}
