package consensus

import (
	"errors"
	"fmt"
)

// Host error codes as reported by the execution environment.
const (
	SYS_INDEX_OUT_OF_BOUND uint64 = 1
	SYS_ITEM_MISSING       uint64 = 2
	SYS_LENGTH_NOT_ENOUGH  uint64 = 3
	SYS_ENCODING           uint64 = 4
)

// SysError is a failed host call. Available is only meaningful for
// SYS_LENGTH_NOT_ENOUGH and carries the real item size.
type SysError struct {
	Code      uint64
	Available int
}

func (e *SysError) Error() string {
	switch e.Code {
	case SYS_INDEX_OUT_OF_BOUND:
		return "syscall: index out of bound"
	case SYS_ITEM_MISSING:
		return "syscall: item missing"
	case SYS_LENGTH_NOT_ENOUGH:
		return fmt.Sprintf("syscall: length not enough (%d available)", e.Available)
	case SYS_ENCODING:
		return "syscall: encoding"
	default:
		return fmt.Sprintf("syscall: unknown error %d", e.Code)
	}
}

// HostAbort is the panic value raised for host failures outside the known
// set. The run cannot continue and there is no status code for it.
type HostAbort struct {
	Code uint64
	Err  error
}

func (a HostAbort) Error() string {
	if a.Err != nil {
		return fmt.Sprintf("unexpected host error: %v", a.Err)
	}
	return fmt.Sprintf("unexpected sys error %d", a.Code)
}

// Syscalls is the slice of the host environment the lock reads from.
// Implementations return *SysError on failure.
type Syscalls interface {
	// LoadTxHash returns the hash of the transaction being verified.
	LoadTxHash() ([32]byte, error)
	// LoadScript returns the lock script currently executing.
	LoadScript() (Script, error)
	// LoadWitness returns witness index of the transaction.
	LoadWitness(index int) ([]byte, error)
}

// fromSysError maps a host failure into the taxonomy. Unknown codes and
// foreign error types abort.
func fromSysError(err error) error {
	if err == nil {
		return nil
	}
	var se *SysError
	if !errors.As(err, &se) {
		panic(HostAbort{Err: err})
	}
	switch se.Code {
	case SYS_INDEX_OUT_OF_BOUND:
		return lockerr(ERR_INDEX_OUT_OF_BOUND, se.Error())
	case SYS_ITEM_MISSING:
		return lockerr(ERR_ITEM_MISSING, se.Error())
	case SYS_LENGTH_NOT_ENOUGH:
		return lockerr(ERR_LENGTH_NOT_ENOUGH, se.Error())
	case SYS_ENCODING:
		return lockerr(ERR_ENCODING, se.Error())
	default:
		panic(HostAbort{Code: se.Code})
	}
}

func isIndexOutOfBound(err error) bool {
	var se *SysError
	return errors.As(err, &se) && se.Code == SYS_INDEX_OUT_OF_BOUND
}

// LoadWitnesses reads every witness of the transaction in index order. Witness
// 0 must exist.
func LoadWitnesses(sys Syscalls) ([][]byte, error) {
	var out [][]byte
	for i := 0; ; i++ {
		w, err := sys.LoadWitness(i)
		if err != nil {
			if i > 0 && isIndexOutOfBound(err) {
				return out, nil
			}
			return nil, fromSysError(err)
		}
		out = append(out, w)
	}
}
