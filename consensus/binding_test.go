package consensus

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type mockModule struct {
	exports map[string]Entrypoint
	closed  int
}

func (m *mockModule) Resolve(symbol string) (Entrypoint, error) {
	e, ok := m.exports[symbol]
	if !ok {
		return nil, errors.New("no such export")
	}
	return e, nil
}

func (m *mockModule) Close() error {
	m.closed++
	return nil
}

type mockLoader struct {
	modules map[[32]byte]*mockModule
	loads   int
	err     error
}

func (l *mockLoader) Load(codeHash [32]byte) (Module, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	m, ok := l.modules[codeHash]
	if !ok {
		return nil, errors.New("code hash not found")
	}
	return m, nil
}

type countingEntry struct {
	rc    int32
	calls int
	last  []byte
}

func (e *countingEntry) Call(arg []byte) int32 {
	e.calls++
	e.last = append([]byte(nil), arg...)
	return e.rc
}

func TestCallArgs(t *testing.T) {
	var d [32]byte
	d[0] = 0xaa
	arg := CallArgs(d, []byte{1, 2, 3})
	require.Len(t, arg, 35)
	require.Equal(t, byte(0xaa), arg[0])
	require.Equal(t, []byte{1, 2, 3}, arg[32:])
}

func TestVerifierBinding_Success(t *testing.T) {
	entry := &countingEntry{}
	mod := &mockModule{exports: map[string]Entrypoint{VALIDATE_RSA_SIGHASH_ALL: entry}}
	hash := [32]byte{1}
	loader := &mockLoader{modules: map[[32]byte]*mockModule{hash: mod}}

	v := NewVerifierBinding(loader, hash, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())
	require.NoError(t, v.Load())
	require.NoError(t, v.Verify([32]byte{9}, []byte{7}))
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())

	require.Equal(t, 1, loader.loads)
	require.Equal(t, 1, entry.calls)
	require.Equal(t, 1, mod.closed)
	require.Equal(t, byte(9), entry.last[0])
}

func TestVerifierBinding_LoadErrors(t *testing.T) {
	loader := &mockLoader{modules: map[[32]byte]*mockModule{}}
	v := NewVerifierBinding(loader, [32]byte{2}, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())
	require.Equal(t, ERR_LOAD, mustLockErrCode(t, v.Load()))

	typed := &mockLoader{err: lockerr(ERR_LOAD, "oversize")}
	v = NewVerifierBinding(typed, [32]byte{2}, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())
	err := v.Load()
	require.Equal(t, ERR_LOAD, mustLockErrCode(t, err))
	require.Contains(t, err.Error(), "oversize")
}

func TestVerifierBinding_SymbolMissingClosesModule(t *testing.T) {
	mod := &mockModule{exports: map[string]Entrypoint{}}
	hash := [32]byte{3}
	loader := &mockLoader{modules: map[[32]byte]*mockModule{hash: mod}}
	v := NewVerifierBinding(loader, hash, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())
	require.Equal(t, ERR_SYMBOL, mustLockErrCode(t, v.Load()))
	require.Equal(t, 1, mod.closed)
	require.NoError(t, v.Close())
	require.Equal(t, 1, mod.closed)
}

func TestVerifierBinding_NonZeroReturn(t *testing.T) {
	entry := &countingEntry{rc: 4}
	hash := [32]byte{4}
	loader := &mockLoader{modules: map[[32]byte]*mockModule{hash: {exports: map[string]Entrypoint{VALIDATE_RSA_SIGHASH_ALL: entry}}}}
	v := NewVerifierBinding(loader, hash, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())
	require.NoError(t, v.Load())
	err := v.Verify([32]byte{}, nil)
	require.Equal(t, ERR_AUTHORIZATION_FAILED, mustLockErrCode(t, err))
	require.Contains(t, err.Error(), "4")
}

func TestVerifierBinding_ExactlyOnce(t *testing.T) {
	entry := &countingEntry{}
	hash := [32]byte{5}
	loader := &mockLoader{modules: map[[32]byte]*mockModule{hash: {exports: map[string]Entrypoint{VALIDATE_RSA_SIGHASH_ALL: entry}}}}
	v := NewVerifierBinding(loader, hash, VALIDATE_RSA_SIGHASH_ALL, zerolog.Nop())

	require.Panics(t, func() { _ = v.Verify([32]byte{}, nil) })
	require.NoError(t, v.Load())
	require.Panics(t, func() { _ = v.Load() })
	require.NoError(t, v.Verify([32]byte{}, nil))
	require.Panics(t, func() { _ = v.Verify([32]byte{}, nil) })
	require.Equal(t, 1, loader.loads)
	require.Equal(t, 1, entry.calls)
}

func TestEntrypointFunc(t *testing.T) {
	var e Entrypoint = EntrypointFunc(func(arg []byte) int32 { return int32(len(arg)) })
	require.Equal(t, int32(3), e.Call([]byte{1, 2, 3}))
}
