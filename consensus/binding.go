package consensus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// VALIDATE_RSA_SIGHASH_ALL is the export the RSA library module provides.
const VALIDATE_RSA_SIGHASH_ALL = "validate_rsa_sighash_all"

// Loader maps a code blob, located by its content hash, into a fresh module.
type Loader interface {
	Load(codeHash [32]byte) (Module, error)
}

// Module is a loaded code blob. Close releases everything Load acquired.
type Module interface {
	Resolve(symbol string) (Entrypoint, error)
	Close() error
}

// Entrypoint is a resolved export. Call returns 0 on success; any other value
// is an opaque failure code.
type Entrypoint interface {
	Call(arg []byte) int32
}

// EntrypointFunc adapts an ordinary function to Entrypoint.
type EntrypointFunc func(arg []byte) int32

func (f EntrypointFunc) Call(arg []byte) int32 { return f(arg) }

// CallArgs builds the argument buffer for the verifier routine:
// digest(32) ‖ bundle.
func CallArgs(digest [32]byte, bundle []byte) []byte {
	out := make([]byte, 0, DIGEST_BYTES+len(bundle))
	out = append(out, digest[:]...)
	return append(out, bundle...)
}

// VerifierBinding drives one load/resolve/call sequence. It refuses to load or
// call a second time.
type VerifierBinding struct {
	loader   Loader
	codeHash [32]byte
	symbol   string
	log      zerolog.Logger

	module Module
	entry  Entrypoint
	loaded bool
	called bool
}

func NewVerifierBinding(loader Loader, codeHash [32]byte, symbol string, log zerolog.Logger) *VerifierBinding {
	return &VerifierBinding{loader: loader, codeHash: codeHash, symbol: symbol, log: log}
}

// Load maps the module and resolves the verifier symbol. On symbol failure the
// module is closed before returning.
func (v *VerifierBinding) Load() error {
	if v.loaded {
		panic("verifier binding: module already loaded")
	}
	v.loaded = true

	m, err := v.loader.Load(v.codeHash)
	if err != nil {
		return asLockError(ERR_LOAD, err)
	}
	entry, err := m.Resolve(v.symbol)
	if err != nil {
		_ = m.Close()
		return asLockError(ERR_SYMBOL, err)
	}
	v.module = m
	v.entry = entry
	return nil
}

// Verify invokes the resolved routine once.
func (v *VerifierBinding) Verify(digest [32]byte, bundle []byte) error {
	if v.entry == nil {
		panic("verifier binding: call before successful load")
	}
	if v.called {
		panic("verifier binding: routine already called")
	}
	v.called = true

	rc := v.entry.Call(CallArgs(digest, bundle))
	if rc != 0 {
		v.log.Warn().Int32("rc", rc).Str("symbol", v.symbol).Msg("rsa verifier rejected signature")
		return lockerr(ERR_AUTHORIZATION_FAILED, fmt.Sprintf("verifier returned %d", rc))
	}
	return nil
}

// Close releases the module if one is held. Safe to call more than once.
func (v *VerifierBinding) Close() error {
	if v.module == nil {
		return nil
	}
	m := v.module
	v.module = nil
	v.entry = nil
	return m.Close()
}

// asLockError keeps taxonomy errors from the loader intact and tags anything
// else with code.
func asLockError(code ErrorCode, err error) error {
	if _, ok := CodeOf(err); ok {
		return err
	}
	return lockerr(code, err.Error())
}
