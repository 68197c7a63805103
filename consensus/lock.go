package consensus

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"rsalock.dev/lock/crypto"
)

// Revision selects how the lock args commit to the public key. A deployment
// uses exactly one.
type Revision uint8

const (
	// RevisionFingerprint: args are the 20-byte blake160 of the key material.
	RevisionFingerprint Revision = iota
	// RevisionRawKey: args are exponent ‖ modulus verbatim.
	RevisionRawKey
)

func (r Revision) String() string {
	switch r {
	case RevisionFingerprint:
		return "fingerprint"
	case RevisionRawKey:
		return "raw-key"
	default:
		return fmt.Sprintf("Revision(%d)", uint8(r))
	}
}

func ParseRevision(s string) (Revision, error) {
	switch s {
	case "", "fingerprint":
		return RevisionFingerprint, nil
	case "raw-key":
		return RevisionRawKey, nil
	default:
		return 0, fmt.Errorf("unknown revision %q", s)
	}
}

// LockConfig is fixed at deployment time.
type LockConfig struct {
	Revision    Revision
	LibCodeHash [32]byte
	Symbol      string
}

func (c LockConfig) symbol() string {
	if c.Symbol == "" {
		return VALIDATE_RSA_SIGHASH_ALL
	}
	return c.Symbol
}

type State uint8

const (
	StateStart State = iota
	StateArgsRead
	StateDigestComputed
	StateBundleDecoded
	StateKeyMatched
	StateModuleLoaded
	StateVerified
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	StateStart:          "Start",
	StateArgsRead:       "ArgsRead",
	StateDigestComputed: "DigestComputed",
	StateBundleDecoded:  "BundleDecoded",
	StateKeyMatched:     "KeyMatched",
	StateModuleLoaded:   "ModuleLoaded",
	StateVerified:       "Verified",
	StateSuccess:        "Success",
	StateFailed:         "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Controller runs a single verification of one input. It is not reusable.
type Controller struct {
	cfg    LockConfig
	sys    Syscalls
	loader Loader
	hasher crypto.Hasher
	log    zerolog.Logger

	state State
	trace []State
	err   error

	args   []byte
	digest [32]byte
	lock   []byte
	bundle *SignatureBundle
}

func NewController(cfg LockConfig, sys Syscalls, loader Loader, hasher crypto.Hasher, log zerolog.Logger) *Controller {
	if hasher == nil {
		hasher = crypto.StdProvider{}
	}
	return &Controller{
		cfg:    cfg,
		sys:    sys,
		loader: loader,
		hasher: hasher,
		log:    log,
		state:  StateStart,
		trace:  []State{StateStart},
	}
}

func (c *Controller) State() State { return c.state }

// Trace is every state entered so far, in order.
func (c *Controller) Trace() []State { return append([]State(nil), c.trace...) }

func (c *Controller) Err() error { return c.err }

func (c *Controller) advance(s State) {
	c.state = s
	c.trace = append(c.trace, s)
	ev := c.log.Debug().Stringer("state", s)
	if c.bundle != nil {
		ev = ev.Uint32("key_size", c.bundle.KeySize)
	}
	ev.Msg("rsa lock transition")
}

func (c *Controller) fail(err error) error {
	c.err = err
	c.advance(StateFailed)
	code, _ := CodeOf(err)
	c.log.Debug().Stringer("code", code).Err(err).Msg("rsa lock failed")
	return err
}

// Run executes the state machine to a terminal state. Host failures outside
// the known error set panic with HostAbort.
func (c *Controller) Run() error {
	if c.state != StateStart {
		panic("rsa lock: controller already ran")
	}
	if err := c.readArgs(); err != nil {
		return c.fail(err)
	}
	c.advance(StateArgsRead)

	if err := c.computeDigest(); err != nil {
		return c.fail(err)
	}
	c.advance(StateDigestComputed)

	b, err := DecodeBundle(c.lock)
	if err != nil {
		return c.fail(err)
	}
	c.bundle = b
	c.advance(StateBundleDecoded)

	if err := c.matchKey(); err != nil {
		return c.fail(err)
	}
	c.advance(StateKeyMatched)

	binding := NewVerifierBinding(c.loader, c.cfg.LibCodeHash, c.cfg.symbol(), c.log)
	defer func() {
		if cerr := binding.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("rsa lock: module close failed")
		}
	}()
	c.log.Debug().Str("code_hash", hex.EncodeToString(c.cfg.LibCodeHash[:])).Msg("loading verifier module")
	if err := binding.Load(); err != nil {
		return c.fail(err)
	}
	c.advance(StateModuleLoaded)

	if err := binding.Verify(c.digest, c.lock); err != nil {
		return c.fail(err)
	}
	c.advance(StateVerified)
	c.advance(StateSuccess)
	return nil
}

func (c *Controller) readArgs() error {
	script, err := c.sys.LoadScript()
	if err != nil {
		return fromSysError(err)
	}
	switch c.cfg.Revision {
	case RevisionFingerprint:
		if _, err := ParseFingerprint(script.Args); err != nil {
			return err
		}
	case RevisionRawKey:
		if !rawKeyArgsLen(len(script.Args)) {
			return lockerr(ERR_FORMAT, fmt.Sprintf("args: %d bytes is not exponent plus modulus", len(script.Args)))
		}
	default:
		return lockerr(ERR_FORMAT, fmt.Sprintf("unsupported revision %s", c.cfg.Revision))
	}
	c.args = script.Args
	return nil
}

func rawKeyArgsLen(n int) bool {
	for _, ks := range []uint32{KEY_SIZE_1024, KEY_SIZE_2048, KEY_SIZE_4096} {
		if n == 4+int(ks/8) {
			return true
		}
	}
	return false
}

// computeDigest uses the real lock length as the placeholder length, so a
// bundle of the wrong size still yields a digest and is rejected at decode.
func (c *Controller) computeDigest() error {
	txHash, auth, rest, err := hostWitnesses(c.sys)
	if err != nil {
		return err
	}
	if auth.Lock == nil {
		return lockerr(ERR_FORMAT, "witness 0 has no lock field")
	}
	d, err := digestWithAuth(c.hasher, txHash, *auth, rest, len(auth.Lock))
	if err != nil {
		return err
	}
	c.lock = auth.Lock
	c.digest = d
	return nil
}

func (c *Controller) matchKey() error {
	switch c.cfg.Revision {
	case RevisionRawKey:
		if !RawKeyMatches(c.args, c.bundle) {
			return lockerr(ERR_AUTHORIZATION_FAILED, "embedded key does not match args")
		}
	default:
		claimed, err := ParseFingerprint(c.args)
		if err != nil {
			return err
		}
		if !FingerprintMatches(claimed, c.bundle.Fingerprint(c.hasher)) {
			return lockerr(ERR_AUTHORIZATION_FAILED, "fingerprint mismatch")
		}
	}
	return nil
}

// Main runs one verification and returns the process status byte.
func Main(cfg LockConfig, sys Syscalls, loader Loader, log zerolog.Logger) int8 {
	return ExitCode(NewController(cfg, sys, loader, crypto.StdProvider{}, log).Run())
}
