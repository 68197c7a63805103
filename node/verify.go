package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/dl"
	"rsalock.dev/lock/rsalib"
)

// DefaultNatives returns a registry holding the built-in RSA library routine.
func DefaultNatives() *dl.Registry {
	reg := dl.NewRegistry()
	if err := rsalib.Register(reg, nil); err != nil {
		panic(err)
	}
	return reg
}

// LoaderFactory builds the module loader for one input's lock run.
type LoaderFactory func(host *TxHost) consensus.Loader

type VerifyOptions struct {
	Natives         *dl.Registry
	ContextCapacity int
	MaxParallel     int
	Log             zerolog.Logger
	// Loader overrides the default dl.Context loader when set.
	Loader LoaderFactory
}

// InputResult is the status one input's lock exited with.
type InputResult struct {
	Index  int
	Status int8
	Err    error
}

type VerifyReport struct {
	TxHash [32]byte
	Inputs []InputResult
}

// OK reports whether every input lock exited with status 0.
func (r *VerifyReport) OK() bool {
	for _, in := range r.Inputs {
		if in.Status != 0 {
			return false
		}
	}
	return true
}

func (r *VerifyReport) FirstFailure() *InputResult {
	for i := range r.Inputs {
		if r.Inputs[i].Status != 0 {
			return &r.Inputs[i]
		}
	}
	return nil
}

// VerifyTx runs the lock of every input. Inputs share nothing, so up to
// MaxParallel of them run at once. The returned error covers failures to run
// a lock at all (unknown cells, missing lock code, host aborts); lock
// rejections are reported per input.
func VerifyTx(ctx context.Context, d *Devnet, tx *consensus.Transaction, opts VerifyOptions) (*VerifyReport, error) {
	if opts.Natives == nil {
		opts.Natives = DefaultNatives()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	report := &VerifyReport{TxHash: tx.Hash(d.hasher), Inputs: make([]InputResult, len(tx.Inputs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxParallel)
	for i := range tx.Inputs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := verifyInput(d, tx, i, opts)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			report.Inputs[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func verifyInput(d *Devnet, tx *consensus.Transaction, index int, opts VerifyOptions) (res InputResult, err error) {
	host, err := d.HostFor(tx, index)
	if err != nil {
		return res, err
	}
	cfg, err := lockConfigFor(host)
	if err != nil {
		return res, err
	}

	log := opts.Log.With().Int("input", index).Logger()
	var loader consensus.Loader
	if opts.Loader != nil {
		loader = opts.Loader(host)
	} else {
		loader = dl.NewContext(host, opts.Natives, d.hasher, opts.ContextCapacity)
	}
	ctrl := consensus.NewController(cfg, host, loader, d.hasher, log)

	defer func() {
		if r := recover(); r != nil {
			abort, ok := r.(consensus.HostAbort)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("aborted: %w", abort)
		}
	}()
	runErr := ctrl.Run()
	res = InputResult{Index: index, Status: consensus.ExitCode(runErr), Err: runErr}
	if c, ok := loader.(interface{ OpenModules() int }); ok && c.OpenModules() != 0 {
		return res, fmt.Errorf("lock left %d modules mapped", c.OpenModules())
	}
	log.Debug().Int8("status", res.Status).Msg("input verified")
	return res, nil
}

type lockCodeSource interface {
	LoadScript() (consensus.Script, error)
	LoadCodeByHash(codeHash [32]byte) ([]byte, error)
}

// lockConfigFor resolves the running script's code hash to a deployed lock
// binary and decodes its configuration.
func lockConfigFor(host lockCodeSource) (consensus.LockConfig, error) {
	script, err := host.LoadScript()
	if err != nil {
		return consensus.LockConfig{}, fmt.Errorf("lock script: %w", err)
	}
	code, err := host.LoadCodeByHash(script.CodeHash)
	if err != nil {
		return consensus.LockConfig{}, fmt.Errorf("lock code: %w", err)
	}
	cfg, err := DecodeLockBinary(code)
	if err != nil {
		return consensus.LockConfig{}, fmt.Errorf("lock code: %w", err)
	}
	return cfg, nil
}
