package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/node"
	"rsalock.dev/lock/node/store"
)

const (
	exitOK       = 0
	exitRuntime  = 1
	exitUsage    = 2
	exitRejected = 3
)

const envPrefix = "RSALOCK"

// errRejected marks a transaction whose locks ran but did not all succeed.
var errRejected = errors.New("transaction rejected")

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	cfg    node.Config
	log    zerolog.Logger
	hasher crypto.CryptoProvider
}

// configKeys maps viper keys to the persistent flags that feed them.
var configKeys = map[string]string{
	"network":             "network",
	"data_dir":            "data-dir",
	"log_level":           "log-level",
	"log_format":          "log-format",
	"revision":            "revision",
	"rsa_lib_code_hash":   "rsa-lib-code-hash",
	"symbol":              "symbol",
	"context_capacity":    "context-capacity",
	"max_parallel_inputs": "max-parallel-inputs",
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr, hasher: crypto.StdProvider{}}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRejected):
		_, _ = fmt.Fprintln(stderr, err)
		return exitRejected
	case isUsageError(err):
		_, _ = fmt.Fprintf(stderr, "usage error: %v\n", err)
		return exitUsage
	default:
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return exitRuntime
	}
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports unknown subcommands and missing required flags as plain
	// errors.
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "required flag")
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	defaults := node.DefaultConfig()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "rsa-lock",
		Short:         "Deploy, sign and verify cells guarded by the RSA lock",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(configFile)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (json, yaml or toml)")
	pf.String("network", defaults.Network, "network name")
	pf.String("data-dir", defaults.DataDir, "data directory")
	pf.String("log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	pf.String("log-format", defaults.LogFormat, "log format: console|json")
	pf.String("revision", defaults.Revision, "lock revision: fingerprint|raw-key")
	pf.String("rsa-lib-code-hash", "", "code hash of the RSA library (default: built-in image)")
	pf.String("symbol", defaults.Symbol, "verifier entry point exported by the library")
	pf.Int("context-capacity", defaults.ContextCapacity, "loader context capacity in bytes")
	pf.Int("max-parallel-inputs", defaults.MaxParallelInputs, "inputs verified concurrently")
	bindFlags(a.v, pf)

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.AddCommand(
		newLibHashCmd(a),
		newDeployCmd(a),
		newFingerprintCmd(a),
		newCreateCellCmd(a),
		newBuildTxCmd(a),
		newDigestCmd(a),
		newSignCmd(a),
		newVerifyCmd(a),
		newStatusCmd(a),
	)
	return rootCmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for key, name := range configKeys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// initConfig layers flags over RSALOCK_* environment variables over the
// optional config file over defaults.
func (a *app) initConfig(configFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if configFile != "" {
		a.v.SetConfigFile(configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return usagef("read config: %v", err)
		}
	}

	cfg := node.DefaultConfig()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return usagef("decode config: %v", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := node.ValidateConfig(cfg); err != nil {
		return usagef("invalid config: %v", err)
	}
	a.cfg = cfg
	a.log = newLogger(cfg, a.stderr)
	return nil
}

func newLogger(cfg node.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := w
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("network", cfg.Network).Logger()
}

// openNetwork opens the store and mirrors its live cells into a devnet.
func (a *app) openNetwork() (*store.DB, *node.Devnet, error) {
	db, err := store.Open(a.cfg.DataDir, a.cfg.Network)
	if err != nil {
		return nil, nil, err
	}
	cells, err := db.LoadCells()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	d := node.NewDevnet(a.hasher)
	for p, c := range cells {
		d.AddCell(p, c)
	}
	d.SetNonce(db.Manifest().NextCellNonce)
	a.log.Debug().Int("cells", len(cells)).Str("dir", db.NetworkDir()).Msg("store opened")
	return db, d, nil
}

// persistCells writes devnet cells back to the store together with the
// advanced out point counter.
func persistCells(db *store.DB, d *node.Devnet, m store.Manifest, points ...consensus.OutPoint) error {
	for _, p := range points {
		c, ok := d.Cell(p)
		if !ok {
			return fmt.Errorf("%w: %s", node.ErrUnknownCell, node.FormatOutPoint(p))
		}
		if err := db.PutCell(p, c); err != nil {
			return err
		}
	}
	m.NextCellNonce = d.Nonce()
	return db.SetManifest(m)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) println(s string) error {
	_, err := fmt.Fprintln(a.stdout, s)
	return err
}
