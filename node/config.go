package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
	"rsalock.dev/lock/rsalib"
)

type Config struct {
	Network           string `json:"network" mapstructure:"network"`
	DataDir           string `json:"data_dir" mapstructure:"data_dir"`
	LogLevel          string `json:"log_level" mapstructure:"log_level"`
	LogFormat         string `json:"log_format" mapstructure:"log_format"`
	Revision          string `json:"revision" mapstructure:"revision"`
	RSALibCodeHash    string `json:"rsa_lib_code_hash" mapstructure:"rsa_lib_code_hash"`
	Symbol            string `json:"symbol" mapstructure:"symbol"`
	ContextCapacity   int    `json:"context_capacity" mapstructure:"context_capacity"`
	MaxParallelInputs int    `json:"max_parallel_inputs" mapstructure:"max_parallel_inputs"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".rsalock"
	}
	return filepath.Join(home, ".rsalock")
}

func DefaultConfig() Config {
	return Config{
		Network:           "devnet",
		DataDir:           DefaultDataDir(),
		LogLevel:          "info",
		LogFormat:         "console",
		Revision:          consensus.RevisionFingerprint.String(),
		Symbol:            consensus.VALIDATE_RSA_SIGHASH_ALL,
		ContextCapacity:   dl.DEFAULT_CAPACITY,
		MaxParallelInputs: 4,
	}
}

// ValidateConfig reports every problem with cfg at once.
func ValidateConfig(cfg Config) error {
	var result *multierror.Error
	if strings.TrimSpace(cfg.Network) == "" {
		result = multierror.Append(result, errors.New("network is required"))
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		result = multierror.Append(result, errors.New("data_dir is required"))
	}
	if _, ok := allowedLogLevels[strings.ToLower(strings.TrimSpace(cfg.LogLevel))]; !ok {
		result = multierror.Append(result, fmt.Errorf("invalid log_level %q", cfg.LogLevel))
	}
	if _, ok := allowedLogFormats[strings.ToLower(strings.TrimSpace(cfg.LogFormat))]; !ok {
		result = multierror.Append(result, fmt.Errorf("invalid log_format %q", cfg.LogFormat))
	}
	if _, err := consensus.ParseRevision(cfg.Revision); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid revision: %w", err))
	}
	if cfg.RSALibCodeHash != "" {
		if _, err := ParseHash32(cfg.RSALibCodeHash); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid rsa_lib_code_hash: %w", err))
		}
	}
	if cfg.Symbol == "" || len(cfg.Symbol) > dl.MAX_NAME_BYTES {
		result = multierror.Append(result, fmt.Errorf("invalid symbol %q", cfg.Symbol))
	}
	if cfg.ContextCapacity <= 0 {
		result = multierror.Append(result, errors.New("context_capacity must be > 0"))
	}
	if cfg.MaxParallelInputs <= 0 {
		result = multierror.Append(result, errors.New("max_parallel_inputs must be > 0"))
	}
	if cfg.MaxParallelInputs > 256 {
		result = multierror.Append(result, errors.New("max_parallel_inputs must be <= 256"))
	}
	return result.ErrorOrNil()
}

// LockConfig resolves the deployment parameters of the lock. An empty
// rsa_lib_code_hash selects the built-in library image.
func (cfg Config) LockConfig(p crypto.Hasher) (consensus.LockConfig, error) {
	rev, err := consensus.ParseRevision(cfg.Revision)
	if err != nil {
		return consensus.LockConfig{}, err
	}
	codeHash := rsalib.CodeHash(p)
	if cfg.RSALibCodeHash != "" {
		codeHash, err = ParseHash32(cfg.RSALibCodeHash)
		if err != nil {
			return consensus.LockConfig{}, err
		}
	}
	return consensus.LockConfig{Revision: rev, LibCodeHash: codeHash, Symbol: cfg.Symbol}, nil
}

func ParseHash32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
