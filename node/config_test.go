package node

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/rsalib"
)

func TestValidateConfigOK(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejectsEmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsInvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsInvalidRevision(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revision = "both"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsBadCodeHash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSALibCodeHash = "abcd"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	cfg.LogFormat = "xml"
	cfg.Symbol = ""
	cfg.ContextCapacity = 0
	cfg.MaxParallelInputs = 1000
	err := ValidateConfig(cfg)
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T", err)
	}
	if len(merr.Errors) != 5 {
		t.Fatalf("got %d errors: %v", len(merr.Errors), err)
	}
	if !strings.Contains(err.Error(), "context_capacity") {
		t.Fatalf("missing context_capacity in %q", err)
	}
}

func TestConfigLockConfig(t *testing.T) {
	p := crypto.StdProvider{}
	lc, err := DefaultConfig().LockConfig(p)
	if err != nil {
		t.Fatalf("LockConfig: %v", err)
	}
	if lc.LibCodeHash != rsalib.CodeHash(p) {
		t.Fatalf("default code hash should be the built-in image")
	}
	if lc.Revision != consensus.RevisionFingerprint || lc.Symbol != consensus.VALIDATE_RSA_SIGHASH_ALL {
		t.Fatalf("unexpected defaults: %+v", lc)
	}

	cfg := DefaultConfig()
	cfg.Revision = "raw-key"
	cfg.RSALibCodeHash = "0x" + strings.Repeat("ab", 32)
	lc, err = cfg.LockConfig(p)
	if err != nil {
		t.Fatalf("LockConfig: %v", err)
	}
	if lc.Revision != consensus.RevisionRawKey || lc.LibCodeHash[0] != 0xab {
		t.Fatalf("unexpected lock config: %+v", lc)
	}
}
