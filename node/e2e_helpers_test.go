package node

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/rsalib"
)

func mustTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	pemBytes, err := os.ReadFile(filepath.Join("..", "crypto", "testdata", "key1024.pem"))
	require.NoError(t, err)
	priv, err := crypto.ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	return priv
}

type lockEnv struct {
	d       *Devnet
	priv    *rsa.PrivateKey
	libCell consensus.OutPoint
	script  consensus.Script
	input   consensus.OutPoint
}

// newLockEnv deploys the RSA library and the lock binary and creates one input
// cell locked to priv.
func newLockEnv(t *testing.T, priv *rsa.PrivateKey, rev consensus.Revision) *lockEnv {
	t.Helper()
	d := NewDevnet(nil)
	libCell, libHash := d.DeployCell(rsalib.Image())
	lockBin, err := EncodeLockBinary(consensus.LockConfig{Revision: rev, LibCodeHash: libHash, Symbol: consensus.VALIDATE_RSA_SIGHASH_ALL})
	require.NoError(t, err)
	lockCell, _ := d.DeployCell(lockBin)

	args, err := LockArgs(d.Hasher(), &priv.PublicKey, rev)
	require.NoError(t, err)
	script, err := d.BuildScript(lockCell, args)
	require.NoError(t, err)
	input := d.CreateCell(consensus.CellOutput{Capacity: 1000, Lock: script}, nil)
	return &lockEnv{d: d, priv: priv, libCell: libCell, script: script, input: input}
}

// spendTx spends the input into two outputs under the same lock, with deps
// completed. withLib controls whether the library cell is a dep.
func (e *lockEnv) spendTx(t *testing.T, withLib bool) *consensus.Transaction {
	t.Helper()
	tx := &consensus.Transaction{
		Inputs: []consensus.CellInput{{PreviousOutput: e.input}},
		Outputs: []consensus.CellOutput{
			{Capacity: 500, Lock: e.script},
			{Capacity: 500, Lock: e.script},
		},
		OutputsData: [][]byte{{}, {}},
	}
	var extra []consensus.OutPoint
	if withLib {
		extra = append(extra, e.libCell)
	}
	done, err := e.d.CompleteTx(tx, extra...)
	require.NoError(t, err)
	return done
}

func (e *lockEnv) signedTx(t *testing.T) *consensus.Transaction {
	t.Helper()
	signed, err := SignTx(e.d.Hasher(), e.spendTx(t, true), e.priv)
	require.NoError(t, err)
	return signed
}
