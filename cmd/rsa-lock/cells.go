package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/node"
	"rsalock.dev/lock/node/store"
)

func newFingerprintCmd(a *app) *cobra.Command {
	var keyPath string
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the lock args for a public key under the configured revision",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			pub, err := node.LoadPublicKeyFile(keyPath)
			if err != nil {
				return err
			}
			rev, err := consensus.ParseRevision(a.cfg.Revision)
			if err != nil {
				return usageError{err}
			}
			args, err := node.LockArgs(a.hasher, pub, rev)
			if err != nil {
				return err
			}
			return a.println("0x" + hex.EncodeToString(args))
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM public or private key")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

// deployedLock returns the lock code cell recorded in the manifest together
// with the configuration baked into it.
func deployedLock(d *node.Devnet, m store.Manifest) (consensus.OutPoint, consensus.LockConfig, error) {
	if m.LockOutPointHex == "" {
		return consensus.OutPoint{}, consensus.LockConfig{}, fmt.Errorf("no lock deployed on %s; run deploy --lock first", m.Network)
	}
	point, err := node.ParseOutPoint(m.LockOutPointHex)
	if err != nil {
		return consensus.OutPoint{}, consensus.LockConfig{}, fmt.Errorf("manifest lock out point: %w", err)
	}
	c, ok := d.Cell(point)
	if !ok {
		return consensus.OutPoint{}, consensus.LockConfig{}, fmt.Errorf("%w: lock cell %s", node.ErrUnknownCell, m.LockOutPointHex)
	}
	lc, err := node.DecodeLockBinary(c.Data)
	if err != nil {
		return consensus.OutPoint{}, consensus.LockConfig{}, err
	}
	return point, lc, nil
}

type createCellResult struct {
	OutPoint string `json:"out_point"`
	Capacity uint64 `json:"capacity"`
	LockArgs string `json:"lock_args"`
	Revision string `json:"revision"`
}

func newCreateCellCmd(a *app) *cobra.Command {
	var (
		keyPath  string
		capacity uint64
	)
	cmd := &cobra.Command{
		Use:   "create-cell",
		Short: "Create a cell locked to a public key with the deployed lock",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			if capacity == 0 {
				return usagef("--capacity must be > 0")
			}
			pub, err := node.LoadPublicKeyFile(keyPath)
			if err != nil {
				return err
			}

			db, d, err := a.openNetwork()
			if err != nil {
				return err
			}
			defer db.Close()

			m := db.Manifest()
			lockPoint, lc, err := deployedLock(d, m)
			if err != nil {
				return err
			}
			args, err := node.LockArgs(a.hasher, pub, lc.Revision)
			if err != nil {
				return err
			}
			script, err := d.BuildScript(lockPoint, args)
			if err != nil {
				return err
			}
			point := d.CreateCell(consensus.CellOutput{Capacity: capacity, Lock: script}, nil)
			if err := persistCells(db, d, m, point); err != nil {
				return err
			}
			a.log.Info().Str("out_point", node.FormatOutPoint(point)).Uint64("capacity", capacity).Msg("cell created")
			return a.writeJSON(createCellResult{
				OutPoint: node.FormatOutPoint(point),
				Capacity: capacity,
				LockArgs: "0x" + hex.EncodeToString(args),
				Revision: lc.Revision.String(),
			})
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM public or private key of the owner")
	cmd.Flags().Uint64Var(&capacity, "capacity", 0, "cell capacity")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("capacity")
	return cmd
}
