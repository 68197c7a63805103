package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/node"
	"rsalock.dev/lock/rsalib"
)

type deployResult struct {
	Kind     string `json:"kind"`
	OutPoint string `json:"out_point"`
	CodeHash string `json:"code_hash"`
	Size     int    `json:"size"`
}

func newDeployCmd(a *app) *cobra.Command {
	var deployLib, deployLock bool

	cmd := &cobra.Command{
		Use:   "deploy [file]",
		Short: "Deploy a code cell: the built-in RSA library, the lock binary, or a file",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, set := range []bool{deployLib, deployLock, len(args) == 1} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return usagef("exactly one of --rsalib, --lock or a file is required")
			}

			kind := "file"
			var blob []byte
			var lc consensus.LockConfig
			var err error
			switch {
			case deployLib:
				kind = "rsalib"
				blob = rsalib.Image()
			case deployLock:
				kind = "lock"
				if lc, err = a.cfg.LockConfig(a.hasher); err != nil {
					return usageError{err}
				}
				if blob, err = node.EncodeLockBinary(lc); err != nil {
					return err
				}
			default:
				if blob, err = node.ReadFile(args[0]); err != nil {
					return err
				}
			}

			db, d, err := a.openNetwork()
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.PutCode(blob); err != nil {
				return err
			}
			point, codeHash := d.DeployCell(blob)
			m := db.Manifest()
			codeHex := hex.EncodeToString(codeHash[:])
			switch kind {
			case "rsalib":
				m.RSALibCodeHashHex = codeHex
				m.RSALibOutPointHex = node.FormatOutPoint(point)
			case "lock":
				if m.RSALibCodeHashHex != "" && m.RSALibCodeHashHex != hex.EncodeToString(lc.LibCodeHash[:]) {
					a.log.Warn().
						Str("deployed_lib", m.RSALibCodeHashHex).
						Str("lock_lib", hex.EncodeToString(lc.LibCodeHash[:])).
						Msg("lock references a library other than the deployed one")
				}
				m.LockCodeHashHex = codeHex
				m.LockOutPointHex = node.FormatOutPoint(point)
				m.Revision = lc.Revision.String()
			}
			if err := persistCells(db, d, m, point); err != nil {
				return err
			}
			a.log.Info().Str("kind", kind).Str("code_hash", codeHex).Int("size", len(blob)).Msg("code deployed")
			return a.writeJSON(deployResult{
				Kind:     kind,
				OutPoint: node.FormatOutPoint(point),
				CodeHash: "0x" + codeHex,
				Size:     len(blob),
			})
		},
	}
	cmd.Flags().BoolVar(&deployLib, "rsalib", false, "deploy the built-in RSA verifier library")
	cmd.Flags().BoolVar(&deployLock, "lock", false, "deploy the lock binary for the configured revision and library")
	return cmd
}
