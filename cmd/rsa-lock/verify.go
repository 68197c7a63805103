package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/node"
	"rsalock.dev/lock/node/store"
)

type inputReport struct {
	Index  int    `json:"index"`
	Status int8   `json:"status"`
	Name   string `json:"name"`
	// Environmental marks failures caused by the deployment (missing library
	// dep, bad symbol) rather than by the spender's witness.
	Environmental bool   `json:"environmental"`
	Error         string `json:"error,omitempty"`
}

type verifyResult struct {
	TxHash    string        `json:"tx_hash"`
	OK        bool          `json:"ok"`
	Committed bool          `json:"committed"`
	Inputs    []inputReport `json:"inputs"`
}

func statusName(status int8) string {
	if status == 0 {
		return "Success"
	}
	return consensus.ErrorCode(status).String()
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		txPath string
		commit bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the lock of every input of a transaction",
		Long: "Run the lock of every input of a transaction against the live cells of the\n" +
			"network. Exits 3 when any lock rejects. With --commit an accepted\n" +
			"transaction is applied to the store.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			tx, err := node.LoadTxFile(txPath)
			if err != nil {
				return err
			}
			db, d, err := a.openNetwork()
			if err != nil {
				return err
			}
			defer db.Close()

			loader, cleanup, err := loadLoaderFactory(a.cfg, a.hasher)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := node.VerifyTx(cmd.Context(), d, tx, node.VerifyOptions{
				Natives:         node.DefaultNatives(),
				ContextCapacity: a.cfg.ContextCapacity,
				MaxParallel:     a.cfg.MaxParallelInputs,
				Log:             a.log,
				Loader:          loader,
			})
			if err != nil {
				return err
			}

			res := verifyResult{TxHash: "0x" + hex.EncodeToString(report.TxHash[:]), OK: report.OK()}
			for _, in := range report.Inputs {
				r := inputReport{
					Index:         in.Index,
					Status:        in.Status,
					Name:          statusName(in.Status),
					Environmental: consensus.ErrorCode(in.Status).Environmental(),
				}
				if in.Err != nil {
					r.Error = in.Err.Error()
				}
				res.Inputs = append(res.Inputs, r)
			}
			if res.OK && commit {
				if err := commitTx(db, d, tx, report.TxHash); err != nil {
					return err
				}
				res.Committed = true
				a.log.Info().Str("tx_hash", res.TxHash).Msg("transaction committed")
			}
			if err := a.writeJSON(res); err != nil {
				return err
			}
			if !res.OK {
				f := report.FirstFailure()
				return fmt.Errorf("%w: input %d exited %d (%s)", errRejected, f.Index, f.Status, statusName(f.Status))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&txPath, "tx", "", "transaction JSON")
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the transaction to the store when every lock accepts")
	_ = cmd.MarkFlagRequired("tx")
	return cmd
}

func commitTx(db *store.DB, d *node.Devnet, tx *consensus.Transaction, txHash [32]byte) error {
	inputs := make([]consensus.OutPoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		inputs = append(inputs, in.PreviousOutput)
	}
	outputs := make([]store.Cell, 0, len(tx.Outputs))
	for i, o := range tx.Outputs {
		var data []byte
		if i < len(tx.OutputsData) {
			data = tx.OutputsData[i]
		}
		outputs = append(outputs, store.Cell{Output: o, Data: data})
	}
	if err := db.ApplyTx(txHash, inputs, outputs); err != nil {
		return err
	}
	return d.Commit(tx)
}
