package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/node"
	"rsalock.dev/lock/node/store"
)

type deploymentStatus struct {
	CodeHash string `json:"code_hash,omitempty"`
	OutPoint string `json:"out_point,omitempty"`
	Live     bool   `json:"live"`
}

type statusResult struct {
	Network    string           `json:"network"`
	Revision   string           `json:"revision,omitempty"`
	Lock       deploymentStatus `json:"lock"`
	RSALib     deploymentStatus `json:"rsa_lib"`
	CodeHashes []string         `json:"code_hashes"`
	LiveCells  int              `json:"live_cells"`
	Natives    []string         `json:"natives"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is deployed on the network",
		Long: "Show the deployed lock and RSA library, whether their cells are still live,\n" +
			"every stored code hash and the natives the built-in loader links against.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := store.Open(a.cfg.DataDir, a.cfg.Network)
			if err != nil {
				return err
			}
			defer db.Close()
			m := db.Manifest()

			res := statusResult{
				Network:    a.cfg.Network,
				Revision:   m.Revision,
				CodeHashes: []string{},
				Natives:    node.DefaultNatives().Names(),
			}
			if res.Lock, err = deployment(db, m.LockCodeHashHex, m.LockOutPointHex); err != nil {
				return err
			}
			if res.RSALib, err = deployment(db, m.RSALibCodeHashHex, m.RSALibOutPointHex); err != nil {
				return err
			}

			hashes, err := db.CodeHashes()
			if err != nil {
				return err
			}
			for _, h := range hashes {
				res.CodeHashes = append(res.CodeHashes, hex.EncodeToString(h[:]))
			}
			cells, err := db.LoadCells()
			if err != nil {
				return err
			}
			res.LiveCells = len(cells)
			return a.writeJSON(res)
		},
	}
}

// deployment reports a manifest entry and whether its code cell is unspent.
func deployment(db *store.DB, codeHash, outPoint string) (deploymentStatus, error) {
	st := deploymentStatus{CodeHash: codeHash, OutPoint: outPoint}
	if outPoint == "" {
		return st, nil
	}
	p, err := node.ParseOutPoint(outPoint)
	if err != nil {
		return st, fmt.Errorf("manifest out point %q: %w", outPoint, err)
	}
	_, live, err := db.GetCell(p)
	if err != nil {
		return st, err
	}
	st.Live = live
	return st, nil
}
