package main

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/node"
)

func newBuildTxCmd(a *app) *cobra.Command {
	var (
		inputs  []string
		outputs []string
		noLib   bool
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "build-tx",
		Short: "Build an unsigned transaction spending lock cells",
		Long: "Build an unsigned transaction. Each --output is <capacity>:<key.pem> and is\n" +
			"locked to that key with the deployed lock. Cell deps for the lock and the\n" +
			"RSA library are added automatically.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			if len(inputs) == 0 {
				return usagef("at least one --input is required")
			}
			points := make([]consensus.OutPoint, 0, len(inputs))
			for _, s := range inputs {
				p, err := node.ParseOutPoint(s)
				if err != nil {
					return usageError{err}
				}
				points = append(points, p)
			}

			db, d, err := a.openNetwork()
			if err != nil {
				return err
			}
			defer db.Close()
			m := db.Manifest()

			tx := &consensus.Transaction{}
			for _, p := range points {
				tx.Inputs = append(tx.Inputs, consensus.CellInput{PreviousOutput: p})
			}
			if len(outputs) > 0 {
				lockPoint, lc, err := deployedLock(d, m)
				if err != nil {
					return err
				}
				for _, out := range outputs {
					capStr, keyPath, ok := strings.Cut(out, ":")
					if !ok {
						return usagef("output %q: want <capacity>:<key.pem>", out)
					}
					capacity, err := strconv.ParseUint(capStr, 10, 64)
					if err != nil {
						return usagef("output %q: %v", out, err)
					}
					pub, err := node.LoadPublicKeyFile(keyPath)
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
					tx.Outputs = append(tx.Outputs, consensus.CellOutput{Capacity: capacity, Lock: script})
					tx.OutputsData = append(tx.OutputsData, nil)
				}
			}

			var extra []consensus.OutPoint
			if !noLib {
				if m.RSALibOutPointHex == "" {
					return usagef("no RSA library deployed on %s; run deploy --rsalib or pass --no-lib", m.Network)
				}
				p, err := node.ParseOutPoint(m.RSALibOutPointHex)
				if err != nil {
					return err
				}
				extra = append(extra, p)
			}
			full, err := d.CompleteTx(tx, extra...)
			if err != nil {
				return err
			}
			h := full.Hash(a.hasher)
			a.log.Info().Str("tx_hash", hex.EncodeToString(h[:])).Int("inputs", len(full.Inputs)).Int("cell_deps", len(full.CellDeps)).Msg("transaction built")
			return a.emitTx(full, outPath)
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "input out point <tx_hash>:<index> (repeatable)")
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "output <capacity>:<key.pem> (repeatable)")
	cmd.Flags().BoolVar(&noLib, "no-lib", false, "do not add the deployed RSA library as a cell dep")
	cmd.Flags().StringVar(&outPath, "out", "", "write the transaction here instead of stdout")
	return cmd
}

// emitTx writes tx as JSON to path, or to stdout when path is empty.
func (a *app) emitTx(tx *consensus.Transaction, path string) error {
	if path != "" {
		return node.WriteTxFile(path, tx)
	}
	b, err := node.MarshalTxJSON(tx)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(append(b, '\n'))
	return err
}

func newDigestCmd(a *app) *cobra.Command {
	var (
		txPath  string
		keySize uint32
	)
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the signing digest of a transaction for a key size",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			if !consensus.SupportedKeySize(keySize) {
				return usagef("unsupported key size %d", keySize)
			}
			tx, err := node.LoadTxFile(txPath)
			if err != nil {
				return err
			}
			digest, err := node.TxDigest(a.hasher, tx, keySize)
			if err != nil {
				return err
			}
			return a.println("0x" + hex.EncodeToString(digest[:]))
		},
	}
	cmd.Flags().StringVar(&txPath, "tx", "", "transaction JSON")
	cmd.Flags().Uint32Var(&keySize, "key-size", consensus.KEY_SIZE_1024, "RSA key size in bits: 1024|2048|4096")
	_ = cmd.MarkFlagRequired("tx")
	return cmd
}

func newSignCmd(a *app) *cobra.Command {
	var txPath, keyPath, outPath string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction, filling witness 0 with the signature bundle",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			tx, err := node.LoadTxFile(txPath)
			if err != nil {
				return err
			}
			priv, err := node.LoadPrivateKeyFile(keyPath)
			if err != nil {
				return err
			}
			signed, err := node.SignTx(a.hasher, tx, priv)
			if err != nil {
				return err
			}
			a.log.Debug().Int("key_bits", priv.N.BitLen()).Msg("transaction signed")
			return a.emitTx(signed, outPath)
		},
	}
	cmd.Flags().StringVar(&txPath, "tx", "", "transaction JSON")
	cmd.Flags().StringVar(&keyPath, "key", "", "PEM private key")
	cmd.Flags().StringVar(&outPath, "out", "", "write the signed transaction here instead of stdout")
	_ = cmd.MarkFlagRequired("tx")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
