package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"rsalock.dev/lock/node"
	"rsalock.dev/lock/rsalib"
)

func newLibHashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lib-hash [file]",
		Short: "Print the code hash of the built-in RSA library or of a file",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			h := rsalib.CodeHash(a.hasher)
			if len(args) == 1 {
				blob, err := node.ReadFile(args[0])
				if err != nil {
					return err
				}
				h = a.hasher.Blake2b256(blob)
			}
			return a.println("0x" + hex.EncodeToString(h[:]))
		},
	}
}
