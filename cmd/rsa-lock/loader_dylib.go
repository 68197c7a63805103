//go:build rsa_dylib

package main

import (
	"errors"
	"os"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
	"rsalock.dev/lock/node"
)

// loadLoaderFactory loads the RSA library as a shared object from
// RSALOCK_DYLIB_DIR when it is set. Each input gets its own loader so the
// context capacity is accounted per lock run.
func loadLoaderFactory(cfg node.Config, hasher crypto.Hasher) (node.LoaderFactory, func(), error) {
	dir, ok := os.LookupEnv("RSALOCK_DYLIB_DIR")
	if !ok || dir == "" {
		if os.Getenv("RSALOCK_DYLIB_STRICT") == "1" {
			return nil, func() {}, errors.New("RSALOCK_DYLIB_STRICT=1 requires RSALOCK_DYLIB_DIR")
		}
		return nil, func() {}, nil
	}
	capacity := cfg.ContextCapacity
	return func(*node.TxHost) consensus.Loader {
		return dl.NewDylibLoader(dir, hasher, capacity)
	}, func() {}, nil
}
