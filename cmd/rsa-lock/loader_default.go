//go:build !rsa_dylib

package main

import (
	"errors"
	"os"

	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/node"
)

// loadLoaderFactory selects how lock runs load the RSA library. Without the
// rsa_dylib tag images are always interpreted by the in-process dl.Context.
func loadLoaderFactory(_ node.Config, _ crypto.Hasher) (node.LoaderFactory, func(), error) {
	if os.Getenv("RSALOCK_DYLIB_STRICT") == "1" {
		return nil, func() {}, errors.New("RSALOCK_DYLIB_STRICT=1 requires a build with the rsa_dylib tag")
	}
	return nil, func() {}, nil
}
