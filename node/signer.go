package node

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
)

// LockArgs returns the script args committing to pub under rev.
func LockArgs(p crypto.Hasher, pub *rsa.PublicKey, rev consensus.Revision) ([]byte, error) {
	b, err := consensus.NewBundle(pub, make([]byte, pub.Size()))
	if err != nil {
		return nil, err
	}
	switch rev {
	case consensus.RevisionFingerprint:
		fp := b.Fingerprint(p)
		return fp[:], nil
	case consensus.RevisionRawKey:
		return b.RawKey(), nil
	default:
		return nil, fmt.Errorf("unsupported revision %s", rev)
	}
}

// TxDigest computes the digest a signer with key size keySize signs over,
// using witness 0 with its lock field zeroed to the bundle length.
func TxDigest(p crypto.Hasher, tx *consensus.Transaction, keySize uint32) ([32]byte, error) {
	if !consensus.SupportedKeySize(keySize) {
		return [32]byte{}, fmt.Errorf("unsupported key size %d", keySize)
	}
	ws, _, err := placeholderWitnesses(tx, consensus.BundleLen(keySize))
	if err != nil {
		return [32]byte{}, err
	}
	return consensus.ComputeDigest(p, tx.Hash(p), ws, consensus.BundleLen(keySize))
}

// SignTx returns a copy of tx whose witness 0 carries a signature bundle for
// priv. input_type and output_type of an existing witness 0 are kept.
func SignTx(p crypto.Hasher, tx *consensus.Transaction, priv *rsa.PrivateKey) (*consensus.Transaction, error) {
	if priv == nil {
		return nil, errors.New("sign: nil key")
	}
	ks := uint32(priv.Size() * 8) // #nosec G115 -- RSA sizes are small.
	if !consensus.SupportedKeySize(ks) {
		return nil, fmt.Errorf("sign: unsupported key size %d", ks)
	}
	placeholder := consensus.BundleLen(ks)
	ws, auth, err := placeholderWitnesses(tx, placeholder)
	if err != nil {
		return nil, err
	}
	digest, err := consensus.ComputeDigest(p, tx.Hash(p), ws, placeholder)
	if err != nil {
		return nil, fmt.Errorf("sign: digest: %w", err)
	}
	sig, err := crypto.SignSHA256(priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	bundle, err := consensus.NewBundle(&priv.PublicKey, sig)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	out := tx.Clone()
	out.Witnesses = ws
	out.Witnesses[0] = auth.WithLock(bundle.Encode()).Serialize()
	return out, nil
}

// placeholderWitnesses copies tx's witnesses, making sure there is one per
// input and that witness 0 is WitnessArgs with a zero lock of length n.
func placeholderWitnesses(tx *consensus.Transaction, n int) ([][]byte, consensus.WitnessArgs, error) {
	ws := make([][]byte, 0, max(len(tx.Witnesses), len(tx.Inputs), 1))
	for _, w := range tx.Witnesses {
		ws = append(ws, append([]byte(nil), w...))
	}
	for len(ws) < len(tx.Inputs) || len(ws) == 0 {
		ws = append(ws, []byte{})
	}

	var auth consensus.WitnessArgs
	if len(ws[0]) > 0 {
		parsed, err := consensus.ParseWitnessArgs(ws[0])
		if err != nil {
			return nil, auth, fmt.Errorf("witness 0 is not WitnessArgs: %w", err)
		}
		auth = *parsed
	}
	ws[0] = auth.WithLock(make([]byte, n)).Serialize()
	return ws, auth, nil
}
