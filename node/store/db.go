package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
)

var (
	bucketCode  = []byte("code_by_hash")
	bucketCells = []byte("cells_by_outpoint")
)

// Cell is a live cell: its output and data.
type Cell struct {
	Output consensus.CellOutput
	Data   []byte
}

type DB struct {
	networkDir string
	db         *bolt.DB
	hasher     crypto.Hasher
	manifest   *Manifest
}

func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if network == "" || filepath.Base(network) != network {
		return nil, fmt.Errorf("invalid network name %q", network)
	}

	networkDir := NetworkDir(datadir, network)
	if err := ensureDir(filepath.Join(networkDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(networkDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{networkDir: networkDir, db: bdb, hasher: crypto.StdProvider{}}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCode, bucketCells} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(networkDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		m = &Manifest{SchemaVersion: SchemaVersionV1, Network: network}
	case err != nil:
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	case m.SchemaVersion > SchemaVersionV1:
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) NetworkDir() string { return d.networkDir }

// Manifest returns a copy of the current manifest.
func (d *DB) Manifest() Manifest {
	return *d.manifest
}

func (d *DB) SetManifest(m Manifest) error {
	if err := writeManifestAtomic(d.networkDir, &m); err != nil {
		return err
	}
	d.manifest = &m
	return nil
}

// PutCode stores blob under its blake2b-256 hash and returns the hash.
func (d *DB) PutCode(blob []byte) ([32]byte, error) {
	h := d.hasher.Blake2b256(blob)
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCode).Put(h[:], blob)
	})
	return h, err
}

// LoadCodeByHash makes the store a dl.CodeSource.
func (d *DB) LoadCodeByHash(codeHash [32]byte) ([]byte, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCode).Get(codeHash[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s", dl.ErrCodeNotFound, hex.EncodeToString(codeHash[:]))
	}
	return out, nil
}

func (d *DB) CodeHashes() ([][32]byte, error) {
	var out [][32]byte
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCode).ForEach(func(k, _ []byte) error {
			if len(k) != 32 {
				return fmt.Errorf("code: bad key length %d", len(k))
			}
			var h [32]byte
			copy(h[:], k)
			out = append(out, h)
			return nil
		})
	})
	return out, err
}

func (d *DB) PutCell(point consensus.OutPoint, c Cell) error {
	val := encodeCell(c)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCells).Put(point.Serialize(), val)
	})
}

func (d *DB) GetCell(point consensus.OutPoint) (Cell, bool, error) {
	var out Cell
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCells).Get(point.Serialize())
		if v == nil {
			return nil
		}
		c, err := decodeCell(v)
		if err != nil {
			return err
		}
		out, ok = c, true
		return nil
	})
	return out, ok, err
}

// LoadCells returns every live cell.
func (d *DB) LoadCells() (map[consensus.OutPoint]Cell, error) {
	out := make(map[consensus.OutPoint]Cell)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCells).ForEach(func(k, v []byte) error {
			p, err := consensus.ParseOutPoint(k)
			if err != nil {
				return fmt.Errorf("cell key: %w", err)
			}
			c, err := decodeCell(v)
			if err != nil {
				return err
			}
			out[p] = c
			return nil
		})
	})
	return out, err
}

// ApplyTx consumes the inputs of a verified transaction and creates its
// outputs in one bbolt transaction.
func (d *DB) ApplyTx(txHash [32]byte, inputs []consensus.OutPoint, outputs []Cell) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCells)
		for _, p := range inputs {
			k := p.Serialize()
			if b.Get(k) == nil {
				return fmt.Errorf("input %x:%d is not live", p.TxHash, p.Index)
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for i, c := range outputs {
			p := consensus.OutPoint{TxHash: txHash, Index: uint32(i)} // #nosec G115 -- output count fits u32 by construction.
			if err := b.Put(p.Serialize(), encodeCell(c)); err != nil {
				return err
			}
		}
		return nil
	})
}
