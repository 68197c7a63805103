package node

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/dl"
	"rsalock.dev/lock/node/store"
)

var (
	ErrUnknownCell = errors.New("unknown cell")
	ErrDepGroup    = errors.New("invalid dep group")
)

// Devnet is an in-memory cell set with just enough of a chain around it to
// build, sign and verify transactions locally.
type Devnet struct {
	hasher crypto.Hasher

	mu    sync.RWMutex
	cells map[consensus.OutPoint]store.Cell
	nonce uint64
}

func NewDevnet(hasher crypto.Hasher) *Devnet {
	if hasher == nil {
		hasher = crypto.StdProvider{}
	}
	return &Devnet{hasher: hasher, cells: make(map[consensus.OutPoint]store.Cell)}
}

func (d *Devnet) Hasher() crypto.Hasher { return d.hasher }

// nextOutPoint returns a fresh out point on a synthetic genesis transaction.
func (d *Devnet) nextOutPoint() consensus.OutPoint {
	var seed [8 + 7]byte
	copy(seed[:7], "devnet:")
	binary.LittleEndian.PutUint64(seed[7:], d.nonce)
	d.nonce++
	return consensus.OutPoint{TxHash: d.hasher.Blake2b256(seed[:])}
}

// SetNonce restores the out point counter, e.g. from a store manifest.
func (d *Devnet) SetNonce(n uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nonce = n
}

func (d *Devnet) Nonce() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nonce
}

// DeployCell creates a cell carrying data and returns it together with the
// data hash scripts use to reference it.
func (d *Devnet) DeployCell(data []byte) (consensus.OutPoint, [32]byte) {
	p := d.CreateCell(consensus.CellOutput{Capacity: uint64(len(data))}, data)
	return p, d.hasher.Blake2b256(data)
}

// CreateCell adds a live cell and returns its out point.
func (d *Devnet) CreateCell(out consensus.CellOutput, data []byte) consensus.OutPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.nextOutPoint()
	d.cells[p] = store.Cell{Output: out, Data: append([]byte(nil), data...)}
	return p
}

// AddCell inserts a cell at a known out point.
func (d *Devnet) AddCell(p consensus.OutPoint, c store.Cell) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cells[p] = c
}

func (d *Devnet) Cell(p consensus.OutPoint) (store.Cell, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.cells[p]
	return c, ok
}

// BuildScript references the code deployed at codeCell by data hash.
func (d *Devnet) BuildScript(codeCell consensus.OutPoint, args []byte) (consensus.Script, error) {
	c, ok := d.Cell(codeCell)
	if !ok {
		return consensus.Script{}, fmt.Errorf("%w: %x:%d", ErrUnknownCell, codeCell.TxHash, codeCell.Index)
	}
	return consensus.Script{
		CodeHash: d.hasher.Blake2b256(c.Data),
		HashType: consensus.HASH_TYPE_DATA,
		Args:     append([]byte(nil), args...),
	}, nil
}

// CompleteTx adds a code cell dep for every live cell whose data hash is
// referenced by a lock or type script of tx's inputs or outputs, and every
// extra out point given. Deps already present are kept. Missing witnesses are
// filled with empty ones, one per input.
func (d *Devnet) CompleteTx(tx *consensus.Transaction, extra ...consensus.OutPoint) (*consensus.Transaction, error) {
	out := tx.Clone()
	want := make(map[[32]byte]struct{})
	for _, in := range out.Inputs {
		c, ok := d.Cell(in.PreviousOutput)
		if !ok {
			return nil, fmt.Errorf("%w: input %x:%d", ErrUnknownCell, in.PreviousOutput.TxHash, in.PreviousOutput.Index)
		}
		want[c.Output.Lock.CodeHash] = struct{}{}
		if c.Output.Type != nil {
			want[c.Output.Type.CodeHash] = struct{}{}
		}
	}
	for _, o := range out.Outputs {
		if o.Type != nil {
			want[o.Type.CodeHash] = struct{}{}
		}
	}

	have := make(map[consensus.OutPoint]struct{}, len(out.CellDeps))
	for _, dep := range out.CellDeps {
		have[dep.OutPoint] = struct{}{}
	}
	add := func(p consensus.OutPoint) {
		if _, ok := have[p]; ok {
			return
		}
		have[p] = struct{}{}
		out.CellDeps = append(out.CellDeps, consensus.CellDep{OutPoint: p, DepType: consensus.DEP_TYPE_CODE})
	}
	for _, p := range extra {
		if _, ok := d.Cell(p); !ok {
			return nil, fmt.Errorf("%w: dep %x:%d", ErrUnknownCell, p.TxHash, p.Index)
		}
		add(p)
	}

	d.mu.RLock()
	var matches []consensus.OutPoint
	for p, c := range d.cells {
		if _, ok := want[d.hasher.Blake2b256(c.Data)]; ok {
			matches = append(matches, p)
		}
	}
	d.mu.RUnlock()
	sortOutPoints(matches)
	for _, p := range matches {
		add(p)
	}

	for len(out.Witnesses) < len(out.Inputs) {
		out.Witnesses = append(out.Witnesses, []byte{})
	}
	return out, nil
}

// ResolveCellDeps expands dep groups and returns the dep cells in order.
func (d *Devnet) ResolveCellDeps(tx *consensus.Transaction) ([]store.Cell, error) {
	var out []store.Cell
	for _, dep := range tx.CellDeps {
		c, ok := d.Cell(dep.OutPoint)
		if !ok {
			return nil, fmt.Errorf("%w: dep %x:%d", ErrUnknownCell, dep.OutPoint.TxHash, dep.OutPoint.Index)
		}
		switch dep.DepType {
		case consensus.DEP_TYPE_CODE:
			out = append(out, c)
		case consensus.DEP_TYPE_DEP_GROUP:
			points, err := consensus.ParseDepGroup(c.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDepGroup, err)
			}
			for _, p := range points {
				member, ok := d.Cell(p)
				if !ok {
					return nil, fmt.Errorf("%w: dep group member %x:%d", ErrUnknownCell, p.TxHash, p.Index)
				}
				out = append(out, member)
			}
		default:
			return nil, fmt.Errorf("%w: dep type %d", ErrDepGroup, dep.DepType)
		}
	}
	return out, nil
}

// Commit consumes tx's inputs and creates its outputs.
func (d *Devnet) Commit(tx *consensus.Transaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, in := range tx.Inputs {
		if _, ok := d.cells[in.PreviousOutput]; !ok {
			return fmt.Errorf("%w: input %x:%d", ErrUnknownCell, in.PreviousOutput.TxHash, in.PreviousOutput.Index)
		}
	}
	for _, in := range tx.Inputs {
		delete(d.cells, in.PreviousOutput)
	}
	txHash := tx.Hash(d.hasher)
	for i, o := range tx.Outputs {
		var data []byte
		if i < len(tx.OutputsData) {
			data = append([]byte(nil), tx.OutputsData[i]...)
		}
		d.cells[consensus.OutPoint{TxHash: txHash, Index: uint32(i)}] = store.Cell{Output: o, Data: data} // #nosec G115 -- output count fits u32.
	}
	return nil
}

// TxHost is the host environment seen by the lock of one input.
type TxHost struct {
	tx     *consensus.Transaction
	txHash [32]byte
	lock   consensus.Script
	deps   []store.Cell
	hasher crypto.Hasher
}

// HostFor prepares the environment for the lock guarding input index.
func (d *Devnet) HostFor(tx *consensus.Transaction, index int) (*TxHost, error) {
	if index < 0 || index >= len(tx.Inputs) {
		return nil, fmt.Errorf("input index %d out of range", index)
	}
	c, ok := d.Cell(tx.Inputs[index].PreviousOutput)
	if !ok {
		p := tx.Inputs[index].PreviousOutput
		return nil, fmt.Errorf("%w: input %x:%d", ErrUnknownCell, p.TxHash, p.Index)
	}
	deps, err := d.ResolveCellDeps(tx)
	if err != nil {
		return nil, err
	}
	return &TxHost{tx: tx, txHash: tx.Hash(d.hasher), lock: c.Output.Lock, deps: deps, hasher: d.hasher}, nil
}

func (h *TxHost) LoadTxHash() ([32]byte, error) { return h.txHash, nil }

func (h *TxHost) LoadScript() (consensus.Script, error) { return h.lock, nil }

func (h *TxHost) LoadWitness(index int) ([]byte, error) {
	if index < 0 || index >= len(h.tx.Witnesses) {
		return nil, &consensus.SysError{Code: consensus.SYS_INDEX_OUT_OF_BOUND}
	}
	return h.tx.Witnesses[index], nil
}

// LoadCodeByHash looks the code up among the transaction's cell deps only.
func (h *TxHost) LoadCodeByHash(codeHash [32]byte) ([]byte, error) {
	for _, c := range h.deps {
		if h.hasher.Blake2b256(c.Data) == codeHash {
			return c.Data, nil
		}
	}
	return nil, fmt.Errorf("%w: %x not in cell deps", dl.ErrCodeNotFound, codeHash)
}

func sortOutPoints(ps []consensus.OutPoint) {
	slices.SortFunc(ps, func(a, b consensus.OutPoint) int {
		if c := bytes.Compare(a.TxHash[:], b.TxHash[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}
