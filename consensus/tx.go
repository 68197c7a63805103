package consensus

import (
	"rsalock.dev/lock/crypto"
)

const (
	HASH_TYPE_DATA byte = 0
	HASH_TYPE_TYPE byte = 1

	DEP_TYPE_CODE      byte = 0
	DEP_TYPE_DEP_GROUP byte = 1
)

type Script struct {
	CodeHash [32]byte
	HashType byte
	Args     []byte
}

type OutPoint struct {
	TxHash [32]byte
	Index  uint32
}

type CellInput struct {
	PreviousOutput OutPoint
	Since          uint64
}

type CellOutput struct {
	Capacity uint64
	Lock     Script
	Type     *Script
}

type CellDep struct {
	OutPoint OutPoint
	DepType  byte
}

type Transaction struct {
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  [][32]byte
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

func appendScript(dst []byte, s Script) []byte {
	dst = append(dst, s.CodeHash[:]...)
	dst = append(dst, s.HashType)
	return appendBytes(dst, s.Args)
}

func appendOutPoint(dst []byte, p OutPoint) []byte {
	dst = append(dst, p.TxHash[:]...)
	return appendU32le(dst, p.Index)
}

func appendCount(dst []byte, n int) []byte {
	return appendU32le(dst, uint32(n)) // #nosec G115 -- collection sizes are far below 2^32.
}

func appendCellOutput(dst []byte, o CellOutput) []byte {
	dst = appendU64le(dst, o.Capacity)
	dst = appendScript(dst, o.Lock)
	if o.Type == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return appendScript(dst, *o.Type)
}

// Serialize returns the canonical script encoding.
func (s Script) Serialize() []byte {
	return appendScript(make([]byte, 0, 32+1+4+len(s.Args)), s)
}

// Hash is blake2b-256 over the serialized script.
func (s Script) Hash(p crypto.Hasher) [32]byte {
	return p.Blake2b256(s.Serialize())
}

// SerializeRaw encodes every field except witnesses; this is what TxHash
// commits to.
func (tx *Transaction) SerializeRaw() []byte {
	var out []byte
	out = appendU32le(out, tx.Version)

	out = appendCount(out, len(tx.CellDeps))
	for _, d := range tx.CellDeps {
		out = appendOutPoint(out, d.OutPoint)
		out = append(out, d.DepType)
	}

	out = appendCount(out, len(tx.HeaderDeps))
	for _, h := range tx.HeaderDeps {
		out = append(out, h[:]...)
	}

	out = appendCount(out, len(tx.Inputs))
	for _, in := range tx.Inputs {
		out = appendOutPoint(out, in.PreviousOutput)
		out = appendU64le(out, in.Since)
	}

	out = appendCount(out, len(tx.Outputs))
	for _, o := range tx.Outputs {
		out = appendCellOutput(out, o)
	}

	out = appendCount(out, len(tx.OutputsData))
	for _, d := range tx.OutputsData {
		out = appendBytes(out, d)
	}
	return out
}

// Serialize encodes the raw transaction followed by the witnesses.
func (tx *Transaction) Serialize() []byte {
	out := tx.SerializeRaw()
	out = appendCount(out, len(tx.Witnesses))
	for _, w := range tx.Witnesses {
		out = appendBytes(out, w)
	}
	return out
}

// Hash is the transaction hash. Witnesses are not covered.
func (tx *Transaction) Hash(p crypto.Hasher) [32]byte {
	return p.Blake2b256(tx.SerializeRaw())
}

// Clone returns a deep copy.
func (tx *Transaction) Clone() *Transaction {
	out := *tx
	out.CellDeps = append([]CellDep(nil), tx.CellDeps...)
	out.HeaderDeps = append([][32]byte(nil), tx.HeaderDeps...)
	out.Inputs = append([]CellInput(nil), tx.Inputs...)
	out.Outputs = make([]CellOutput, len(tx.Outputs))
	for i, o := range tx.Outputs {
		o.Lock.Args = append([]byte(nil), o.Lock.Args...)
		if o.Type != nil {
			t := *o.Type
			t.Args = append([]byte(nil), t.Args...)
			o.Type = &t
		}
		out.Outputs[i] = o
	}
	out.OutputsData = cloneByteSlices(tx.OutputsData)
	out.Witnesses = cloneByteSlices(tx.Witnesses)
	return &out
}

func cloneByteSlices(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

func readScript(b []byte, off *int) (Script, error) {
	var s Script
	var err error
	if s.CodeHash, err = read32(b, off); err != nil {
		return s, err
	}
	if s.HashType, err = readU8(b, off); err != nil {
		return s, err
	}
	args, err := readLenPrefixed(b, off)
	if err != nil {
		return s, err
	}
	s.Args = args
	return s, nil
}

func readOutPoint(b []byte, off *int) (OutPoint, error) {
	var p OutPoint
	var err error
	if p.TxHash, err = read32(b, off); err != nil {
		return p, err
	}
	p.Index, err = readU32le(b, off)
	return p, err
}

func readLenPrefixed(b []byte, off *int) ([]byte, error) {
	n, err := readU32le(b, off)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(b)-*off) {
		return nil, lockerr(ERR_ENCODING, "length prefix exceeds input")
	}
	v, err := readBytes(b, off, int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, v...), nil
}

func readCount(b []byte, off *int, minItemBytes int) (int, error) {
	n, err := readU32le(b, off)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minItemBytes) > uint64(len(b)-*off) {
		return 0, lockerr(ERR_ENCODING, "item count exceeds input")
	}
	return int(n), nil
}

func readCellOutput(b []byte, off *int) (CellOutput, error) {
	var o CellOutput
	var err error
	if o.Capacity, err = readU64le(b, off); err != nil {
		return o, err
	}
	if o.Lock, err = readScript(b, off); err != nil {
		return o, err
	}
	flag, err := readU8(b, off)
	if err != nil {
		return o, err
	}
	switch flag {
	case 0:
	case 1:
		t, err := readScript(b, off)
		if err != nil {
			return o, err
		}
		o.Type = &t
	default:
		return o, lockerr(ERR_ENCODING, "bad type script flag")
	}
	return o, nil
}

// ParseTransaction is the inverse of Serialize. Trailing bytes are rejected.
func ParseTransaction(b []byte) (*Transaction, error) {
	off := 0
	tx := &Transaction{}
	var err error
	if tx.Version, err = readU32le(b, &off); err != nil {
		return nil, err
	}

	n, err := readCount(b, &off, 37)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		p, err := readOutPoint(b, &off)
		if err != nil {
			return nil, err
		}
		dt, err := readU8(b, &off)
		if err != nil {
			return nil, err
		}
		tx.CellDeps = append(tx.CellDeps, CellDep{OutPoint: p, DepType: dt})
	}

	if n, err = readCount(b, &off, 32); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		h, err := read32(b, &off)
		if err != nil {
			return nil, err
		}
		tx.HeaderDeps = append(tx.HeaderDeps, h)
	}

	if n, err = readCount(b, &off, 44); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		p, err := readOutPoint(b, &off)
		if err != nil {
			return nil, err
		}
		since, err := readU64le(b, &off)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, CellInput{PreviousOutput: p, Since: since})
	}

	if n, err = readCount(b, &off, 46); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		o, err := readCellOutput(b, &off)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, o)
	}

	if n, err = readCount(b, &off, 4); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		d, err := readLenPrefixed(b, &off)
		if err != nil {
			return nil, err
		}
		tx.OutputsData = append(tx.OutputsData, d)
	}

	if n, err = readCount(b, &off, 4); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		w, err := readLenPrefixed(b, &off)
		if err != nil {
			return nil, err
		}
		tx.Witnesses = append(tx.Witnesses, w)
	}

	if off != len(b) {
		return nil, lockerr(ERR_ENCODING, "trailing bytes after transaction")
	}
	return tx, nil
}

// Serialize returns the canonical encoding of a single output.
func (o CellOutput) Serialize() []byte {
	return appendCellOutput(nil, o)
}

// ParseCellOutput decodes exactly one output.
func ParseCellOutput(b []byte) (CellOutput, error) {
	off := 0
	o, err := readCellOutput(b, &off)
	if err != nil {
		return CellOutput{}, err
	}
	if off != len(b) {
		return CellOutput{}, lockerr(ERR_ENCODING, "trailing bytes after cell output")
	}
	return o, nil
}

// Serialize is tx_hash ‖ index u32le.
func (p OutPoint) Serialize() []byte {
	return appendOutPoint(make([]byte, 0, 36), p)
}

func ParseOutPoint(b []byte) (OutPoint, error) {
	if len(b) != 36 {
		return OutPoint{}, lockerr(ERR_ENCODING, "out point must be 36 bytes")
	}
	off := 0
	return readOutPoint(b, &off)
}

// EncodeDepGroup serializes the out point list stored in a dep group cell.
func EncodeDepGroup(points []OutPoint) []byte {
	out := appendCount(make([]byte, 0, 4+36*len(points)), len(points))
	for _, p := range points {
		out = appendOutPoint(out, p)
	}
	return out
}

func ParseDepGroup(b []byte) ([]OutPoint, error) {
	off := 0
	n, err := readCount(b, &off, 36)
	if err != nil {
		return nil, err
	}
	out := make([]OutPoint, 0, n)
	for i := 0; i < n; i++ {
		p, err := readOutPoint(b, &off)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if off != len(b) {
		return nil, lockerr(ERR_ENCODING, "trailing bytes after dep group")
	}
	return out, nil
}
