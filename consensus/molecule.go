package consensus

// WitnessArgs is the molecule table carried in a witness:
//
//	table WitnessArgs { lock: BytesOpt, input_type: BytesOpt, output_type: BytesOpt }
//
// A nil field is None. A non-nil empty slice is Some of zero bytes.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

const witnessArgsFieldCount = 3

func encodeBytesOpt(b []byte) []byte {
	if b == nil {
		return nil
	}
	return appendBytes(make([]byte, 0, 4+len(b)), b)
}

func decodeBytesOpt(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	off := 0
	n, err := readU32le(b, &off)
	if err != nil {
		return nil, err
	}
	if uint64(n) != uint64(len(b)-4) {
		return nil, lockerr(ERR_ENCODING, "molecule: bytes length mismatch")
	}
	return append([]byte{}, b[4:]...), nil
}

// Serialize returns the canonical molecule encoding.
func (w WitnessArgs) Serialize() []byte {
	fields := [witnessArgsFieldCount][]byte{
		encodeBytesOpt(w.Lock),
		encodeBytesOpt(w.InputType),
		encodeBytesOpt(w.OutputType),
	}
	header := 4 * (1 + witnessArgsFieldCount)
	total := header
	for _, f := range fields {
		total += len(f)
	}
	out := make([]byte, 0, total)
	out = appendU32le(out, uint32(total)) // #nosec G115 -- witness sizes are bounded by the host.
	off := header
	for _, f := range fields {
		out = appendU32le(out, uint32(off)) // #nosec G115 -- off <= total.
		off += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// WithLock returns a copy with the lock field replaced.
func (w WitnessArgs) WithLock(lock []byte) WitnessArgs {
	w.Lock = lock
	return w
}

// ParseWitnessArgs decodes a WitnessArgs table in strict mode: extra fields
// are rejected.
func ParseWitnessArgs(b []byte) (*WitnessArgs, error) {
	off := 0
	total, err := readU32le(b, &off)
	if err != nil {
		return nil, err
	}
	if uint64(total) != uint64(len(b)) {
		return nil, lockerr(ERR_ENCODING, "molecule: total size mismatch")
	}
	first, err := readU32le(b, &off)
	if err != nil {
		return nil, err
	}
	if first%4 != 0 || first < 8 {
		return nil, lockerr(ERR_ENCODING, "molecule: bad header size")
	}
	if first/4-1 != witnessArgsFieldCount {
		return nil, lockerr(ERR_ENCODING, "molecule: WitnessArgs field count")
	}
	if uint64(first) > uint64(len(b)) {
		return nil, lockerr(ERR_ENCODING, "molecule: header exceeds table")
	}

	offsets := make([]int, 0, witnessArgsFieldCount+1)
	offsets = append(offsets, int(first))
	for i := 1; i < witnessArgsFieldCount; i++ {
		o, err := readU32le(b, &off)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, int(o))
	}
	offsets = append(offsets, len(b))
	for i := 0; i < witnessArgsFieldCount; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, lockerr(ERR_ENCODING, "molecule: offsets not ordered")
		}
	}

	var fields [witnessArgsFieldCount][]byte
	for i := range fields {
		fields[i], err = decodeBytesOpt(b[offsets[i]:offsets[i+1]])
		if err != nil {
			return nil, err
		}
	}
	return &WitnessArgs{Lock: fields[0], InputType: fields[1], OutputType: fields[2]}, nil
}
