package consensus

import "encoding/binary"

func readU8(b []byte, off *int) (uint8, error) {
	if *off+1 > len(b) {
		return 0, lockerr(ERR_ENCODING, "unexpected EOF (u8)")
	}
	v := b[*off]
	*off++
	return v, nil
}

func readU32le(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, lockerr(ERR_ENCODING, "unexpected EOF (u32le)")
	}
	v := binary.LittleEndian.Uint32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64le(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, lockerr(ERR_ENCODING, "unexpected EOF (u64le)")
	}
	v := binary.LittleEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func readBytes(b []byte, off *int, n int) ([]byte, error) {
	if n < 0 {
		return nil, lockerr(ERR_ENCODING, "negative length")
	}
	if *off+n > len(b) {
		return nil, lockerr(ERR_ENCODING, "unexpected EOF (bytes)")
	}
	v := b[*off : *off+n]
	*off += n
	return v, nil
}

func read32(b []byte, off *int) ([32]byte, error) {
	var out [32]byte
	v, err := readBytes(b, off, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], v)
	return out, nil
}
