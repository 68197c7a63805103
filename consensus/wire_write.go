package consensus

import "encoding/binary"

func appendU32le(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU64le(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// appendBytes writes a u32le length prefix followed by b.
func appendBytes(dst []byte, b []byte) []byte {
	dst = appendU32le(dst, uint32(len(b))) // #nosec G115 -- callers bound payloads well below 4 GiB.
	return append(dst, b...)
}
