package store

import (
	"encoding/binary"
	"fmt"

	"rsalock.dev/lock/consensus"
)

// Persistence format, not a wire format:
// output_len u32le | output | data
func encodeCell(c Cell) []byte {
	out := c.Output.Serialize()
	buf := make([]byte, 0, 4+len(out)+len(c.Data))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out))) // #nosec G115 -- a serialized output is far below 4 GiB.
	buf = append(buf, out...)
	return append(buf, c.Data...)
}

func decodeCell(b []byte) (Cell, error) {
	if len(b) < 4 {
		return Cell{}, fmt.Errorf("cell: truncated")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if uint64(n) > uint64(len(b)-4) {
		return Cell{}, fmt.Errorf("cell: bad output length")
	}
	o, err := consensus.ParseCellOutput(b[4 : 4+int(n)])
	if err != nil {
		return Cell{}, fmt.Errorf("cell: %w", err)
	}
	return Cell{Output: o, Data: append([]byte(nil), b[4+int(n):]...)}, nil
}
