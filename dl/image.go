package dl

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	IMAGE_MAGIC   = "RSDL"
	IMAGE_VERSION = 1

	MAX_NAME_BYTES = 255
)

var ErrBadImage = errors.New("dl: malformed module image")

// Export binds a module-local symbol to a native routine registered in the
// process.
type Export struct {
	Symbol string
	Native string
}

// Image is a deployable module: its export table and data segment.
//
// Wire format:
//
//	"RSDL" ‖ version u8 ‖ export_count u16le ‖ exports ‖ data_len u32le ‖ data
//	export = symbol_len u8 ‖ symbol ‖ native_len u8 ‖ native
type Image struct {
	Exports []Export
	Data    []byte
}

func (im *Image) Lookup(symbol string) (Export, bool) {
	for _, e := range im.Exports {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return Export{}, false
}

func (im *Image) Encode() ([]byte, error) {
	if len(im.Exports) > 0xffff {
		return nil, fmt.Errorf("dl: %d exports", len(im.Exports))
	}
	out := make([]byte, 0, 4+1+2+4+len(im.Data))
	out = append(out, IMAGE_MAGIC...)
	out = append(out, IMAGE_VERSION)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(im.Exports))) // #nosec G115 -- checked above.
	for _, e := range im.Exports {
		if e.Symbol == "" || len(e.Symbol) > MAX_NAME_BYTES || e.Native == "" || len(e.Native) > MAX_NAME_BYTES {
			return nil, fmt.Errorf("dl: bad export %q -> %q", e.Symbol, e.Native)
		}
		out = append(out, byte(len(e.Symbol)))
		out = append(out, e.Symbol...)
		out = append(out, byte(len(e.Native)))
		out = append(out, e.Native...)
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(im.Data))) // #nosec G115 -- module size is bounded by the context.
	return append(out, im.Data...), nil
}

type imageReader struct {
	b   []byte
	off int
}

func (r *imageReader) take(n int) ([]byte, error) {
	if n < 0 || len(r.b)-r.off < n {
		return nil, ErrBadImage
	}
	s := r.b[r.off : r.off+n]
	r.off += n
	return s, nil
}

func (r *imageReader) name() (string, error) {
	l, err := r.take(1)
	if err != nil {
		return "", err
	}
	if l[0] == 0 {
		return "", ErrBadImage
	}
	s, err := r.take(int(l[0]))
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// DecodeImage parses an image. Trailing bytes and duplicate symbols are
// rejected.
func DecodeImage(b []byte) (*Image, error) {
	r := &imageReader{b: b}
	magic, err := r.take(len(IMAGE_MAGIC))
	if err != nil || string(magic) != IMAGE_MAGIC {
		return nil, fmt.Errorf("%w: bad magic", ErrBadImage)
	}
	ver, err := r.take(1)
	if err != nil || ver[0] != IMAGE_VERSION {
		return nil, fmt.Errorf("%w: unsupported version", ErrBadImage)
	}
	cnt, err := r.take(2)
	if err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(cnt))
	im := &Image{Exports: make([]Export, 0, n)}
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		sym, err := r.name()
		if err != nil {
			return nil, fmt.Errorf("%w: export %d symbol", ErrBadImage, i)
		}
		native, err := r.name()
		if err != nil {
			return nil, fmt.Errorf("%w: export %d native", ErrBadImage, i)
		}
		if _, dup := seen[sym]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrBadImage, sym)
		}
		seen[sym] = struct{}{}
		im.Exports = append(im.Exports, Export{Symbol: sym, Native: native})
	}
	dataLen, err := r.take(4)
	if err != nil {
		return nil, err
	}
	data, err := r.take(int(binary.LittleEndian.Uint32(dataLen)))
	if err != nil {
		return nil, fmt.Errorf("%w: data segment", ErrBadImage)
	}
	if r.off != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadImage, len(b)-r.off)
	}
	im.Data = append([]byte(nil), data...)
	return im, nil
}
