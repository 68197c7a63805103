package consensus

import "testing"

func mustLockErrCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	code, ok := CodeOf(err)
	if !ok {
		t.Fatalf("expected *LockError, got %T (%v)", err, err)
	}
	return code
}

func TestReadBytes_NegativeLen(t *testing.T) {
	off := 0
	_, err := readBytes([]byte{}, &off, -1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := mustLockErrCode(t, err); got != ERR_ENCODING {
		t.Fatalf("code=%s, want %s", got, ERR_ENCODING)
	}
}

func TestReadBytes_UnexpectedEOF(t *testing.T) {
	off := 0
	_, err := readBytes([]byte{0x01, 0x02}, &off, 3)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := mustLockErrCode(t, err); got != ERR_ENCODING {
		t.Fatalf("code=%s, want %s", got, ERR_ENCODING)
	}
}

func TestReadIntegersAdvanceOffset(t *testing.T) {
	b := appendU64le(appendU32le([]byte{0x7f}, 0xdeadbeef), 42)
	off := 0
	u8, err := readU8(b, &off)
	if err != nil || u8 != 0x7f {
		t.Fatalf("u8=%x err=%v", u8, err)
	}
	u32, err := readU32le(b, &off)
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("u32=%x err=%v", u32, err)
	}
	u64, err := readU64le(b, &off)
	if err != nil || u64 != 42 {
		t.Fatalf("u64=%d err=%v", u64, err)
	}
	if off != len(b) {
		t.Fatalf("off=%d, want %d", off, len(b))
	}
	if _, err := readU8(b, &off); err == nil {
		t.Fatalf("expected EOF")
	}
	if _, err := readU32le(b, &off); err == nil {
		t.Fatalf("expected EOF")
	}
	if _, err := readU64le(b, &off); err == nil {
		t.Fatalf("expected EOF")
	}
	if _, err := read32(b, &off); err == nil {
		t.Fatalf("expected EOF")
	}
}
