//go:build rsa_dylib

package dl

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef int32_t (*rsalock_entry_fn)(const uint8_t*, size_t);

static void* rsalock_dl_open(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void* rsalock_dl_sym(void* handle, const char* name) {
	if (!handle) return NULL;
	return dlsym(handle, name);
}

static int32_t rsalock_dl_call(void* fn, const uint8_t* arg, size_t len) {
	if (!fn) return -1;
	return ((rsalock_entry_fn)fn)(arg, len);
}

static void rsalock_dl_close(void* handle) {
	if (handle) dlclose(handle);
}
*/
import "C"

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
)

// DylibLoader maps native shared objects stored as <dir>/<code_hash>.so. The
// file must hash to its name and fit the capacity. The checked bytes are
// staged into a private copy before dlopen, so a file swapped on disk after
// the check is never mapped. Exports are resolved with dlsym and must have
// the C signature int32_t fn(const uint8_t*, size_t).
type DylibLoader struct {
	dir      string
	stageDir string
	hasher   crypto.Hasher
	capacity int
}

func NewDylibLoader(dir string, hasher crypto.Hasher, capacity int) *DylibLoader {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	if hasher == nil {
		hasher = crypto.StdProvider{}
	}
	return &DylibLoader{dir: dir, hasher: hasher, capacity: capacity}
}

func (l *DylibLoader) path(codeHash [32]byte) string {
	return filepath.Join(l.dir, hex.EncodeToString(codeHash[:])+".so")
}

func (l *DylibLoader) Load(codeHash [32]byte) (consensus.Module, error) {
	path := l.path(codeHash)
	blob, err := readCapped(path, l.capacity)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hex.EncodeToString(codeHash[:]))
		}
		return nil, err
	}
	if l.hasher.Blake2b256(blob) != codeHash {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, path)
	}

	staged, cleanup, err := stageBlob(l.stageDir, blob)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the file.
	defer cleanup()

	cpath := C.CString(staged)
	defer C.free(unsafe.Pointer(cpath))
	handle := C.rsalock_dl_open(cpath)
	if handle == nil {
		return nil, fmt.Errorf("dl: dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return &dylibModule{handle: handle}, nil
}

type dylibModule struct {
	mu     sync.Mutex
	handle unsafe.Pointer
}

func (m *dylibModule) Resolve(symbol string) (consensus.Entrypoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil, ErrModuleClosed
	}
	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))
	fn := C.rsalock_dl_sym(m.handle, csym)
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrSymbolNotFound, symbol)
	}
	return consensus.EntrypointFunc(func(arg []byte) int32 {
		if len(arg) == 0 {
			return int32(C.rsalock_dl_call(fn, nil, 0))
		}
		return int32(C.rsalock_dl_call(fn, (*C.uint8_t)(unsafe.Pointer(&arg[0])), C.size_t(len(arg))))
	}), nil
}

func (m *dylibModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		C.rsalock_dl_close(m.handle)
		m.handle = nil
	}
	return nil
}
