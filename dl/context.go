package dl

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
)

// DEFAULT_CAPACITY is the working buffer a verification run may map code into.
const DEFAULT_CAPACITY = 128 * 1024

var (
	ErrCodeNotFound   = errors.New("dl: code hash not found")
	ErrHashMismatch   = errors.New("dl: code does not match its hash")
	ErrOutOfCapacity  = errors.New("dl: module exceeds context capacity")
	ErrUnknownNative  = errors.New("dl: image binds an unregistered native")
	ErrSymbolNotFound = errors.New("dl: symbol not exported")
	ErrModuleClosed   = errors.New("dl: module closed")
)

// CodeSource returns the raw bytes stored under a code hash. It returns an
// error wrapping ErrCodeNotFound when nothing is stored there.
type CodeSource interface {
	LoadCodeByHash(codeHash [32]byte) ([]byte, error)
}

// Context is the address space of one verification run. Every module loaded
// through it counts against its capacity until closed.
type Context struct {
	src      CodeSource
	natives  *Registry
	hasher   crypto.Hasher
	capacity int

	mu   sync.Mutex
	used int
	open int
}

func NewContext(src CodeSource, natives *Registry, hasher crypto.Hasher, capacity int) *Context {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	if hasher == nil {
		hasher = crypto.StdProvider{}
	}
	return &Context{src: src, natives: natives, hasher: hasher, capacity: capacity}
}

func (c *Context) Capacity() int { return c.capacity }

// Used is the number of bytes held by modules that are still open.
func (c *Context) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *Context) OpenModules() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Load fetches the blob for codeHash, checks it against the hash, parses it
// and reserves its footprint.
func (c *Context) Load(codeHash [32]byte) (consensus.Module, error) {
	blob, err := c.src.LoadCodeByHash(codeHash)
	if err != nil {
		return nil, err
	}
	if c.hasher.Blake2b256(blob) != codeHash {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, hex.EncodeToString(codeHash[:]))
	}
	if len(blob) > c.capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrOutOfCapacity, len(blob), c.capacity)
	}
	img, err := DecodeImage(blob)
	if err != nil {
		return nil, err
	}
	for _, e := range img.Exports {
		if _, ok := c.natives.Lookup(e.Native); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNative, e.Native)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used+len(blob) > c.capacity {
		return nil, fmt.Errorf("%w: %d used, %d requested, %d total", ErrOutOfCapacity, c.used, len(blob), c.capacity)
	}
	c.used += len(blob)
	c.open++
	return &module{ctx: c, img: img, size: len(blob)}, nil
}

type module struct {
	ctx    *Context
	img    *Image
	size   int
	closed bool
}

func (m *module) Resolve(symbol string) (consensus.Entrypoint, error) {
	if m.closed {
		return nil, ErrModuleClosed
	}
	e, ok := m.img.Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSymbolNotFound, symbol)
	}
	fn, ok := m.ctx.natives.Lookup(e.Native)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNative, e.Native)
	}
	data := m.img.Data
	return consensus.EntrypointFunc(func(arg []byte) int32 {
		return fn(data, arg)
	}), nil
}

func (m *module) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.ctx.mu.Lock()
	m.ctx.used -= m.size
	m.ctx.open--
	m.ctx.mu.Unlock()
	return nil
}

// MapSource is an in-memory CodeSource keyed by blake2b-256 of each blob.
type MapSource map[[32]byte][]byte

func (s MapSource) Add(hasher crypto.Hasher, blob []byte) [32]byte {
	h := hasher.Blake2b256(blob)
	s[h] = append([]byte(nil), blob...)
	return h
}

func (s MapSource) LoadCodeByHash(codeHash [32]byte) ([]byte, error) {
	b, ok := s[codeHash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hex.EncodeToString(codeHash[:]))
	}
	return b, nil
}
