package dl

import (
	"fmt"
	"sort"
	"sync"
)

// Native is the machine code behind an export. data is the module's data
// segment, arg is the caller's argument buffer.
type Native func(data, arg []byte) int32

// Registry holds the native routines images may bind to.
type Registry struct {
	mu      sync.RWMutex
	natives map[string]Native
}

func NewRegistry() *Registry {
	return &Registry{natives: make(map[string]Native)}
}

func (r *Registry) Register(name string, fn Native) error {
	if name == "" || fn == nil {
		return fmt.Errorf("dl: invalid native registration %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.natives[name]; ok {
		return fmt.Errorf("dl: native %q already registered", name)
	}
	r.natives[name] = fn
	return nil
}

func (r *Registry) Lookup(name string) (Native, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.natives[name]
	return fn, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.natives))
	for name := range r.natives {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
