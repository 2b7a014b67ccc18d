// Package mutator implements the layered mutation pipeline: deterministic
// bit/byte/arithmetic/interesting-value edits, composite havoc, cross-input
// splicing, a token dictionary, and format-aware structural mutators.
package mutator

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// Generator lazily produces mutated variants one call at a time. It returns
// ok=false once exhausted, mirroring spec.md §9's "coroutine-like generator"
// design note — mutators never materialize their whole output set up front.
type Generator func() (variant []byte, ok bool)

// Mutator produces a bounded Generator of variants for one input.
type Mutator interface {
	Name() string
	Description() string
	Type() types.MutationType
	Generate(input []byte) Generator
}

// Registry holds named mutators in insertion order, adapted from the
// teacher's mutator.go Registry (RWMutex-guarded map + order slice).
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Mutator
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Mutator)}
}

// Register adds a mutator, replacing any existing one with the same name.
func (r *Registry) Register(m Mutator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[m.Name()]; !exists {
		r.order = append(r.order, m.Name())
	}
	r.byName[m.Name()] = m
}

// Get looks up a mutator by name.
func (r *Registry) Get(name string) (Mutator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// All returns every registered mutator in insertion order.
func (r *Registry) All() []Mutator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mutator, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// ByType returns every mutator of the given family.
func (r *Registry) ByType(t types.MutationType) []Mutator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Mutator
	for _, name := range r.order {
		if m := r.byName[name]; m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

// Names returns every registered mutator name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered mutators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// secureRandomInt returns a cryptographically random int in [0, max).
func secureRandomInt(max int) int {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}

func secureRandomBytes(n int) []byte {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return buf
}
