// Package valuepool implements the epoch-indexed sparse value store used to
// hold per-iteration syscall arguments, return codes, and branch decisions.
package valuepool

import "github.com/perf-analysis/internal/epoch"

// Pool associates a value of type T with an epoch-derived integer key (the
// sum of the loop counters the value varies across). A pool with an empty
// assocDims set behaves as a single scalar keyed under 0.
//
// The source specializes Remove/Reset for pointer-typed T via SFINAE so that
// buffers can be moved into a free-list instead of deleted. Go has no
// analogous compile-time trait dispatch, so the same effect is reached with
// an optional onEvict hook: when set, it is invoked with every value removed
// by Remove or Reset, and the pool never "deletes" anything itself (the Go
// garbage collector owns that decision) — the hook is how a node hands a
// recyclable buffer back to its free-list.
type Pool[T any] struct {
	assocDims []int
	data      map[int]T
	onEvict   func(T)
}

// New creates a Pool whose key is EpochList.Sum(assocDims).
func New[T any](assocDims []int) *Pool[T] {
	return &Pool[T]{
		assocDims: assocDims,
		data:      make(map[int]T),
	}
}

// NewWithEvict is like New but registers a callback invoked with every value
// removed by Remove or Reset — the mechanism for buffer-recycling pools.
func NewWithEvict[T any](assocDims []int, onEvict func(T)) *Pool[T] {
	p := New[T](assocDims)
	p.onEvict = onEvict
	return p
}

// Set overwrites the mapping at the key derived from epoch.
func (p *Pool[T]) Set(e *epoch.List, v T) {
	p.data[e.Sum(p.assocDims)] = v
}

// SetSum is the raw-epoch-sum variant used by backends, which have already
// computed the sum once while decoding an entry identifier.
func (p *Pool[T]) SetSum(epochSum int, v T) {
	if epochSum < 0 {
		panic("valuepool: negative epoch sum")
	}
	p.data[epochSum] = v
}

// Has reports whether a value was set and not yet removed at epoch.
func (p *Pool[T]) Has(e *epoch.List) bool {
	_, ok := p.data[e.Sum(p.assocDims)]
	return ok
}

// HasSum is the raw-epoch-sum variant of Has.
func (p *Pool[T]) HasSum(epochSum int) bool {
	_, ok := p.data[epochSum]
	return ok
}

// Get returns the value at epoch. Precondition: Has(epoch).
func (p *Pool[T]) Get(e *epoch.List) T {
	v, ok := p.data[e.Sum(p.assocDims)]
	if !ok {
		panic("valuepool: Get on absent epoch")
	}
	return v
}

// GetSum is the raw-epoch-sum variant of Get.
func (p *Pool[T]) GetSum(epochSum int) T {
	v, ok := p.data[epochSum]
	if !ok {
		panic("valuepool: GetSum on absent epoch sum")
	}
	return v
}

// Remove deletes the mapping at epoch, invoking onEvict first if set.
// Precondition: Has(epoch).
func (p *Pool[T]) Remove(e *epoch.List) {
	key := e.Sum(p.assocDims)
	v, ok := p.data[key]
	if !ok {
		panic("valuepool: Remove on absent epoch")
	}
	delete(p.data, key)
	if p.onEvict != nil {
		p.onEvict(v)
	}
}

// Reset clears every mapping, invoking onEvict for each value first if set.
func (p *Pool[T]) Reset() {
	if p.onEvict != nil {
		for _, v := range p.data {
			p.onEvict(v)
		}
	}
	p.data = make(map[int]T)
}

// Len reports how many epochs currently hold a value.
func (p *Pool[T]) Len() int {
	return len(p.data)
}
