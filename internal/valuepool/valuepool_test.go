package valuepool

import (
	"testing"

	"github.com/perf-analysis/internal/epoch"
)

func TestSetGetHasScalar(t *testing.T) {
	p := New[int](nil)
	ep := epoch.New(0)

	if p.Has(ep) {
		t.Fatal("fresh pool must not have a value")
	}
	p.Set(ep, 42)
	if !p.Has(ep) {
		t.Fatal("pool should have a value after Set")
	}
	if got := p.Get(ep); got != 42 {
		t.Fatalf("Get = %d, want 42", got)
	}
}

func TestSetGetPerEpoch(t *testing.T) {
	p := New[string]([]int{0})
	e0 := epoch.New(1)
	e1 := epoch.New(1)
	e1.Increment(0)

	p.Set(e0, "first")
	p.Set(e1, "second")

	if got := p.Get(e0); got != "first" {
		t.Fatalf("Get(e0) = %q, want %q", got, "first")
	}
	if got := p.Get(e1); got != "second" {
		t.Fatalf("Get(e1) = %q, want %q", got, "second")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}

func TestRemoveInvokesOnEvict(t *testing.T) {
	var evicted []int
	p := NewWithEvict[int](nil, func(v int) { evicted = append(evicted, v) })
	ep := epoch.New(0)

	p.Set(ep, 7)
	p.Remove(ep)

	if p.Has(ep) {
		t.Fatal("value should be gone after Remove")
	}
	if len(evicted) != 1 || evicted[0] != 7 {
		t.Fatalf("onEvict should have received [7], got %v", evicted)
	}
}

func TestResetInvokesOnEvictForEveryEntry(t *testing.T) {
	var evicted []int
	p := NewWithEvict[int]([]int{0}, func(v int) { evicted = append(evicted, v) })

	for i := 0; i < 3; i++ {
		e := epoch.New(1)
		for j := 0; j < i; j++ {
			e.Increment(0)
		}
		p.Set(e, i*10)
	}
	p.Reset()

	if len(evicted) != 3 {
		t.Fatalf("expected 3 evictions, got %d", len(evicted))
	}
	if p.Len() != 0 {
		t.Fatalf("pool should be empty after Reset, Len() = %d", p.Len())
	}
}

func TestGetOnAbsentEpochPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Get of an absent epoch")
		}
	}()
	New[int](nil).Get(epoch.New(0))
}

func TestSumVariantsMatchEpochVariants(t *testing.T) {
	p := New[int]([]int{0, 1})
	e := epoch.New(2)
	e.Increment(0)
	e.Increment(1)
	e.Increment(1)

	p.SetSum(e.Sum([]int{0, 1}), 99)
	if !p.Has(e) {
		t.Fatal("SetSum should be visible through the epoch-keyed Has")
	}
	if got := p.GetSum(e.Sum([]int{0, 1})); got != 99 {
		t.Fatalf("GetSum = %d, want 99", got)
	}
}
