package envconfig

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestUseForeactor(t *testing.T) {
	t.Setenv("USE_FOREACTOR", "yes")
	Reset()
	if !UseForeactor() {
		t.Fatal("USE_FOREACTOR=yes should enable the engine")
	}

	t.Setenv("USE_FOREACTOR", "no")
	Reset()
	if UseForeactor() {
		t.Fatal("USE_FOREACTOR=no should disable the engine")
	}

	os.Unsetenv("USE_FOREACTOR")
	Reset()
	if UseForeactor() {
		t.Fatal("unset USE_FOREACTOR should disable the engine")
	}
}

func TestUseForeactorCaseInsensitive(t *testing.T) {
	t.Setenv("USE_FOREACTOR", "YES")
	Reset()
	if !UseForeactor() {
		t.Fatal("USE_FOREACTOR should be matched case-insensitively")
	}
}

func TestForGraphRingBackend(t *testing.T) {
	setEnv(t, map[string]string{
		"DEPTH_42": "4",
		"QUEUE_42": "8",
	})
	Reset()

	cfg := ForGraph(42)
	if cfg.Depth != 4 {
		t.Fatalf("Depth = %d, want 4", cfg.Depth)
	}
	if cfg.QueueDepth != 8 {
		t.Fatalf("QueueDepth = %d, want 8", cfg.QueueDepth)
	}
	if cfg.UsesWorkerPool() {
		t.Fatal("no UTHREADS set: should not select the worker pool")
	}
}

func TestForGraphWorkerPoolBackend(t *testing.T) {
	setEnv(t, map[string]string{
		"DEPTH_7":    "3",
		"UTHREADS_7": "2",
	})
	Reset()

	cfg := ForGraph(7)
	if !cfg.UsesWorkerPool() {
		t.Fatal("UTHREADS_7 > 0 should select the worker pool")
	}
	if cfg.NumWorkers != 2 {
		t.Fatalf("NumWorkers = %d, want 2", cfg.NumWorkers)
	}
}

func TestForGraphIsCachedAcrossEnvChanges(t *testing.T) {
	setEnv(t, map[string]string{
		"DEPTH_99": "1",
		"QUEUE_99": "2",
	})
	Reset()

	first := ForGraph(99)
	t.Setenv("DEPTH_99", "50")
	second := ForGraph(99)

	if first.Depth != second.Depth {
		t.Fatal("a graph's config must be read once and cached, not re-scanned")
	}
}

func TestForGraphMissingDepthPanics(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when DEPTH_<id> is missing")
		}
	}()
	ForGraph(1000)
}

func TestForGraphQueueOutOfRangePanics(t *testing.T) {
	setEnv(t, map[string]string{
		"DEPTH_5": "4",
		"QUEUE_5": "0",
	})
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when QUEUE_<id> is out of [1, 1024]")
		}
	}()
	ForGraph(5)
}

func TestForGraphQueueBelowDepthPanics(t *testing.T) {
	setEnv(t, map[string]string{
		"DEPTH_6": "10",
		"QUEUE_6": "2",
	})
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when QUEUE_<id> < DEPTH_<id>")
		}
	}()
	ForGraph(6)
}

func TestMatchSuffixDoesNotCrossMatchPrefixedIDs(t *testing.T) {
	// DEPTH_1 must not match a key meant for graph id 12.
	setEnv(t, map[string]string{
		"DEPTH_12": "4",
		"QUEUE_12": "8",
	})
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: graph id 1 has no DEPTH_1 of its own")
		}
	}()
	ForGraph(1)
}
