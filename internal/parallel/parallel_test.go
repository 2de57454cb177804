package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if !results[b][c] {
				t.Errorf("Missing result at [%d][%d]", b, c)
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Test that small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForEach(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	seen := make([]int32, 50)
	err := ForEach(context.Background(), len(seen), func(_ context.Context, i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	for i, v := range seen {
		if v != 1 {
			t.Errorf("index %d visited %d times", i, v)
		}
	}
}

func TestForEach_FirstError(t *testing.T) {
	boom := errors.New("boom")
	for _, cfg := range []Config{{Enabled: false}, {Enabled: true, NumWorkers: 3}} {
		err := ForEach(context.Background(), 10, func(_ context.Context, i int) error {
			if i == 4 {
				return boom
			}
			return nil
		}, cfg)
		if !errors.Is(err, boom) {
			t.Errorf("enabled=%v: expected boom, got %v", cfg.Enabled, err)
		}
	}
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	err := ForEach(ctx, 10, func(_ context.Context, _ int) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}, Config{Enabled: false})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls after cancel, got %d", calls)
	}
}
