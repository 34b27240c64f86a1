package explorer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiterEnforcesInterval(t *testing.T) {
	l := NewLimiter(30 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	// First call is immediate, the next two each wait one interval.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("three sequential waits finished too fast: %v", elapsed)
	}
}

func TestLimiterSerializesConcurrentCallers(t *testing.T) {
	l := NewLimiter(20 * time.Millisecond)

	var mu sync.Mutex
	var stamps []time.Time
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
				return
			}
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 4 {
		t.Fatalf("expected 4 completions, got %d", len(stamps))
	}
	earliest, latest := stamps[0], stamps[0]
	for _, s := range stamps[1:] {
		if s.Before(earliest) {
			earliest = s
		}
		if s.After(latest) {
			latest = s
		}
	}
	// Four slots spread across at least three intervals.
	if latest.Sub(earliest) < 50*time.Millisecond {
		t.Fatalf("concurrent callers not spread out: %v", latest.Sub(earliest))
	}
}

func TestLimiterZeroIntervalNeverBlocks(t *testing.T) {
	l := NewLimiter(0)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = l.Wait(context.Background())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero-interval limiter blocked")
	}
}

func TestLimiterRespectsContext(t *testing.T) {
	l := NewLimiter(time.Hour)
	_ = l.Wait(context.Background()) // takes the immediate slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestSortByTimePutsUnconfirmedLast(t *testing.T) {
	t1, t2 := int64(200), int64(100)
	txs := []RawTransaction{
		{ID: "unconfirmed"},
		{ID: "late", Timestamp: &t1},
		{ID: "early", Timestamp: &t2},
	}
	SortByTime(txs)
	if txs[0].ID != "early" || txs[1].ID != "late" || txs[2].ID != "unconfirmed" {
		t.Fatalf("unexpected order: %s %s %s", txs[0].ID, txs[1].ID, txs[2].ID)
	}
}
