package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/ubike/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCalculateBackoff_LongIntervalNeverShrinks(t *testing.T) {
	base := time.Minute
	for failures := 0; failures <= 5; failures++ {
		if got := calculateBackoff(failures, base); got != base {
			t.Errorf("calculateBackoff(%d, %v) = %v, want %v", failures, base, got, base)
		}
	}
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRefresher) RefreshActive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIntervals struct {
	bc *state.Broadcaster[int]
}

func (f fakeIntervals) SubscribeRefreshInterval(ctx context.Context) <-chan int {
	return f.bc.Subscribe(ctx)
}

func startScheduler(t *testing.T, target Refresher, initial int) (*state.Broadcaster[int], context.CancelFunc) {
	t.Helper()
	bc := state.NewBroadcaster(initial, nil)
	s := NewScheduler(target, fakeIntervals{bc: bc}, zerolog.Nop())
	s.unit = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return bc, cancel
}

func waitCalls(t *testing.T, f *fakeRefresher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("refresh calls = %d, want >= %d", f.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_TicksAtInterval(t *testing.T) {
	target := &fakeRefresher{}
	startScheduler(t, target, 1)
	waitCalls(t, target, 3)
}

func TestScheduler_ZeroIntervalDisables(t *testing.T) {
	target := &fakeRefresher{}
	bc, _ := startScheduler(t, target, 0)

	time.Sleep(60 * time.Millisecond)
	if got := target.count(); got != 0 {
		t.Fatalf("refresh calls = %d, want 0 while disabled", got)
	}

	bc.Publish(1)
	waitCalls(t, target, 1)

	bc.Publish(0)
	time.Sleep(30 * time.Millisecond)
	settled := target.count()
	time.Sleep(60 * time.Millisecond)
	if got := target.count(); got != settled {
		t.Fatalf("refresh calls = %d after disabling, want %d", got, settled)
	}
}

func TestScheduler_KeepsTickingAfterFailures(t *testing.T) {
	target := &fakeRefresher{err: errors.New("offline")}
	startScheduler(t, target, 1)
	// 10ms, then 20ms and 40ms of backoff.
	waitCalls(t, target, 3)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	target := &fakeRefresher{}
	_, cancel := startScheduler(t, target, 1)
	waitCalls(t, target, 1)
	cancel()
	time.Sleep(30 * time.Millisecond)
	settled := target.count()
	time.Sleep(50 * time.Millisecond)
	if got := target.count(); got != settled {
		t.Fatalf("refresh calls = %d after cancel, want %d", got, settled)
	}
}
