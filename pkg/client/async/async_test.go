package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRunSettles(t *testing.T) {
	v := New[int]()
	if v.State().Status != Idle {
		t.Fatalf("expected idle")
	}
	got, err := v.Run(context.Background(), func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("unexpected result %d %v", got, err)
	}
	if st := v.State(); st.Status != Settled || st.Value != 42 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestRunFails(t *testing.T) {
	v := New[string]()
	boom := errors.New("boom")
	_, err := v.Run(context.Background(), func(context.Context) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if st := v.State(); st.Status != Failed || !errors.Is(st.Err, boom) {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestStaleRunIsDropped(t *testing.T) {
	v := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := v.Run(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- err
	}()
	<-started

	if _, err := v.Run(context.Background(), func(context.Context) (string, error) { return "new", nil }); err != nil {
		t.Fatalf("second run: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale error got %v", err)
	}
	if st := v.State(); st.Value != "new" {
		t.Fatalf("stale result overwrote state: %+v", st)
	}
}

func TestResetDropsInFlight(t *testing.T) {
	v := New[int]()
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := v.Run(context.Background(), func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started
	v.Reset()
	close(release)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale error got %v", err)
	}
	if v.State().Status != Idle {
		t.Fatalf("expected idle after reset")
	}
}

func TestShowLoaderWaitsForRevealDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	v := New[int](WithRevealDelay(300*time.Millisecond), withClock(clock.Now))
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = v.Run(context.Background(), func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	if v.ShowLoader() {
		t.Fatalf("loader shown before delay")
	}
	clock.Advance(300 * time.Millisecond)
	if v.ShowLoader() {
		t.Fatalf("loader shown at exactly the delay")
	}
	clock.Advance(time.Millisecond)
	if !v.ShowLoader() {
		t.Fatalf("expected loader after delay")
	}
	close(release)
	<-done
	if v.ShowLoader() {
		t.Fatalf("loader shown after settle")
	}
}

func TestUpdateOnlyTouchesSettled(t *testing.T) {
	v := New[int]()
	if v.Update(func(n int) int { return n + 1 }) {
		t.Fatalf("idle value should not update")
	}
	_, _ = v.Run(context.Background(), func(context.Context) (int, error) { return 1, nil })
	if !v.Update(func(n int) int { return n + 1 }) || v.State().Value != 2 {
		t.Fatalf("expected settled value to update")
	}
}
