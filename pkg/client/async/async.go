// Package async tracks one asynchronous result at a time and decides when a
// loader is worth showing.
package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultRevealDelay hides the loader for requests that finish quickly.
const DefaultRevealDelay = 300 * time.Millisecond

// ErrStale is returned by Run when a later Run or Reset superseded it.
var ErrStale = errors.New("async: result superseded")

type Status int

const (
	Idle Status = iota
	Loading
	Settled
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot. Value is meaningful only when Settled and Err only
// when Failed.
type State[T any] struct {
	Status Status
	Value  T
	Err    error
}

type Option func(*options)

type options struct {
	delay time.Duration
	now   func() time.Time
}

func WithRevealDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.delay = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type Value[T any] struct {
	opts options

	mu      sync.Mutex
	gen     uint64
	state   State[T]
	started time.Time
}

func New[T any](opts ...Option) *Value[T] {
	o := options{delay: DefaultRevealDelay, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Value[T]{opts: o}
}

// Run moves to Loading, calls fn and records its outcome unless another Run
// or Reset happened in the meantime, in which case the outcome is dropped
// and ErrStale returned.
func (v *Value[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.state = State[T]{Status: Loading}
	v.started = v.opts.now()
	v.mu.Unlock()

	val, err := fn(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		var zero T
		return zero, ErrStale
	}
	if err != nil {
		v.state = State[T]{Status: Failed, Err: err}
		return val, err
	}
	v.state = State[T]{Status: Settled, Value: val}
	return val, nil
}

// Reset returns to Idle and invalidates any run still in flight.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.state = State[T]{}
}

func (v *Value[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// ShowLoader reports true once loading has lasted longer than the reveal
// delay.
func (v *Value[T]) ShowLoader() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Status != Loading {
		return false
	}
	return v.opts.now().Sub(v.started) > v.opts.delay
}

// Update rewrites a settled value in place. It reports false, without
// calling fn, in any other state.
func (v *Value[T]) Update(fn func(T) T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Status != Settled {
		return false
	}
	v.state.Value = fn(v.state.Value)
	return true
}
