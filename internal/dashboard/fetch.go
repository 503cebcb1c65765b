package dashboard

import (
	"context"
	"sync"
	"time"
)

// FetchState is the lifecycle position of one load.
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchInFlight
	FetchResolved
	FetchCancelled
	FetchErrored
)

func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchInFlight:
		return "in-flight"
	case FetchResolved:
		return "resolved"
	case FetchCancelled:
		return "cancelled"
	case FetchErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Fetch is the cancellation handle of one reservation or table load.
// Once cancelled, its result is never applied to the dashboard.
type Fetch struct {
	resource string
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	done     chan struct{}

	mu    sync.Mutex
	state FetchState
}

func newFetch(parent context.Context, resource string, timeout time.Duration) *Fetch {
	ctx, cancel := context.WithCancel(parent)
	return &Fetch{
		resource: resource,
		ctx:      ctx,
		cancel:   cancel,
		timeout:  timeout,
		done:     make(chan struct{}),
		state:    FetchInFlight,
	}
}

// cancelledFetch is returned when the dashboard is not mounted.
func cancelledFetch(resource string) *Fetch {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fetch{resource: resource, ctx: ctx, cancel: cancel, done: make(chan struct{}), state: FetchCancelled}
	close(f.done)
	return f
}

// Resource names what the fetch loads ("reservations" or "tables").
func (f *Fetch) Resource() string { return f.resource }

// Cancel marks the fetch cancelled and aborts its request.
// Cancelling a settled fetch has no effect on its state.
func (f *Fetch) Cancel() {
	f.mu.Lock()
	if f.state == FetchInFlight {
		f.state = FetchCancelled
	}
	f.mu.Unlock()
	f.cancel()
}

// Done is closed once the fetch goroutine has exited.
func (f *Fetch) Done() <-chan struct{} { return f.done }

func (f *Fetch) State() FetchState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// requestContext bounds one API call by the load timeout.
func (f *Fetch) requestContext() (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return f.ctx, func() {}
	}
	return context.WithTimeout(f.ctx, f.timeout)
}

// settle moves an in-flight fetch to outcome. It reports false when the fetch
// was cancelled first, in which case the caller must drop the result.
func (f *Fetch) settle(outcome FetchState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FetchInFlight || f.ctx.Err() != nil {
		f.state = FetchCancelled
		return false
	}
	f.state = outcome
	return true
}

func (f *Fetch) finish() {
	f.cancel()
	close(f.done)
}
