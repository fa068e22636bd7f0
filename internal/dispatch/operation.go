package dispatch

import (
	"sync"

	"github.com/danmuck/edgelink/internal/protocol"
)

// Operation is a suspendable task producing exactly one response.
// Poll must never block.
type Operation interface {
	Poll() (protocol.Response, bool)
}

// Future is a one-shot Operation completed exactly once.
type Future struct {
	ch   chan struct{}
	resp protocol.Response
	once sync.Once
	mu   sync.Mutex
}

var _ Operation = (*Future)(nil)

func newFuture() *Future {
	return &Future{ch: make(chan struct{})}
}

// Go runs fn in its own goroutine and completes the future with its result.
func Go(fn func() protocol.Response) *Future {
	f := newFuture()
	go func() {
		f.complete(fn())
	}()
	return f
}

// Ready returns an already completed future.
func Ready(resp protocol.Response) *Future {
	f := newFuture()
	f.complete(resp)
	return f
}

// complete is idempotent; late results are ignored.
func (f *Future) complete(resp protocol.Response) {
	f.once.Do(func() {
		f.mu.Lock()
		f.resp = resp
		f.mu.Unlock()
		close(f.ch)
	})
}

func (f *Future) Poll() (protocol.Response, bool) {
	select {
	case <-f.ch:
		f.mu.Lock()
		r := f.resp
		f.mu.Unlock()
		return r, true
	default:
		return protocol.Response{}, false
	}
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.ch
}
