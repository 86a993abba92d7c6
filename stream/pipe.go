package stream

import (
	"context"
	"sync"
)

// Pipe is a single-consumer stream used as the output of derived operators.
// The write side (Send, Fail, Close) must be driven by one goroutine; the
// read side satisfies Source.
type Pipe[T any] struct {
	ch   chan T
	done chan struct{}

	mu       sync.Mutex
	terminal bool
	err      error
}

// NewPipe creates a Pipe with the given receive buffer size.
func NewPipe[T any](buffer int) *Pipe[T] {
	return &Pipe[T]{
		ch:   make(chan T, max(buffer, 0)),
		done: make(chan struct{}),
	}
}

// Send delivers v to the consumer, blocking until it is received or ctx is
// done. It returns ErrClosed after termination.
func (p *Pipe[T]) Send(ctx context.Context, v T) error {
	p.mu.Lock()
	if p.terminal {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the pipe cleanly. Subsequent calls are no-ops.
func (p *Pipe[T]) Close() {
	p.terminate(nil)
}

// Fail terminates the pipe with err. Only the first termination wins.
func (p *Pipe[T]) Fail(err error) {
	p.terminate(err)
}

func (p *Pipe[T]) terminate(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal {
		return
	}
	p.terminal = true
	p.err = err
	close(p.ch)
	close(p.done)
}

// C returns the receive channel. It is closed on termination.
func (p *Pipe[T]) C() <-chan T {
	return p.ch
}

// Err returns the terminal error once C is closed.
func (p *Pipe[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done returns a channel closed when the pipe terminates.
func (p *Pipe[T]) Done() <-chan struct{} {
	return p.done
}
