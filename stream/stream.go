package stream

import (
	"context"
	"sync"
)

// Source is the read side of a stream. C is closed exactly once, when the
// stream terminates; after that Err reports the terminal error, or nil for a
// clean completion.
type Source[T any] interface {
	// C returns the receive channel. It is closed on termination.
	C() <-chan T

	// Err returns the terminal error once C is closed. It returns nil while
	// the stream is still live or if the stream completed cleanly.
	Err() error
}

// Channel is an ordered multi-subscriber push stream. Every published value
// is delivered to every active subscriber in publish order; delivery blocks
// until each subscriber has received it. Subscribers that attach late miss
// earlier values.
//
// Publish, Fail and Close must be called from a single producer goroutine.
// Subscribe and Cancel are safe to call concurrently with the producer.
type Channel[T any] struct {
	mu         sync.Mutex
	subs       map[*Subscription[T]]struct{}
	buffer     int
	terminal   bool
	err        error
	subscribed chan struct{}
	subOnce    sync.Once
	done       chan struct{}
}

// New creates a Channel whose subscribers receive on channels buffered to
// the given size. A negative size is treated as unbuffered.
func New[T any](buffer int) *Channel[T] {
	return &Channel[T]{
		subs:       make(map[*Subscription[T]]struct{}),
		buffer:     max(buffer, 0),
		subscribed: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Subscription is one subscriber's view of a Channel.
type Subscription[T any] struct {
	ch        chan T
	cancelled chan struct{}
	once      sync.Once
	parent    *Channel[T]

	mu  sync.Mutex
	err error
}

// Subscribe attaches a new subscriber. If ctx carries a cancellation signal
// the subscription is cancelled automatically when ctx is done. Subscribing
// to an already terminated Channel returns a subscription whose receive
// channel is already closed and whose Err reports the terminal error.
func (c *Channel[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub, announce := c.subscribeDeferred(ctx)
	announce()
	return sub
}

// subscribeDeferred attaches the subscriber so it receives every value
// published from now on, but defers closing the Subscribed gate until the
// returned announce function runs. It lets a consumer attach to several
// channels before a producer gated on the first attachment may proceed.
func (c *Channel[T]) subscribeDeferred(ctx context.Context) (*Subscription[T], func()) {
	sub := &Subscription[T]{
		ch:        make(chan T, c.buffer),
		cancelled: make(chan struct{}),
		parent:    c,
	}

	c.mu.Lock()
	if c.terminal {
		sub.err = c.err
		close(sub.ch)
		c.mu.Unlock()
		return sub, func() {}
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.cancelled:
			case <-c.done:
			}
		}()
	}

	return sub, func() { c.subOnce.Do(func() { close(c.subscribed) }) }
}

// SubscribePair attaches one subscriber to each of two channels and only then
// opens both Subscribed gates. A producer that starts publishing on the first
// attachment therefore cannot slip a value past the second subscriber.
func SubscribePair[A, B any](ctx context.Context, a *Channel[A], b *Channel[B]) (*Subscription[A], *Subscription[B]) {
	subA, announceA := a.subscribeDeferred(ctx)
	subB, announceB := b.subscribeDeferred(ctx)
	announceA()
	announceB()
	return subA, subB
}

// Publish delivers v to every active subscriber, blocking until each has
// received it or cancelled, and reports how many received it. It returns
// ErrClosed after termination and the context error if ctx is done while a
// subscriber is slow. A zero count means the value was observed by nobody;
// producers owning drainable resources must dispose of them.
func (c *Channel[T]) Publish(ctx context.Context, v T) (int, error) {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	subs := make([]*Subscription[T], 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		select {
		case <-s.cancelled:
			// A cancelled subscriber stops receiving values, even into buffer
			// space, so a zero delivered count stays trustworthy.
			continue
		default:
		}
		select {
		case s.ch <- v:
			delivered++
		case <-s.cancelled:
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
	return delivered, nil
}

// Close terminates the stream cleanly. Subsequent calls are no-ops.
func (c *Channel[T]) Close() {
	c.terminate(nil)
}

// Fail terminates the stream with err. Only the first termination wins;
// subsequent Fail or Close calls are no-ops, so every subscriber observes at
// most one terminal error.
func (c *Channel[T]) Fail(err error) {
	c.terminate(err)
}

func (c *Channel[T]) terminate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminal {
		return
	}
	c.terminal = true
	c.err = err

	for s := range c.subs {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	}
	clear(c.subs)
	close(c.done)
}

// Subscribed returns a channel closed when the first subscriber attaches.
// The decoder uses it to gate the first body read.
func (c *Channel[T]) Subscribed() <-chan struct{} {
	return c.subscribed
}

// Done returns a channel closed when the stream terminates.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error, or nil before termination or after a clean
// Close.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// C returns the subscription's receive channel. It is closed when the parent
// Channel terminates, including for subscriptions cancelled beforehand, so a
// consumer ranging over it always unblocks at stream termination.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Err returns the terminal error observed by this subscriber.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the subscription from receiving further values. It is
// idempotent and safe to call concurrently with the producer; a Publish
// blocked on this subscriber is released. The subscription stays registered
// so the parent's termination still closes its receive channel, which keeps
// consumers ranging over C from blocking forever when Cancel races a
// Fail or Close.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		close(s.cancelled)
	})
}
