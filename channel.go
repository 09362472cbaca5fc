// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"sync"

	"code.hybscloud.com/kont"
)

// OverflowPolicy selects what send does when a bounded channel's buffer is
// full (spec §4.C).
type OverflowPolicy int

const (
	// OverflowBlock parks the producer until space is available. FIFO
	// among parked producers.
	OverflowBlock OverflowPolicy = iota
	// OverflowThrow fails the send with ErrOverflow.
	OverflowThrow
	// OverflowDrop silently discards the new message.
	OverflowDrop
	// OverflowDisplace removes the oldest buffered message to make room.
	OverflowDisplace
)

// ChannelConfig is the explicit option aggregate for NewChannel (spec §6,
// §9): every knob a channel needs is a named field here rather than a
// loosely typed variadic constructor argument.
type ChannelConfig struct {
	// Capacity: 0 = rendezvous, -1 = unbounded, n>0 = bounded.
	Capacity int
	Overflow OverflowPolicy
	// SingleProducer/SingleConsumer permit the implementation to skip
	// mutual exclusion on the respective side; violating a declared flag
	// is caller misuse (spec §4.C) and surfaces as ErrIllegalState rather
	// than true undefined behavior, a deliberately stricter stance than
	// the spec's permitted undefined behavior for this case.
	SingleProducer bool
	SingleConsumer bool
}

// Result carries a received value or the channel's terminal signal
// (spec §4.C receive: "closed and drained → terminal nil or cause").
type Result[T any] struct {
	Value T
	// Closed is true once the channel is closed and fully drained; Cause
	// is the close-cause, if any.
	Closed bool
	Cause  error
}

// TryResult is the non-parking counterpart returned by TryReceive.
type TryResult[T any] struct {
	Value T
	// Ok is true if Value was actually received. False covers both "empty,
	// not closed" and "closed and drained".
	Ok     bool
	Closed bool
	Cause  error
}

// waitNode is a single parked producer or consumer. claim gates delivery:
// exactly one of a channel match, a timeout, or a cancellation may invoke
// wake, mirroring the selector's shared-token CAS (spec §4.F) generalized
// to plain channel operations so the same park/unpark plumbing serves
// both. value is the payload for a send waiter; it is ignored for receive
// waiters (their value is written into result by whoever claims them).
type waitNode[T any] struct {
	value T
	claim func() bool
	wake  func(v kont.Resumed)
}

// Channel is the generic typed FIFO conduit of spec §3/§4.C. Buffer storage
// is a plain mutex-guarded slice at the exact configured capacity: an lfq
// ring rounds capacity up to the next power of 2, which would break the
// exact-capacity semantics a bounded channel promises, so buffering stays
// on a plain slice while the scheduler's run queues use lfq instead.
type Channel[T any] struct {
	cfg ChannelConfig

	mu      sync.Mutex
	buf     []T
	closed  bool
	cause   error
	sendWQ  []*waitNode[T]
	recvWQ  []*waitNode[T]
}

// NewChannel constructs a channel per cfg. Capacity 0 is a rendezvous
// channel whose buffer is never observably non-empty (invariant 1): send
// and receive always hand off directly through the wait-queues below,
// never through buf.
func NewChannel[T any](cfg ChannelConfig) *Channel[T] {
	return &Channel[T]{cfg: cfg}
}

func (c *Channel[T]) bounded() bool  { return c.cfg.Capacity > 0 }
func (c *Channel[T]) rendezvous() bool { return c.cfg.Capacity == 0 }

// IsClosed reports whether the channel has been closed. It does not report
// whether the channel has been fully drained.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// send implements spec §4.C send. It returns nil on an accepted message,
// ErrClosed/ErrOverflow as the effect's terminal result when the spec calls
// for a non-parking failure, or the errParked sentinel after registering a
// producer wait-node whose wake fires pc.wake exactly once on match, close,
// or cancellation.
func (c *Channel[T]) send(v T, pc *parkCtx) (err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if c.cfg.Overflow == OverflowDrop {
			return nil
		}
		return ErrClosed
	}

	// Direct hand-off to a parked consumer takes priority over the
	// buffer, preserving invariant 1 for rendezvous channels and giving
	// bounded/unbounded channels the lowest possible latency path.
	for len(c.recvWQ) > 0 {
		w := c.recvWQ[0]
		c.recvWQ = c.recvWQ[1:]
		if !w.claim() {
			continue
		}
		c.mu.Unlock()
		w.wake(Result[T]{Value: v})
		return nil
	}

	if c.rendezvous() {
		if c.cfg.Overflow != OverflowBlock {
			c.mu.Unlock()
			return c.nonBlockingRendezvousFailure()
		}
		node := &waitNode[T]{value: v}
		return c.parkSend(node, pc)
	}

	if !c.bounded() {
		// unbounded: always append.
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return nil
	}

	if len(c.buf) < c.cfg.Capacity {
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return nil
	}

	switch c.cfg.Overflow {
	case OverflowThrow:
		c.mu.Unlock()
		return ErrOverflow
	case OverflowDrop:
		c.mu.Unlock()
		return nil
	case OverflowDisplace:
		c.buf = append(c.buf[1:], v)
		c.mu.Unlock()
		return nil
	default: // OverflowBlock
		node := &waitNode[T]{value: v}
		return c.parkSend(node, pc)
	}
}

// nonBlockingRendezvousFailure maps a non-block overflow policy applied to
// a rendezvous channel with no waiting consumer onto that policy's
// behavior: throw fails, drop/displace silently discard (there is nothing
// to displace on a rendezvous channel, so displace degrades to drop).
func (c *Channel[T]) nonBlockingRendezvousFailure() error {
	if c.cfg.Overflow == OverflowThrow {
		return ErrOverflow
	}
	return nil
}

// parkSend registers node on the producer wait-queue and arms pc.wake to
// fire once some consumer (or close) claims it. c.mu must be held on
// entry; it is released before returning.
func (c *Channel[T]) parkSend(node *waitNode[T], pc *parkCtx) error {
	if c.cfg.SingleProducer && len(c.sendWQ) > 0 {
		c.mu.Unlock()
		return ErrIllegalState
	}
	claimed := false
	var mu sync.Mutex
	node.claim = func() bool {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return false
		}
		claimed = true
		return true
	}
	node.wake = func(v kont.Resumed) { pc.wake(v) }
	c.sendWQ = append(c.sendWQ, node)
	c.mu.Unlock()
	pc.armCancel(func() {
		if node.claim() {
			node.wake(error(ErrCancelled))
		}
	})
	return errParked
}

// receive implements spec §4.C receive.
func (c *Channel[T]) receive(pc *parkCtx) (kont.Resumed, error) {
	c.mu.Lock()
	if len(c.buf) > 0 {
		v := c.buf[0]
		c.buf = c.buf[1:]
		c.backfillLocked()
		c.mu.Unlock()
		return Result[T]{Value: v}, nil
	}

	// Direct hand-off from a parked producer (rendezvous, or a bounded
	// channel whose buffer is momentarily empty but a producer is
	// waiting under block policy).
	for len(c.sendWQ) > 0 {
		w := c.sendWQ[0]
		c.sendWQ = c.sendWQ[1:]
		if !w.claim() {
			continue
		}
		v := w.value
		c.mu.Unlock()
		w.wake(error(nil))
		return Result[T]{Value: v}, nil
	}

	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return Result[T]{Closed: true, Cause: cause}, nil
	}

	if c.cfg.SingleConsumer && len(c.recvWQ) > 0 {
		c.mu.Unlock()
		return nil, ErrIllegalState
	}

	node := &waitNode[T]{}
	claimed := false
	var mu sync.Mutex
	node.claim = func() bool {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return false
		}
		claimed = true
		return true
	}
	node.wake = func(v kont.Resumed) { pc.wake(v) }
	c.recvWQ = append(c.recvWQ, node)
	c.mu.Unlock()
	pc.armCancel(func() {
		if node.claim() {
			node.wake(Result[T]{Cause: ErrCancelled})
		}
	})
	return nil, errParked
}

// backfillLocked pulls one waiting producer's value into the freshly freed
// buffer slot, preserving per-producer FIFO order into the buffer (spec
// §4.C Ordering). Must be called with c.mu held.
func (c *Channel[T]) backfillLocked() {
	if !c.bounded() {
		return
	}
	for len(c.sendWQ) > 0 {
		w := c.sendWQ[0]
		c.sendWQ = c.sendWQ[1:]
		if !w.claim() {
			continue
		}
		c.buf = append(c.buf, w.value)
		w.wake(error(nil))
		return
	}
}

// trySend implements spec §4.C trySend: never parks.
func (c *Channel[T]) trySend(v T) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	for len(c.recvWQ) > 0 {
		w := c.recvWQ[0]
		c.recvWQ = c.recvWQ[1:]
		if !w.claim() {
			continue
		}
		c.mu.Unlock()
		w.wake(Result[T]{Value: v})
		return true
	}
	if c.rendezvous() {
		// No consumer was waiting above, so there is nowhere to hand v
		// off to. A rendezvous channel's buffer must never become
		// observably non-empty (invariant 1), so trySend simply fails
		// rather than falling into the unbounded-append path below.
		c.mu.Unlock()
		return false
	}
	if !c.bounded() {
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return true
	}
	if len(c.buf) < c.cfg.Capacity {
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return true
	}
	if c.cfg.Overflow == OverflowDisplace {
		c.buf = append(c.buf[1:], v)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	return false
}

// tryReceive implements spec §4.C tryReceive: never parks.
func (c *Channel[T]) tryReceive() TryResult[T] {
	c.mu.Lock()
	if len(c.buf) > 0 {
		v := c.buf[0]
		c.buf = c.buf[1:]
		c.backfillLocked()
		c.mu.Unlock()
		return TryResult[T]{Value: v, Ok: true}
	}
	for len(c.sendWQ) > 0 {
		w := c.sendWQ[0]
		c.sendWQ = c.sendWQ[1:]
		if !w.claim() {
			continue
		}
		v := w.value
		c.mu.Unlock()
		w.wake(error(nil))
		return TryResult[T]{Value: v, Ok: true}
	}
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return TryResult[T]{Closed: true, Cause: cause}
	}
	c.mu.Unlock()
	return TryResult[T]{}
}

// registerSendWaiter queues node on the producer wait-queue unconditionally,
// for use by Selector registration (spec §4.F step 3): unlike send, it
// never itself attempts a match, since the selector already ran its own
// non-blocking registration pass across every descriptor before parking
// any of them. If the channel is already closed, node is woken immediately
// instead of queued, so a select never hangs waiting to send on a channel
// that can no longer accept anything.
func (c *Channel[T]) registerSendWaiter(node *waitNode[T]) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if node.claim() {
			node.wake(SelectSendResult{Closed: true})
		}
		return
	}
	c.sendWQ = append(c.sendWQ, node)
	c.mu.Unlock()
}

// registerRecvWaiter is registerSendWaiter's consumer-side counterpart.
func (c *Channel[T]) registerRecvWaiter(node *waitNode[T]) {
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		if node.claim() {
			node.wake(Result[T]{Closed: true, Cause: cause})
		}
		return
	}
	c.recvWQ = append(c.recvWQ, node)
	c.mu.Unlock()
}

// close implements spec §4.C close. Every parked producer observes
// ErrClosed; every parked consumer observes the terminal signal.
func (c *Channel[T]) close(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cause = cause
	producers := c.sendWQ
	c.sendWQ = nil
	consumers := c.recvWQ
	c.recvWQ = nil
	c.mu.Unlock()

	for _, w := range producers {
		if w.claim() {
			w.wake(error(ErrClosed))
		}
	}
	for _, w := range consumers {
		if w.claim() {
			w.wake(Result[T]{Closed: true, Cause: cause})
		}
	}
}
