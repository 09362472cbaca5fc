// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"sync"

	"code.hybscloud.com/kont"
)

// tickerSlot is one buffered element of a TickerChannel, carrying the
// monotonic sequence number spec §4.D assigns it.
type tickerSlot[T any] struct {
	seq   uint64
	value T
}

// tickerWaiter is a parked TickerConsumer.receive, re-evaluated (not
// handed a value directly) whenever the ticker channel gains a new
// element, since more than one waiter may wake for the same send but only
// the ones whose cursor it actually satisfies should advance (spec §4.D:
// "no element is delivered twice to the same consumer").
type tickerWaiter struct {
	resolve func() (kont.Resumed, bool)
}

// TickerChannel is a channel of capacity n with policy displace (spec
// §3/§4.D): each buffered slot carries a sequence number, and it exposes no
// receive port of its own — only TickerConsumer does.
type TickerChannel[T any] struct {
	mu      sync.Mutex
	cap     int
	slots   []tickerSlot[T]
	nextSeq uint64
	waiters []*tickerWaiter
}

// NewTickerChannel constructs a ticker channel holding at most capacity
// elements, discarding the oldest on overflow.
func NewTickerChannel[T any](capacity int) *TickerChannel[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &TickerChannel[T]{cap: capacity}
}

// Send appends v, displacing the oldest buffered element if the channel is
// at capacity (spec §4.D: "a channel of capacity n with policy displace").
// Send never parks and never fails: a ticker channel has no backpressure.
func (tc *TickerChannel[T]) Send(v T) {
	tc.mu.Lock()
	seq := tc.nextSeq
	tc.nextSeq++
	if len(tc.slots) >= tc.cap {
		tc.slots = tc.slots[1:]
	}
	tc.slots = append(tc.slots, tickerSlot[T]{seq: seq, value: v})
	waiters := tc.waiters
	tc.waiters = nil
	tc.mu.Unlock()

	for _, w := range waiters {
		if v, ok := w.resolve(); ok {
			// tickerRecvOp's resolve closure both recomputes the result
			// and invokes pc.wake itself; see tickerRecvOp.dispatchFiber
			// below.
			_ = v
		}
	}
}

// park registers w to be re-evaluated on the next Send.
func (tc *TickerChannel[T]) park(w *tickerWaiter) {
	tc.mu.Lock()
	tc.waiters = append(tc.waiters, w)
	tc.mu.Unlock()
}

// TickerConsumer holds an independent, monotonically advancing cursor into
// a TickerChannel (spec §3 Ticker Consumer). Multiple consumers of the same
// channel never affect one another.
type TickerConsumer[T any] struct {
	ch *TickerChannel[T]

	mu     sync.Mutex
	cursor uint64
}

// NewTickerConsumer creates a consumer whose cursor starts at the channel's
// next-to-be-written sequence (spec §4.D: a consumer created before any
// send observes every subsequent element; one created later only sees
// elements sent afterward, modulo displacement).
func NewTickerConsumer[T any](ch *TickerChannel[T]) *TickerConsumer[T] {
	ch.mu.Lock()
	cursor := ch.nextSeq
	ch.mu.Unlock()
	return &TickerConsumer[T]{ch: ch, cursor: cursor}
}

// tryReceive implements spec §4.D receive's matching rule. ok is false only
// when the cursor is strictly ahead of every buffered slot (nothing new
// yet); lapping (cursor behind the oldest slot) is handled by jumping the
// cursor forward and returning the oldest available element instead of
// failing.
func (c *TickerConsumer[T]) tryReceive() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ch.mu.Lock()
	defer c.ch.mu.Unlock()

	if len(c.ch.slots) == 0 {
		var zero T
		return zero, false
	}
	oldest := c.ch.slots[0].seq
	newest := c.ch.slots[len(c.ch.slots)-1].seq
	if c.cursor < oldest {
		c.cursor = oldest
	}
	if c.cursor > newest {
		var zero T
		return zero, false
	}
	idx := c.cursor - oldest
	v := c.ch.slots[idx].value
	c.cursor++
	return v, true
}

// TickerResult is the outcome of a ticker receive: a delivered value, or
// Cancelled if the fiber was interrupted while waiting for the next
// element.
type TickerResult[T any] struct {
	Value     T
	Cancelled bool
}

// tickerRecvOp is the effect operation behind TickerReceive.
type tickerRecvOp[T any] struct {
	kont.Phantom[TickerResult[T]]
	consumer *TickerConsumer[T]
}

func (op tickerRecvOp[T]) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return TickerResult[T]{Cancelled: true}, nil
	}
	if v, ok := op.consumer.tryReceive(); ok {
		return TickerResult[T]{Value: v}, nil
	}

	var register func()
	claimed := false
	var mu sync.Mutex
	register = func() {
		w := &tickerWaiter{resolve: func() (kont.Resumed, bool) {
			mu.Lock()
			if claimed {
				mu.Unlock()
				return nil, false
			}
			v, ok := op.consumer.tryReceive()
			if !ok {
				mu.Unlock()
				// spurious: another waiter (or consumer) got there
				// first; stay registered for the next send.
				register()
				return nil, false
			}
			claimed = true
			mu.Unlock()
			res := TickerResult[T]{Value: v}
			pc.wake(res)
			return res, true
		}}
		op.consumer.ch.park(w)
	}
	register()
	pc.armCancel(func() {
		mu.Lock()
		if claimed {
			mu.Unlock()
			return
		}
		claimed = true
		mu.Unlock()
		pc.wake(TickerResult[T]{Cancelled: true})
	})
	return nil, errParked
}

// TickerReceive parks the calling fiber until consumer's cursor can
// advance, per spec §4.D.
func TickerReceive[T any](consumer *TickerConsumer[T]) kont.Eff[TickerResult[T]] {
	return kont.Perform(tickerRecvOp[T]{consumer: consumer})
}
