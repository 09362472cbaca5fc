// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"sync"
	"time"

	"code.hybscloud.com/kont"
)

// Val is a single-assignment dataflow cell (spec §3/§4.G): undelivered →
// delivered, holding either a value or a failure cause, with a waiter
// queue of parked observers.
type Val[T any] struct {
	sched *Scheduler
	thunk func() kont.Eff[T]

	mu        sync.Mutex
	delivered bool
	started   bool
	value     T
	cause     error
	waiters   []*waitNode[T]
}

// NewVal constructs an undelivered val with no deferred computation.
func NewVal[T any]() *Val[T] { return &Val[T]{} }

// NewDeferredVal constructs a val that runs thunk on a fresh fiber spawned
// on sched (or the process default if sched is nil) the first time it is
// observed; the computation's result becomes the val's delivered value
// (spec §4.G: "the first observer triggers that computation on a fresh
// fiber; subsequent observers park as above").
func NewDeferredVal[T any](sched *Scheduler, thunk func() kont.Eff[T]) *Val[T] {
	return &Val[T]{sched: sched, thunk: thunk}
}

// Deliver atomically transitions undelivered → delivered(v); a no-op if
// already delivered (spec §4.G deliver, §8 invariant 5).
func (v *Val[T]) Deliver(value T) { v.deliver(value, nil) }

// DeliverCause delivers a failure cause instead of a value; observers
// raise cause rather than receiving a value.
func (v *Val[T]) DeliverCause(cause error) {
	var zero T
	v.deliver(zero, cause)
}

func (v *Val[T]) deliver(value T, cause error) {
	v.mu.Lock()
	if v.delivered {
		v.mu.Unlock()
		return
	}
	v.delivered = true
	v.value = value
	v.cause = cause
	waiters := v.waiters
	v.waiters = nil
	v.mu.Unlock()

	for _, w := range waiters {
		if w.claim() {
			w.wake(Result[T]{Value: value, Cause: cause})
		}
	}
}

// IsDelivered is the non-blocking state query of spec §4.G.
func (v *Val[T]) IsDelivered() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.delivered
}

// valObserveOp is the effect operation behind Observe.
type valObserveOp[T any] struct {
	kont.Phantom[Result[T]]
	val        *Val[T]
	timeout    time.Duration
	hasTimeout bool
}

func (op valObserveOp[T]) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return Result[T]{Cause: ErrCancelled}, nil
	}

	vv := op.val
	vv.mu.Lock()
	if vv.delivered {
		value, cause := vv.value, vv.cause
		vv.mu.Unlock()
		return Result[T]{Value: value, Cause: cause}, nil
	}
	startThunk := vv.thunk != nil && !vv.started
	if startThunk {
		vv.started = true
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
	node.wake = func(rv kont.Resumed) { pc.wake(rv) }
	vv.waiters = append(vv.waiters, node)
	vv.mu.Unlock()

	if startThunk {
		Spawn(vv.sched, kont.Bind(vv.thunk(), func(result T) kont.Eff[struct{}] {
			vv.Deliver(result)
			return kont.Pure(struct{}{})
		}))
	}

	if op.hasTimeout {
		handle := f.sched.timers.schedule(op.timeout, func() {
			if node.claim() {
				node.wake(Result[T]{Cause: ErrTimeout})
			}
		})
		pc.armCancel(func() {
			f.sched.timers.cancelTimer(handle)
			if node.claim() {
				node.wake(Result[T]{Cause: ErrCancelled})
			}
		})
	} else {
		pc.armCancel(func() {
			if node.claim() {
				node.wake(Result[T]{Cause: ErrCancelled})
			}
		})
	}
	return nil, errParked
}

// Observe parks the calling fiber until val is delivered, or returns
// immediately if it already was (spec §4.G observe). An optional timeout
// bounds the wait, resolving with Result.Cause set to ErrTimeout if val is
// still undelivered when it elapses. For a deferred val, the very first
// Observe call spawns the computation; its panic, if any, terminates only
// that fresh fiber and is not automatically captured as the val's cause —
// a deferred computation that can fail must call DeliverCause itself.
func Observe[T any](val *Val[T], timeout ...time.Duration) kont.Eff[Result[T]] {
	op := valObserveOp[T]{val: val}
	if len(timeout) > 0 {
		op.timeout = timeout[0]
		op.hasTimeout = true
	}
	return kont.Perform(op)
}
