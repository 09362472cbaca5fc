// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"sync"
	"time"

	"code.hybscloud.com/kont"
)

// sleepOp is the effect operation behind FiberSleep.
type sleepOp struct {
	kont.Phantom[struct{}]
	dur time.Duration
}

func (op sleepOp) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return struct{}{}, nil
	}

	var mu sync.Mutex
	claimed := false
	claim := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return false
		}
		claimed = true
		return true
	}

	handle := f.sched.timers.schedule(op.dur, func() {
		if claim() {
			pc.wake(struct{}{})
		}
	})
	pc.armCancel(func() {
		f.sched.timers.cancelTimer(handle)
		if claim() {
			pc.wake(struct{}{})
		}
	})
	return nil, errParked
}

// FiberSleep parks the calling fiber for dur, then resumes it, without
// blocking the worker that was running it (spec §4.B: sleep is itself a
// suspension point). Call Sleep instead from an OS-thread strand spawned
// via Go; FiberSleep is only valid from inside a fiber body.
func FiberSleep(dur time.Duration) kont.Eff[struct{}] {
	return kont.Perform(sleepOp{dur: dur})
}

// JoinOutcome is the resolved outcome of FiberJoin: the joined strand's
// result and cause, or TimedOut if an optional deadline elapsed first.
type JoinOutcome struct {
	Value    any
	Cause    error
	TimedOut bool
}

// joinOp is the effect operation behind FiberJoin.
type joinOp struct {
	kont.Phantom[JoinOutcome]
	target     terminable
	timeout    time.Duration
	hasTimeout bool
}

func (op joinOp) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return JoinOutcome{Cause: ErrCancelled}, nil
	}
	if v, cause, done := op.target.result(); done {
		return JoinOutcome{Value: v, Cause: unwrapCause(cause)}, nil
	}

	var mu sync.Mutex
	claimed := false
	claim := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if claimed {
			return false
		}
		claimed = true
		return true
	}

	op.target.addJoiner(&callbackWaiter{fn: func() {
		if !claim() {
			return
		}
		v, cause, _ := op.target.result()
		pc.wake(JoinOutcome{Value: v, Cause: unwrapCause(cause)})
	}})

	if op.hasTimeout {
		handle := f.sched.timers.schedule(op.timeout, func() {
			if claim() {
				pc.wake(JoinOutcome{TimedOut: true})
			}
		})
		pc.armCancel(func() {
			f.sched.timers.cancelTimer(handle)
			if claim() {
				pc.wake(JoinOutcome{Cause: ErrCancelled})
			}
		})
	} else {
		pc.armCancel(func() {
			if claim() {
				pc.wake(JoinOutcome{Cause: ErrCancelled})
			}
		})
	}
	return nil, errParked
}

// FiberJoin parks the calling fiber until s terminates, without blocking
// the worker that was running it, mirroring Join's semantics as a
// suspension point (spec §4.B/§4.H). An optional timeout bounds the wait;
// exceeding it resolves with TimedOut set rather than affecting s. s must
// be a strand produced by Go or Spawn.
func FiberJoin(s Strand, timeout ...time.Duration) kont.Eff[JoinOutcome] {
	ts, ok := s.(terminable)
	if !ok {
		return kont.Pure(JoinOutcome{Cause: ErrIllegalState})
	}
	op := joinOp{target: ts}
	if len(timeout) > 0 {
		op.timeout = timeout[0]
		op.hasTimeout = true
	}
	return kont.Perform(op)
}
