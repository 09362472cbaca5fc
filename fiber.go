// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/kont"
)

// errParked is the control-flow sentinel a fiberDispatcher returns to
// signal "registered on a wait-queue, do not resume now" (spec §4.B
// Suspension). It never escapes to a caller; only worker.run and
// Fiber.advance observe it.
var errParked = errors.New("strand: parked")

// parkCtx is handed to a fiberDispatcher's dispatch method so it can
// register a wake callback on whatever wait-queue it parks on (channel,
// selector, timer, or val). wake must be invoked at most once, carrying
// the effect's resumed value, per spec §4.B Resumption ("a parked fiber
// is made runnable by exactly one event").
type parkCtx struct {
	wake func(v kont.Resumed)
	// armCancel registers cancel to run if the fiber is interrupted while
	// parked on whatever wait-node the current dispatch just registered
	// (spec §5 Cancellation: "any suspension point is a cancellation
	// point"). A dispatcher that parks must call this before returning
	// errParked; a dispatcher that completes immediately need not.
	armCancel func(cancel func())
}

// fiberDispatcher is the structural interface every effect operation
// defined in this package implements, mirroring sess's sessionDispatcher
// (op.go) but generalized: dispatch may either complete immediately
// (nil error) or register a park node and return errParked.
type fiberDispatcher interface {
	dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error)
}

type stepOutcome int

const (
	outcomeParked stepOutcome = iota
	outcomeRunnable
	outcomeDone
)

// SpawnConfig carries spawn-time options as named fields set through
// SpawnOption, rather than a loosely typed variadic constructor argument.
type SpawnConfig struct {
	Name string
}

type SpawnOption func(*SpawnConfig)

func WithName(name string) SpawnOption { return func(c *SpawnConfig) { c.Name = name } }

// Fiber is a cooperatively scheduled Strand multiplexed onto a
// Scheduler's worker pool (spec §3, §4.B). Its execution context is not
// an OS stack: it is the chain of kont.Suspension continuations produced
// by stepping the fiber's body, which is exactly the "stack frames that
// can be persisted at suspension points" spec §3 calls for.
type Fiber struct {
	name   string
	sched  *Scheduler
	serial Serial

	pinned    atomic.Bool
	interrupt atomic.Bool

	parkMu     sync.Mutex
	parkCancel func()

	mu      sync.Mutex
	state   State
	value   any
	cause   error
	done    bool
	joiners []waiter

	// advance dispatches the fiber's current pending effect. resumeWith
	// resumes the current suspension directly with an externally
	// supplied value (used by the wait-queue node that unparked this
	// fiber) without re-dispatching. Both close over the same
	// *kont.Suspension[R] variable; see Spawn.
	advance    func(pc *parkCtx) stepOutcome
	resumeWith func(v kont.Resumed) stepOutcome
}

// Serial is a monotonically increasing identifier, reused from the same
// pattern sess/serial.go uses for session identity.
type Serial = uint32

func (f *Fiber) Name() string { return f.name }

func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fiber) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.done
}

// SerialID returns the fiber's identifier, assigned at spawn time.
func (f *Fiber) SerialID() Serial { return f.serial }

// Pin marks the fiber as pinned, declaring that its current continuation
// closes over a resource that forbids migration (spec §3, Fiber). The
// scheduler does not read the flag: a pinned fiber is queued and stolen
// between workers like any other, so pinning is bookkeeping only. It
// gives callers built atop this runtime (e.g. an actor that thread-locals
// a native resource) somewhere to declare the constraint.
func (f *Fiber) Pin()   { f.pinned.Store(true) }
func (f *Fiber) Unpin() { f.pinned.Store(false) }
func (f *Fiber) Pinned() bool { return f.pinned.Load() }

// Interrupt requests cancellation of the fiber. The request is
// edge-triggered: it is observed and cleared at the fiber's next
// suspension point (spec §4.B Cancellation). If the fiber is currently
// parked, its registered cancel callback fires immediately, reverting or
// failing the pending operation per spec §5 Cancellation rather than
// waiting for an unrelated event to wake it first.
func (f *Fiber) Interrupt() {
	f.interrupt.Store(true)
	f.parkMu.Lock()
	cancel := f.parkCancel
	f.parkMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// armCancel records the callback that revokes the fiber's current park
// node; disarmCancel clears it once the fiber is no longer parked (or is
// about to be resumed for any reason).
func (f *Fiber) armCancel(cancel func()) {
	f.parkMu.Lock()
	f.parkCancel = cancel
	f.parkMu.Unlock()
}

func (f *Fiber) disarmCancel() {
	f.parkMu.Lock()
	f.parkCancel = nil
	f.parkMu.Unlock()
}

// consumeInterrupt reports and clears a pending interrupt, for effect
// dispatch implementations to check at each suspension point.
func (f *Fiber) consumeInterrupt() bool {
	return f.interrupt.CompareAndSwap(true, false)
}

func (f *Fiber) addJoiner(w waiter) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		w.notify()
		return
	}
	f.joiners = append(f.joiners, w)
	f.mu.Unlock()
}

func (f *Fiber) result() (any, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.cause, f.done
}

func (f *Fiber) finishValue(v any) {
	f.mu.Lock()
	f.state = StateTerminated
	f.value = v
	f.done = true
	f.mu.Unlock()
}

func (f *Fiber) finishCause(err error) {
	f.mu.Lock()
	f.state = StateTerminated
	f.cause = err
	f.done = true
	f.mu.Unlock()
}

func (f *Fiber) notifyJoiners() {
	f.mu.Lock()
	joiners := f.joiners
	f.joiners = nil
	f.mu.Unlock()
	for _, w := range joiners {
		w.notify()
	}
}

// Spawn creates and schedules a fiber running body on sched (or the
// process default if sched is nil). body is evaluated to its first
// suspension point synchronously, on the calling goroutine — mirroring
// sess.Step's eager evaluation to the first effect — before the fiber is
// handed to the scheduler.
func Spawn[R any](sched *Scheduler, body kont.Eff[R], opts ...SpawnOption) *Fiber {
	cfg := SpawnConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	if sched == nil {
		sched = Default()
	}

	f := &Fiber{name: cfg.Name, sched: sched, state: StateNew, serial: nextFiberSerial()}

	var (
		value R
		susp  *kont.Suspension[R]
	)
	if cause := func() (cause error) {
		defer func() {
			if r := recover(); r != nil {
				cause = executionWrapper{cause: panicToError(r)}
			}
		}()
		value, susp = kont.StepExpr[R](Reify(body))
		return nil
	}(); cause != nil {
		f.finishCause(cause)
		return f
	}
	if susp == nil {
		f.finishValue(value)
		return f
	}

	cur := susp
	stepFrom := func(result R, next *kont.Suspension[R]) stepOutcome {
		if next == nil {
			f.finishValue(result)
			return outcomeDone
		}
		cur = next
		return outcomeRunnable
	}
	f.advance = func(pc *parkCtx) stepOutcome {
		op := cur.Op()
		fd, ok := op.(fiberDispatcher)
		if !ok {
			f.finishCause(fmt.Errorf("strand: unhandled effect %T", op))
			return outcomeDone
		}
		v, err := fd.dispatchFiber(f, pc)
		if errors.Is(err, errParked) {
			return outcomeParked
		}
		result, next := cur.Resume(v)
		return stepFrom(result, next)
	}
	f.resumeWith = func(v kont.Resumed) stepOutcome {
		result, next := cur.Resume(v)
		return stepFrom(result, next)
	}

	f.state = StateRunnable
	sched.submit(f)
	return f
}

func nextFiberSerial() Serial {
	return counter.Add(1)
}

// wake is the single entry point wait-queue nodes call to unpark this
// fiber (spec §4.B Resumption: "a parked fiber is made runnable by
// exactly one event"). It resumes the held suspension with v, recovers
// any panic from the fiber's own continuation, and re-submits the fiber
// to the scheduler if more work remains.
func (f *Fiber) wake(v kont.Resumed) {
	f.disarmCancel()
	outcome := f.safeResume(v)
	switch outcome {
	case outcomeRunnable:
		f.sched.requeue(f)
	case outcomeDone:
		f.notifyJoiners()
	}
}

func (f *Fiber) safeResume(v kont.Resumed) (outcome stepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			f.finishCause(executionWrapper{cause: panicToError(r)})
			outcome = outcomeDone
		}
	}()
	return f.resumeWith(v)
}
