// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"math/rand/v2"
	"sync"
	"time"

	"code.hybscloud.com/kont"
)

// selectToken is the shared CAS gate spec §4.F calls for: "each node's CAS
// on the token claims the selector exclusively." Exactly one of a matching
// channel, the timeout timer, or a cancellation may win it; every
// SelectCase's wait-node claim and the timer/cancel callbacks all delegate
// to the same tryClaim, so whichever fires first is the only one whose
// wake ever reaches the waiting fiber. Because nothing mutates channel
// state before claiming the token, a descriptor that loses the race never
// had a partial effect to revert in the first place — spec §4.F's revert
// requirement is satisfied by construction rather than by an explicit undo
// step.
type selectToken struct {
	claimed bool
}

// SelectSendResult is the value a SendCase's wait-node is woken with; it
// only ever reports whether the target channel closed out from under the
// selector before a consumer could claim it.
type SelectSendResult struct {
	Closed bool
}

// SelectCase is one descriptor in a Select call: either a receive on a
// channel or a (channel, value) send (spec §4.F Inputs).
type SelectCase interface {
	// tryImmediate attempts the operation non-blockingly, mirroring
	// TrySend/TryReceive. Used only during the registration/immediate
	// resolution passes (spec §4.F steps 1-2).
	tryImmediate() (any, bool)
	// register queues a wait-node carrying tok on the case's channel
	// (spec §4.F step 3); onWin is invoked with this case's index and
	// resolved value if its node's claim wins the token.
	register(tok *selectToken, idx int, onWin func(idx int, value any))
}

func recvValue[T any](v kont.Resumed) any {
	if res, ok := v.(Result[T]); ok {
		return res
	}
	return Result[T]{}
}

type recvCase[T any] struct {
	ch *Channel[T]
}

// Recv builds a receive descriptor for Select.
func Recv[T any](ch *Channel[T]) SelectCase { return recvCase[T]{ch: ch} }

func (c recvCase[T]) tryImmediate() (any, bool) {
	tr := c.ch.tryReceive()
	if tr.Ok {
		return Result[T]{Value: tr.Value}, true
	}
	return nil, false
}

func (c recvCase[T]) register(tok *selectToken, idx int, onWin func(int, any)) {
	node := &waitNode[T]{}
	node.claim = tok.tryClaim
	node.wake = func(v kont.Resumed) { onWin(idx, recvValue[T](v)) }
	c.ch.registerRecvWaiter(node)
}

type sendCase[T any] struct {
	ch    *Channel[T]
	value T
}

// SendTo builds a send descriptor for Select.
func SendTo[T any](ch *Channel[T], v T) SelectCase { return sendCase[T]{ch: ch, value: v} }

func (c sendCase[T]) tryImmediate() (any, bool) {
	if c.ch.trySend(c.value) {
		return SelectSendResult{}, true
	}
	return nil, false
}

func (c sendCase[T]) register(tok *selectToken, idx int, onWin func(int, any)) {
	node := &waitNode[T]{value: c.value}
	node.claim = tok.tryClaim
	node.wake = func(v kont.Resumed) {
		if sr, ok := v.(SelectSendResult); ok {
			onWin(idx, sr)
			return
		}
		if err, ok := v.(error); ok && err == ErrClosed {
			onWin(idx, SelectSendResult{Closed: true})
			return
		}
		onWin(idx, SelectSendResult{})
	}
	c.ch.registerSendWaiter(node)
}

// tryClaim is the token's CAS (spec §4.F step 3/4), backed by a shared
// mutex rather than a lock-free CAS: atomix's only counter primitive is an
// add, with no compare-and-swap this bool gate could be built on, and a
// token is contended only by the small fixed set of wait-nodes and
// callbacks a single Select call creates.
func (t *selectToken) tryClaim() bool {
	selectTokenMu.Lock()
	defer selectTokenMu.Unlock()
	if t.claimed {
		return false
	}
	t.claimed = true
	return true
}

// selectTokenMu serializes tryClaim across all tokens. A token is only
// ever contended by the small, fixed set of wait-nodes and callbacks one
// Select call creates, so a single shared mutex is simpler than a
// per-token lock and never a contention source in practice.
var selectTokenMu sync.Mutex

// SelectOutcome is the resolved outcome of a Select call (spec §3 "Select
// Action"): which descriptor won, or that none did.
type SelectOutcome struct {
	Index     int
	Value     any
	TimedOut  bool
	Cancelled bool
}

type selectOp struct {
	kont.Phantom[SelectOutcome]
	cases      []SelectCase
	priority   bool
	timeout    time.Duration
	hasTimeout bool
}

func (op selectOp) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return SelectOutcome{Cancelled: true}, nil
	}

	order := make([]int, len(op.cases))
	for i := range order {
		order[i] = i
	}
	if !op.priority {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	for _, idx := range order {
		if v, ok := op.cases[idx].tryImmediate(); ok {
			return SelectOutcome{Index: idx, Value: v}, nil
		}
	}

	tok := &selectToken{}
	onWin := func(idx int, value any) {
		pc.wake(SelectOutcome{Index: idx, Value: value})
	}
	for idx, c := range op.cases {
		c.register(tok, idx, onWin)
	}

	if op.hasTimeout {
		f.sched.timers.schedule(op.timeout, func() {
			if tok.tryClaim() {
				pc.wake(SelectOutcome{TimedOut: true})
			}
		})
	}
	pc.armCancel(func() {
		if tok.tryClaim() {
			pc.wake(SelectOutcome{Cancelled: true})
		}
	})
	return nil, errParked
}

// Select implements spec §4.F: one of cases is performed atomically and
// its outcome returned, or none if the timeout (0 disables it) or a
// cancellation wins first. priority=true always picks the first ready
// descriptor in list order; priority=false picks uniformly among the
// ready ones.
func Select(priority bool, timeout time.Duration, cases ...SelectCase) kont.Eff[SelectOutcome] {
	return kont.Perform(selectOp{cases: cases, priority: priority, timeout: timeout, hasTimeout: timeout > 0})
}
