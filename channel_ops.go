// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"code.hybscloud.com/kont"
)

// sendOp is the effect operation for Send. Perform(sendOp[T]{...}) parks
// the calling fiber until ch accepts value, per the channel's overflow
// policy (spec §4.C).
type sendOp[T any] struct {
	kont.Phantom[error]
	ch    *Channel[T]
	value T
}

func (op sendOp[T]) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return ErrCancelled, nil
	}
	err := op.ch.send(op.value, pc)
	if err == errParked {
		return nil, errParked
	}
	return err, nil
}

// Send parks the calling fiber until ch accepts v (spec §4.C send). The
// returned error is nil on success, ErrClosed if ch is closed under a
// policy that surfaces it, ErrOverflow under the throw policy on a full
// bounded channel, or ErrCancelled if the fiber was interrupted.
func Send[T any](ch *Channel[T], v T) kont.Eff[error] {
	return kont.Perform(sendOp[T]{ch: ch, value: v})
}

// recvOp is the effect operation for Receive.
type recvOp[T any] struct {
	kont.Phantom[Result[T]]
	ch *Channel[T]
}

func (op recvOp[T]) dispatchFiber(f *Fiber, pc *parkCtx) (kont.Resumed, error) {
	if f.consumeInterrupt() {
		return Result[T]{Cause: ErrCancelled}, nil
	}
	v, err := op.ch.receive(pc)
	if err == errParked {
		return nil, errParked
	}
	if err != nil {
		return Result[T]{Cause: err}, nil
	}
	return v, nil
}

// Receive parks the calling fiber until ch yields a value or its terminal
// signal (spec §4.C receive). Result.Cause is ErrCancelled if the fiber
// was interrupted while parked, ErrIllegalState if a second receiver tries
// to park on a single-consumer channel, or the channel's close-cause once
// drained.
func Receive[T any](ch *Channel[T]) kont.Eff[Result[T]] {
	return kont.Perform(recvOp[T]{ch: ch})
}

// trySendOp is the effect operation for TrySend; never parks.
type trySendOp[T any] struct {
	kont.Phantom[bool]
	ch    *Channel[T]
	value T
}

func (op trySendOp[T]) dispatchFiber(f *Fiber, _ *parkCtx) (kont.Resumed, error) {
	return op.ch.trySend(op.value), nil
}

// TrySend attempts to send v without parking (spec §4.C trySend).
func TrySend[T any](ch *Channel[T], v T) kont.Eff[bool] {
	return kont.Perform(trySendOp[T]{ch: ch, value: v})
}

// tryRecvOp is the effect operation for TryReceive; never parks.
type tryRecvOp[T any] struct {
	kont.Phantom[TryResult[T]]
	ch *Channel[T]
}

func (op tryRecvOp[T]) dispatchFiber(f *Fiber, _ *parkCtx) (kont.Resumed, error) {
	return op.ch.tryReceive(), nil
}

// TryReceive attempts to receive without parking (spec §4.C tryReceive).
func TryReceive[T any](ch *Channel[T]) kont.Eff[TryResult[T]] {
	return kont.Perform(tryRecvOp[T]{ch: ch})
}

// closeOp is the effect operation for Close; never parks.
type closeOp[T any] struct {
	kont.Phantom[struct{}]
	ch    *Channel[T]
	cause error
}

func (op closeOp[T]) dispatchFiber(f *Fiber, _ *parkCtx) (kont.Resumed, error) {
	op.ch.close(op.cause)
	return struct{}{}, nil
}

// Close marks ch closed, with an optional cause observed by subsequent
// receives once the buffer drains (spec §4.C close).
func Close[T any](ch *Channel[T], cause ...error) kont.Eff[struct{}] {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return kont.Perform(closeOp[T]{ch: ch, cause: c})
}
