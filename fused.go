// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"code.hybscloud.com/kont"
)

// SendThen sends v on ch and then continues with next, short-circuiting to
// next's zero value if the send failed. Fuses Perform(sendOp) + Bind.
func SendThen[T, B any](ch *Channel[T], v T, next kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(Send(ch, v), func(err error) kont.Eff[B] {
		if err != nil {
			var zero B
			return kont.Pure(zero)
		}
		return next
	})
}

// ReceiveBind receives from ch and passes the result to f.
// Fuses Perform(recvOp) + Bind.
func ReceiveBind[T, B any](ch *Channel[T], f func(Result[T]) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(Receive(ch), f)
}

// ObserveBind observes val and passes the result to f.
// Fuses Perform(valObserveOp) + Bind.
func ObserveBind[T, B any](val *Val[T], f func(Result[T]) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(Observe(val), f)
}

// CloseDone closes ch and then returns a. Fuses Perform(closeOp) + Then +
// Pure.
func CloseDone[T, A any](ch *Channel[T], a A) kont.Eff[A] {
	return kont.Then(Close(ch), kont.Pure(a))
}
