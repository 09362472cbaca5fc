// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import "errors"

// Sentinel errors for the taxonomy described in spec §7. Compare with
// errors.Is; close-causes and propagated fiber failures wrap one of
// these (or a caller-supplied cause) and remain comparable through
// errors.Unwrap.
var (
	// ErrClosed is raised by send on a closed channel under every policy
	// except drop. A drained receive on a closed channel reports the
	// close-cause itself (nil if none), not ErrClosed.
	ErrClosed = errors.New("strand: channel closed")
	// ErrOverflow is raised by send under the throw overflow policy when
	// the bounded channel's buffer is full.
	ErrOverflow = errors.New("strand: channel overflow")
	// ErrTimeout is raised when Join, JoinAll or a val Observe exceeds its
	// deadline. Select and FiberJoin report an elapsed deadline through
	// their outcome's TimedOut field instead; channel Send and Receive take
	// no timeout.
	ErrTimeout = errors.New("strand: timeout")
	// ErrCancelled is raised when a strand is interrupted at a suspension
	// point.
	ErrCancelled = errors.New("strand: cancelled")
	// ErrIllegalState marks caller misuse, e.g. a second concurrent
	// receiver registering on a single-consumer channel.
	ErrIllegalState = errors.New("strand: illegal state")
	// ErrTopicUndelivered is raised by Topic.Send when every current
	// subscriber failed to accept the message (spec §4.E: "failures are
	// surfaced only if all subscribers fail").
	ErrTopicUndelivered = errors.New("strand: topic delivery failed for all subscribers")
)

// executionWrapper and runtimeWrapper are the two wrapper layers a
// terminated fiber's cause may accumulate before reaching a joiner
// (spec §4.H, §7 Propagated). join unwraps at most these two layers.
type executionWrapper struct{ cause error }

func (w executionWrapper) Error() string { return "strand: fiber execution failed: " + w.cause.Error() }
func (w executionWrapper) Unwrap() error { return w.cause }

type runtimeWrapper struct{ cause error }

func (w runtimeWrapper) Error() string { return "strand: runtime failure: " + w.cause.Error() }
func (w runtimeWrapper) Unwrap() error { return w.cause }

// unwrapCause strips at most two executionWrapper/runtimeWrapper layers
// from a terminated strand's cause, returning the innermost error.
func unwrapCause(err error) error {
	for i := 0; i < 2; i++ {
		switch w := err.(type) {
		case executionWrapper:
			err = w.cause
		case runtimeWrapper:
			err = w.cause
		default:
			return err
		}
	}
	return err
}
