// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand_test

import (
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/strand"
)

func TestValDeliverBeforeObserve(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[int]()
	v.Deliver(5)
	r := runSync(strand.Observe(v))
	if r.Value != 5 {
		t.Fatalf("got %d, want 5", r.Value)
	}
}

func TestValObserveBeforeDeliverParksThenWakes(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[string]()
	done := make(chan string, 1)
	strand.Spawn(nil, kont.Bind(strand.Observe(v), func(r strand.Result[string]) kont.Eff[struct{}] {
		done <- r.Value
		return kont.Pure(struct{}{})
	}))

	select {
	case <-done:
		t.Fatal("observe resolved before deliver")
	case <-time.After(30 * time.Millisecond):
	}

	v.Deliver("ready")
	select {
	case got := <-done:
		if got != "ready" {
			t.Fatalf("got %q, want \"ready\"", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("observe never woke after deliver")
	}
}

func TestValSecondDeliverIsNoOp(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[int]()
	v.Deliver(1)
	v.Deliver(2)
	r := runSync(strand.Observe(v))
	if r.Value != 1 {
		t.Fatalf("got %d, want first-delivered value 1", r.Value)
	}
}

func TestValDeferredComputationRunsOnceOnFirstObserve(t *testing.T) {
	t.Parallel()
	var runs int32
	v := strand.NewDeferredVal(nil, func() kont.Eff[int] {
		runs++
		return kont.Pure(99)
	})

	r1 := runSync(strand.Observe(v))
	r2 := runSync(strand.Observe(v))
	if r1.Value != 99 || r2.Value != 99 {
		t.Fatalf("got %+v / %+v, want 99 both times", r1, r2)
	}
	if runs != 1 {
		t.Fatalf("thunk ran %d times, want exactly once", runs)
	}
}

func TestValObserveTimeoutFiresWhenUndelivered(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[int]()
	r := runSync(strand.Observe(v, 20*time.Millisecond))
	if r.Cause != strand.ErrTimeout {
		t.Fatalf("got cause %v, want ErrTimeout", r.Cause)
	}
}

func TestValObserveTimeoutDoesNotFireAfterDeliver(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[int]()
	v.Deliver(7)
	r := runSync(strand.Observe(v, 200*time.Millisecond))
	if r.Value != 7 || r.Cause != nil {
		t.Fatalf("got %+v, want value 7 with no cause", r)
	}
}

func TestValDeliverCausePropagatesToObservers(t *testing.T) {
	t.Parallel()
	v := strand.NewVal[int]()
	cause := errors.New("upstream failed")
	v.DeliverCause(cause)
	r := runSync(strand.Observe(v))
	if r.Cause != cause {
		t.Fatalf("got cause %v, want %v", r.Cause, cause)
	}
}
