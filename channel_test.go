// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand_test

import (
	"testing"
	"time"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/strand"
)

// runSync drives eff to completion on a fresh fiber and returns its result,
// for tests that only need one effect's outcome rather than a full
// producer/consumer interaction.
func runSync[R any](eff kont.Eff[R]) R {
	out := make(chan R, 1)
	strand.Spawn(nil, kont.Bind(eff, func(r R) kont.Eff[struct{}] {
		out <- r
		return kont.Pure(struct{}{})
	}))
	return <-out
}

func TestChannelRendezvousHandsOffDirectly(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{})
	done := make(chan struct{})

	strand.Spawn(nil, strand.SendThen(ch, 7, kont.Pure(struct{}{})))
	strand.Spawn(nil, strand.ReceiveBind(ch, func(r strand.Result[int]) kont.Eff[struct{}] {
		if r.Value != 7 {
			t.Errorf("got %d, want 7", r.Value)
		}
		close(done)
		return kont.Pure(struct{}{})
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rendezvous never completed")
	}
}

func TestChannelBoundedOverflowDisplace(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 2, Overflow: strand.OverflowDisplace})

	if !runSync(strand.TrySend(ch, 1)) {
		t.Fatal("want accepted")
	}
	if !runSync(strand.TrySend(ch, 2)) {
		t.Fatal("want accepted")
	}
	if !runSync(strand.TrySend(ch, 3)) {
		t.Fatal("displace should always accept")
	}

	tr := runSync(strand.TryReceive(ch))
	if !tr.Ok || tr.Value != 2 {
		t.Fatalf("got %+v, want oldest surviving element 2", tr)
	}
	tr = runSync(strand.TryReceive(ch))
	if !tr.Ok || tr.Value != 3 {
		t.Fatalf("got %+v, want 3", tr)
	}
}

func TestChannelOverflowThrow(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 1, Overflow: strand.OverflowThrow})
	if !runSync(strand.TrySend(ch, 1)) {
		t.Fatal("want first send accepted")
	}
	if runSync(strand.TrySend(ch, 2)) {
		t.Fatal("want second send rejected at capacity under throw policy")
	}
}

func TestChannelCloseWithCauseObservedAfterDrain(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[string](strand.ChannelConfig{Capacity: 2})
	if !runSync(strand.TrySend(ch, "a")) {
		t.Fatal("send failed")
	}
	cause := strand.ErrIllegalState
	runSync(strand.Close(ch, cause))

	// Drain the buffered element first: must not observe closed yet.
	tr := runSync(strand.TryReceive(ch))
	if !tr.Ok || tr.Value != "a" {
		t.Fatalf("got %+v, want buffered element first", tr)
	}

	r := runSync(strand.Receive(ch))
	if !r.Closed {
		t.Fatal("want closed result once drained")
	}
	if r.Cause != cause {
		t.Fatalf("got cause %v, want %v", r.Cause, cause)
	}
}

func TestChannelUnboundedNeverRejectsSend(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: -1})
	for i := 0; i < 1000; i++ {
		if !runSync(strand.TrySend(ch, i)) {
			t.Fatalf("unbounded send %d unexpectedly rejected", i)
		}
	}
}

// TestChannelTrySendOnRendezvousFailsWithoutConsumer guards invariant 1: a
// capacity-0 channel's buffer must never become observably non-empty, so a
// non-parking TrySend with no consumer parked must fail rather than buffer.
func TestChannelTrySendOnRendezvousFailsWithoutConsumer(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{})

	if runSync(strand.TrySend(ch, 1)) {
		t.Fatal("want rejected: no consumer parked on a rendezvous channel")
	}
	tr := runSync(strand.TryReceive(ch))
	if tr.Ok {
		t.Fatalf("got %+v, want nothing buffered on a rendezvous channel", tr)
	}
}

func TestChannelTrySendOnRendezvousSucceedsWithParkedConsumer(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{})
	done := make(chan int, 1)

	strand.Spawn(nil, strand.ReceiveBind(ch, func(r strand.Result[int]) kont.Eff[struct{}] {
		done <- r.Value
		return kont.Pure(struct{}{})
	}))
	time.Sleep(20 * time.Millisecond) // let the receiver park

	if !runSync(strand.TrySend(ch, 5)) {
		t.Fatal("want accepted: a consumer is parked to hand off to")
	}
	select {
	case v := <-done:
		if v != 5 {
			t.Fatalf("got %d, want 5", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("parked receive never woke after trySend")
	}
}

func TestChannelThrowOverflowOnSend(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 1, Overflow: strand.OverflowThrow})
	if err := runSync(strand.Send(ch, 1)); err != nil {
		t.Fatalf("first send: got %v, want nil", err)
	}
	err := runSync(strand.Send(ch, 2))
	if err != strand.ErrOverflow {
		t.Fatalf("got %v, want ErrOverflow", err)
	}
}
