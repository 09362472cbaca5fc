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

func TestTickerConsumersAreIndependent(t *testing.T) {
	t.Parallel()
	ch := strand.NewTickerChannel[int](4)
	c1 := strand.NewTickerConsumer(ch)
	ch.Send(1)
	c2 := strand.NewTickerConsumer(ch)
	ch.Send(2)

	r1 := runSync(strand.TickerReceive(c1))
	if r1.Value != 1 {
		t.Fatalf("c1 got %d, want 1 (created before both sends)", r1.Value)
	}
	r1 = runSync(strand.TickerReceive(c1))
	if r1.Value != 2 {
		t.Fatalf("c1 got %d, want 2", r1.Value)
	}

	r2 := runSync(strand.TickerReceive(c2))
	if r2.Value != 2 {
		t.Fatalf("c2 got %d, want 2 (created after the first send)", r2.Value)
	}
}

func TestTickerLapJumpsCursorForward(t *testing.T) {
	t.Parallel()
	ch := strand.NewTickerChannel[int](2)
	c := strand.NewTickerConsumer(ch)
	ch.Send(1)
	ch.Send(2)
	ch.Send(3) // displaces 1; c's cursor is still logically at 1

	r := runSync(strand.TickerReceive(c))
	if r.Value != 2 {
		t.Fatalf("got %d, want 2 (oldest still buffered after lapping)", r.Value)
	}
}

func TestTickerReceiveParksUntilSend(t *testing.T) {
	t.Parallel()
	ch := strand.NewTickerChannel[int](4)
	c := strand.NewTickerConsumer(ch)

	done := make(chan int, 1)
	strand.Spawn(nil, kont.Bind(strand.TickerReceive(c), func(r strand.TickerResult[int]) kont.Eff[struct{}] {
		done <- r.Value
		return kont.Pure(struct{}{})
	}))

	select {
	case <-done:
		t.Fatal("receive completed before any send")
	case <-time.After(30 * time.Millisecond):
	}

	ch.Send(42)
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receive never woke after send")
	}
}

// TestLoopDrainsTickerUntilCount drives a TickerReceive loop through
// strand.Loop, the recursive-fiber-body combinator: each iteration
// receives one more element and recurses (Left) until three have been
// collected, at which point it finishes (Right).
func TestLoopDrainsTickerUntilCount(t *testing.T) {
	t.Parallel()
	ch := strand.NewTickerChannel[int](4)
	c := strand.NewTickerConsumer(ch)
	for i := 1; i <= 3; i++ {
		ch.Send(i)
	}

	body := strand.Loop([]int(nil), func(collected []int) kont.Eff[kont.Either[[]int, []int]] {
		return kont.Bind(strand.TickerReceive(c), func(r strand.TickerResult[int]) kont.Eff[kont.Either[[]int, []int]] {
			next := append(append([]int(nil), collected...), r.Value)
			if len(next) >= 3 {
				return kont.Pure(kont.Right[[]int, []int](next))
			}
			return kont.Pure(kont.Left[[]int, []int](next))
		})
	})

	got := runSync(body)
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", got)
	}
}
