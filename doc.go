// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package strand provides a user-space concurrency runtime: cooperatively
// scheduled fibers, typed channels with configurable overflow policies, and
// an atomic multi-way select, all expressed as algebraic effects on
// [code.hybscloud.com/kont].
//
// Fiber bodies are composed of typed operations dispatched on whatever
// channel, selector, val, or timer the operation targets.
//
// # Architecture
//
//   - Execution: a fiber's body is a [code.hybscloud.com/kont.Eff] or
//     [code.hybscloud.com/kont.Expr] computation; [Spawn] reifies it and
//     drives it one suspension at a time on a [Scheduler]'s worker pool,
//     the same Step/Resume discipline [code.hybscloud.com/sess] uses to
//     drive a session protocol, generalized to many concurrent fibers
//     instead of one session pair.
//   - Scheduling: a fixed pool of workers, each owning a local
//     work-stealing deque backed by [code.hybscloud.com/lfq]'s SPMC queue.
//   - Channels: [Channel] is the generic typed FIFO conduit; [OverflowPolicy]
//     selects send behavior when a bounded channel is full.
//   - Non-blocking: [TrySend]/[TryReceive] never park; [Send]/[Receive] do.
//
// # API Topologies
//
//   - Strands: [Go], [Current], [IsAlive], [Sleep], [Join], [JoinAll].
//   - Fibers: [Spawn], [Fiber.Interrupt], [Fiber.Pin].
//   - Channels: [NewChannel], [Send], [TrySend], [Receive], [TryReceive], [Close].
//   - Primitive channels: [NewInt32Channel], [NewInt64Channel], [NewFloat32Channel], [NewFloat64Channel].
//   - Ticker: [NewTickerChannel], [NewTickerConsumer], [TickerReceive].
//   - Topic: [NewTopic], [Topic.Subscribe], [Topic.Unsubscribe], [Topic.Send].
//   - Select: [Recv], [SendTo], [Select].
//   - Dataflow val: [NewVal], [NewDeferredVal], [Val.Deliver], [Observe].
//   - Cont-world fusion: [SendThen], [ReceiveBind], [ObserveBind], [CloseDone].
//   - Bridge: [Reify] and [Reflect] between Cont-world and Expr-world.
//
// # Example
//
//	ch := strand.NewChannel[string](strand.ChannelConfig{})
//	strand.Spawn(nil, strand.SendThen(ch, "x", kont.Pure(struct{}{})))
//	strand.Spawn(nil, strand.ReceiveBind(ch, func(r strand.Result[string]) kont.Eff[struct{}] {
//		return kont.Pure(struct{}{})
//	}))
package strand
