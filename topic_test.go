// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand_test

import (
	"testing"

	"code.hybscloud.com/strand"
)

func TestTopicFanOutToAllSubscribers(t *testing.T) {
	t.Parallel()
	topic := strand.NewTopic[string]()
	a := strand.NewChannel[string](strand.ChannelConfig{Capacity: 1})
	b := strand.NewChannel[string](strand.ChannelConfig{Capacity: 1})
	topic.Subscribe(a)
	topic.Subscribe(b)

	if err := topic.Send("hello"); err != nil {
		t.Fatalf("got %v, want nil", err)
	}

	for name, ch := range map[string]*strand.Channel[string]{"a": a, "b": b} {
		tr := runSync(strand.TryReceive(ch))
		if !tr.Ok || tr.Value != "hello" {
			t.Fatalf("subscriber %s got %+v, want \"hello\"", name, tr)
		}
	}
}

func TestTopicUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	topic := strand.NewTopic[int]()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 1})
	sub := topic.Subscribe(ch)
	topic.Unsubscribe(sub)

	if err := topic.Send(1); err != nil {
		t.Fatalf("got %v, want nil with no subscribers left", err)
	}
	tr := runSync(strand.TryReceive(ch))
	if tr.Ok {
		t.Fatal("unsubscribed channel should not have received anything")
	}
}

func TestTopicSendWithNoSubscribersSucceeds(t *testing.T) {
	t.Parallel()
	topic := strand.NewTopic[int]()
	if err := topic.Send(1); err != nil {
		t.Fatalf("got %v, want nil for a topic with no subscribers", err)
	}
}

func TestTopicUndeliveredWhenEverySubscriberFull(t *testing.T) {
	t.Parallel()
	topic := strand.NewTopic[int]()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 1, Overflow: strand.OverflowThrow})
	topic.Subscribe(ch)
	runSync(strand.TrySend(ch, 0)) // fill it so trySend inside Send fails

	if err := topic.Send(1); err != strand.ErrTopicUndelivered {
		t.Fatalf("got %v, want ErrTopicUndelivered", err)
	}
}
