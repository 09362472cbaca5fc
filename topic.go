// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"encoding/binary"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Topic fans a single send out to a current set of subscribed channels
// (spec §3/§4.E). The subscriber set is copy-on-write (spec §5: "Topic
// subscriber sets are copy-on-write to allow send iteration without
// holding a lock") backed by an immutable radix tree: Subscribe/Unsubscribe
// swap in a new tree under a short-held mutex, while Send iterates a
// snapshot tree reference entirely lock-free.
type Topic[T any] struct {
	mu     sync.Mutex
	tree   *iradix.Tree
	nextID uint64
}

// Subscription identifies one subscriber for later Unsubscribe.
type Subscription struct {
	id uint64
}

// NewTopic constructs an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{tree: iradix.New()}
}

func subscriberKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// Subscribe adds ch to the topic's subscriber set, returning a handle for
// Unsubscribe. Send offers each message to ch without parking: a full ch
// under the displace policy still accepts it, while a full ch under any
// other policy, block included, does not receive it (see Send).
func (t *Topic[T]) Subscribe(ch *Channel[T]) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.tree, _, _ = t.tree.Insert(subscriberKey(id), ch)
	return &Subscription{id: id}
}

// Unsubscribe removes sub from the topic. A send already in flight against
// the prior snapshot still delivers to the channel being removed (spec
// §3 Topic invariant: "every send is delivered to the snapshot of
// subscribers observed at send time").
func (t *Topic[T]) Unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree, _, _ = t.tree.Delete(subscriberKey(sub.id))
}

// Send delivers v to every subscriber in the snapshot observed at the
// start of this call (spec §4.E send). Delivery never parks the caller:
// each subscriber's channel is offered the message via its own trySend, so
// a subscriber under OverflowBlock that is currently full simply does not
// receive this message rather than stalling the other subscribers. A
// send failure on any one subscriber does not prevent delivery to the
// rest; ErrTopicUndelivered is returned only if every subscriber failed.
func (t *Topic[T]) Send(v T) error {
	t.mu.Lock()
	snapshot := t.tree
	t.mu.Unlock()

	if snapshot.Len() == 0 {
		return nil
	}
	delivered := false
	it := snapshot.Root().Iterator()
	for {
		_, raw, ok := it.Next()
		if !ok {
			break
		}
		ch := raw.(*Channel[T])
		if ch.trySend(v) {
			delivered = true
		}
	}
	if !delivered {
		return ErrTopicUndelivered
	}
	return nil
}
