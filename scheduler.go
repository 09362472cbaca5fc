// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"container/heap"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/lfq"
	"golang.org/x/sync/singleflight"
)

// Scheduler runs a fixed pool of worker goroutines, each owning a local
// work-stealing deque of runnable fibers. A Scheduler multiplexes
// arbitrarily many fibers across N real OS threads, parking and
// unparking continuations at suspension points; a worker only ever
// blocks the underlying OS thread during its own idle poll of the local
// deque and its peers' (see worker.loop), backing off adaptively with
// iox.Backoff rather than spinning a goroutine hot when there is
// nothing runnable anywhere.
type Scheduler struct {
	workers []*worker
	serial  atomix.Uint32
	timers  *timerWheel

	closeOnce sync.Once
	closed    chan struct{}
}

// deque is the per-worker runnable queue. It is backed by lfq's SPMC
// builder: the owning worker is the single producer (pushing fibers it
// just parked-and-resumed, or newly spawned ones), idle peers are the
// multiple consumers that steal from it when their own deque runs dry —
// precisely lfq's documented "Work Distribution (SPMC)" pattern.
type deque struct {
	q lfq.Queue[*Fiber]
}

func newDeque(capacity int) *deque {
	b := lfq.New(capacity).SingleProducer()
	return &deque{q: lfq.Build[*Fiber](b)}
}

func (d *deque) push(f *Fiber) bool {
	return d.q.Enqueue(&f) == nil
}

func (d *deque) pop() (*Fiber, bool) {
	f, err := d.q.Dequeue()
	if err != nil {
		return nil, false
	}
	return f, true
}

type worker struct {
	id    int
	sched *Scheduler
	local *deque
}

// New creates a Scheduler with n worker goroutines. n<=0 selects
// runtime.NumCPU(), matching spec §4.B's default.
func New(n int) *Scheduler {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	s := &Scheduler{closed: make(chan struct{})}
	s.timers = newTimerWheel(s)
	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = &worker{id: i, sched: s, local: newDeque(1024)}
	}
	for _, w := range s.workers {
		go w.loop()
	}
	return s
}

var (
	defaultSched     *Scheduler
	defaultSchedOnce sync.Once
	defaultGroup     singleflight.Group
)

// Default returns the process-wide default scheduler, initializing it
// lazily on first use. The singleflight.Group only dedupes concurrent
// initializers racing before the sync.Once has fired; after that it is
// never consulted again.
func Default() *Scheduler {
	defaultSchedOnce.Do(func() {
		_, _, _ = defaultGroup.Do("default", func() (any, error) {
			defaultSched = New(0)
			return nil, nil
		})
	})
	return defaultSched
}

// submit enqueues a fiber onto a worker's deque chosen round-robin by the
// scheduler's submit counter. It does not measure worker load and does
// not prefer the calling goroutine's worker.
func (s *Scheduler) submit(f *Fiber) {
	w := s.workers[int(s.serial.Add(1))%len(s.workers)]
	if w.local.push(f) {
		return
	}
	// local deque momentarily full under extreme fan-out: spill to any
	// worker that has room.
	for _, w2 := range s.workers {
		if w2.local.push(f) {
			return
		}
	}
	// all deques full: block briefly and retry on the chosen worker —
	// exceedingly rare given deque capacity 1024 per worker.
	for !w.local.push(f) {
		runtime.Gosched()
	}
}

// requeue re-enqueues a fiber that was just unparked (its resumeWith was
// already invoked by the caller) through submit's round-robin choice. It
// does not track which worker the fiber last ran on, so a woken fiber is
// not steered back to that worker.
func (s *Scheduler) requeue(f *Fiber) {
	s.submit(f)
}

func (w *worker) loop() {
	var bo iox.Backoff
	for {
		f, ok := w.local.pop()
		if !ok {
			f, ok = w.steal()
		}
		if !ok {
			bo.Wait()
			continue
		}
		bo.Reset()
		w.run(f)
	}
}

// steal scans peer deques' tails for runnable fibers (spec §4.B:
// "workers steal from peers when empty... steal FIFO from peers' tails").
// lfq's SPMC Dequeue already implements the FIFO-from-tail contract for
// concurrent consumers; we simply round-robin which peer to poll.
func (w *worker) steal() (*Fiber, bool) {
	n := len(w.sched.workers)
	for i := 1; i < n; i++ {
		peer := w.sched.workers[(w.id+i)%n]
		if f, ok := peer.local.pop(); ok {
			return f, true
		}
	}
	return nil, false
}

// run drives a single runnable fiber for exactly one suspension step
// (dispatch its pending effect; if it completes immediately, advance to
// the next effect's suspension and push the fiber back onto this
// worker's own deque; the deque is FIFO, so the fiber runs again after
// the fibers already queued there). If
// the effect parks, control simply returns to loop without re-enqueuing:
// the fiber will be reinserted by whichever peer completes its wait.
func (w *worker) run(f *Fiber) {
	pc := &parkCtx{wake: func(v kont.Resumed) { f.wake(v) }, armCancel: f.armCancel}
	outcome := w.safeAdvance(f, pc)
	switch outcome {
	case outcomeRunnable:
		w.local.push(f)
	case outcomeDone:
		f.notifyJoiners()
	case outcomeParked:
		// nothing to do: f is now referenced only by the wait-queue
		// node(s) it registered during dispatch.
	}
}

// safeAdvance recovers a panic inside a fiber's continuation and
// terminates the fiber with that panic as its cause, analogous to Go's
// own recovery of a panicking goroutine (spec §4.B Failure: "Uncaught
// failures in a fiber terminate it with a cause; joiners observe this
// cause").
func (w *worker) safeAdvance(f *Fiber, pc *parkCtx) (outcome stepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			f.finishCause(executionWrapper{cause: panicToError(r)})
			outcome = outcomeDone
		}
	}()
	return f.advance(pc)
}

// --- timer wheel -----------------------------------------------------

// timerEntry is one pending deadline in the wheel's min-heap.
type timerEntry struct {
	deadline time.Time
	fire     func()
	index    int
	cancel   bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *timerHeap) Push(x any)         { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timerWheel is a single-goroutine min-heap timer that backs every
// deadline-bearing effect in this package (select timeouts, val observe
// timeouts, FiberSleep, FiberJoin timeouts); the blocking Join uses its
// own time.Timer instead. A single goroutine draining a container/heap keeps wake-ups
// ordered without a per-timer goroutine for each scheduled deadline.
type timerWheel struct {
	sched *Scheduler
	mu    sync.Mutex
	heap  timerHeap
	wake  chan struct{}
}

func newTimerWheel(s *Scheduler) *timerWheel {
	tw := &timerWheel{sched: s, wake: make(chan struct{}, 1)}
	go tw.run()
	return tw
}

type timerHandle struct{ entry *timerEntry }

func (tw *timerWheel) schedule(d time.Duration, fire func()) *timerHandle {
	e := &timerEntry{deadline: time.Now().Add(d), fire: fire}
	tw.mu.Lock()
	heap.Push(&tw.heap, e)
	tw.mu.Unlock()
	select {
	case tw.wake <- struct{}{}:
	default:
	}
	return &timerHandle{entry: e}
}

func (tw *timerWheel) cancelTimer(h *timerHandle) {
	tw.mu.Lock()
	h.entry.cancel = true
	tw.mu.Unlock()
}

func (tw *timerWheel) run() {
	for {
		tw.mu.Lock()
		var wait time.Duration
		if len(tw.heap) == 0 {
			tw.mu.Unlock()
			<-tw.wake
			continue
		}
		next := tw.heap[0]
		wait = time.Until(next.deadline)
		tw.mu.Unlock()
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-tw.wake:
			}
			continue
		}
		tw.mu.Lock()
		if len(tw.heap) == 0 {
			tw.mu.Unlock()
			continue
		}
		e := heap.Pop(&tw.heap).(*timerEntry)
		tw.mu.Unlock()
		if !e.cancel {
			e.fire()
		}
	}
}
