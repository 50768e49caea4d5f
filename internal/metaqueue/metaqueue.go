// Package metaqueue implements the five-priority meta-queue scheduler
// that sits between rib mutation and FIB synchronization: every changed
// route-node is enqueued once per relevant priority band and drained in
// strict 0-to-4 order, running best-route selection and a FIB-update
// hook exactly once per drain pass. See SPEC_FULL.md §4.5.
package metaqueue

import (
	"container/list"
	"sync"

	"go.uber.org/zap"

	"github.com/route-beacon/ribd/internal/rib"
)

// NumPriorities is the number of strict-priority sub-queues.
const NumPriorities = 5

// Queue is the process-wide scheduler. It holds no locks on the drain
// path in the single-threaded case; Concurrent enables a coarse mutex
// for callers that enqueue from more than one goroutine (SPEC_FULL.md
// §5).
type Queue struct {
	log        *zap.Logger
	concurrent bool

	mu    sync.Mutex
	subqs [NumPriorities]list.List
}

// New constructs an empty meta-queue. concurrent should be true whenever
// Enqueue is called from goroutines other than the one driving Drain.
func New(log *zap.Logger, concurrent bool) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{log: log, concurrent: concurrent}
}

func (q *Queue) lock() {
	if q.concurrent {
		q.mu.Lock()
	}
}

func (q *Queue) unlock() {
	if q.concurrent {
		q.mu.Unlock()
	}
}

// Enqueue schedules node onto sub-queue subq, if it is not already
// pending there. Idempotent via node.Queued, so a node that changes
// twice before the queue drains is processed only once per band
// (SPEC_FULL.md §4.5).
func (q *Queue) Enqueue(node *rib.Node, subq int) {
	q.lock()
	defer q.unlock()

	if node.Queued[subq] {
		return
	}
	node.Queued[subq] = true
	q.subqs[subq].PushBack(node)
}

// Pending reports whether any sub-queue has work.
func (q *Queue) Pending() bool {
	q.lock()
	defer q.unlock()
	for i := range q.subqs {
		if q.subqs[i].Len() > 0 {
			return true
		}
	}
	return false
}

// Len returns the total number of nodes pending across all sub-queues.
func (q *Queue) Len() int {
	q.lock()
	defer q.unlock()
	n := 0
	for i := range q.subqs {
		n += q.subqs[i].Len()
	}
	return n
}

// FIBHook is called once per drained node, after selection, with the
// node's newly selected best entry (nil if none remains live).
type FIBHook func(node *rib.Node, best *rib.Entry)

// Drain processes up to budget nodes in strict priority order (band 0
// drains completely before band 1 is touched, and so on), running
// selection and the FIB hook for each, then reclaiming any entries left
// Removed. It returns whether more work remains after the budget was
// exhausted. A panic from hook or from rib internals for a single node
// is recovered and logged so one bad entry cannot wedge the daemon
// (SPEC_FULL.md §7).
func (q *Queue) Drain(budget int, hook FIBHook) (more bool) {
	processed := 0
	for subq := 0; subq < NumPriorities; subq++ {
		for processed < budget {
			node, ok := q.pop(subq)
			if !ok {
				break
			}
			q.processOne(node, subq, hook)
			processed++
		}
		if processed >= budget && q.subqLen(subq) > 0 {
			return true
		}
	}
	return q.Pending()
}

func (q *Queue) pop(subq int) (*rib.Node, bool) {
	q.lock()
	defer q.unlock()
	front := q.subqs[subq].Front()
	if front == nil {
		return nil, false
	}
	q.subqs[subq].Remove(front)
	return front.Value.(*rib.Node), true
}

func (q *Queue) subqLen(subq int) int {
	q.lock()
	defer q.unlock()
	return q.subqs[subq].Len()
}

func (q *Queue) processOne(node *rib.Node, subq int, hook FIBHook) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("metaqueue: recovered panic draining node",
				zap.Any("panic", r),
				zap.Stringer("prefix", node.Prefix),
				zap.Int("subq", subq),
			)
		}
		node.Queued[subq] = false
	}()

	best := rib.SelectBest(node)
	if hook != nil {
		hook(node, best)
	}
	rib.SweepRoute(node)
}
