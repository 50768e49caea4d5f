package rib

import (
	"sync/atomic"
	"time"

	"github.com/route-beacon/ribd/internal/community"
	"github.com/route-beacon/ribd/internal/nexthop"
	"github.com/route-beacon/ribd/internal/object"
)

// EntryFlag carries protocol-level flags on a rib entry (distinct from
// the QUEUED/REMOVED status bits and from nexthop.Flag).
type EntryFlag uint8

const (
	EntryFlagBlackhole EntryFlag = 1 << iota
	EntryFlagReject
)

// Counters tracks nexthop accounting for a rib entry.
type Counters struct {
	Total, Active, FIB int
}

var seqCounter uint64

func nextSeq() uint64 { return atomic.AddUint64(&seqCounter, 1) }

// Entry is one candidate route from a single protocol origin at a given
// prefix. SPEC_FULL.md §3 ("RIB entry").
type Entry struct {
	Type     Type
	VRFID    uint32
	Metric   uint32
	Distance uint8
	Flags    EntryFlag

	Removed  bool
	Selected bool

	Uptime time.Time
	seq    uint64 // insertion order, used as the final selection tie-break

	Community *object.Object[community.Community] // optional shared attribute

	Nexthops nexthop.List
	Counters Counters

	next, prev *Entry
}

// NewEntry constructs a rib entry with its insertion sequence and uptime
// stamped at construction time.
func NewEntry(t Type, vrfID uint32, metric uint32, distance uint8) *Entry {
	return &Entry{
		Type:     t,
		VRFID:    vrfID,
		Metric:   metric,
		Distance: distance,
		Uptime:   time.Now(),
		seq:      nextSeq(),
	}
}

// Release drops the entry's shared community reference, if any. Called
// when an entry is freed by the meta-queue after REMOVED processing.
func (e *Entry) Release() {
	if e.Community != nil {
		object.Deref(community.Ctx, e.Community)
		e.Community = nil
	}
}

// entryList is the doubly linked list of candidate rib entries a route
// node owns (SPEC_FULL.md §3: "a route-node owns its list of rib
// entries").
type entryList struct {
	head, tail *Entry
	count      int
}

func (l *entryList) add(e *Entry) {
	e.prev = l.tail
	e.next = nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.count++
}

func (l *entryList) delete(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev = nil, nil
	l.count--
}

func (l *entryList) each(fn func(*Entry)) {
	for e := l.head; e != nil; {
		next := e.next
		fn(e)
		e = next
	}
}
