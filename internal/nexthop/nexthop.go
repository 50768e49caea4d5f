// Package nexthop implements the nexthop list primitives: a doubly
// linked list of nexthop records with gateway prefix, source prefix,
// interface index, flags, and an optional recursive resolution
// descriptor. See SPEC_FULL.md §4.3.
package nexthop

import "net/netip"

// Flag is one bit of a nexthop's flag set.
type Flag uint8

const (
	FlagActive Flag = 1 << iota
	FlagFIB
	FlagRecursive
	FlagBlackhole
)

// Has reports whether f contains all bits of want.
func (f Flag) Has(want Flag) bool { return f&want == want }

// IfindexInternal is the sentinel used for an interface-internal index
// (no real interface attached yet).
const IfindexInternal = -1

// Nexthop is one candidate forwarding descriptor.
type Nexthop struct {
	Flags Flag

	Gate *netip.Prefix // optional; host address when present
	Src  *netip.Prefix // optional

	Ifindex int
	Type    uint8 // protocol origin of the resolving route, if resolved

	Rifindex int
	Rgate    *netip.Prefix

	next, prev *Nexthop
}

// New allocates a nexthop with both interface indices set to the
// interface-internal sentinel.
func New() *Nexthop {
	return &Nexthop{Ifindex: IfindexInternal, Rifindex: IfindexInternal}
}

// Scrub releases owned prefixes and zeros the record in place, leaving
// list pointers untouched (the caller is expected to have already
// unlinked it via List.Delete).
func Scrub(nh *Nexthop) {
	nh.Gate = nil
	nh.Src = nil
	nh.Rgate = nil
	nh.Flags = 0
	nh.Ifindex = IfindexInternal
	nh.Rifindex = IfindexInternal
	nh.Type = 0
}

// Copy deep-copies src's scalar fields and prefix pointers into dst. List
// membership (next/prev) is never copied.
func Copy(dst, src *Nexthop) {
	dst.Flags = src.Flags
	dst.Ifindex = src.Ifindex
	dst.Type = src.Type
	dst.Rifindex = src.Rifindex
	dst.Gate = clonePrefix(src.Gate)
	dst.Src = clonePrefix(src.Src)
	dst.Rgate = clonePrefix(src.Rgate)
}

func clonePrefix(p *netip.Prefix) *netip.Prefix {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Same reports structural equality between a and b, per SPEC_FULL.md
// §4.3's presence rules. This is the corrected rule: both variants in the
// original source disagreed on which blackhole flag constant to compare
// against; here there is exactly one Flag type, so that defect cannot
// recur.
func Same(a, b *Nexthop) bool {
	aBH := a.Flags.Has(FlagBlackhole)
	bBH := b.Flags.Has(FlagBlackhole)
	if aBH || bBH {
		return aBH == bBH
	}

	if a.Ifindex != b.Ifindex {
		return false
	}

	if !prefixPresenceEqual(a.Gate, b.Gate) {
		return false
	}

	aRec := a.Flags.Has(FlagRecursive)
	bRec := b.Flags.Has(FlagRecursive)
	if aRec != bRec {
		return false
	}
	if aRec {
		if a.Rifindex != b.Rifindex {
			return false
		}
		if !prefixPresenceEqual(a.Rgate, b.Rgate) {
			return false
		}
	}

	return true
}

func prefixPresenceEqual(a, b *netip.Prefix) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

// List is the counted doubly linked list abstraction SPEC_FULL.md §9
// calls for: Add/Delete are the only mutators and they maintain count
// themselves, so no external counter can drift.
type List struct {
	head, tail *Nexthop
	count      int
}

// Add appends nh at the tail of the list.
func (l *List) Add(nh *Nexthop) {
	nh.prev = l.tail
	nh.next = nil
	if l.tail != nil {
		l.tail.next = nh
	} else {
		l.head = nh
	}
	l.tail = nh
	l.count++
}

// Delete unlinks nh from the list. nh must be a member of l.
func (l *List) Delete(nh *Nexthop) {
	if nh.prev != nil {
		nh.prev.next = nh.next
	} else {
		l.head = nh.next
	}
	if nh.next != nil {
		nh.next.prev = nh.prev
	} else {
		l.tail = nh.prev
	}
	nh.next, nh.prev = nil, nil
	l.count--
}

// Count returns the number of nexthops currently in the list.
func (l *List) Count() int { return l.count }

// Head returns the first nexthop, or nil if the list is empty.
func (l *List) Head() *Nexthop { return l.head }

// Each calls fn for every nexthop in order. fn must not mutate the list.
func (l *List) Each(fn func(*Nexthop)) {
	for nh := l.head; nh != nil; nh = nh.next {
		fn(nh)
	}
}

// Equal reports whether two lists contain structurally equal nexthops in
// the same order.
func Equal(a, b *List) bool {
	if a.count != b.count {
		return false
	}
	na, nb := a.head, b.head
	for na != nil && nb != nil {
		if !Same(na, nb) {
			return false
		}
		na, nb = na.next, nb.next
	}
	return na == nil && nb == nil
}

// DeepCopy returns a new list holding deep copies of every nexthop in
// src, in the same order.
func DeepCopy(src *List) *List {
	dst := &List{}
	src.Each(func(nh *Nexthop) {
		cp := New()
		Copy(cp, nh)
		dst.Add(cp)
	})
	return dst
}
