package rib

import "net/netip"

// numSubQueue mirrors the meta-queue's sub-queue count (SPEC_FULL.md
// §4.5): five priority bands, 0 highest.
const numSubQueue = 5

// Node is the route-node at one prefix within a Table: the set of
// candidate rib entries competing for that prefix, plus the QUEUED
// bitset that gates meta-queue admission (SPEC_FULL.md §4.4/§4.5).
type Node struct {
	Prefix netip.Prefix

	entries entryList

	Static []*StaticRoute

	Queued [numSubQueue]bool

	table *Table
}

// Entries returns the node's candidate entries in insertion order. The
// returned slice is a snapshot; mutating it does not affect the node.
func (n *Node) Entries() []*Entry {
	out := make([]*Entry, 0, n.entries.count)
	n.entries.each(func(e *Entry) { out = append(out, e) })
	return out
}

// addEntry links e into the node's candidate list.
func (n *Node) addEntry(e *Entry) { n.entries.add(e) }

// deleteEntry unlinks e from the node's candidate list.
func (n *Node) deleteEntry(e *Entry) { n.entries.delete(e) }

// findEntry returns the existing entry of the same Type and VRFID, if
// any — the unit of implicit withdraw (SPEC_FULL.md §4.4: "adding an
// entry with a protocol origin and VRF that already has one implicitly
// withdraws the old one first").
func (n *Node) findEntry(t Type, vrfID uint32) *Entry {
	var found *Entry
	n.entries.each(func(e *Entry) {
		if found == nil && !e.Removed && e.Type == t && e.VRFID == vrfID {
			found = e
		}
	})
	return found
}

// empty reports whether the node has no candidate entries at all (live
// or Removed), no pending static configuration, and nothing queued — i.e. it is a
// candidate for WeedTables removal.
func (n *Node) empty() bool {
	if n.entries.count != 0 || len(n.Static) != 0 {
		return false
	}
	for _, q := range n.Queued {
		if q {
			return false
		}
	}
	return true
}
