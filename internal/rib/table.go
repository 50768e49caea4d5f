package rib

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/route-beacon/ribd/internal/riberr"
)

// Table is the per-(VRF, AFI, SAFI) prefix space: an exact-match map plus
// brute-force longest-prefix-match over decreasing prefix lengths.
// SPEC_FULL.md §4.4 documents the considered-and-declined alternative of
// a dedicated trie library; see DESIGN.md.
type Table struct {
	afi  AFI
	safi SAFI
	vrf  *VRF

	nodes map[netip.Prefix]*Node
}

func newTable(afi AFI, safi SAFI, vrf *VRF) *Table {
	return &Table{afi: afi, safi: safi, vrf: vrf, nodes: make(map[netip.Prefix]*Node)}
}

// getNode returns the node at prefix, creating it if absent.
func (t *Table) getNode(prefix netip.Prefix) *Node {
	prefix = prefix.Masked()
	n, ok := t.nodes[prefix]
	if !ok {
		n = &Node{Prefix: prefix, table: t}
		t.nodes[prefix] = n
	}
	return n
}

// Lookup returns the node at exactly prefix, or nil.
func (t *Table) Lookup(prefix netip.Prefix) *Node {
	return t.nodes[prefix.Masked()]
}

// Match performs longest-prefix-match for addr, scanning from the
// table's address width down to /0. Returns nil if no covering node
// has at least one live, non-removed entry.
func (t *Table) Match(addr netip.Addr) *Node {
	bits := addr.BitLen()
	for l := bits; l >= 0; l-- {
		p, err := addr.Prefix(l)
		if err != nil {
			continue
		}
		if n, ok := t.nodes[p.Masked()]; ok && n.hasLiveEntry() {
			return n
		}
	}
	return nil
}

func (n *Node) hasLiveEntry() bool {
	live := false
	n.entries.each(func(e *Entry) {
		if !e.Removed {
			live = true
		}
	})
	return live
}

// Walk calls fn once for every node currently in t, in unspecified order.
// Used by the "show ip route" family (SPEC_FULL.md §6) to render the
// whole table, a protocol-filtered subset, or a longer-prefixes/
// supernets-only view.
func (t *Table) Walk(fn func(*Node)) {
	for _, n := range t.nodes {
		fn(n)
	}
}

// weed drops every empty node from the table, per SPEC_FULL.md §4.4's
// maintenance pass. Returns the number of nodes removed.
func (t *Table) weed() int {
	removed := 0
	for p, n := range t.nodes {
		if n.empty() {
			delete(t.nodes, p)
			removed++
		}
	}
	return removed
}

// VRF is a routing instance: an identity plus one Table per (AFI,
// SAFI), and one "stable" static-route table per (AFI, SAFI) holding
// configured-but-not-necessarily-installed static routes (SPEC_FULL.md
// §4.4, "static route stable tables").
type VRF struct {
	ID          uint32
	Name        string
	Description string
	FibID       uint32

	tables  [numAFI][numSAFI]*Table
	stables [numAFI][numSAFI]*Table
}

// Table returns the live table for (afi, safi).
func (v *VRF) Table(afi AFI, safi SAFI) *Table { return v.tables[afi][safi] }

// StableTable returns the static-configuration table for (afi, safi).
func (v *VRF) StableTable(afi AFI, safi SAFI) *Table { return v.stables[afi][safi] }

var (
	registryMu sync.Mutex
	vrfByID    = make(map[uint32]*VRF)
	vrfByName  = make(map[string]*VRF)
)

// RegisterVRF creates and registers a new VRF. Fails if id or name is
// already registered.
func RegisterVRF(id uint32, name, description string, fibID uint32) (*VRF, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := vrfByID[id]; ok {
		return nil, riberr.Conflict("rib.RegisterVRF", fmt.Errorf("vrf id %d already registered", id))
	}
	if _, ok := vrfByName[name]; ok {
		return nil, riberr.Conflict("rib.RegisterVRF", fmt.Errorf("vrf name %q already registered", name))
	}

	v := &VRF{ID: id, Name: name, Description: description, FibID: fibID}
	for a := AFI(0); a < numAFI; a++ {
		for s := SAFI(0); s < numSAFI; s++ {
			v.tables[a][s] = newTable(a, s, v)
			v.stables[a][s] = newTable(a, s, v)
		}
	}

	vrfByID[id] = v
	vrfByName[name] = v
	return v, nil
}

// LookupVRF returns the registered VRF by id, or nil.
func LookupVRF(id uint32) *VRF {
	registryMu.Lock()
	defer registryMu.Unlock()
	return vrfByID[id]
}

// LookupVRFByName returns the registered VRF by name, or nil.
func LookupVRFByName(name string) *VRF {
	registryMu.Lock()
	defer registryMu.Unlock()
	return vrfByName[name]
}

// AllVRFIDs returns the ids of every currently registered VRF.
func AllVRFIDs() []uint32 {
	registryMu.Lock()
	defer registryMu.Unlock()
	ids := make([]uint32, 0, len(vrfByID))
	for id := range vrfByID {
		ids = append(ids, id)
	}
	return ids
}

// UnregisterVRF removes a VRF from the registry. Intended for test
// teardown and for process shutdown, not for normal operation.
func UnregisterVRF(id uint32) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if v, ok := vrfByID[id]; ok {
		delete(vrfByID, id)
		delete(vrfByName, v.Name)
	}
}
