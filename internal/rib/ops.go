package rib

import (
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribd/internal/nexthop"
	"github.com/route-beacon/ribd/internal/riberr"
)

// RIBAdd installs (or implicitly replaces) a single-path rib entry at
// prefix for (t, vrfID). Returns the node touched, the entry added, and
// whether an existing same-origin entry was implicitly withdrawn first
// (SPEC_FULL.md §4.4). The caller is responsible for handing node to the
// meta-queue; RIBAdd itself never schedules selection.
func RIBAdd(vrf *VRF, afi AFI, safi SAFI, prefix netip.Prefix, t Type, metric uint32, distance uint8, nh *nexthop.Nexthop) (*Node, *Entry, bool, error) {
	if vrf == nil {
		return nil, nil, false, riberr.Malformed("rib.RIBAdd", fmt.Errorf("nil vrf"))
	}
	if !prefixMatchesAFI(prefix, afi) {
		return nil, nil, false, riberr.Malformed("rib.RIBAdd", fmt.Errorf("prefix %s does not match afi", prefix))
	}

	table := vrf.Table(afi, safi)
	node := table.getNode(prefix)

	withdrew := false
	if existing := node.findEntry(t, vrf.ID); existing != nil {
		existing.Removed = true
		withdrew = true
	}

	e := NewEntry(t, vrf.ID, metric, distance)
	if nh != nil {
		e.Nexthops.Add(nh)
	}
	node.addEntry(e)

	return node, e, withdrew, nil
}

// RIBAddMultipath is RIBAdd for an entry carrying more than one nexthop
// (SPEC_FULL.md §4.3/§4.4: ECMP candidates share one rib entry).
func RIBAddMultipath(vrf *VRF, afi AFI, safi SAFI, prefix netip.Prefix, t Type, metric uint32, distance uint8, nhs []*nexthop.Nexthop) (*Node, *Entry, bool, error) {
	node, e, withdrew, err := RIBAdd(vrf, afi, safi, prefix, t, metric, distance, nil)
	if err != nil {
		return nil, nil, false, err
	}
	for _, nh := range nhs {
		e.Nexthops.Add(nh)
	}
	return node, e, withdrew, nil
}

// RIBDelete marks the live entry of origin (t, vrfID) at prefix Removed.
// The entry is not unlinked immediately: it stays on the node until the
// meta-queue processes the node's sub-queue and frees it (SPEC_FULL.md
// §4.5, "removal is two-phase"). Returns the node and the entry marked,
// or (nil, nil, riberr NotFound) if no live matching entry exists.
func RIBDelete(vrf *VRF, afi AFI, safi SAFI, prefix netip.Prefix, t Type) (*Node, *Entry, error) {
	if vrf == nil {
		return nil, nil, riberr.Malformed("rib.RIBDelete", fmt.Errorf("nil vrf"))
	}
	table := vrf.Table(afi, safi)
	node := table.Lookup(prefix)
	if node == nil {
		return nil, nil, riberr.NotFoundf("rib.RIBDelete", "no node at %s", prefix)
	}
	e := node.findEntry(t, vrf.ID)
	if e == nil {
		return nil, nil, riberr.NotFoundf("rib.RIBDelete", "no live %s entry at %s", t, prefix)
	}
	e.Removed = true
	return node, e, nil
}

// RIBMatch performs longest-prefix-match lookup of addr in (afi, safi)
// of vrf, returning the covering node or nil.
func RIBMatch(vrf *VRF, afi AFI, safi SAFI, addr netip.Addr) *Node {
	if vrf == nil {
		return nil
	}
	return vrf.Table(afi, safi).Match(addr)
}

// RIBLookup returns the node at exactly prefix, or nil.
func RIBLookup(vrf *VRF, afi AFI, safi SAFI, prefix netip.Prefix) *Node {
	if vrf == nil {
		return nil
	}
	return vrf.Table(afi, safi).Lookup(prefix)
}

// RIBLookupRoute classifies gate's relationship to the RIB, mirroring
// the four-way result original_source/zebra/rib.h describes for
// nexthop resolution: exact route-to-self match, a match with no usable
// gateway, a match through a connected/local route, or no match.
func RIBLookupRoute(vrf *VRF, afi AFI, safi SAFI, gate netip.Addr) (LookupCode, *Node) {
	if vrf == nil {
		return LookupError, nil
	}
	node := vrf.Table(afi, safi).Match(gate)
	if node == nil {
		return LookupNotFound, nil
	}

	best := bestLive(node)
	if best == nil {
		return LookupNotFound, nil
	}

	if node.Prefix.Addr() == gate && node.Prefix.Bits() == gate.BitLen() {
		return LookupFoundExact, node
	}
	if best.Type == TypeConnected || best.Type == TypeKernel {
		return LookupFoundConnected, node
	}
	if best.Nexthops.Count() == 0 {
		return LookupFoundNoGate, node
	}
	return LookupFoundExact, node
}

func bestLive(n *Node) *Entry {
	var best *Entry
	n.entries.each(func(e *Entry) {
		if !e.Removed && (best == nil || better(e, best)) {
			best = e
		}
	})
	return best
}

func prefixMatchesAFI(p netip.Prefix, afi AFI) bool {
	switch afi {
	case AFIIP:
		return p.Addr().Is4()
	case AFIIP6:
		return p.Addr().Is6() && !p.Addr().Is4In6()
	default:
		return false
	}
}
