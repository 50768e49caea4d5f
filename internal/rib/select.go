package rib

import "github.com/route-beacon/ribd/internal/nexthop"

// SelectBest re-runs best-route selection over n's candidate entries and
// marks exactly one of them Selected (or none, if every entry is
// Removed). Tie-break order, per SPEC_FULL.md §4.4:
//
//  1. lower administrative Distance wins
//  2. lower Metric wins
//  3. protocol preference order (see protocolRank)
//  4. most recent insertion (higher seq) wins
//
// SelectBest is idempotent: calling it again with no change to the
// candidate set reselects the same winner.
func SelectBest(n *Node) *Entry {
	var best *Entry
	n.entries.each(func(e *Entry) {
		e.Selected = false
		if e.Removed {
			return
		}
		if best == nil || better(e, best) {
			best = e
		}
	})
	if best != nil {
		best.Selected = true
		SetNexthopActive(n, best)
	}
	return best
}

// SetNexthopActive derives each of e's nexthops' FlagActive bit by
// resolving its gateway against the rib (SPEC_FULL.md §4.4: "nexthop
// activation ... is derived from resolvability against lower-distance
// routes"). A nexthop is active when its gateway resolves to a live,
// strictly lower-distance route through a node other than n itself;
// gateway-less (interface-only, blackhole) nexthops are never active.
func SetNexthopActive(n *Node, e *Entry) {
	vrf, afi := n.table.vrf, n.table.afi
	e.Nexthops.Each(func(nh *nexthop.Nexthop) {
		nh.Flags &^= nexthop.FlagActive
		if nh.Gate == nil {
			return
		}
		code, resolved := RIBLookupRoute(vrf, afi, SAFIUnicast, nh.Gate.Addr())
		if code != LookupFoundExact && code != LookupFoundConnected {
			return
		}
		if resolved == n {
			return
		}
		if best := bestLive(resolved); best != nil && best.Distance < e.Distance {
			nh.Flags |= nexthop.FlagActive
		}
	})
}

// better reports whether a outranks b under the tie-break order.
func better(a, b *Entry) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Metric != b.Metric {
		return a.Metric < b.Metric
	}
	if ra, rb := protocolRank(a.Type), protocolRank(b.Type); ra != rb {
		return ra < rb
	}
	return a.seq > b.seq
}

// protocolRank orders same-distance, same-metric candidates by protocol
// preference, lowest rank wins. Mirrors the relative ordering implied by
// DefaultDistance but stays a stable total order even when operators
// override distances to the same value.
func protocolRank(t Type) int {
	switch t {
	case TypeKernel:
		return 0
	case TypeConnected:
		return 1
	case TypeStatic:
		return 2
	case TypeOSPF:
		return 3
	case TypeOSPFv3:
		return 4
	case TypeISIS:
		return 5
	case TypeRIP:
		return 6
	case TypeRIPng:
		return 7
	case TypeEBGP:
		return 8
	case TypeIBGP:
		return 9
	default:
		return 10
	}
}
