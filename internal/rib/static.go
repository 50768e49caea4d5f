package rib

import (
	"fmt"
	"net/netip"

	"github.com/route-beacon/ribd/internal/nexthop"
	"github.com/route-beacon/ribd/internal/riberr"
)

// StaticRoute is one piece of configured static route state, stored in a
// VRF's stable table independent of whether it currently resolves to a
// live rib entry (SPEC_FULL.md §4.4/§6).
type StaticRoute struct {
	Prefix   netip.Prefix
	Gateway  *netip.Addr
	Ifname   string
	Distance uint8
	Flags    EntryFlag // EntryFlagBlackhole / EntryFlagReject

	node *Node // the live-table node this static route is currently installed into, if any
}

// StaticAdd records a static route in the VRF's stable table and, if it
// is immediately installable, synthesizes a TypeStatic rib entry via
// RIBAdd. A static route with neither a gateway nor blackhole/reject is
// rejected (SPEC_FULL.md §6, CLI boundary constraints).
func StaticAdd(vrf *VRF, afi AFI, prefix netip.Prefix, gateway *netip.Addr, ifname string, distance uint8, flags EntryFlag) (*StaticRoute, *Node, error) {
	if vrf == nil {
		return nil, nil, riberr.Malformed("rib.StaticAdd", fmt.Errorf("nil vrf"))
	}
	blackholeLike := flags&(EntryFlagBlackhole|EntryFlagReject) != 0
	if gateway == nil && ifname == "" && !blackholeLike {
		return nil, nil, riberr.Malformed("rib.StaticAdd", fmt.Errorf("static route needs a gateway, interface, or blackhole/reject"))
	}
	if blackholeLike && (gateway != nil || ifname != "") {
		return nil, nil, riberr.Conflict("rib.StaticAdd", fmt.Errorf("blackhole/reject static route cannot carry a gateway"))
	}
	if gateway != nil && gateway.BitLen() != prefix.Addr().BitLen() {
		return nil, nil, riberr.Conflict("rib.StaticAdd", fmt.Errorf("gateway family does not match prefix family"))
	}

	if distance == 0 {
		distance = StaticDistanceDefault
	}

	sr := &StaticRoute{Prefix: prefix.Masked(), Gateway: gateway, Ifname: ifname, Distance: distance, Flags: flags}

	stable := vrf.StableTable(afi, SAFIUnicast)
	snode := stable.getNode(sr.Prefix)
	snode.Static = append(snode.Static, sr)

	var nh *nexthop.Nexthop
	if blackholeLike {
		nh = nexthop.New()
		nh.Flags |= nexthop.FlagBlackhole
	} else if gateway != nil {
		nh = nexthop.New()
		gp := netip.PrefixFrom(*gateway, gateway.BitLen())
		nh.Gate = &gp
	}

	node, _, _, err := RIBAdd(vrf, afi, SAFIUnicast, sr.Prefix, TypeStatic, 0, distance, nh)
	if err != nil {
		return nil, nil, err
	}
	sr.node = node
	return sr, node, nil
}

// StaticDelete removes a previously added static route from the stable
// table and withdraws its synthesized rib entry, if still present.
func StaticDelete(vrf *VRF, afi AFI, sr *StaticRoute) (*Node, error) {
	if vrf == nil || sr == nil {
		return nil, riberr.Malformed("rib.StaticDelete", fmt.Errorf("nil vrf or static route"))
	}

	stable := vrf.StableTable(afi, SAFIUnicast)
	if snode := stable.Lookup(sr.Prefix); snode != nil {
		for i, s := range snode.Static {
			if s == sr {
				snode.Static = append(snode.Static[:i], snode.Static[i+1:]...)
				break
			}
		}
	}

	node, _, err := RIBDelete(vrf, afi, SAFIUnicast, sr.Prefix, TypeStatic)
	if err != nil {
		if riberr.Is(err, riberr.NotFound) {
			return sr.node, nil
		}
		return nil, err
	}
	return node, nil
}
