package cli

import (
	"hash/fnv"
	"net/netip"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/route-beacon/ribd/internal/rib"
)

var vrfSeq uint32

func freshVRF(t *testing.T) *rib.VRF {
	t.Helper()
	h := fnv.New32a()
	h.Write([]byte(t.Name()))
	vrfSeq++
	id := h.Sum32() + vrfSeq
	v, err := rib.RegisterVRF(id, t.Name(), "", 0)
	if err != nil {
		t.Fatalf("RegisterVRF: %v", err)
	}
	t.Cleanup(func() { rib.UnregisterVRF(id) })
	return v
}

func TestDispatchCanonicalIPRoute(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "ip route 10.0.0.0/24 192.0.2.1", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Deprecated {
		t.Fatalf("canonical form should not be flagged deprecated")
	}

	node := rib.RIBLookup(vrf, rib.AFIIP, rib.SAFIUnicast, netip.MustParsePrefix("10.0.0.0/24"))
	if node == nil || len(node.Entries()) != 1 {
		t.Fatalf("expected one installed rib entry")
	}
}

func TestDispatchDeprecatedMaskForm(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "ip route 10.0.1.0 255.255.255.0 192.0.2.1", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !res.Deprecated {
		t.Fatalf("legacy mask form should be flagged deprecated")
	}
}

func TestDispatchNoIPRouteWithdraws(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.2.0/24 192.0.2.1", log)
	res := Dispatch(vrf, "no ip route 10.0.2.0/24", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success removing an existing static route, got %+v", res)
	}

	res = Dispatch(vrf, "no ip route 10.0.2.0/24", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected a warning removing an already-removed static route, got %+v", res)
	}
}

func TestDispatchShowIPRoute(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.3.0/24 192.0.2.1", log)
	res := Dispatch(vrf, "show ip route 10.0.3.0/24", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Message, "static") {
		t.Fatalf("expected the rendered output to mention the static origin, got %q", res.Message)
	}
}

func TestDispatchShowIPRouteNotFound(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "show ip route 10.0.4.0/24", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected a warning for a prefix not in the table, got %+v", res)
	}
}

func TestDispatchShowIPRouteBareAddressLPM(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.20.0/24 192.0.2.1", log)
	res := Dispatch(vrf, "show ip route 10.0.20.5", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected the bare address to longest-prefix-match, got %+v", res)
	}
	if !strings.Contains(res.Message, "10.0.20.0/24") {
		t.Fatalf("expected the matched covering prefix in output, got %q", res.Message)
	}
}

func TestDispatchShowIPRouteLongerPrefixes(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.21.0/24 192.0.2.1", log)
	Dispatch(vrf, "ip route 10.0.21.0/25 192.0.2.2", log)

	res := Dispatch(vrf, "show ip route 10.0.21.0/24 longer-prefixes", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Message, "10.0.21.0/24") || !strings.Contains(res.Message, "10.0.21.0/25") {
		t.Fatalf("expected both the base prefix and its more specific route, got %q", res.Message)
	}
}

func TestDispatchShowIPRouteProtocolFilter(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.22.0/24 192.0.2.1", log)

	res := Dispatch(vrf, "show ip route static", log)
	if res.Code != CmdSuccess || !strings.Contains(res.Message, "10.0.22.0/24") {
		t.Fatalf("expected the static filter to include the installed static route, got %+v", res)
	}

	res = Dispatch(vrf, "show ip route bgp", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected no bgp routes to report a warning, got %+v", res)
	}
}

func TestDispatchShowIPRouteSummary(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ip route 10.0.23.0/24 192.0.2.1", log)
	res := Dispatch(vrf, "show ip route summary", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Message, "Total") {
		t.Fatalf("expected a total line in the summary output, got %q", res.Message)
	}
}

func TestDispatchShowIPv6Route(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	Dispatch(vrf, "ipv6 route 2001:db8:1::/64 2001:db8:1::1", log)
	res := Dispatch(vrf, "show ipv6 route 2001:db8:1::/64", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Message, "static") {
		t.Fatalf("expected the rendered output to mention the static origin, got %q", res.Message)
	}
}

func TestDispatchUnrecognizedCommand(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "frobnicate everything", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected a warning for an unrecognized command, got %+v", res)
	}
}

func TestDispatchEmptyCommand(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "   ", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected a warning for an empty command line, got %+v", res)
	}
}

func TestDispatchBlackhole(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "ip route 10.0.5.0/24 blackhole", log)
	if res.Code != CmdSuccess {
		t.Fatalf("expected success installing a blackhole route, got %+v", res)
	}
}

func TestDispatchMaskWithIPv6Rejected(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "ipv6 route 2001:db8::/64 255.255.255.0 2001:db8::1", log)
	if res.Code != CmdWarning {
		t.Fatalf("ipv6 route never accepts a dotted mask, expected a warning, got %+v", res)
	}
}

func TestDispatchGatewayFamilyMismatchRejected(t *testing.T) {
	vrf := freshVRF(t)
	log := zap.NewNop()

	res := Dispatch(vrf, "ip route 10.0.6.0/24 2001:db8::1", log)
	if res.Code != CmdWarning {
		t.Fatalf("expected a warning for a gateway family mismatch, got %+v", res)
	}
}
