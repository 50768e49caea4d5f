// Package cli implements the static-route command surface SPEC_FULL.md
// §6 specifies: canonical and deprecated legacy command forms translated
// into internal/rib.StaticAdd/StaticDelete calls, plus the "show ip
// route"/"show ipv6 route" renderers (bare address, exact prefix,
// longer-prefixes, supernets-only, summary, and per-protocol forms). See
// SPEC_FULL.md §6.
package cli

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/route-beacon/ribd/internal/rib"
)

// Code mirrors the two CLI exit codes spec.md §6 names.
type Code int

const (
	CmdSuccess Code = 0
	CmdWarning Code = 1
)

// Result is the outcome of dispatching one command line.
type Result struct {
	Code       Code
	Message    string
	Deprecated bool
}

// Handler dispatches one tokenized command line against a VRF.
type Handler func(vrf *rib.VRF, args []string, log *zap.Logger) Result

// table is the command dispatcher: the longest matching token prefix
// wins (so "no ip route" and "ip route" dispatch separately from "show
// ip route").
var table = map[string]Handler{
	"ip route":        cmdIPRoute,
	"ipv6 route":      cmdIPv6Route,
	"no ip route":     cmdNoIPRoute,
	"no ipv6 route":   cmdNoIPv6Route,
	"show ip route":   cmdShowIPRoute,
	"show ipv6 route": cmdShowIPv6Route,
}

// Dispatch tokenizes line, finds the longest-matching registered
// command prefix, and invokes its handler. Unknown commands return
// CmdWarning with IncompleteCommand-shaped messaging.
func Dispatch(vrf *rib.VRF, line string, log *zap.Logger) Result {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{Code: CmdWarning, Message: "empty command"}
	}

	best := ""
	for prefix := range table {
		plen := len(strings.Fields(prefix))
		if plen > len(fields) {
			continue
		}
		if strings.Join(fields[:plen], " ") == prefix && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Result{Code: CmdWarning, Message: fmt.Sprintf("unrecognized command: %q", line)}
	}

	rest := fields[len(strings.Fields(best)):]
	return table[best](vrf, rest, log)
}

// parsedStatic is the normalized form of a static-route command line,
// canonical or deprecated.
type parsedStatic struct {
	prefix     netip.Prefix
	gateway    *netip.Addr
	ifname     string
	distance   uint8
	flags      rib.EntryFlag
	deprecated bool
}

// parseStatic accepts both the canonical form:
//
//	<prefix> (<gateway>|<ifname>|Null0|blackhole|reject) [<distance>]
//
// and the deprecated legacy mask form:
//
//	<network> <mask> (<gateway>|<ifname>) [<distance>]
//
// per spec.md §6's documented legacy compatibility.
func parseStatic(afi rib.AFI, args []string) (*parsedStatic, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("incomplete command: expected at least prefix and next-hop")
	}

	p := &parsedStatic{}
	idx := 1

	prefix, deprecated, consumed, err := parsePrefixOrMask(afi, args)
	if err != nil {
		return nil, err
	}
	p.prefix = prefix
	p.deprecated = deprecated
	idx = consumed

	if idx >= len(args) {
		return nil, fmt.Errorf("incomplete command: missing next-hop")
	}
	nextHopTok := args[idx]
	idx++

	switch strings.ToLower(nextHopTok) {
	case "null0", "nullinterface":
		p.flags |= rib.EntryFlagBlackhole
	case "blackhole":
		p.flags |= rib.EntryFlagBlackhole
	case "reject":
		p.flags |= rib.EntryFlagReject
	default:
		if addr, err := netip.ParseAddr(nextHopTok); err == nil {
			if addr.BitLen() != p.prefix.Addr().BitLen() {
				return nil, fmt.Errorf("gateway family does not match prefix family")
			}
			p.gateway = &addr
		} else {
			p.ifname = nextHopTok
		}
	}

	if idx < len(args) {
		d, err := strconv.ParseUint(args[idx], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid distance %q", args[idx])
		}
		p.distance = uint8(d)
		idx++
	}

	return p, nil
}

func parsePrefixOrMask(afi rib.AFI, args []string) (netip.Prefix, bool, int, error) {
	if p, err := netip.ParsePrefix(args[0]); err == nil {
		return p, false, 1, nil
	}

	// Deprecated legacy form: "<network> <mask> ...". IPv6 never carries
	// a dotted mask (SPEC_FULL.md §6 boundary constraint).
	if afi == rib.AFIIP6 {
		return netip.Prefix{}, false, 0, fmt.Errorf("mask-with-IPv6 is not supported")
	}
	if len(args) < 2 {
		return netip.Prefix{}, false, 0, fmt.Errorf("incomplete command: missing mask")
	}
	addr, err := netip.ParseAddr(args[0])
	if err != nil {
		return netip.Prefix{}, false, 0, fmt.Errorf("invalid network %q", args[0])
	}
	maskAddr, err := netip.ParseAddr(args[1])
	if err != nil {
		return netip.Prefix{}, false, 0, fmt.Errorf("invalid mask %q", args[1])
	}
	bits := maskToBits(maskAddr)
	if bits < 0 {
		return netip.Prefix{}, false, 0, fmt.Errorf("invalid mask %q", args[1])
	}
	return netip.PrefixFrom(addr, bits).Masked(), true, 2, nil
}

func maskToBits(mask netip.Addr) int {
	if !mask.Is4() {
		return -1
	}
	b := mask.As4()
	bits := 0
	seenZero := false
	for _, octet := range b {
		for i := 7; i >= 0; i-- {
			set := octet&(1<<uint(i)) != 0
			if seenZero && set {
				return -1
			}
			if set {
				bits++
			} else {
				seenZero = true
			}
		}
	}
	return bits
}

func cmdIPRoute(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doStaticAdd(vrf, rib.AFIIP, args, log)
}

func cmdIPv6Route(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doStaticAdd(vrf, rib.AFIIP6, args, log)
}

func doStaticAdd(vrf *rib.VRF, afi rib.AFI, args []string, log *zap.Logger) Result {
	p, err := parseStatic(afi, args)
	if err != nil {
		return Result{Code: CmdWarning, Message: err.Error()}
	}
	if _, _, err := rib.StaticAdd(vrf, afi, p.prefix, p.gateway, p.ifname, p.distance, p.flags); err != nil {
		log.Warn("static route add failed", zap.Error(err), zap.String("prefix", p.prefix.String()))
		return Result{Code: CmdWarning, Message: err.Error(), Deprecated: p.deprecated}
	}
	return Result{Code: CmdSuccess, Message: fmt.Sprintf("static route %s installed", p.prefix), Deprecated: p.deprecated}
}

func cmdNoIPRoute(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doStaticDelete(vrf, rib.AFIIP, args, log)
}

func cmdNoIPv6Route(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doStaticDelete(vrf, rib.AFIIP6, args, log)
}

func doStaticDelete(vrf *rib.VRF, afi rib.AFI, args []string, log *zap.Logger) Result {
	if len(args) == 0 {
		return Result{Code: CmdWarning, Message: "incomplete command: missing prefix"}
	}
	prefix, _, _, err := parsePrefixOrMask(afi, args)
	if err != nil {
		return Result{Code: CmdWarning, Message: err.Error()}
	}

	snode := vrf.StableTable(afi, rib.SAFIUnicast).Lookup(prefix)
	if snode == nil {
		return Result{Code: CmdWarning, Message: fmt.Sprintf("no static route at %s", prefix)}
	}
	var removed bool
	for _, sr := range append([]*rib.StaticRoute(nil), snode.Static...) {
		if _, err := rib.StaticDelete(vrf, afi, sr); err == nil {
			removed = true
		}
	}
	if !removed {
		return Result{Code: CmdWarning, Message: fmt.Sprintf("no static route at %s", prefix)}
	}
	return Result{Code: CmdSuccess, Message: fmt.Sprintf("static route %s removed", prefix)}
}

func cmdShowIPRoute(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doShowRoute(vrf, rib.AFIIP, args)
}

func cmdShowIPv6Route(vrf *rib.VRF, args []string, log *zap.Logger) Result {
	return doShowRoute(vrf, rib.AFIIP6, args)
}

// showProtocols maps the "show ip route PROTO" filter tokens spec.md §6
// names onto the rib.Type values they select; "bgp" covers both eBGP and
// iBGP origins, matching the legacy VTY's protocol grouping.
var showProtocols = map[string][]rib.Type{
	"bgp":       {rib.TypeEBGP, rib.TypeIBGP},
	"connected": {rib.TypeConnected},
	"isis":      {rib.TypeISIS},
	"kernel":    {rib.TypeKernel},
	"ospf":      {rib.TypeOSPF, rib.TypeOSPFv3},
	"rip":       {rib.TypeRIP, rib.TypeRIPng},
	"static":    {rib.TypeStatic},
}

// doShowRoute implements the "show ip route [...]" / "show ipv6 route
// [...]" surface spec.md §6 documents verbatim:
//
//	[A.B.C.D | A.B.C.D/M [longer-prefixes] | supernets-only | summary |
//	(bgp|connected|isis|kernel|ospf|rip|static)]
func doShowRoute(vrf *rib.VRF, afi rib.AFI, args []string) Result {
	tbl := vrf.Table(afi, rib.SAFIUnicast)
	var b strings.Builder

	switch {
	case len(args) == 0:
		renderFiltered(&b, tbl, nil)

	case args[0] == "summary":
		renderSummary(&b, tbl)

	case args[0] == "supernets-only":
		renderSupernetsOnly(&b, tbl)

	case showProtocols[args[0]] != nil:
		types := showProtocols[args[0]]
		want := make(map[rib.Type]bool, len(types))
		for _, t := range types {
			want[t] = true
		}
		renderFiltered(&b, tbl, want)

	default:
		return doShowPrefix(tbl, afi, args)
	}

	if b.Len() == 0 {
		return Result{Code: CmdWarning, Message: "%% Network not in table"}
	}
	return Result{Code: CmdSuccess, Message: b.String()}
}

// doShowPrefix handles the bare-address (longest-prefix-match), exact
// A.B.C.D/M, and A.B.C.D/M longer-prefixes forms.
func doShowPrefix(tbl *rib.Table, afi rib.AFI, args []string) Result {
	var b strings.Builder

	if prefix, err := netip.ParsePrefix(args[0]); err == nil {
		if (afi == rib.AFIIP6 && prefix.Addr().Is4()) || (afi == rib.AFIIP && prefix.Addr().Is6()) {
			return Result{Code: CmdWarning, Message: fmt.Sprintf("prefix %q does not match address family", args[0])}
		}
		if len(args) > 1 && args[1] == "longer-prefixes" {
			tbl.Walk(func(n *rib.Node) {
				if n.Prefix.Bits() >= prefix.Bits() && prefix.Contains(n.Prefix.Addr()) {
					renderNode(&b, n, nil)
				}
			})
		} else if node := tbl.Lookup(prefix); node != nil {
			renderNode(&b, node, nil)
		}
		if b.Len() == 0 {
			return Result{Code: CmdWarning, Message: "%% Network not in table"}
		}
		return Result{Code: CmdSuccess, Message: b.String()}
	}

	addr, err := netip.ParseAddr(args[0])
	if err != nil {
		return Result{Code: CmdWarning, Message: fmt.Sprintf("invalid prefix %q", args[0])}
	}
	node := tbl.Match(addr)
	if node == nil {
		return Result{Code: CmdWarning, Message: "%% Network not in table"}
	}
	renderNode(&b, node, nil)
	return Result{Code: CmdSuccess, Message: b.String()}
}

// renderFiltered walks every node in tbl, rendering entries whose Type is
// in want (or every entry, if want is nil).
func renderFiltered(b *strings.Builder, tbl *rib.Table, want map[rib.Type]bool) {
	tbl.Walk(func(n *rib.Node) { renderNode(b, n, want) })
}

// renderSummary counts live entries per protocol type across the table.
func renderSummary(b *strings.Builder, tbl *rib.Table) {
	counts := make(map[rib.Type]int)
	total := 0
	tbl.Walk(func(n *rib.Node) {
		for _, e := range n.Entries() {
			if e.Removed {
				continue
			}
			counts[e.Type]++
			total++
		}
	})
	fmt.Fprintf(b, "Route Source    Routes\n")
	for t, c := range counts {
		fmt.Fprintf(b, "%-15s %d\n", t, c)
	}
	fmt.Fprintf(b, "Total            %d\n", total)
}

// renderSupernetsOnly lists nodes that cover at least one other node
// present in the same table — the simplified reading of zebra's
// classful-summarization "supernets-only" filter in a classless table.
func renderSupernetsOnly(b *strings.Builder, tbl *rib.Table) {
	var all []*rib.Node
	tbl.Walk(func(n *rib.Node) { all = append(all, n) })

	for _, n := range all {
		isSupernet := false
		for _, other := range all {
			if other == n {
				continue
			}
			if n.Prefix.Bits() < other.Prefix.Bits() && n.Prefix.Contains(other.Prefix.Addr()) {
				isSupernet = true
				break
			}
		}
		if isSupernet {
			renderNode(b, n, nil)
		}
	}
}

// renderNode renders node's live entries, one line each, restricted to
// want's types when want is non-nil.
func renderNode(b *strings.Builder, node *rib.Node, want map[rib.Type]bool) {
	for _, e := range node.Entries() {
		if e.Removed {
			continue
		}
		if want != nil && !want[e.Type] {
			continue
		}
		status := " "
		if e.Selected {
			status = "*"
		}
		fmt.Fprintf(b, "%s%-8s %s [%d/%d]\n", status, e.Type, node.Prefix, e.Distance, e.Metric)
	}
}
