package kafka

import (
	"encoding/json"
	"fmt"
)

// RouteEvent is the JSON wire format produced upstream for one RIB
// protocol-input event: a route advertisement or withdrawal. Mirrors
// the parsed-BMP-JSON shape the teacher's state pipeline consumed,
// adapted from "parsed BMP update" to "parsed RIB protocol-input
// event" (SPEC_FULL.md §6a).
type RouteEvent struct {
	Type string `json:"type"` // bgp|static|connected|kernel|rip|ripng|ospf|ospf3|isis|other

	VRFID uint32 `json:"vrf_id"`
	AFI   string `json:"afi"`  // "ip" | "ip6"
	SAFI  string `json:"safi"` // "unicast" | "multicast"

	Prefix string `json:"prefix"`

	Gate    *string `json:"gate,omitempty"`
	Src     *string `json:"src,omitempty"`
	Ifindex int     `json:"ifindex,omitempty"`

	Metric   uint32 `json:"metric"`
	Distance *uint8 `json:"distance,omitempty"`

	Withdraw bool `json:"withdraw"`

	Communities []string `json:"communities,omitempty"`
}

// stringField mirrors the defensive field extraction the teacher's
// state.DecodeUnicastPrefix uses for untyped JSON; here the wire format
// is already strongly typed, so decoding is a plain json.Unmarshal and
// this helper only dereferences a nullable string.
func stringField(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// DecodeRouteEvent unmarshals a Kafka record value into a RouteEvent.
// Decoding itself never fails closed on an unrecognized type (that
// falls back to sub-queue 4, "other", in the caller) — it fails only on
// malformed JSON; prefix/gateway parsing happens downstream in the
// caller, which does fail closed with riberr.Malformed.
func DecodeRouteEvent(buf []byte) (*RouteEvent, error) {
	var ev RouteEvent
	if err := json.Unmarshal(buf, &ev); err != nil {
		return nil, fmt.Errorf("decoding route event: %w", err)
	}
	return &ev, nil
}
