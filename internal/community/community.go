// Package community implements the BGP community attribute on top of the
// interned object store (internal/object). See SPEC_FULL.md §4.2.
package community

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/route-beacon/ribd/internal/object"
	"github.com/route-beacon/ribd/internal/riberr"
)

// wordBytes is the wire size of a single community value.
const wordBytes = 4

// Community is the payload interned by Ctx: a sorted, uniqued sequence of
// 32-bit community values, stored contiguously in network byte order. str
// is the lazily computed canonical textual form.
type Community struct {
	val []byte
	str *string
}

// Size returns the number of 32-bit values held.
func (c *Community) Size() int { return len(c.val) / wordBytes }

// Bytes returns the wire representation (network byte order). Callers
// must not mutate the returned slice.
func (c *Community) Bytes() []byte { return c.val }

// Value returns the i'th value in host byte order.
func (c *Community) Value(i int) uint32 {
	return binary.BigEndian.Uint32(c.val[i*wordBytes : i*wordBytes+wordBytes])
}

// Ctx is the process-wide object context for communities. It is created
// once by Init and destroyed by Close; there is no lazy auto-init, so
// shutdown stays deterministic (SPEC_FULL.md §9).
var Ctx *object.Context[Community]

// Init registers the community payload type with the interned object
// store. Safe to call more than once (idempotent per object.Init).
func Init() *object.Context[Community] {
	ctx, err := object.Init("community", object.Ops[Community]{
		Init:    func(p *Community) { p.val = nil; p.str = nil },
		Finish:  func(p *Community) { p.val = nil; p.str = nil },
		Dup:     dup,
		Equal:   payloadEqual,
		HashKey: hashKey,
	}, false)
	if err != nil {
		// Init only fails if Ops is malformed, which would be a
		// programming error in this package itself.
		riberr.Invariant("community.Init", err)
	}
	Ctx = ctx
	return ctx
}

// Close tears down the registration. Callers must have dereferenced every
// outstanding handle first.
func Close() {
	if Ctx != nil {
		object.Finish(Ctx)
		Ctx = nil
	}
}

func dup(dst, src *Community) {
	dst.val = append([]byte(nil), src.val...)
	dst.str = nil
}

func payloadEqual(a, b *Community) bool {
	return string(a.val) == string(b.val)
}

func hashKey(c *Community) uint64 {
	var sum uint64
	for _, b := range c.val {
		sum += uint64(b)
	}
	return sum
}

// Equal is cmp from SPEC_FULL.md §4.2, generalized to the optional-handle
// case: both-nil is true, exactly-one-nil is false.
func Equal(a, b *object.Object[Community]) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return payloadEqual(&a.Payload, &b.Payload)
}

// Parse builds a floating community from wire bytes, sorts and dedupes
// it, and interns it. Fails if len(buf) is not a multiple of 4.
func Parse(buf []byte) (*object.Object[Community], error) {
	if len(buf)%wordBytes != 0 {
		return nil, riberr.Malformed("community.Parse", fmt.Errorf("length %d is not a multiple of %d", len(buf), wordBytes))
	}
	obj := object.New(Ctx)
	obj.Payload.val = append([]byte(nil), buf...)
	uniqSort(&obj.Payload)
	return object.Ref(Ctx, obj), nil
}

// uniqSort sorts the community's values ascending by host-order semantics
// and collapses duplicates; the underlying bytes remain network order.
func uniqSort(c *Community) {
	n := c.Size()
	if n <= 1 {
		c.str = nil
		return
	}

	type word struct {
		host uint32
		wire [wordBytes]byte
	}
	words := make([]word, n)
	for i := 0; i < n; i++ {
		var w word
		copy(w.wire[:], c.val[i*wordBytes:i*wordBytes+wordBytes])
		w.host = binary.BigEndian.Uint32(w.wire[:])
		words[i] = w
	}
	sort.Slice(words, func(i, j int) bool { return words[i].host < words[j].host })

	out := make([]byte, 0, len(c.val))
	var prev uint32
	for i, w := range words {
		if i > 0 && w.host == prev {
			continue
		}
		out = append(out, w.wire[:]...)
		prev = w.host
	}
	c.val = out
	c.str = nil
}

// Include reports whether v (host order) is present in com.
func Include(c *Community, v uint32) bool {
	var want [wordBytes]byte
	binary.BigEndian.PutUint32(want[:], v)
	for i := 0; i < c.Size(); i++ {
		if string(c.val[i*wordBytes:i*wordBytes+wordBytes]) == string(want[:]) {
			return true
		}
	}
	return false
}

// Match reports whether every value of com2 is present in com1 (com2 ⊆
// com1), via a single two-pointer pass over both sorted sequences.
func Match(com1, com2 *Community) bool {
	i, j := 0, 0
	n1, n2 := com1.Size(), com2.Size()
	for i < n1 && j < n2 {
		if com1.Value(i) == com2.Value(j) {
			j++
		}
		i++
	}
	return j == n2
}

// Merge appends com2's values onto com1 and re-sorts/dedupes. The caller
// must hold a mutable (floating) handle obtained via object.GetMutable —
// typically through object.WithMutable.
func Merge(com1, com2 *Community) {
	com1.val = append(com1.val, com2.val...)
	uniqSort(com1)
}

// Delete removes, for each value of com2, the first equal value in com1
// (if any), preserving order.
func Delete(com1, com2 *Community) {
	for i := 0; i < com2.Size(); i++ {
		v := com2.Value(i)
		for j := 0; j < com1.Size(); j++ {
			if com1.Value(j) == v {
				start := j * wordBytes
				com1.val = append(com1.val[:start], com1.val[start+wordBytes:]...)
				break
			}
		}
	}
	com1.str = nil
}

// Well-known community values (SPEC_FULL.md §4.2 / §6).
const (
	Internet     uint32 = 0x00000000
	NoExport     uint32 = 0xFFFFFF01
	NoAdvertise  uint32 = 0xFFFFFF02
	LocalAS      uint32 = 0xFFFFFF03
)

var wellKnownNames = map[uint32]string{
	Internet:    "internet",
	NoExport:    "no-export",
	NoAdvertise: "no-advertise",
	LocalAS:     "local-AS",
}

var wellKnownValues = map[string]uint32{
	"internet":     Internet,
	"no-export":    NoExport,
	"no-advertise": NoAdvertise,
	"local-AS":     LocalAS,
}

// WellKnownName returns the mnemonic for a well-known value, if any.
func WellKnownName(v uint32) (string, bool) {
	name, ok := wellKnownNames[v]
	return name, ok
}

// MnemonicValue returns the value for a well-known mnemonic, if any.
func MnemonicValue(name string) (uint32, bool) {
	v, ok := wellKnownValues[name]
	return v, ok
}

// StrToCom tokenizes text on whitespace and builds an interned community.
// Recognizes the well-known mnemonics and numeric LOW / HIGH:LOW tokens.
// Fails on any unknown token or a numeric token with more than one ':'.
func StrToCom(text string) (*object.Object[Community], error) {
	obj := object.New(Ctx)
	fields := strings.Fields(text)
	for _, tok := range fields {
		v, err := tokenValue(tok)
		if err != nil {
			object.Discard(Ctx, obj)
			return nil, riberr.Malformed("community.StrToCom", err)
		}
		var wire [wordBytes]byte
		binary.BigEndian.PutUint32(wire[:], v)
		obj.Payload.val = append(obj.Payload.val, wire[:]...)
	}
	uniqSort(&obj.Payload)
	return object.Ref(Ctx, obj), nil
}

func tokenValue(tok string) (uint32, error) {
	if v, ok := MnemonicValue(tok); ok {
		return v, nil
	}

	parts := strings.Split(tok, ":")
	switch len(parts) {
	case 1:
		low, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil || low > 0xFFFF {
			return 0, fmt.Errorf("invalid community token %q", tok)
		}
		return uint32(low), nil
	case 2:
		high, err1 := strconv.ParseUint(parts[0], 10, 32)
		low, err2 := strconv.ParseUint(parts[1], 10, 32)
		if err1 != nil || err2 != nil || high > 0xFFFF || low > 0xFFFF {
			return 0, fmt.Errorf("invalid community token %q", tok)
		}
		return uint32(high)<<16 | uint32(low), nil
	default:
		return 0, fmt.Errorf("invalid community token %q: more than one ':'", tok)
	}
}

// ComToStr renders the canonical space-separated textual form, caching
// the result in c.str so repeated calls return the same storage.
func ComToStr(c *Community) string {
	if c.str != nil {
		return *c.str
	}
	tokens := make([]string, 0, c.Size())
	for i := 0; i < c.Size(); i++ {
		v := c.Value(i)
		if name, ok := WellKnownName(v); ok {
			tokens = append(tokens, name)
			continue
		}
		tokens = append(tokens, fmt.Sprintf("%d:%d", v>>16, v&0xFFFF))
	}
	s := strings.Join(tokens, " ")
	c.str = &s
	return s
}

// Serialize emits the wire bytes (parse(serialize(c)) == c under Equal).
func Serialize(c *Community) []byte {
	return append([]byte(nil), c.val...)
}
