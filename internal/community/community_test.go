package community

import (
	"os"
	"testing"

	"github.com/route-beacon/ribd/internal/object"
)

func TestMain(m *testing.M) {
	Init()
	os.Exit(m.Run())
}

func TestStrToComSortsAndDedupes(t *testing.T) {
	obj, err := StrToCom("65002:200 65001:100 65001:100 no-export")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, obj)

	if obj.Payload.Size() != 3 {
		t.Fatalf("size = %d, want 3 after dedup", obj.Payload.Size())
	}
	// host-order ascending: 65001:100 < 65002:200 < no-export(0xFFFFFF01)
	if got := obj.Payload.Value(0); got != 65001<<16|100 {
		t.Fatalf("Value(0) = %#x, want 65001:100", got)
	}
	if got := obj.Payload.Value(1); got != 65002<<16|200 {
		t.Fatalf("Value(1) = %#x, want 65002:200", got)
	}
	if got := obj.Payload.Value(2); got != NoExport {
		t.Fatalf("Value(2) = %#x, want no-export", got)
	}
}

func TestMergeAppendsAndSorts(t *testing.T) {
	com1, err := StrToCom("100")
	if err != nil {
		t.Fatalf("StrToCom(100): %v", err)
	}
	// com1 is reassigned by WithMutable below (copy-on-write re-intern), so
	// the deferred Deref must read it through the closure, not capture the
	// pre-merge pointer.
	defer func() { object.Deref(Ctx, com1) }()

	com2, err := StrToCom("200")
	if err != nil {
		t.Fatalf("StrToCom(200): %v", err)
	}
	defer object.Deref(Ctx, com2)

	if err := object.WithMutable(Ctx, &com1, func(p *Community) {
		Merge(p, &com2.Payload)
	}); err != nil {
		t.Fatalf("WithMutable: %v", err)
	}

	if got, want := ComToStr(&com1.Payload), "0:100 0:200"; got != want {
		t.Fatalf("ComToStr = %q, want %q", got, want)
	}
}

func TestStrToComRejectsUnknownToken(t *testing.T) {
	if _, err := StrToCom("not-a-community"); err == nil {
		t.Fatalf("expected an error for an unparsable token")
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a non-multiple-of-4 buffer")
	}
}

func TestComToStrRoundTrip(t *testing.T) {
	obj, err := StrToCom("internet 65001:100")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, obj)

	s := ComToStr(&obj.Payload)
	want := "internet 65001:100"
	if s != want {
		t.Fatalf("ComToStr = %q, want %q", s, want)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	buf[3] = 5  // 0:5
	buf[7] = 10 // 0:10

	obj, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer object.Deref(Ctx, obj)

	got := Serialize(&obj.Payload)
	if len(got) != len(buf) {
		t.Fatalf("Serialize length = %d, want %d", len(got), len(buf))
	}
}

func TestMatchSubset(t *testing.T) {
	com1, err := StrToCom("65001:100 65001:200 65001:300")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, com1)

	com2, err := StrToCom("65001:100 65001:300")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, com2)

	com3, err := StrToCom("65001:999")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, com3)

	if !Match(&com1.Payload, &com2.Payload) {
		t.Fatalf("expected com2 to be a subset of com1")
	}
	if Match(&com1.Payload, &com3.Payload) {
		t.Fatalf("expected com3 to not be a subset of com1")
	}
}

func TestIncludeAndDelete(t *testing.T) {
	obj, err := StrToCom("65001:100 65001:200")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	if !Include(&obj.Payload, 65001<<16|100) {
		t.Fatalf("expected 65001:100 to be included")
	}

	mutable, err := object.GetMutable(Ctx, obj)
	if err != nil {
		t.Fatalf("GetMutable: %v", err)
	}
	del, err := StrToCom("65001:100")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, del)

	Delete(&mutable.Payload, &del.Payload)
	if mutable.Payload.Size() != 1 {
		t.Fatalf("size after delete = %d, want 1", mutable.Payload.Size())
	}
	if Include(&mutable.Payload, 65001<<16|100) {
		t.Fatalf("65001:100 should have been removed")
	}

	if mutable == obj {
		object.Deref(Ctx, obj)
	} else {
		object.Discard(Ctx, mutable) // never re-interned, still floating
		object.Deref(Ctx, obj)
	}
}

func TestEqualHandlesNil(t *testing.T) {
	if !Equal(nil, nil) {
		t.Fatalf("Equal(nil, nil) should be true")
	}

	obj, err := StrToCom("internet")
	if err != nil {
		t.Fatalf("StrToCom: %v", err)
	}
	defer object.Deref(Ctx, obj)

	if Equal(obj, nil) || Equal(nil, obj) {
		t.Fatalf("Equal with exactly one nil should be false")
	}
}
