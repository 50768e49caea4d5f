package nexthop

import (
	"net/netip"
	"testing"
)

func mustPrefix(t *testing.T, s string) *netip.Prefix {
	t.Helper()
	p := netip.MustParsePrefix(s)
	return &p
}

func TestSameBlackholeIgnoresOtherFields(t *testing.T) {
	a := New()
	a.Flags |= FlagBlackhole
	a.Ifindex = 3

	b := New()
	b.Flags |= FlagBlackhole
	b.Ifindex = 99

	if !Same(a, b) {
		t.Fatalf("two blackhole nexthops should be Same regardless of ifindex")
	}
}

func TestSameRequiresMatchingGate(t *testing.T) {
	a := New()
	a.Gate = mustPrefix(t, "192.0.2.1/32")

	b := New()
	b.Gate = mustPrefix(t, "192.0.2.2/32")

	if Same(a, b) {
		t.Fatalf("nexthops with different gateways should not be Same")
	}

	b.Gate = mustPrefix(t, "192.0.2.1/32")
	if !Same(a, b) {
		t.Fatalf("nexthops with equal gateways should be Same")
	}
}

func TestSameGatePresenceMismatch(t *testing.T) {
	a := New()
	a.Gate = mustPrefix(t, "192.0.2.1/32")

	b := New()

	if Same(a, b) {
		t.Fatalf("one-nil-one-set gate should not be Same")
	}
}

func TestSameRecursiveRequiresMatchingRgate(t *testing.T) {
	a := New()
	a.Flags |= FlagRecursive
	a.Rifindex = 5
	a.Rgate = mustPrefix(t, "198.51.100.1/32")

	b := New()
	b.Flags |= FlagRecursive
	b.Rifindex = 5
	b.Rgate = mustPrefix(t, "198.51.100.2/32")

	if Same(a, b) {
		t.Fatalf("recursive nexthops with different rgate should not be Same")
	}
}

func TestListAddDeleteCount(t *testing.T) {
	var l List
	a, b, c := New(), New(), New()
	l.Add(a)
	l.Add(b)
	l.Add(c)

	if l.Count() != 3 {
		t.Fatalf("count = %d, want 3", l.Count())
	}

	l.Delete(b)
	if l.Count() != 2 {
		t.Fatalf("count after delete = %d, want 2", l.Count())
	}

	var seen []*Nexthop
	l.Each(func(nh *Nexthop) { seen = append(seen, nh) })
	if len(seen) != 2 || seen[0] != a || seen[1] != c {
		t.Fatalf("unexpected list order after delete: %v", seen)
	}
}

func TestListHeadDeleteRelinksHead(t *testing.T) {
	var l List
	a, b := New(), New()
	l.Add(a)
	l.Add(b)

	l.Delete(a)
	if l.Head() != b {
		t.Fatalf("Head() after deleting head = %v, want b", l.Head())
	}
}

func TestEqualListsStructural(t *testing.T) {
	var l1, l2 List
	nh1 := New()
	nh1.Gate = mustPrefix(t, "192.0.2.1/32")
	l1.Add(nh1)

	nh2 := New()
	nh2.Gate = mustPrefix(t, "192.0.2.1/32")
	l2.Add(nh2)

	if !Equal(&l1, &l2) {
		t.Fatalf("structurally equal lists should be Equal")
	}

	nh3 := New()
	nh3.Gate = mustPrefix(t, "192.0.2.9/32")
	l2.Add(nh3)

	if Equal(&l1, &l2) {
		t.Fatalf("lists of different length should not be Equal")
	}
}

func TestDeepCopyIndependent(t *testing.T) {
	var l List
	nh := New()
	nh.Gate = mustPrefix(t, "192.0.2.1/32")
	l.Add(nh)

	cp := DeepCopy(&l)
	if cp.Count() != l.Count() {
		t.Fatalf("DeepCopy count mismatch")
	}

	*cp.Head().Gate = netip.MustParsePrefix("192.0.2.2/32")
	if *l.Head().Gate == *cp.Head().Gate {
		t.Fatalf("DeepCopy should not alias the source gate pointer")
	}
}
