package rib

// WeedTables drops empty nodes across every (AFI, SAFI) table of vrf,
// returning the total removed. It walks every table in a single pass:
// it takes no budget and does not yield part way through.
func WeedTables(vrf *VRF) int {
	if vrf == nil {
		return 0
	}
	total := 0
	for a := AFI(0); a < numAFI; a++ {
		for s := SAFI(0); s < numSAFI; s++ {
			total += vrf.tables[a][s].weed()
			total += vrf.stables[a][s].weed()
		}
	}
	return total
}

// SweepRoute discards every Removed entry from node and releases its
// shared community reference. It is the
// reclamation half of the meta-queue's two-phase removal (SPEC_FULL.md
// §4.5): selection runs first so a Removed entry's replacement (if any)
// is already Selected before the entry itself is freed.
func SweepRoute(node *Node) int {
	if node == nil {
		return 0
	}
	freed := 0
	var toFree []*Entry
	node.entries.each(func(e *Entry) {
		if e.Removed {
			toFree = append(toFree, e)
		}
	})
	for _, e := range toFree {
		node.deleteEntry(e)
		e.Release()
		freed++
	}
	return freed
}

// Close releases every VRF currently registered. Intended for orderly
// process shutdown (SPEC_FULL.md §9, "deterministic teardown").
func Close() {
	registryMu.Lock()
	defer registryMu.Unlock()
	for id := range vrfByID {
		delete(vrfByID, id)
	}
	for name := range vrfByName {
		delete(vrfByName, name)
	}
}
