// Package rib implements the RIB entry and VRF table model: per-prefix
// route entries keyed by (AFI, SAFI, VRF, prefix), static route
// configuration, and best-route selection. See SPEC_FULL.md §4.4.
package rib

// AFI is the address family a table belongs to.
type AFI int

const (
	AFIIP AFI = iota
	AFIIP6
	numAFI
)

// SAFI is the subsequent address family a table belongs to.
type SAFI int

const (
	SAFIUnicast SAFI = iota
	SAFIMulticast
	numSAFI
)

// Type identifies the protocol origin of a rib entry.
type Type uint8

const (
	TypeKernel Type = iota
	TypeConnected
	TypeStatic
	TypeRIP
	TypeRIPng
	TypeOSPF
	TypeOSPFv3
	TypeISIS
	TypeIBGP
	TypeEBGP
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeKernel:
		return "kernel"
	case TypeConnected:
		return "connected"
	case TypeStatic:
		return "static"
	case TypeRIP:
		return "rip"
	case TypeRIPng:
		return "ripng"
	case TypeOSPF:
		return "ospf"
	case TypeOSPFv3:
		return "ospf3"
	case TypeISIS:
		return "isis"
	case TypeIBGP:
		return "ibgp"
	case TypeEBGP:
		return "ebgp"
	default:
		return "other"
	}
}

// DefaultDistance returns the standard administrative distance for a
// protocol origin, used as the primary best-route tie-break and as the
// static route default when a distance is not supplied. Values mirror
// the defaults visible in original_source/zebra/zebra_vty.c.
func DefaultDistance(t Type) uint8 {
	switch t {
	case TypeKernel, TypeConnected:
		return 0
	case TypeStatic:
		return StaticDistanceDefault
	case TypeRIP, TypeRIPng:
		return 120
	case TypeOSPF, TypeOSPFv3:
		return 110
	case TypeISIS:
		return 115
	case TypeEBGP:
		return 20
	case TypeIBGP:
		return 200
	default:
		return 255
	}
}

// StaticDistanceDefault is ZEBRA_STATIC_DISTANCE_DEFAULT (SPEC_FULL.md
// §6): the administrative distance used for a static route whose
// distance was not supplied.
const StaticDistanceDefault uint8 = 1

// SubQueue returns the meta-queue sub-queue index (0-4) a protocol origin
// is assigned to, per SPEC_FULL.md §4.5.
func SubQueue(t Type) int {
	switch t {
	case TypeConnected, TypeKernel:
		return 0
	case TypeStatic:
		return 1
	case TypeRIP, TypeRIPng, TypeOSPF, TypeOSPFv3, TypeISIS:
		return 2
	case TypeIBGP, TypeEBGP:
		return 3
	default:
		return 4
	}
}

// LookupCode is the result of RIBLookupRoute: the relation between a
// gateway and the RIB.
type LookupCode int

const (
	LookupError      LookupCode = -1
	LookupFoundExact LookupCode = 0
	LookupFoundNoGate LookupCode = 1
	LookupFoundConnected LookupCode = 2
	LookupNotFound   LookupCode = 3
)
