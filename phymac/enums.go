package phymac

// Direction tells whether an allocation is in downlink or uplink.
type Direction uint8

// The two link directions.
const (
	DL Direction = iota
	UL
)

func (d Direction) String() string {
	if d == UL {
		return "UL"
	}

	return "DL"
}

// AllocType tells what an allocation carries.
type AllocType uint8

// Allocation types.
const (
	AllocCtrl AllocType = iota
	AllocData
	AllocSrs
)

func (t AllocType) String() string {
	switch t {
	case AllocCtrl:
		return "CTRL"
	case AllocData:
		return "DATA"
	case AllocSrs:
		return "SRS"
	default:
		return "UNKNOWN"
	}
}

// SlotType is the TDD role of a slot.
type SlotType uint8

// Slot types. S is a DL slot that ends with an UL control symbol; F is a
// flexible slot whose symbols are shared between DL and UL.
const (
	SlotDL SlotType = iota
	SlotUL
	SlotS
	SlotF
)

func (t SlotType) String() string {
	return [...]string{"DL", "UL", "S", "F"}[t]
}

// HasDl tells if DL data may be scheduled in the slot.
func (t SlotType) HasDl() bool {
	return t != SlotUL
}

// HasUl tells if UL symbols exist in the slot.
func (t SlotType) HasUl() bool {
	return t != SlotDL
}

// ParseSlotType converts one pattern character (D, U, S or F) into a SlotType.
func ParseSlotType(c rune) (SlotType, bool) {
	switch c {
	case 'D', 'd':
		return SlotDL, true
	case 'U', 'u':
		return SlotUL, true
	case 'S', 's':
		return SlotS, true
	case 'F', 'f':
		return SlotF, true
	default:
		return SlotDL, false
	}
}

// AllocationKind summarizes the directions present in a plan.
type AllocationKind uint8

// Allocation kinds. AllocBoth is AllocDLOnly|AllocULOnly.
const (
	AllocNone   AllocationKind = 0
	AllocDLOnly AllocationKind = 1
	AllocULOnly AllocationKind = 2
	AllocBoth   AllocationKind = 3
)

func (k AllocationKind) String() string {
	return [...]string{"NONE", "DL", "UL", "BOTH"}[k]
}
