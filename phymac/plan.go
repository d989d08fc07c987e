package phymac

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// RlcTxOpportunity grants Size bytes to one logical channel.
type RlcTxOpportunity struct {
	LCID uint8
	Size uint32
}

// VarTtiAlloc is one entry of a slot allocation plan. RlcPdus holds, per
// stream, the transmit opportunities handed to the RLC.
type VarTtiAlloc struct {
	Dci     *Dci
	RlcPdus [][]RlcTxOpportunity
}

// NewVarTtiAlloc wraps a Dci with empty per-stream RLC opportunity lists.
func NewVarTtiAlloc(d *Dci) VarTtiAlloc {
	return VarTtiAlloc{
		Dci:     d,
		RlcPdus: make([][]RlcTxOpportunity, d.NumStreams()),
	}
}

// SlotAllocationPlan is the output of one scheduling decision.
type SlotAllocationPlan struct {
	Slot     SlotID
	BwpIndex uint8
	Entries  []VarTtiAlloc
}

// NewSlotAllocationPlan creates an empty plan.
func NewSlotAllocationPlan(slot SlotID, bwpIndex uint8) *SlotAllocationPlan {
	return &SlotAllocationPlan{
		Slot:     slot,
		BwpIndex: bwpIndex,
	}
}

// Add inserts an entry, keeping entries ordered by starting symbol. Entries
// with the same starting symbol keep their insertion order.
func (p *SlotAllocationPlan) Add(a VarTtiAlloc) {
	i := sort.Search(len(p.Entries), func(i int) bool {
		return p.Entries[i].Dci.SymStart() > a.Dci.SymStart()
	})

	p.Entries = append(p.Entries, VarTtiAlloc{})
	copy(p.Entries[i+1:], p.Entries[i:])
	p.Entries[i] = a
}

// Merge moves all entries of other into p. Both plans must be for the same
// slot.
func (p *SlotAllocationPlan) Merge(other *SlotAllocationPlan) {
	if other.Slot != p.Slot {
		log.Panicf("cannot merge plan of %s into plan of %s",
			other.Slot, p.Slot)
	}

	for _, a := range other.Entries {
		p.Add(a)
	}
}

// RemoveRnti drops the data allocations of one RNTI and returns how many
// were dropped. Control allocations stay.
func (p *SlotAllocationPlan) RemoveRnti(rnti uint16) int {
	kept := p.Entries[:0]

	for _, a := range p.Entries {
		if a.Dci.Type() == AllocData && a.Dci.RNTI() == rnti {
			continue
		}

		kept = append(kept, a)
	}

	removed := len(p.Entries) - len(kept)
	for i := len(kept); i < len(p.Entries); i++ {
		p.Entries[i] = VarTtiAlloc{}
	}

	p.Entries = kept

	return removed
}

// Kind returns which directions the plan contains.
func (p *SlotAllocationPlan) Kind() AllocationKind {
	k := AllocNone

	for _, a := range p.Entries {
		if a.Dci.Direction() == DL {
			k |= AllocDLOnly
		} else {
			k |= AllocULOnly
		}
	}

	return k
}

// NumSymAlloc returns how many distinct symbols are used by any entry.
func (p *SlotAllocationPlan) NumSymAlloc() int {
	var used [256]bool

	n := 0

	for _, a := range p.Entries {
		for s := int(a.Dci.SymStart()); s < int(a.Dci.SymEnd()); s++ {
			if !used[s] {
				used[s] = true
				n++
			}
		}
	}

	return n
}

// IsEmpty tells if the plan has no entries.
func (p *SlotAllocationPlan) IsEmpty() bool {
	return len(p.Entries) == 0
}

// ContainsDataAllocation tells if any entry carries data.
func (p *SlotAllocationPlan) ContainsDataAllocation() bool {
	for _, a := range p.Entries {
		if a.Dci.Type() == AllocData {
			return true
		}
	}

	return false
}

// ContainsDlCtrlAllocation tells if the plan holds the DL control region.
func (p *SlotAllocationPlan) ContainsDlCtrlAllocation() bool {
	for _, a := range p.Entries {
		if a.Dci.Type() == AllocCtrl && a.Dci.Direction() == DL {
			return true
		}
	}

	return false
}

// ContainsUlCtrlAllocation tells if the plan holds UL control or sounding.
func (p *SlotAllocationPlan) ContainsUlCtrlAllocation() bool {
	for _, a := range p.Entries {
		if a.Dci.Type() != AllocData && a.Dci.Direction() == UL {
			return true
		}
	}

	return false
}

// DataAllocations returns the data entries of one direction.
func (p *SlotAllocationPlan) DataAllocations(dir Direction) []VarTtiAlloc {
	var out []VarTtiAlloc

	for _, a := range p.Entries {
		if a.Dci.Type() == AllocData && a.Dci.Direction() == dir {
			out = append(out, a)
		}
	}

	return out
}

// CheckNoDoubleBooking returns an error if two entries of the same direction
// share both a symbol and an RBG.
func (p *SlotAllocationPlan) CheckNoDoubleBooking() error {
	for i := 0; i < len(p.Entries); i++ {
		a := p.Entries[i].Dci

		for j := i + 1; j < len(p.Entries); j++ {
			b := p.Entries[j].Dci

			if a.Direction() != b.Direction() {
				continue
			}

			if a.OverlapsSymbols(b) && a.rbgMask.Overlaps(b.rbgMask) {
				return fmt.Errorf("%s: %s overlaps %s", p.Slot, a, b)
			}
		}
	}

	return nil
}

func (p *SlotAllocationPlan) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "plan %s bwp %d kind %s sym %d\n",
		p.Slot, p.BwpIndex, p.Kind(), p.NumSymAlloc())

	for _, a := range p.Entries {
		sb.WriteString("  ")
		sb.WriteString(a.Dci.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}
