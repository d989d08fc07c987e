// Package phymac holds the value types shared between the MAC, the scheduler
// and the PHY abstraction: slot identifiers, DCIs, allocation plans and the
// feedback records that flow back from the PHY.
package phymac

import (
	"fmt"
	"log"

	"github.com/sarchlab/nrmac/sim"
)

// SubframesPerFrame is the number of 1 ms subframes in a radio frame.
const SubframesPerFrame = 10

// MaxNumerology is the largest numerology supported.
const MaxNumerology = 6

// SlotID identifies one slot of a numerology. Frames do not wrap.
type SlotID struct {
	Frame      uint32
	Subframe   uint8
	Slot       uint8
	Numerology uint8
}

// NewSlotID creates a SlotID and checks that every field is in range.
func NewSlotID(frame uint32, subframe, slot, numerology uint8) SlotID {
	if numerology > MaxNumerology {
		log.Panicf("numerology %d is not supported", numerology)
	}

	if subframe >= SubframesPerFrame {
		log.Panicf("subframe %d out of range", subframe)
	}

	if uint32(slot) >= uint32(1)<<numerology {
		log.Panicf("slot %d out of range for numerology %d", slot, numerology)
	}

	return SlotID{
		Frame:      frame,
		Subframe:   subframe,
		Slot:       slot,
		Numerology: numerology,
	}
}

// FromNormalized converts a slot count since frame 0 back into a SlotID.
func FromNormalized(n uint64, numerology uint8) SlotID {
	slotsPerSubframe := uint64(1) << numerology
	slotsPerFrame := slotsPerSubframe * SubframesPerFrame

	return NewSlotID(
		uint32(n/slotsPerFrame),
		uint8((n%slotsPerFrame)/slotsPerSubframe),
		uint8(n%slotsPerSubframe),
		numerology,
	)
}

// SlotsPerSubframe returns 2^numerology.
func (s SlotID) SlotsPerSubframe() uint32 {
	return uint32(1) << s.Numerology
}

// Normalized returns the number of slots since the start of frame 0.
func (s SlotID) Normalized() uint64 {
	perSubframe := uint64(s.SlotsPerSubframe())

	return (uint64(s.Frame)*SubframesPerFrame+uint64(s.Subframe))*perSubframe +
		uint64(s.Slot)
}

// Add returns the slot that is n slots later.
func (s SlotID) Add(n uint64) SlotID {
	return FromNormalized(s.Normalized()+n, s.Numerology)
}

// Next returns the following slot.
func (s SlotID) Next() SlotID {
	return s.Add(1)
}

// startTick is the slot start in units of the shortest supported slot, so
// that slots of different numerologies compare exactly.
func (s SlotID) startTick() uint64 {
	return s.Normalized() << (MaxNumerology - s.Numerology)
}

// Compare orders slots by start time. Slots starting together are ordered by
// numerology, the longer slot first. It returns -1, 0 or 1.
func (s SlotID) Compare(other SlotID) int {
	a, b := s.startTick(), other.startTick()

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case s.Numerology < other.Numerology:
		return -1
	case s.Numerology > other.Numerology:
		return 1
	default:
		return 0
	}
}

// Less returns true if s starts before other.
func (s SlotID) Less(other SlotID) bool {
	return s.Compare(other) < 0
}

// Equal tells if both identify the same slot.
func (s SlotID) Equal(other SlotID) bool {
	return s == other
}

// Duration returns the length of the slot.
func (s SlotID) Duration() sim.VTimeInSec {
	return sim.SlotFreq(s.Numerology).Period()
}

// StartTime returns the simulated time at which the slot begins.
func (s SlotID) StartTime() sim.VTimeInSec {
	return sim.VTimeInSec(s.Normalized()) * s.Duration()
}

// SlotAt returns the slot that contains time t.
func SlotAt(t sim.VTimeInSec, numerology uint8) SlotID {
	return FromNormalized(sim.SlotFreq(numerology).Cycle(t), numerology)
}

func (s SlotID) String() string {
	return fmt.Sprintf("[frame %d subframe %d slot %d mu %d]",
		s.Frame, s.Subframe, s.Slot, s.Numerology)
}
