package phymac

import (
	"fmt"
	"log"
	"strings"
)

// DefaultSymbolsPerSlot is the number of OFDM symbols in a slot with normal
// cyclic prefix.
const DefaultSymbolsPerSlot = 14

// A Dci is the downlink control information that grants one device a set of
// RBGs over a range of symbols. A Dci is immutable once built; use a
// DciBuilder, or DciBuilder.From to derive a new one.
type Dci struct {
	rnti        uint16
	direction   Direction
	allocType   AllocType
	symStart    uint8
	numSym      uint8
	harqProcess uint8
	bwpIndex    uint8
	tpc         uint8
	rbgMask     RbgMask
	mcs         []uint8
	tbSize      []uint32
	ndi         []uint8
	rv          []uint8
}

// RNTI returns the identifier of the granted device.
func (d *Dci) RNTI() uint16 { return d.rnti }

// Direction returns whether the grant is DL or UL.
func (d *Dci) Direction() Direction { return d.direction }

// Type returns what the grant carries.
func (d *Dci) Type() AllocType { return d.allocType }

// SymStart returns the first granted symbol.
func (d *Dci) SymStart() uint8 { return d.symStart }

// NumSym returns the number of granted symbols.
func (d *Dci) NumSym() uint8 { return d.numSym }

// SymEnd returns one past the last granted symbol.
func (d *Dci) SymEnd() uint8 { return d.symStart + d.numSym }

// HarqProcess returns the HARQ process ID of a data grant.
func (d *Dci) HarqProcess() uint8 { return d.harqProcess }

// BwpIndex returns the bandwidth part of the grant.
func (d *Dci) BwpIndex() uint8 { return d.bwpIndex }

// Tpc returns the transmit power control command.
func (d *Dci) Tpc() uint8 { return d.tpc }

// RbgMask returns a copy of the granted RBGs.
func (d *Dci) RbgMask() RbgMask { return d.rbgMask.Clone() }

// NumRbg returns the number of granted RBGs.
func (d *Dci) NumRbg() int { return d.rbgMask.Count() }

// NumStreams returns the number of spatial streams.
func (d *Dci) NumStreams() int { return len(d.mcs) }

// Mcs returns the MCS of a stream.
func (d *Dci) Mcs(stream int) uint8 { return d.mcs[stream] }

// TbSize returns the transport block size, in bytes, of a stream.
func (d *Dci) TbSize(stream int) uint32 { return d.tbSize[stream] }

// Ndi returns the new data indicator of a stream.
func (d *Dci) Ndi(stream int) uint8 { return d.ndi[stream] }

// Rv returns the redundancy version of a stream.
func (d *Dci) Rv(stream int) uint8 { return d.rv[stream] }

// IsNewData tells if a stream carries a new transport block.
func (d *Dci) IsNewData(stream int) bool { return d.ndi[stream] == 1 }

// TotalTbSize returns the sum of the transport block sizes of all streams.
func (d *Dci) TotalTbSize() uint32 {
	var sum uint32
	for _, s := range d.tbSize {
		sum += s
	}

	return sum
}

// OverlapsSymbols tells if the two grants share at least one symbol.
func (d *Dci) OverlapsSymbols(other *Dci) bool {
	return d.symStart < other.SymEnd() && other.symStart < d.SymEnd()
}

func (d *Dci) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s rnti=%d sym=[%d,%d) rbg=%s",
		d.direction, d.allocType, d.rnti, d.symStart, d.SymEnd(), d.rbgMask)

	if d.allocType == AllocData {
		fmt.Fprintf(&sb, " pid=%d", d.harqProcess)

		for i := range d.mcs {
			fmt.Fprintf(&sb, " s%d{mcs=%d tbs=%d ndi=%d rv=%d}",
				i, d.mcs[i], d.tbSize[i], d.ndi[i], d.rv[i])
		}
	}

	return sb.String()
}

// DciBuilder builds Dcis.
type DciBuilder struct {
	rnti           uint16
	direction      Direction
	allocType      AllocType
	symStart       uint8
	numSym         uint8
	harqProcess    uint8
	bwpIndex       uint8
	tpc            uint8
	symbolsPerSlot uint8
	rbgMask        RbgMask
	mcs            []uint8
	tbSize         []uint32
	ndi            []uint8
	rv             []uint8
}

// MakeDciBuilder creates a DciBuilder with default parameters.
func MakeDciBuilder() DciBuilder {
	return DciBuilder{
		allocType:      AllocData,
		tpc:            1,
		symbolsPerSlot: DefaultSymbolsPerSlot,
	}
}

// From returns a builder preloaded with every field of d.
func (b DciBuilder) From(d *Dci) DciBuilder {
	b.rnti = d.rnti
	b.direction = d.direction
	b.allocType = d.allocType
	b.symStart = d.symStart
	b.numSym = d.numSym
	b.harqProcess = d.harqProcess
	b.bwpIndex = d.bwpIndex
	b.tpc = d.tpc
	b.rbgMask = d.rbgMask.Clone()
	b.mcs = append([]uint8(nil), d.mcs...)
	b.tbSize = append([]uint32(nil), d.tbSize...)
	b.ndi = append([]uint8(nil), d.ndi...)
	b.rv = append([]uint8(nil), d.rv...)

	return b
}

// WithRNTI sets the granted device.
func (b DciBuilder) WithRNTI(rnti uint16) DciBuilder {
	b.rnti = rnti
	return b
}

// WithDirection sets the link direction.
func (b DciBuilder) WithDirection(dir Direction) DciBuilder {
	b.direction = dir
	return b
}

// WithType sets the allocation type.
func (b DciBuilder) WithType(t AllocType) DciBuilder {
	b.allocType = t
	return b
}

// WithSymbols sets the granted symbol range.
func (b DciBuilder) WithSymbols(start, num uint8) DciBuilder {
	b.symStart = start
	b.numSym = num

	return b
}

// WithSymbolsPerSlot sets the slot length used to validate the symbol range.
func (b DciBuilder) WithSymbolsPerSlot(n uint8) DciBuilder {
	b.symbolsPerSlot = n
	return b
}

// WithHarqProcess sets the HARQ process ID.
func (b DciBuilder) WithHarqProcess(pid uint8) DciBuilder {
	b.harqProcess = pid
	return b
}

// WithBwpIndex sets the bandwidth part.
func (b DciBuilder) WithBwpIndex(bwp uint8) DciBuilder {
	b.bwpIndex = bwp
	return b
}

// WithTpc sets the transmit power control command.
func (b DciBuilder) WithTpc(tpc uint8) DciBuilder {
	b.tpc = tpc
	return b
}

// WithRbgMask sets the granted RBGs.
func (b DciBuilder) WithRbgMask(mask RbgMask) DciBuilder {
	b.rbgMask = mask.Clone()
	return b
}

// WithStream appends one spatial stream.
func (b DciBuilder) WithStream(mcs uint8, tbSize uint32, ndi, rv uint8) DciBuilder {
	b.mcs = append(append([]uint8(nil), b.mcs...), mcs)
	b.tbSize = append(append([]uint32(nil), b.tbSize...), tbSize)
	b.ndi = append(append([]uint8(nil), b.ndi...), ndi)
	b.rv = append(append([]uint8(nil), b.rv...), rv)

	return b
}

// WithStreams replaces all spatial streams. The four slices must have the
// same length.
func (b DciBuilder) WithStreams(
	mcs []uint8,
	tbSize []uint32,
	ndi, rv []uint8,
) DciBuilder {
	if len(tbSize) != len(mcs) || len(ndi) != len(mcs) || len(rv) != len(mcs) {
		log.Panic("per-stream fields must have the same length")
	}

	b.mcs = append([]uint8(nil), mcs...)
	b.tbSize = append([]uint32(nil), tbSize...)
	b.ndi = append([]uint8(nil), ndi...)
	b.rv = append([]uint8(nil), rv...)

	return b
}

// WithStreamRetx marks one stream for retransmission with a new RV, keeping
// its MCS and size.
func (b DciBuilder) WithStreamRetx(stream int, rv uint8) DciBuilder {
	b.ndi = append([]uint8(nil), b.ndi...)
	b.rv = append([]uint8(nil), b.rv...)
	b.ndi[stream] = 0
	b.rv[stream] = rv

	return b
}

// Build creates a new Dci.
func (b DciBuilder) Build() *Dci {
	b.parametersMustBeValid()

	d := &Dci{
		rnti:        b.rnti,
		direction:   b.direction,
		allocType:   b.allocType,
		symStart:    b.symStart,
		numSym:      b.numSym,
		harqProcess: b.harqProcess,
		bwpIndex:    b.bwpIndex,
		tpc:         b.tpc,
		rbgMask:     b.rbgMask.Clone(),
		mcs:         append([]uint8(nil), b.mcs...),
		tbSize:      append([]uint32(nil), b.tbSize...),
		ndi:         append([]uint8(nil), b.ndi...),
		rv:          append([]uint8(nil), b.rv...),
	}

	if len(d.mcs) == 0 {
		d.mcs = []uint8{0}
		d.tbSize = []uint32{0}
		d.ndi = []uint8{0}
		d.rv = []uint8{0}
	}

	return d
}

func (b DciBuilder) parametersMustBeValid() {
	if b.numSym == 0 {
		log.Panic("a DCI must cover at least one symbol")
	}

	if int(b.symStart)+int(b.numSym) > int(b.symbolsPerSlot) {
		log.Panicf("symbols [%d,%d) exceed the %d symbols of a slot",
			b.symStart, int(b.symStart)+int(b.numSym), b.symbolsPerSlot)
	}

	if b.rbgMask.Count() == 0 {
		log.Panic("a DCI must cover at least one RBG")
	}

	if b.allocType == AllocData && len(b.mcs) == 0 {
		log.Panic("a data DCI must carry at least one stream")
	}
}
