// Package macce builds MAC PDUs out of allocation decisions and encodes the
// buffer status control element.
package macce

import (
	"fmt"
	"log"

	"github.com/sarchlab/nrmac/phymac"
)

// NumBsrLevels is the number of quantized buffer levels.
const NumBsrLevels = 32

// bsrTable holds the upper bound, in bytes, of every buffer level.
var bsrTable = [NumBsrLevels]uint32{
	0, 10, 14, 20, 28, 38, 53, 74,
	102, 142, 198, 276, 384, 535, 745, 1038,
	1446, 2014, 2806, 3909, 5446, 7587, 10570, 14726,
	20516, 28581, 39818, 55474, 77284, 107669, 150000, 300000,
}

// FromBytesToLevel returns the lowest level whose bound covers the bytes.
// Buffers larger than the last bound saturate at the last level.
func FromBytesToLevel(bytes uint32) uint8 {
	lo, hi := 0, NumBsrLevels-1
	for lo < hi {
		mid := (lo + hi) / 2
		if bsrTable[mid] >= bytes {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	return uint8(lo)
}

// FromLevelToBytes returns the upper bound of a level.
func FromLevelToBytes(level uint8) uint32 {
	if level >= NumBsrLevels {
		log.Panicf("bsr level %d out of range", level)
	}

	return bsrTable[level]
}

// ShortBsrCe reports one buffer level per logical channel group.
type ShortBsrCe struct {
	Levels [phymac.NumLcgs]uint8
}

// ShortBsrCeSize is the size of an encoded ShortBsrCe, sub-header included.
const ShortBsrCeSize = 4

// NewShortBsrCe quantizes per-group byte counts.
func NewShortBsrCe(bytes [phymac.NumLcgs]uint32) ShortBsrCe {
	var ce ShortBsrCe
	for i, b := range bytes {
		ce.Levels[i] = FromBytesToLevel(b)
	}

	return ce
}

// Bytes returns the buffer bound of every group.
func (ce ShortBsrCe) Bytes() [phymac.NumLcgs]uint32 {
	var out [phymac.NumLcgs]uint32
	for i, l := range ce.Levels {
		out[i] = FromLevelToBytes(l)
	}

	return out
}

// Encode packs the four 5-bit levels into three bytes, first group in the
// most significant bits.
func (ce ShortBsrCe) Encode() []byte {
	var v uint32
	for _, l := range ce.Levels {
		v = v<<5 | uint32(l&0x1f)
	}

	v <<= 4

	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

// DecodeShortBsr reverses Encode.
func DecodeShortBsr(buf []byte) (ShortBsrCe, error) {
	var ce ShortBsrCe

	if len(buf) != 3 {
		return ce, fmt.Errorf("short bsr must be 3 bytes, got %d", len(buf))
	}

	v := (uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])) >> 4
	for i := phymac.NumLcgs - 1; i >= 0; i-- {
		ce.Levels[i] = uint8(v & 0x1f)
		v >>= 5
	}

	return ce, nil
}

// Report converts the CE into the record the scheduler consumes.
func (ce ShortBsrCe) Report(rnti uint16) phymac.BsrReport {
	return phymac.BsrReport{RNTI: rnti, Levels: ce.Levels}
}
