package macce

import (
	"encoding/binary"

	"github.com/sarchlab/nrmac/phymac"
)

// SubheaderSize is the bytes a MAC sub-header adds to each RLC PDU.
const SubheaderSize = 3

// LcidShortBsr is the LCID that marks a short BSR CE.
const LcidShortBsr = 61

// Subpdu is one RLC PDU inside a MAC PDU.
type Subpdu struct {
	LCID uint8
	Data []byte
}

// MacPdu is the transport block sent on one stream of one HARQ process.
type MacPdu struct {
	RNTI        uint16
	Slot        phymac.SlotID
	HarqProcess uint8
	Stream      uint8
	TbSize      uint32
	Subpdus     []Subpdu
	Bsr         *ShortBsrCe
}

// Size returns the bytes used, sub-headers and CE included.
func (p *MacPdu) Size() uint32 {
	var n uint32
	for _, s := range p.Subpdus {
		n += SubheaderSize + uint32(len(s.Data))
	}

	if p.Bsr != nil {
		n += ShortBsrCeSize
	}

	return n
}

// Bytes serializes the PDU and pads it to the transport block size.
func (p *MacPdu) Bytes() []byte {
	buf := make([]byte, 0, max(p.TbSize, p.Size()))

	for _, s := range p.Subpdus {
		buf = append(buf, s.LCID)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Data)))
		buf = append(buf, s.Data...)
	}

	if p.Bsr != nil {
		buf = append(buf, LcidShortBsr)
		buf = append(buf, p.Bsr.Encode()...)
	}

	for uint32(len(buf)) < p.TbSize {
		buf = append(buf, 0)
	}

	return buf
}

// DciMessage carries a grant to the device.
type DciMessage struct {
	Slot phymac.SlotID
	Dci  *phymac.Dci
}

// RarMessage answers random access attempts.
type RarMessage struct {
	Slot phymac.SlotID
	Rars []phymac.RarElement
}

// BsrMessage carries a buffer status report from a device.
type BsrMessage struct {
	RNTI uint16
	Ce   ShortBsrCe
}
