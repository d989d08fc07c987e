package macce

import (
	"log"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
)

// TxOpportunity tells the RLC how many bytes it may send on a channel.
type TxOpportunity struct {
	RNTI        uint16
	LCID        uint8
	Size        uint32
	Stream      uint8
	HarqProcess uint8
	BwpIndex    uint8
}

// RlcUser is the upper layer that fills transmit opportunities. The returned
// PDU must not exceed the opportunity size.
type RlcUser interface {
	NotifyTxOpportunity(op TxOpportunity) []byte
}

// PhySink receives what the MAC sends down.
type PhySink interface {
	SendMacPdu(pdu *MacPdu, slot phymac.SlotID, symStart uint8, stream uint8)
	SendControlMessage(msg any)
}

// BufferReporter returns the bytes a device still has queued per group.
type BufferReporter interface {
	LcgBuffers(rnti uint16) [phymac.NumLcgs]uint32
}

// An Assembler turns a slot allocation plan into MAC PDUs.
type Assembler struct {
	direction phymac.Direction
	sendDci   bool
	rlc       RlcUser
	phy       PhySink
	harq      harq.EntityProvider
	buffers   BufferReporter
}

// Assemble builds, stores and sends the transport blocks of every data
// allocation of the assembler's direction. New data is requested from the
// RLC; retransmissions resend the stored PDU. It returns the PDUs sent.
func (a *Assembler) Assemble(plan *phymac.SlotAllocationPlan) []*MacPdu {
	var sent []*MacPdu

	for _, alloc := range plan.Entries {
		dci := alloc.Dci
		if dci.Type() != phymac.AllocData {
			continue
		}

		if a.sendDci {
			a.phy.SendControlMessage(&DciMessage{Slot: plan.Slot, Dci: dci})
		}

		if dci.Direction() != a.direction {
			continue
		}

		entity, ok := a.harq.HarqEntity(dci.RNTI(), dci.Direction())
		if !ok {
			log.Panicf("rnti %d has no harq entity", dci.RNTI())
		}

		for s := 0; s < dci.NumStreams(); s++ {
			if dci.TbSize(s) == 0 {
				continue
			}

			var pdu *MacPdu
			if dci.IsNewData(s) {
				pdu = a.newPdu(plan.Slot, alloc, s)
				entity.SetPayload(dci.HarqProcess(), s, pdu)
			} else {
				pdu = a.storedPdu(entity, dci, s)
				if pdu == nil {
					continue
				}
			}

			a.phy.SendMacPdu(pdu, plan.Slot, dci.SymStart(), uint8(s))
			sent = append(sent, pdu)
		}
	}

	return sent
}

func (a *Assembler) newPdu(
	slot phymac.SlotID,
	alloc phymac.VarTtiAlloc,
	stream int,
) *MacPdu {
	dci := alloc.Dci
	pdu := &MacPdu{
		RNTI:        dci.RNTI(),
		Slot:        slot,
		HarqProcess: dci.HarqProcess(),
		Stream:      uint8(stream),
		TbSize:      dci.TbSize(stream),
	}

	ops := append([]phymac.RlcTxOpportunity(nil), alloc.RlcPdus[stream]...)
	reserved := a.reserveBsr(ops)

	for _, op := range ops {
		if op.Size == 0 {
			continue
		}

		data := a.rlc.NotifyTxOpportunity(TxOpportunity{
			RNTI:        dci.RNTI(),
			LCID:        op.LCID,
			Size:        op.Size,
			Stream:      uint8(stream),
			HarqProcess: dci.HarqProcess(),
			BwpIndex:    dci.BwpIndex(),
		})

		if uint32(len(data)) > op.Size {
			log.Panicf("rlc returned %d bytes for a %d byte opportunity",
				len(data), op.Size)
		}

		if len(data) > 0 {
			pdu.Subpdus = append(pdu.Subpdus, Subpdu{LCID: op.LCID, Data: data})
		}
	}

	if reserved {
		left := a.buffers.LcgBuffers(dci.RNTI())
		if left != [phymac.NumLcgs]uint32{} {
			ce := NewShortBsrCe(left)
			pdu.Bsr = &ce
		}
	}

	return pdu
}

// reserveBsr takes the CE bytes from the largest opportunity.
func (a *Assembler) reserveBsr(ops []phymac.RlcTxOpportunity) bool {
	if a.buffers == nil || len(ops) == 0 {
		return false
	}

	largest := 0
	for i := range ops {
		if ops[i].Size > ops[largest].Size {
			largest = i
		}
	}

	if ops[largest].Size < ShortBsrCeSize {
		return false
	}

	ops[largest].Size -= ShortBsrCeSize

	return true
}

func (a *Assembler) storedPdu(
	entity *harq.Entity,
	dci *phymac.Dci,
	stream int,
) *MacPdu {
	stored := entity.Payload(dci.HarqProcess(), stream)
	if stored == nil {
		log.Printf("macce: rnti %d process %d stream %d has no stored pdu",
			dci.RNTI(), dci.HarqProcess(), stream)
		return nil
	}

	return stored.(*MacPdu)
}
