package phyabs

import (
	"log"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
)

// UeLcid is the logical channel every synthetic UE uses.
const UeLcid = 1

// UeConfig describes a synthetic UE.
type UeConfig struct {
	RNTI     uint16
	DlSinrDb float64
	UlSinrDb float64

	// Constant bit rate sources, in bytes per slot.
	DlRate uint32
	UlRate uint32
}

// UeStats counts what a UE exchanged over the air.
type UeStats struct {
	DlBytes  uint64
	DlTbs    uint64
	DlErrors uint64
	UlBytes  uint64
	UlTbs    uint64
	UlErrors uint64
	Srs      uint64
}

// Ue is the device side of the link. It owns an UL HARQ entity and builds
// its UL transport blocks with its own assembler.
type Ue struct {
	UeConfig
	Stats UeStats

	ulBuffer  uint32
	ulHarq    *harq.Entity
	assembler *macce.Assembler

	lastGrant   phymac.SlotID
	hasGrant    bool
	lastRequest phymac.SlotID
	hasRequest  bool

	tx []*macce.MacPdu
}

func newUe(cfg UeConfig, numHarqProcesses uint8) *Ue {
	u := &Ue{
		UeConfig: cfg,
		ulHarq:   harq.NewEntity(phymac.UL, numHarqProcesses, 1, 255),
	}

	u.assembler = macce.MakeBuilder().
		WithDirection(phymac.UL).
		WithDciMessages(false).
		WithRlcUser(u).
		WithPhySink(u).
		WithHarqProvider(u).
		WithBufferReporter(u).
		Build()

	return u
}

// UlBuffered returns the bytes waiting for an UL grant.
func (u *Ue) UlBuffered() uint32 {
	return u.ulBuffer
}

// HarqEntity returns the UL HARQ entity of the UE.
func (u *Ue) HarqEntity(rnti uint16, dir phymac.Direction) (*harq.Entity, bool) {
	if rnti != u.RNTI || dir != phymac.UL {
		return nil, false
	}

	return u.ulHarq, true
}

// LcgBuffers reports the UL buffer in group 0.
func (u *Ue) LcgBuffers(uint16) [phymac.NumLcgs]uint32 {
	return [phymac.NumLcgs]uint32{u.ulBuffer}
}

// NotifyTxOpportunity drains the UL buffer.
func (u *Ue) NotifyTxOpportunity(op macce.TxOpportunity) []byte {
	n := min(u.ulBuffer, op.Size)
	u.ulBuffer -= n

	return make([]byte, n)
}

// SendMacPdu keeps the PDU for the PHY to transmit.
func (u *Ue) SendMacPdu(pdu *macce.MacPdu, _ phymac.SlotID, _, _ uint8) {
	u.tx = append(u.tx, pdu)
}

// SendControlMessage is not used on the UE side.
func (u *Ue) SendControlMessage(msg any) {
	log.Panicf("ue %d cannot send %T", u.RNTI, msg)
}

// transmit builds the transport block of an UL grant. A new-data grant on a
// busy process implicitly acknowledges it; a retransmission grant resends
// the stored PDU.
func (u *Ue) transmit(slot phymac.SlotID, dci *phymac.Dci) *macce.MacPdu {
	pid := dci.HarqProcess()
	p, ok := u.ulHarq.Process(pid)
	if !ok {
		log.Panicf("ue %d: grant for harq process %d", u.RNTI, pid)
	}

	alloc := phymac.NewVarTtiAlloc(dci)

	if dci.IsNewData(0) {
		if !p.IsEmpty() {
			u.ulHarq.OnFeedback(pid, []phymac.HarqStatus{phymac.HarqAck})
		}

		if err := u.ulHarq.AssignNewData(dci, []uint8{UeLcid}); err != nil {
			log.Panicf("ue %d: %v", u.RNTI, err)
		}

		if dci.TbSize(0) > macce.SubheaderSize {
			alloc.RlcPdus[0] = []phymac.RlcTxOpportunity{{
				LCID: UeLcid,
				Size: dci.TbSize(0) - macce.SubheaderSize,
			}}
		}
	} else {
		if p.Status(0) == harq.StatusAwaitingFeedback {
			u.ulHarq.OnFeedback(pid, []phymac.HarqStatus{phymac.HarqNack})
		}

		if p.Status(0) != harq.StatusNacked {
			return nil
		}

		u.ulHarq.MarkRetransmitted(dci)
	}

	plan := phymac.NewSlotAllocationPlan(slot, dci.BwpIndex())
	plan.Add(alloc)

	u.tx = u.tx[:0]
	u.assembler.Assemble(plan)

	if len(u.tx) == 0 {
		return nil
	}

	return u.tx[0]
}
