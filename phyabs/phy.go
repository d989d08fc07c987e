// Package phyabs is an abstract PHY with a population of synthetic UEs. It
// decides transport block errors from a BLER curve, reports CQI, HARQ
// feedback, buffer status and scheduling requests back to the MAC, and
// generates constant bit rate traffic.
package phyabs

import (
	"log"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/sarchlab/nrmac/amc"
	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sim"
)

// MacSap is the MAC as seen from the PHY.
type MacSap interface {
	ReceiveDlCqi(r phymac.DlCqiReport)
	ReceiveUlCqi(r phymac.UlCqiReport)
	ReceiveRlcBufferStatus(s phymac.RlcBufferStatus)
	ReceiveHarqFeedback(fb phymac.HarqFeedback)
	ReceiveSchedulingRequest(rnti uint16)
	ReceiveUlMacPdu(pdu *macce.MacPdu)
}

// HookPosTbDecoded marks the decoding of a transport block. Item is a
// TbOutcome.
var HookPosTbDecoded = &sim.HookPos{Name: "TbDecoded"}

// TbOutcome is the result of decoding one transport block.
type TbOutcome struct {
	RNTI      uint16
	Direction phymac.Direction
	Slot      phymac.SlotID
	Mcs       uint8
	Bytes     uint32
	Ok        bool
}

type dciKey struct {
	rnti uint16
	pid  uint8
}

type dlRx struct {
	pdu    *macce.MacPdu
	stream uint8
}

// Phy is the abstract PHY of a cell.
type Phy struct {
	sim.HookableBase

	name      string
	mac       MacSap
	rlc       *Rlc
	amc       *amc.Amc
	rng       *rand.Rand
	k1        uint8
	slope     float64
	harqGain  float64
	cqiPeriod uint64
	srPeriod  uint64
	numHarq   uint8

	ues   map[uint16]*Ue
	rntis []uint16

	dlDcis   map[dciKey]*phymac.Dci
	dlRx     []dlRx
	ulGrants []*phymac.Dci
	feedback map[phymac.SlotID][]phymac.HarqFeedback
	numRars  uint64
}

// Name returns the name of the PHY.
func (p *Phy) Name() string {
	return p.name
}

// SetMac sets where reports go.
func (p *Phy) SetMac(m MacSap) {
	p.mac = m
}

// AddUe adds a synthetic UE. The MAC must be told about it separately.
func (p *Phy) AddUe(cfg UeConfig) *Ue {
	if _, ok := p.ues[cfg.RNTI]; ok {
		log.Panicf("%s: ue %d already exists", p.name, cfg.RNTI)
	}

	u := newUe(cfg, p.numHarq)
	p.ues[cfg.RNTI] = u
	p.rntis = append(p.rntis, cfg.RNTI)
	sort.Slice(p.rntis, func(i, j int) bool { return p.rntis[i] < p.rntis[j] })

	return u
}

// Ue returns a UE by RNTI.
func (p *Phy) Ue(rnti uint16) (*Ue, bool) {
	u, ok := p.ues[rnti]
	return u, ok
}

// Ues returns all the UEs in RNTI order.
func (p *Phy) Ues() []*Ue {
	ues := make([]*Ue, 0, len(p.rntis))
	for _, rnti := range p.rntis {
		ues = append(ues, p.ues[rnti])
	}

	return ues
}

// NumRars returns how many random access responses were received.
func (p *Phy) NumRars() uint64 {
	return p.numRars
}

// Bler returns the block error probability of a transport block at the MCS
// over a link with the given SINR. Retransmissions gain from soft
// combining.
func (p *Phy) Bler(sinrDb float64, mcs uint8, retx bool) float64 {
	margin := sinrDb - p.amc.RequiredSinrDb(mcs)
	if retx {
		margin += p.harqGain
	}

	return 1 / (1 + math.Exp(p.slope*margin))
}

// SendMacPdu receives a DL transport block.
func (p *Phy) SendMacPdu(
	pdu *macce.MacPdu,
	_ phymac.SlotID,
	_ uint8,
	stream uint8,
) {
	p.dlRx = append(p.dlRx, dlRx{pdu: pdu, stream: stream})
}

// SendControlMessage receives DCIs and random access responses.
func (p *Phy) SendControlMessage(msg any) {
	switch m := msg.(type) {
	case *macce.DciMessage:
		if m.Dci.Direction() == phymac.UL {
			p.ulGrants = append(p.ulGrants, m.Dci)
			return
		}

		p.dlDcis[dciKey{m.Dci.RNTI(), m.Dci.HarqProcess()}] = m.Dci
	case *macce.RarMessage:
		p.numRars += uint64(len(m.Rars))
	default:
		log.Panicf("%s: unknown control message %T", p.name, msg)
	}
}

// ProcessSlot decodes what was sent in the slot and produces the reports
// that the UEs and the PHY send back.
func (p *Phy) ProcessSlot(slot phymac.SlotID, plan *phymac.SlotAllocationPlan) {
	if p.mac == nil {
		log.Panicf("%s: mac is not set", p.name)
	}

	p.decodeDl(slot)
	p.decodeUl(slot)
	p.sound(slot, plan)
	p.deliverFeedback(slot)
	p.reportCqi(slot)
	p.generateTraffic()
	p.requestGrants(slot)

	p.dlDcis = make(map[dciKey]*phymac.Dci)
	p.dlRx = nil
	p.ulGrants = nil
}

func (p *Phy) decodeDl(slot phymac.SlotID) {
	due := slot.Add(uint64(p.k1))
	results := make(map[dciKey][]phymac.HarqStatus)

	var order []dciKey

	for _, rx := range p.dlRx {
		pdu := rx.pdu
		key := dciKey{pdu.RNTI, pdu.HarqProcess}

		dci, ok := p.dlDcis[key]
		if !ok {
			log.Panicf("%s: pdu of rnti %d without dci", p.name, pdu.RNTI)
		}

		u, ok := p.ues[pdu.RNTI]
		if !ok {
			continue
		}

		stream := int(rx.stream)
		mcs := dci.Mcs(stream)
		okRx := p.draw(p.Bler(u.DlSinrDb, mcs, !dci.IsNewData(stream)))
		bytes := pdu.Size()

		u.Stats.DlTbs++
		if okRx {
			u.Stats.DlBytes += uint64(bytes)
		} else {
			u.Stats.DlErrors++
		}

		p.outcome(TbOutcome{
			RNTI: pdu.RNTI, Direction: phymac.DL, Slot: slot,
			Mcs: mcs, Bytes: bytes, Ok: okRx,
		})

		statuses, seen := results[key]
		if !seen {
			statuses = make([]phymac.HarqStatus, dci.NumStreams())
			order = append(order, key)
		}

		statuses[stream] = phymac.HarqNack
		if okRx {
			statuses[stream] = phymac.HarqAck
		}

		results[key] = statuses
	}

	for _, key := range order {
		p.feedback[due] = append(p.feedback[due], phymac.HarqFeedback{
			RNTI:      key.rnti,
			Direction: phymac.DL,
			ProcessID: key.pid,
			BwpIndex:  p.dlDcis[key].BwpIndex(),
			Streams:   results[key],
		})
	}
}

func (p *Phy) decodeUl(slot phymac.SlotID) {
	for _, dci := range p.ulGrants {
		u, ok := p.ues[dci.RNTI()]
		if !ok {
			continue
		}

		u.lastGrant = slot
		u.hasGrant = true

		pdu := u.transmit(slot, dci)
		if pdu == nil {
			continue
		}

		okRx := p.draw(p.Bler(u.UlSinrDb, dci.Mcs(0), !dci.IsNewData(0)))

		u.Stats.UlTbs++
		status := phymac.HarqNack

		if okRx {
			status = phymac.HarqAck
			u.Stats.UlBytes += uint64(pdu.Size())
			p.mac.ReceiveUlMacPdu(pdu)
		} else {
			u.Stats.UlErrors++
		}

		p.outcome(TbOutcome{
			RNTI: u.RNTI, Direction: phymac.UL, Slot: slot,
			Mcs: dci.Mcs(0), Bytes: pdu.Size(), Ok: okRx,
		})

		p.mac.ReceiveHarqFeedback(phymac.HarqFeedback{
			RNTI:      u.RNTI,
			Direction: phymac.UL,
			ProcessID: dci.HarqProcess(),
			BwpIndex:  dci.BwpIndex(),
			Streams:   []phymac.HarqStatus{status},
		})
		p.mac.ReceiveUlCqi(phymac.UlCqiReport{
			RNTI:   u.RNTI,
			Slot:   slot,
			Source: phymac.UlCqiPusch,
			SinrDb: p.perRbgSinr(u.UlSinrDb, dci.RbgMask()),
		})
	}
}

// perRbgSinr returns the SINR of the RBGs in the mask and -Inf elsewhere.
func (p *Phy) perRbgSinr(sinrDb float64, mask phymac.RbgMask) []float64 {
	out := make([]float64, len(mask))
	for i, used := range mask {
		out[i] = math.Inf(-1)
		if used {
			out[i] = sinrDb
		}
	}

	return out
}

func (p *Phy) sound(slot phymac.SlotID, plan *phymac.SlotAllocationPlan) {
	for _, a := range plan.Entries {
		if a.Dci.Type() != phymac.AllocSrs {
			continue
		}

		u, ok := p.ues[a.Dci.RNTI()]
		if !ok {
			continue
		}

		u.Stats.Srs++
		p.mac.ReceiveUlCqi(phymac.UlCqiReport{
			RNTI:   u.RNTI,
			Slot:   slot,
			Source: phymac.UlCqiSrs,
			SinrDb: p.perRbgSinr(u.UlSinrDb, a.Dci.RbgMask()),
		})
	}
}

func (p *Phy) deliverFeedback(slot phymac.SlotID) {
	for _, fb := range p.feedback[slot] {
		p.mac.ReceiveHarqFeedback(fb)
	}

	delete(p.feedback, slot)
}

func (p *Phy) reportCqi(slot phymac.SlotID) {
	if p.cqiPeriod == 0 || slot.Normalized()%p.cqiPeriod != 0 {
		return
	}

	for _, u := range p.Ues() {
		cqi, _ := p.amc.FromSinr([]float64{u.DlSinrDb})
		p.mac.ReceiveDlCqi(phymac.DlCqiReport{
			RNTI:        u.RNTI,
			Slot:        slot,
			WidebandCqi: []uint8{cqi},
			Rank:        1,
		})
	}
}

func (p *Phy) generateTraffic() {
	for _, u := range p.Ues() {
		if u.DlRate > 0 && p.rlc != nil {
			p.rlc.Push(u.RNTI, UeLcid, u.DlRate)
			p.mac.ReceiveRlcBufferStatus(p.rlc.Status(u.RNTI, UeLcid))
		}

		u.ulBuffer += u.UlRate
	}
}

// requestGrants sends a scheduling request for every UE with UL data that
// has not been granted, nor asked, within the SR period.
func (p *Phy) requestGrants(slot phymac.SlotID) {
	for _, u := range p.Ues() {
		if u.ulBuffer == 0 {
			continue
		}

		if u.hasGrant && p.within(u.lastGrant, slot) {
			continue
		}

		if u.hasRequest && p.within(u.lastRequest, slot) {
			continue
		}

		u.lastRequest = slot
		u.hasRequest = true
		p.mac.ReceiveSchedulingRequest(u.RNTI)
	}
}

func (p *Phy) within(past, now phymac.SlotID) bool {
	return now.Normalized()-past.Normalized() < p.srPeriod
}

func (p *Phy) draw(bler float64) bool {
	return p.rng.Float64() >= bler
}

func (p *Phy) outcome(o TbOutcome) {
	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosTbDecoded,
		Item:   o,
	})
}
