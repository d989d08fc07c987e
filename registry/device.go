package registry

import (
	"errors"
	"sort"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
)

// ErrUnknownLogicalChannel is returned when a logical channel is not
// configured on the device.
var ErrUnknownLogicalChannel = errors.New("unknown logical channel")

// LogicalChannel is one configured bearer with its DL RLC queue state.
type LogicalChannel struct {
	Config        sap.LogicalChannelConfig
	TxQueueSize   uint32
	RetxQueueSize uint32
	StatusPduSize uint32
}

// LCID returns the logical channel ID.
func (lc *LogicalChannel) LCID() uint8 { return lc.Config.LCID }

// Buffered returns the bytes waiting in the DL RLC queues.
func (lc *LogicalChannel) Buffered() uint32 {
	return lc.TxQueueSize + lc.RetxQueueSize + lc.StatusPduSize
}

// Drain removes up to n bytes, status PDUs first, then retransmissions,
// then new data.
func (lc *LogicalChannel) Drain(n uint32) {
	take := func(q *uint32) {
		d := min(*q, n)
		*q -= d
		n -= d
	}

	take(&lc.StatusPduSize)
	take(&lc.RetxQueueSize)
	take(&lc.TxQueueSize)
}

// LinkState is the link adaptation state of one direction.
type LinkState struct {
	Cqi      []uint8
	Mcs      []uint8
	Rank     uint8
	CqiTimer uint32
}

func newLinkState(numStreams int, startMcs uint8) LinkState {
	l := LinkState{
		Cqi:  make([]uint8, numStreams),
		Mcs:  make([]uint8, numStreams),
		Rank: 1,
	}
	l.Reset(startMcs)

	return l
}

// Reset returns the link to CQI 1 and the start MCS.
func (l *LinkState) Reset(startMcs uint8) {
	for i := range l.Cqi {
		l.Cqi[i] = 1
		l.Mcs[i] = startMcs
	}

	l.CqiTimer = 0
}

// Age advances the CQI expiry timer by one slot. When the last report is
// too old the link is reset and true is returned.
func (l *LinkState) Age(startMcs uint8) bool {
	if l.CqiTimer == 0 {
		if l.Cqi[0] == 1 && l.Mcs[0] == startMcs {
			return false
		}

		l.Reset(startMcs)

		return true
	}

	l.CqiTimer--

	return false
}

// Device is the state the scheduler keeps for one connected device.
type Device struct {
	RNTI             uint16
	BeamID           sap.BeamID
	TransmissionMode uint8

	DlHarq *harq.Entity
	UlHarq *harq.Entity

	Dl LinkState
	Ul LinkState

	// UlLcgBytes is the last reported UL buffer of each group.
	UlLcgBytes [phymac.NumLcgs]uint32

	// DlAvgThroughput and UlAvgThroughput are the proportional-fair
	// averages, in bytes per slot.
	DlAvgThroughput float64
	UlAvgThroughput float64

	channels map[uint8]*LogicalChannel
}

// LogicalChannel returns a configured logical channel.
func (d *Device) LogicalChannel(lcid uint8) (*LogicalChannel, bool) {
	lc, ok := d.channels[lcid]
	return lc, ok
}

// LogicalChannels returns all channels ordered by priority, then by LCID.
// Lower priority values are served first.
func (d *Device) LogicalChannels() []*LogicalChannel {
	out := make([]*LogicalChannel, 0, len(d.channels))
	for _, lc := range d.channels {
		out = append(out, lc)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Config.Qos.Priority, out[j].Config.Qos.Priority
		if pi != pj {
			return pi < pj
		}

		return out[i].LCID() < out[j].LCID()
	})

	return out
}

// ActiveDlChannels returns the channels with DL data, in priority order.
func (d *Device) ActiveDlChannels() []*LogicalChannel {
	var out []*LogicalChannel

	for _, lc := range d.LogicalChannels() {
		if lc.Buffered() > 0 {
			out = append(out, lc)
		}
	}

	return out
}

// ActiveUlGroups returns the groups with reported UL data.
func (d *Device) ActiveUlGroups() []uint8 {
	var out []uint8

	for g, b := range d.UlLcgBytes {
		if b > 0 {
			out = append(out, uint8(g))
		}
	}

	return out
}

// DlBuffered returns the DL bytes waiting over all channels.
func (d *Device) DlBuffered() uint32 {
	var sum uint32
	for _, lc := range d.channels {
		sum += lc.Buffered()
	}

	return sum
}

// UlBuffered returns the UL bytes reported over all groups.
func (d *Device) UlBuffered() uint32 {
	var sum uint32
	for _, b := range d.UlLcgBytes {
		sum += b
	}

	return sum
}

// UpdateDlBuffer replaces the DL queue state of a channel.
func (d *Device) UpdateDlBuffer(status phymac.RlcBufferStatus) error {
	lc, ok := d.channels[status.LCID]
	if !ok {
		return ErrUnknownLogicalChannel
	}

	lc.TxQueueSize = status.TxQueueSize
	lc.RetxQueueSize = status.RetxQueueSize
	lc.StatusPduSize = status.StatusPduSize

	return nil
}

// DrainUl removes n granted bytes from the reported UL groups, lowest group
// first.
func (d *Device) DrainUl(n uint32) {
	for g := range d.UlLcgBytes {
		take := min(d.UlLcgBytes[g], n)
		d.UlLcgBytes[g] -= take
		n -= take
	}
}

// HarqEntity returns the HARQ entity of a direction.
func (d *Device) HarqEntity(dir phymac.Direction) *harq.Entity {
	if dir == phymac.UL {
		return d.UlHarq
	}

	return d.DlHarq
}
