// Package harq tracks the HARQ processes of each device and decides between
// new transmissions and retransmissions.
package harq

import "github.com/sarchlab/nrmac/phymac"

// Status is the state of one stream of a HARQ process.
type Status uint8

// Process statuses.
const (
	StatusEmpty Status = iota
	StatusAwaitingFeedback
	StatusNacked
)

func (s Status) String() string {
	return [...]string{"EMPTY", "AWAITING_FEEDBACK", "NACKED"}[s]
}

// NextRv returns the redundancy version that follows rv: 0, 2, 3, 1, 0.
func NextRv(rv uint8) uint8 {
	switch rv {
	case 0:
		return 2
	case 2:
		return 3
	case 3:
		return 1
	default:
		return 0
	}
}

// A Process holds the transport block in flight on one HARQ process.
type Process struct {
	id       uint8
	dci      *phymac.Dci
	lcids    []uint8
	status   []Status
	retx     []uint8
	payload  []any
	timer    uint32
	nackSeq  uint64
	slotSent phymac.SlotID
}

func newProcess(id uint8, numStreams int) *Process {
	return &Process{
		id:      id,
		status:  make([]Status, numStreams),
		retx:    make([]uint8, numStreams),
		payload: make([]any, numStreams),
	}
}

// ID returns the process ID.
func (p *Process) ID() uint8 { return p.id }

// Dci returns the DCI of the last transmission, or nil if the process is
// empty.
func (p *Process) Dci() *phymac.Dci { return p.dci }

// Lcids returns the logical channels multiplexed into the transport block.
func (p *Process) Lcids() []uint8 { return p.lcids }

// Status returns the status of a stream.
func (p *Process) Status(stream int) Status { return p.status[stream] }

// Retx returns how many times a stream has been retransmitted.
func (p *Process) Retx(stream int) uint8 { return p.retx[stream] }

// SlotSent returns the slot of the last transmission.
func (p *Process) SlotSent() phymac.SlotID { return p.slotSent }

// IsEmpty tells if no stream holds data.
func (p *Process) IsEmpty() bool {
	for _, s := range p.status {
		if s != StatusEmpty {
			return false
		}
	}

	return true
}

func (p *Process) hasStatus(status Status) bool {
	for _, s := range p.status {
		if s == status {
			return true
		}
	}

	return false
}

func (p *Process) releaseIfEmpty() {
	if !p.IsEmpty() {
		return
	}

	p.dci = nil
	p.lcids = nil
	p.timer = 0

	for i := range p.payload {
		p.payload[i] = nil
		p.retx[i] = 0
	}
}
