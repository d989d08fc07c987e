package harq

import (
	"errors"
	"log"
	"sort"

	"github.com/sarchlab/nrmac/phymac"
)

// ErrProcessBusy is returned when new data is assigned to a process that
// still holds data.
var ErrProcessBusy = errors.New("harq process is not empty")

// Result classifies how a piece of feedback was handled.
type Result uint8

// Feedback results. Everything but ResultApplied and ResultDropped means the
// feedback was ignored.
const (
	ResultApplied Result = iota
	ResultDropped
	ResultStale
	ResultOutOfRange
	ResultUnknownRNTI
)

func (r Result) String() string {
	return [...]string{
		"APPLIED", "DROPPED", "STALE", "OUT_OF_RANGE", "UNKNOWN_RNTI",
	}[r]
}

// IsIgnored tells if the feedback did not change any process.
func (r Result) IsIgnored() bool {
	return r >= ResultStale
}

// Counts is the number of processes of one stream in each status.
type Counts struct {
	Empty    int
	Awaiting int
	Nacked   int
}

// Total returns the number of processes counted.
func (c Counts) Total() int {
	return c.Empty + c.Awaiting + c.Nacked
}

// An Entity owns the HARQ processes of one device in one direction.
type Entity struct {
	direction  phymac.Direction
	numStreams int
	maxRetx    uint8
	timeout    uint32
	processes  []*Process
	cursor     int
	nackSeq    uint64

	numDropped  uint64
	numTimedOut uint64
}

// NewEntity creates an entity with numProcesses processes of numStreams
// streams each. A NACK that arrives after maxRetx retransmissions drops the
// transport block. A process awaiting feedback for numProcesses triggers is
// released.
func NewEntity(
	dir phymac.Direction,
	numProcesses uint8,
	numStreams int,
	maxRetx uint8,
) *Entity {
	if numProcesses == 0 {
		log.Panic("an HARQ entity needs at least one process")
	}

	if numStreams <= 0 {
		log.Panic("an HARQ entity needs at least one stream")
	}

	e := &Entity{
		direction:  dir,
		numStreams: numStreams,
		maxRetx:    maxRetx,
		timeout:    uint32(numProcesses),
	}

	for i := uint8(0); i < numProcesses; i++ {
		e.processes = append(e.processes, newProcess(i, numStreams))
	}

	return e
}

// Direction returns the link direction served by the entity.
func (e *Entity) Direction() phymac.Direction { return e.direction }

// NumProcesses returns the configured number of processes.
func (e *Entity) NumProcesses() int { return len(e.processes) }

// NumStreams returns the number of streams per process.
func (e *Entity) NumStreams() int { return e.numStreams }

// NumDropped returns how many transport blocks exhausted their
// retransmissions.
func (e *Entity) NumDropped() uint64 { return e.numDropped }

// NumTimedOut returns how many processes were released without feedback.
func (e *Entity) NumTimedOut() uint64 { return e.numTimedOut }

// Process returns a process by ID.
func (e *Entity) Process(id uint8) (*Process, bool) {
	if int(id) >= len(e.processes) {
		return nil, false
	}

	return e.processes[id], true
}

// NextFree returns the empty process that has been unused the longest.
func (e *Entity) NextFree() (uint8, bool) {
	n := len(e.processes)
	for i := 0; i < n; i++ {
		p := e.processes[(e.cursor+i)%n]
		if p.IsEmpty() {
			return p.id, true
		}
	}

	return 0, false
}

// AssignNewData claims the process named by the DCI. Streams with a
// zero-sized transport block stay empty.
func (e *Entity) AssignNewData(dci *phymac.Dci, lcids []uint8) error {
	p, ok := e.Process(dci.HarqProcess())
	if !ok {
		log.Panicf("harq process %d out of range", dci.HarqProcess())
	}

	if dci.NumStreams() > e.numStreams {
		log.Panicf("dci has %d streams, entity supports %d",
			dci.NumStreams(), e.numStreams)
	}

	if !p.IsEmpty() {
		return ErrProcessBusy
	}

	p.dci = dci
	p.lcids = append([]uint8(nil), lcids...)
	p.timer = 0

	for s := 0; s < dci.NumStreams(); s++ {
		if dci.TbSize(s) > 0 {
			p.status[s] = StatusAwaitingFeedback
			p.retx[s] = 0
		}
	}

	e.cursor = (int(p.id) + 1) % len(e.processes)

	return nil
}

// SetSlotSent records when the process was last transmitted.
func (e *Entity) SetSlotSent(id uint8, slot phymac.SlotID) {
	e.mustProcess(id).slotSent = slot
}

// SetPayload stores the transport block of a stream for retransmission.
func (e *Entity) SetPayload(id uint8, stream int, payload any) {
	p := e.mustProcess(id)
	if p.status[stream] == StatusEmpty {
		log.Panicf("storing payload on empty harq process %d stream %d",
			id, stream)
	}

	p.payload[stream] = payload
}

// Payload returns the stored transport block of a stream, or nil.
func (e *Entity) Payload(id uint8, stream int) any {
	return e.mustProcess(id).payload[stream]
}

// OnFeedback applies the ACK/NACK of one process. Only streams awaiting
// feedback change state.
func (e *Entity) OnFeedback(id uint8, statuses []phymac.HarqStatus) Result {
	p, ok := e.Process(id)
	if !ok {
		return ResultOutOfRange
	}

	if !p.hasStatus(StatusAwaitingFeedback) {
		return ResultStale
	}

	result := ResultApplied
	nacked := false

	for s, fb := range statuses {
		if s >= e.numStreams || p.status[s] != StatusAwaitingFeedback {
			continue
		}

		switch fb {
		case phymac.HarqAck:
			p.status[s] = StatusEmpty
			p.payload[s] = nil
		case phymac.HarqNack:
			if p.retx[s] >= e.maxRetx {
				p.status[s] = StatusEmpty
				p.payload[s] = nil
				e.numDropped++
				result = ResultDropped

				continue
			}

			p.status[s] = StatusNacked
			nacked = true
		}
	}

	if nacked {
		e.nackSeq++
		p.nackSeq = e.nackSeq
	}

	p.releaseIfEmpty()

	return result
}

// PendingRetransmissions returns the processes with a NACKed stream, oldest
// NACK first.
func (e *Entity) PendingRetransmissions() []*Process {
	var out []*Process

	for _, p := range e.processes {
		if p.hasStatus(StatusNacked) {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].nackSeq < out[j].nackSeq
	})

	return out
}

// MarkRetransmitted records that the NACKed streams of the process named by
// the DCI have been scheduled again.
func (e *Entity) MarkRetransmitted(dci *phymac.Dci) {
	p := e.mustProcess(dci.HarqProcess())
	if !p.hasStatus(StatusNacked) {
		log.Panicf("harq process %d has nothing to retransmit",
			dci.HarqProcess())
	}

	for s := range p.status {
		if p.status[s] == StatusNacked {
			p.status[s] = StatusAwaitingFeedback
			p.retx[s]++
		}
	}

	p.dci = dci
	p.timer = 0
}

// AgeTimers advances the feedback timers and releases the processes that
// waited too long. It returns the released process IDs.
func (e *Entity) AgeTimers() []uint8 {
	var released []uint8

	for _, p := range e.processes {
		if !p.hasStatus(StatusAwaitingFeedback) {
			continue
		}

		p.timer++
		if p.timer < e.timeout {
			continue
		}

		for s := range p.status {
			if p.status[s] == StatusAwaitingFeedback {
				p.status[s] = StatusEmpty
				p.payload[s] = nil
			}
		}

		p.releaseIfEmpty()
		e.numTimedOut++
		released = append(released, p.id)
	}

	return released
}

// Counts returns how many processes of a stream are in each status.
func (e *Entity) Counts(stream int) Counts {
	var c Counts

	for _, p := range e.processes {
		switch p.status[stream] {
		case StatusEmpty:
			c.Empty++
		case StatusAwaitingFeedback:
			c.Awaiting++
		case StatusNacked:
			c.Nacked++
		}
	}

	return c
}

func (e *Entity) mustProcess(id uint8) *Process {
	p, ok := e.Process(id)
	if !ok {
		log.Panicf("harq process %d out of range", id)
	}

	return p
}
