package phyabs

import (
	"sync"

	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
)

type rlcKey struct {
	rnti uint16
	lcid uint8
}

// Rlc is a byte-counting stand-in for the DL RLC entities of a cell. It only
// tracks how many bytes wait on each channel.
type Rlc struct {
	lock   sync.Mutex
	queues map[rlcKey]uint32
	sent   map[uint16]uint64
}

// NewRlc creates an empty Rlc.
func NewRlc() *Rlc {
	return &Rlc{
		queues: make(map[rlcKey]uint32),
		sent:   make(map[uint16]uint64),
	}
}

// Push adds bytes to a channel.
func (r *Rlc) Push(rnti uint16, lcid uint8, bytes uint32) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.queues[rlcKey{rnti, lcid}] += bytes
}

// Status returns the buffer report of a channel.
func (r *Rlc) Status(rnti uint16, lcid uint8) phymac.RlcBufferStatus {
	r.lock.Lock()
	defer r.lock.Unlock()

	return phymac.RlcBufferStatus{
		RNTI:        rnti,
		LCID:        lcid,
		TxQueueSize: r.queues[rlcKey{rnti, lcid}],
	}
}

// Sent returns the bytes handed to the MAC for a device.
func (r *Rlc) Sent(rnti uint16) uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.sent[rnti]
}

// NotifyTxOpportunity returns up to op.Size queued bytes.
func (r *Rlc) NotifyTxOpportunity(op macce.TxOpportunity) []byte {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := rlcKey{op.RNTI, op.LCID}
	n := min(r.queues[key], op.Size)
	r.queues[key] -= n
	r.sent[op.RNTI] += uint64(n)

	return make([]byte, n)
}
