package scheduler

import "github.com/sarchlab/nrmac/phymac"

// FeedbackCounts is the number of queued records per category.
type FeedbackCounts struct {
	DlCqi     int
	UlCqi     int
	Bsr       int
	Sr        int
	Rach      int
	RlcBuffer int
	DlHarq    int
	UlHarq    int
}

// Total returns the number of queued records over all categories.
func (c FeedbackCounts) Total() int {
	return c.DlCqi + c.UlCqi + c.Bsr + c.Sr + c.Rach + c.RlcBuffer +
		c.DlHarq + c.UlHarq
}

// FeedbackQueue buffers the feedback that arrives between two triggers. Each
// category is handed out once by its Drain method and then cleared.
type FeedbackQueue struct {
	dlCqi     []phymac.DlCqiReport
	ulCqi     []phymac.UlCqiReport
	bsr       []phymac.BsrReport
	sr        []uint16
	rach      []phymac.RachInfo
	rlcBuffer []phymac.RlcBufferStatus
	dlHarq    []phymac.HarqFeedback
	ulHarq    []phymac.HarqFeedback
}

// PushDlCqi queues a DL CQI report.
func (q *FeedbackQueue) PushDlCqi(r phymac.DlCqiReport) { q.dlCqi = append(q.dlCqi, r) }

// PushUlCqi queues an UL CQI report.
func (q *FeedbackQueue) PushUlCqi(r phymac.UlCqiReport) { q.ulCqi = append(q.ulCqi, r) }

// PushBsr queues buffer status reports.
func (q *FeedbackQueue) PushBsr(r ...phymac.BsrReport) { q.bsr = append(q.bsr, r...) }

// PushSr queues a scheduling request.
func (q *FeedbackQueue) PushSr(rnti uint16) { q.sr = append(q.sr, rnti) }

// PushRach queues random access attempts.
func (q *FeedbackQueue) PushRach(r ...phymac.RachInfo) { q.rach = append(q.rach, r...) }

// PushRlcBuffer queues a DL RLC buffer status.
func (q *FeedbackQueue) PushRlcBuffer(s phymac.RlcBufferStatus) {
	q.rlcBuffer = append(q.rlcBuffer, s)
}

// PushHarq queues HARQ feedback of either direction.
func (q *FeedbackQueue) PushHarq(fbs ...phymac.HarqFeedback) {
	for _, fb := range fbs {
		if fb.Direction == phymac.UL {
			q.ulHarq = append(q.ulHarq, fb)
		} else {
			q.dlHarq = append(q.dlHarq, fb)
		}
	}
}

// DrainDlCqi returns and clears the DL CQI reports.
func (q *FeedbackQueue) DrainDlCqi() []phymac.DlCqiReport {
	out := q.dlCqi
	q.dlCqi = nil

	return out
}

// DrainUlCqi returns and clears the UL CQI reports.
func (q *FeedbackQueue) DrainUlCqi() []phymac.UlCqiReport {
	out := q.ulCqi
	q.ulCqi = nil

	return out
}

// DrainBsr returns and clears the buffer status reports.
func (q *FeedbackQueue) DrainBsr() []phymac.BsrReport {
	out := q.bsr
	q.bsr = nil

	return out
}

// DrainSr returns and clears the scheduling requests.
func (q *FeedbackQueue) DrainSr() []uint16 {
	out := q.sr
	q.sr = nil

	return out
}

// DrainRach returns and clears the random access attempts.
func (q *FeedbackQueue) DrainRach() []phymac.RachInfo {
	out := q.rach
	q.rach = nil

	return out
}

// DrainRlcBuffer returns and clears the RLC buffer reports.
func (q *FeedbackQueue) DrainRlcBuffer() []phymac.RlcBufferStatus {
	out := q.rlcBuffer
	q.rlcBuffer = nil

	return out
}

// DrainDlHarq returns and clears the DL HARQ feedback.
func (q *FeedbackQueue) DrainDlHarq() []phymac.HarqFeedback {
	out := q.dlHarq
	q.dlHarq = nil

	return out
}

// DrainUlHarq returns and clears the UL HARQ feedback.
func (q *FeedbackQueue) DrainUlHarq() []phymac.HarqFeedback {
	out := q.ulHarq
	q.ulHarq = nil

	return out
}

// Counts returns how many records each category holds.
func (q *FeedbackQueue) Counts() FeedbackCounts {
	return FeedbackCounts{
		DlCqi:     len(q.dlCqi),
		UlCqi:     len(q.ulCqi),
		Bsr:       len(q.bsr),
		Sr:        len(q.sr),
		Rach:      len(q.rach),
		RlcBuffer: len(q.rlcBuffer),
		DlHarq:    len(q.dlHarq),
		UlHarq:    len(q.ulHarq),
	}
}
