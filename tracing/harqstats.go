package tracing

import (
	"sync"

	"github.com/sarchlab/nrmac/sim"
)

// HarqStats is what a HarqStatsTracer learned about one kind of task.
type HarqStats struct {
	Completed   uint64
	Outcomes    map[string]uint64
	Steps       map[string]uint64
	AverageTime sim.VTimeInSec
	MaxTime     sim.VTimeInSec
}

// Retransmitted returns how many completed tasks were sent more than once.
func (s HarqStats) Retransmitted() uint64 {
	return s.Steps[StepRetx]
}

type statsEntry struct {
	task    Task
	retried bool
}

// HarqStatsTracer keeps running latency and outcome statistics per task
// kind. The latency of a task runs from its new-data grant to the ACK, the
// drop, or the flush.
type HarqStatsTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	lock     sync.Mutex
	inflight map[string]*statsEntry
	stats    map[string]*HarqStats
	total    map[string]sim.VTimeInSec
}

// NewHarqStatsTracer creates a tracer that reads the time from timeTeller. A
// nil filter accepts every task.
func NewHarqStatsTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *HarqStatsTracer {
	if filter == nil {
		filter = func(Task) bool { return true }
	}

	return &HarqStatsTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]*statsEntry),
		stats:      make(map[string]*HarqStats),
		total:      make(map[string]sim.VTimeInSec),
	}
}

// Stats returns a copy of the statistics of the given task kind.
func (t *HarqStatsTracer) Stats(kind string) HarqStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.stats[kind]
	if !ok {
		return HarqStats{
			Outcomes: map[string]uint64{},
			Steps:    map[string]uint64{},
		}
	}

	out := *s
	out.Outcomes = make(map[string]uint64, len(s.Outcomes))
	for k, v := range s.Outcomes {
		out.Outcomes[k] = v
	}

	out.Steps = make(map[string]uint64, len(s.Steps))
	for k, v := range s.Steps {
		out.Steps[k] = v
	}

	return out
}

// NumInflight returns the number of tracked tasks that have not ended.
func (t *HarqStatsTracer) NumInflight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}

// StartTask starts timing the task.
func (t *HarqStatsTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflight[task.ID] = &statsEntry{task: task}
	t.lock.Unlock()
}

// StepTask counts NACKs and retransmissions. A task counts once towards the
// StepRetx total no matter how many times it is retransmitted.
func (t *HarqStatsTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	e, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	s := t.kindStats(e.task.Kind)

	for _, step := range task.Steps {
		if step.What == StepRetx {
			if e.retried {
				continue
			}

			e.retried = true
		}

		s.Steps[step.What]++
	}
}

// EndTask folds the task latency and outcome into the statistics.
func (t *HarqStatsTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	e, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	delete(t.inflight, task.ID)

	kind := e.task.Kind
	s := t.kindStats(kind)
	latency := now - e.task.StartTime

	s.Completed++
	s.Outcomes[task.What]++
	t.total[kind] += latency
	s.AverageTime = t.total[kind] / sim.VTimeInSec(s.Completed)

	if latency > s.MaxTime {
		s.MaxTime = latency
	}
}

func (t *HarqStatsTracer) kindStats(kind string) *HarqStats {
	s, ok := t.stats[kind]
	if !ok {
		s = &HarqStats{
			Outcomes: make(map[string]uint64),
			Steps:    make(map[string]uint64),
		}
		t.stats[kind] = s
	}

	return s
}

// MultiTracer forwards every task to all of its tracers.
type MultiTracer []Tracer

// StartTask forwards the start.
func (m MultiTracer) StartTask(task Task) {
	for _, t := range m {
		t.StartTask(task)
	}
}

// StepTask forwards the step.
func (m MultiTracer) StepTask(task Task) {
	for _, t := range m {
		t.StepTask(task)
	}
}

// EndTask forwards the end.
func (m MultiTracer) EndTask(task Task) {
	for _, t := range m {
		t.EndTask(task)
	}
}
