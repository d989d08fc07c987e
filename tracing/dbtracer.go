package tracing

import (
	"sort"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/nrmac/datarecording"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sim"
)

// TaskTableName is the table that DBTracer writes.
const TaskTableName = "harq_tasks"

// WhatInflight marks the tasks that had not ended when the tracer
// terminated.
const WhatInflight = "inflight"

// TaskTableEntry is one row of the task table.
type TaskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	Mcs       uint8
	TbSize    uint32
	NumRetx   int
	NumNack   int
}

// DBTracer is a tracer that can store tasks into a database.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime sim.VTimeInSec

	tracingTasks map[string]*TaskTableEntry
	terminated   bool
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TaskTableName, TaskTableEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]*TaskTableEntry),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to the tasks that start before endTime and
// end after startTime. Zero means no limit.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	startingTaskMustBeValid(task)

	now := t.timeTeller.CurrentTime()
	if t.endTime > 0 && now > t.endTime {
		return
	}

	entry := &TaskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: float64(now),
	}

	if dci, ok := task.Detail.(*phymac.Dci); ok {
		entry.Mcs = dci.Mcs(0)
		entry.TbSize = dci.TotalTbSize()
	}

	t.tracingTasks[task.ID] = entry
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask counts the NACKs and the retransmissions of a task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		switch step.What {
		case StepRetx:
			entry.NumRetx++
		case StepNack:
			entry.NumNack++
		}
	}
}

// EndTask writes the task.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	now := t.timeTeller.CurrentTime()
	if t.startTime > 0 && now < t.startTime {
		return
	}

	entry.What = task.What
	entry.EndTime = float64(now)
	t.backend.InsertData(TaskTableName, *entry)
}

// Terminate writes the tasks that are still in flight and flushes the
// recorder. It only takes effect once.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	now := float64(t.timeTeller.CurrentTime())

	ids := make([]string, 0, len(t.tracingTasks))
	for id := range t.tracingTasks {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		entry := t.tracingTasks[id]
		entry.What = WhatInflight
		entry.EndTime = now
		t.backend.InsertData(TaskTableName, *entry)
	}

	t.tracingTasks = nil
	t.backend.Flush()
}
