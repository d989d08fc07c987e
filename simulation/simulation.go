// Package simulation assembles a cell out of the MAC, the abstract PHY and
// the recording, metrics and monitoring services, and runs it.
package simulation

import (
	"fmt"
	"log"
	"strconv"

	"github.com/sarchlab/nrmac/datarecording"
	"github.com/sarchlab/nrmac/gnbmac"
	"github.com/sarchlab/nrmac/metrics"
	"github.com/sarchlab/nrmac/monitoring"
	"github.com/sarchlab/nrmac/phyabs"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
	"github.com/sarchlab/nrmac/schedtrace"
	"github.com/sarchlab/nrmac/sim"
	"github.com/sarchlab/nrmac/tracing"
)

// UeSummaryTableName is the table that receives one UeSummary per UE at the
// end of a run.
const UeSummaryTableName = "ue_summary"

// UeSummary is what a UE achieved over a run.
type UeSummary struct {
	RNTI     uint16
	DlSinrDb float64
	UlSinrDb float64
	DlBytes  uint64
	UlBytes  uint64
	DlTbs    uint64
	UlTbs    uint64
	DlErrors uint64
	UlErrors uint64
	DlMbps   float64
	UlMbps   float64
}

// A Simulation is a cell with its attached UEs.
type Simulation struct {
	id         string
	numerology uint8
	numSlots   uint64

	engine *sim.SerialEngine
	mac    *gnbmac.Comp
	phy    *phyabs.Phy
	rlc    *phyabs.Rlc

	recorder     datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	dbTracer     *tracing.DBTracer
	harqHook     *tracing.HarqHook
	harqStats    *tracing.HarqStatsTracer
	schedTrace   *schedtrace.Hook
	metrics      *metrics.Collector
	monitor      *monitoring.Monitor
	progressBar  *monitoring.ProgressBar

	numConfigFailures int
	terminated        bool
}

var _ sap.CschedUser = (*Simulation)(nil)

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// MAC returns the MAC of the cell.
func (s *Simulation) MAC() *gnbmac.Comp {
	return s.mac
}

// Phy returns the abstract PHY of the cell.
func (s *Simulation) Phy() *phyabs.Phy {
	return s.phy
}

// GetDataRecorder returns the data recorder used in the simulation. It is
// nil when recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// Metrics returns the metrics collector of the cell.
func (s *Simulation) Metrics() *metrics.Collector {
	return s.metrics
}

// GetMonitor returns the monitor. It is nil when monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// NumConfigFailures returns how many configuration requests the scheduler
// rejected.
func (s *Simulation) NumConfigFailures() int {
	return s.numConfigFailures
}

// Run simulates all the slots.
func (s *Simulation) Run() error {
	if s.execRecorder != nil {
		s.execRecorder.Start()
	}

	if s.monitor != nil {
		s.progressBar = s.monitor.CreateProgressBar("Slots", s.numSlots)
	}

	s.mac.Start()
	err := s.engine.Run()
	s.engine.Finished()

	return err
}

// runEnd wraps up a run once the engine has no more slots to tick.
type runEnd struct {
	s *Simulation
}

func (r runEnd) Handle(now sim.VTimeInSec) {
	s := r.s

	if s.progressBar != nil {
		s.monitor.CompleteProgressBar(s.progressBar)
	}

	if s.recorder != nil {
		for _, summary := range s.Summary() {
			s.recorder.InsertData(UeSummaryTableName, summary)
		}
	}

	if s.execRecorder != nil {
		s.execRecorder.Add("Slots", strconv.FormatUint(s.mac.NumSlots(), 10))
		s.execRecorder.Add("UEs", strconv.Itoa(len(s.phy.Ues())))
		s.execRecorder.Add("Events",
			strconv.FormatUint(s.engine.NumEventsHandled(), 10))
		s.execRecorder.Add("SimTime", fmt.Sprintf("%.6f", float64(now)))
		s.execRecorder.End()
	}
}

// HarqStats returns the HARQ latency and outcome statistics of the given
// direction.
func (s *Simulation) HarqStats(dir phymac.Direction) tracing.HarqStats {
	kind := tracing.KindDlHarq
	if dir == phymac.UL {
		kind = tracing.KindUlHarq
	}

	return s.harqStats.Stats(kind)
}

// Summary reports what every UE achieved so far.
func (s *Simulation) Summary() []UeSummary {
	duration := float64(sim.SlotFreq(s.numerology).Period()) *
		float64(s.mac.NumSlots())

	mbps := func(bytes uint64) float64 {
		if duration == 0 {
			return 0
		}

		return float64(bytes) * 8 / duration / 1e6
	}

	summaries := make([]UeSummary, 0, len(s.phy.Ues()))
	for _, u := range s.phy.Ues() {
		summaries = append(summaries, UeSummary{
			RNTI:     u.RNTI,
			DlSinrDb: u.DlSinrDb,
			UlSinrDb: u.UlSinrDb,
			DlBytes:  u.Stats.DlBytes,
			UlBytes:  u.Stats.UlBytes,
			DlTbs:    u.Stats.DlTbs,
			UlTbs:    u.Stats.UlTbs,
			DlErrors: u.Stats.DlErrors,
			UlErrors: u.Stats.UlErrors,
			DlMbps:   mbps(u.Stats.DlBytes),
			UlMbps:   mbps(u.Stats.UlBytes),
		})
	}

	return summaries
}

// Terminate writes everything that is still buffered and stops the
// monitor. It can be called more than once.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	if s.dbTracer != nil {
		s.dbTracer.Terminate()
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			log.Printf("simulation: closing recorder: %v", err)
		}
	}

	if s.monitor != nil {
		if err := s.monitor.StopServer(); err != nil {
			log.Printf("simulation: stopping monitor: %v", err)
		}
	}
}

// Func advances the progress bar when the MAC finishes a slot.
func (s *Simulation) Func(ctx sim.HookCtx) {
	if ctx.Pos != gnbmac.HookPosSlotDone || s.progressBar == nil {
		return
	}

	s.progressBar.IncrementFinished(1)
}

func (s *Simulation) confirm(result sap.Result) {
	if result == sap.Failure {
		s.numConfigFailures++
	}
}

// CellConfigCnf counts a failed cell configuration. The MAC has already
// logged it.
func (s *Simulation) CellConfigCnf(result sap.Result) {
	s.confirm(result)
}

// DeviceConfigCnf confirms a device configuration.
func (s *Simulation) DeviceConfigCnf(_ uint16, result sap.Result) {
	s.confirm(result)
}

// LogicalChannelConfigCnf confirms a logical channel configuration.
func (s *Simulation) LogicalChannelConfigCnf(
	_ uint16,
	_ uint8,
	result sap.Result,
) {
	s.confirm(result)
}

// LogicalChannelReleaseCnf confirms a logical channel release.
func (s *Simulation) LogicalChannelReleaseCnf(
	_ uint16,
	_ uint8,
	result sap.Result,
) {
	s.confirm(result)
}

// DeviceReleaseCnf confirms a device release.
func (s *Simulation) DeviceReleaseCnf(_ uint16, result sap.Result) {
	s.confirm(result)
}
