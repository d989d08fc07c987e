// Package sap defines the service access points between the MAC and the
// scheduler. The configuration side (Csched) mutates the device registry and
// confirms each request. The scheduling side (Sched) collects feedback and
// produces one allocation plan per trigger.
package sap

import "github.com/sarchlab/nrmac/phymac"

// Result is the outcome of a configuration request.
type Result uint8

// Configuration results.
const (
	Success Result = iota
	Failure
)

func (r Result) String() string {
	if r == Success {
		return "SUCCESS"
	}

	return "FAILURE"
}

// BeamID identifies the beam a device is served with. Devices sharing a beam
// may share symbols in OFDMA.
type BeamID uint32

// CellConfig carries the bandwidth of the cell.
type CellConfig struct {
	DlBandwidthRbg uint32
	UlBandwidthRbg uint32
}

// DeviceConfig adds or reconfigures a device.
type DeviceConfig struct {
	RNTI             uint16
	BeamID           BeamID
	TransmissionMode uint8
	Reconfigure      bool
}

// QosParams describe the service a logical channel expects. Bit rates are in
// bits per second.
type QosParams struct {
	Qci      uint8
	Priority uint8
	IsGbr    bool
	GbrDl    uint64
	GbrUl    uint64
	MbrDl    uint64
	MbrUl    uint64
}

// LogicalChannelConfig places a logical channel into a group.
type LogicalChannelConfig struct {
	LCID  uint8
	Group uint8
	Qos   QosParams
}

// CschedProvider is implemented by the scheduler to receive configuration.
type CschedProvider interface {
	ConfigureCell(cfg CellConfig)
	ConfigureDevice(cfg DeviceConfig)
	ConfigureLogicalChannel(rnti uint16, lc LogicalChannelConfig, reconfigure bool)
	ReleaseLogicalChannel(rnti uint16, lcid uint8)
	ReleaseDevice(rnti uint16)
}

// CschedUser is implemented by the MAC to receive configuration
// confirmations.
type CschedUser interface {
	CellConfigCnf(result Result)
	DeviceConfigCnf(rnti uint16, result Result)
	LogicalChannelConfigCnf(rnti uint16, lcid uint8, result Result)
	LogicalChannelReleaseCnf(rnti uint16, lcid uint8, result Result)
	DeviceReleaseCnf(rnti uint16, result Result)
}

// SchedProvider is implemented by the scheduler. Submit calls only enqueue.
// The trigger calls deliver their plan to the SchedUser before returning.
type SchedProvider interface {
	SubmitBufferStatus(status phymac.RlcBufferStatus)
	SubmitDlCqi(report phymac.DlCqiReport)
	SubmitUlCqi(report phymac.UlCqiReport)
	SubmitMacControlInfo(bsrs []phymac.BsrReport)
	SubmitSchedulingRequest(rnti uint16)
	SubmitRachInfo(rachs []phymac.RachInfo)
	TriggerDlSlot(
		slot phymac.SlotID,
		feedback []phymac.HarqFeedback,
		slotType phymac.SlotType,
	)
	TriggerUlSlot(
		slot phymac.SlotID,
		feedback []phymac.HarqFeedback,
		slotType phymac.SlotType,
	)
	GetDlCtrlSyms() uint8
	GetUlCtrlSyms() uint8
}

// DlConfigIndParams is the result of a DL trigger.
type DlConfigIndParams struct {
	Slot phymac.SlotID
	Plan *phymac.SlotAllocationPlan
	Rars []phymac.RarElement
}

// UlConfigIndParams is the result of an UL trigger.
type UlConfigIndParams struct {
	Slot phymac.SlotID
	Plan *phymac.SlotAllocationPlan
}

// SchedUser is implemented by the MAC to receive allocation decisions.
type SchedUser interface {
	DlConfigInd(params DlConfigIndParams)
	UlConfigInd(params UlConfigIndParams)
}
