// Package registry keeps the state of every connected device, keyed by RNTI.
package registry

import (
	"errors"
	"log"
	"sort"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
)

// Errors returned by the registry.
var (
	ErrUnknownRNTI   = errors.New("unknown rnti")
	ErrDuplicateRNTI = errors.New("duplicate rnti")
)

// Config sets how new devices are created.
type Config struct {
	NumHarqProcesses uint8
	NumStreams       int
	MaxRetx          uint8
	StartDlMcs       uint8
	StartUlMcs       uint8
}

// DefaultConfig returns 20 HARQ processes with one stream and up to 3
// retransmissions.
func DefaultConfig() Config {
	return Config{
		NumHarqProcesses: 20,
		NumStreams:       1,
		MaxRetx:          3,
	}
}

// A Registry maps RNTIs to devices. It never holds two devices with the same
// RNTI.
type Registry struct {
	cfg     Config
	cell    sap.CellConfig
	devices map[uint16]*Device
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.NumHarqProcesses == 0 || cfg.NumStreams <= 0 {
		log.Panic("registry needs at least one HARQ process and one stream")
	}

	return &Registry{
		cfg:     cfg,
		devices: make(map[uint16]*Device),
	}
}

// Config returns the device creation parameters.
func (r *Registry) Config() Config {
	return r.cfg
}

// SetCell records the cell bandwidth.
func (r *Registry) SetCell(cell sap.CellConfig) {
	r.cell = cell
}

// Cell returns the cell bandwidth.
func (r *Registry) Cell() sap.CellConfig {
	return r.cell
}

// AddDevice creates a device.
func (r *Registry) AddDevice(cfg sap.DeviceConfig) (*Device, error) {
	if _, ok := r.devices[cfg.RNTI]; ok {
		return nil, ErrDuplicateRNTI
	}

	d := &Device{
		RNTI:             cfg.RNTI,
		BeamID:           cfg.BeamID,
		TransmissionMode: cfg.TransmissionMode,
		DlHarq: harq.NewEntity(phymac.DL,
			r.cfg.NumHarqProcesses, r.cfg.NumStreams, r.cfg.MaxRetx),
		UlHarq: harq.NewEntity(phymac.UL,
			r.cfg.NumHarqProcesses, 1, r.cfg.MaxRetx),
		Dl:       newLinkState(r.cfg.NumStreams, r.cfg.StartDlMcs),
		Ul:       newLinkState(1, r.cfg.StartUlMcs),
		channels: make(map[uint8]*LogicalChannel),
	}

	r.devices[cfg.RNTI] = d

	return d, nil
}

// RemoveDevice deletes a device. Removing an unknown RNTI does nothing and
// returns false.
func (r *Registry) RemoveDevice(rnti uint16) bool {
	if _, ok := r.devices[rnti]; !ok {
		return false
	}

	delete(r.devices, rnti)

	return true
}

// AddLogicalChannel configures a channel, replacing any channel with the
// same LCID.
func (r *Registry) AddLogicalChannel(
	rnti uint16,
	lc sap.LogicalChannelConfig,
) error {
	d, ok := r.devices[rnti]
	if !ok {
		return ErrUnknownRNTI
	}

	if lc.Group >= phymac.NumLcgs {
		log.Panicf("logical channel group %d out of range", lc.Group)
	}

	if old, ok := d.channels[lc.LCID]; ok {
		old.Config = lc
		return nil
	}

	d.channels[lc.LCID] = &LogicalChannel{Config: lc}

	return nil
}

// RemoveLogicalChannel deletes a channel.
func (r *Registry) RemoveLogicalChannel(rnti uint16, lcid uint8) error {
	d, ok := r.devices[rnti]
	if !ok {
		return ErrUnknownRNTI
	}

	if _, ok := d.channels[lcid]; !ok {
		return ErrUnknownLogicalChannel
	}

	delete(d.channels, lcid)

	return nil
}

// UpdateConfiguration changes the beam and transmission mode of a device,
// keeping its HARQ state.
func (r *Registry) UpdateConfiguration(
	rnti uint16,
	beam sap.BeamID,
	transmissionMode uint8,
) error {
	d, ok := r.devices[rnti]
	if !ok {
		return ErrUnknownRNTI
	}

	d.BeamID = beam
	d.TransmissionMode = transmissionMode

	return nil
}

// Device returns a device by RNTI.
func (r *Registry) Device(rnti uint16) (*Device, bool) {
	d, ok := r.devices[rnti]
	return d, ok
}

// MustDevice returns a device by RNTI and panics if it does not exist.
func (r *Registry) MustDevice(rnti uint16) *Device {
	d, ok := r.devices[rnti]
	if !ok {
		log.Panicf("rnti %d is not registered", rnti)
	}

	return d
}

// Devices returns all devices ordered by RNTI.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RNTI < out[j].RNTI })

	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// HarqEntity returns the HARQ entity of a device.
func (r *Registry) HarqEntity(
	rnti uint16,
	dir phymac.Direction,
) (*harq.Entity, bool) {
	d, ok := r.devices[rnti]
	if !ok {
		return nil, false
	}

	return d.HarqEntity(dir), true
}
