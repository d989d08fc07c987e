package registry

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/sap"
)

var _ = Describe("Registry", func() {
	var r *Registry

	BeforeEach(func() {
		cfg := DefaultConfig()
		cfg.StartDlMcs = 4
		r = New(cfg)
	})

	It("should add a device with fresh state", func() {
		d, err := r.AddDevice(sap.DeviceConfig{RNTI: 5, BeamID: 2})

		Expect(err).NotTo(HaveOccurred())
		Expect(d.DlHarq.NumProcesses()).To(Equal(20))
		Expect(d.UlHarq.Direction()).To(Equal(phymac.UL))
		Expect(d.Dl.Cqi).To(Equal([]uint8{1}))
		Expect(d.Dl.Mcs).To(Equal([]uint8{4}))
		Expect(r.Len()).To(Equal(1))
	})

	It("should refuse duplicate RNTIs", func() {
		_, err := r.AddDevice(sap.DeviceConfig{RNTI: 5})
		Expect(err).NotTo(HaveOccurred())

		_, err = r.AddDevice(sap.DeviceConfig{RNTI: 5})
		Expect(err).To(MatchError(ErrDuplicateRNTI))
		Expect(r.Len()).To(Equal(1))
	})

	It("should treat removing an unknown device as a no-op", func() {
		Expect(r.RemoveDevice(3)).To(BeFalse())

		_, _ = r.AddDevice(sap.DeviceConfig{RNTI: 3})
		Expect(r.RemoveDevice(3)).To(BeTrue())
		Expect(r.Len()).To(Equal(0))
	})

	It("should refuse logical channels of unknown devices", func() {
		err := r.AddLogicalChannel(8, sap.LogicalChannelConfig{LCID: 3})
		Expect(err).To(MatchError(ErrUnknownRNTI))
	})

	It("should keep HARQ state across reconfiguration", func() {
		d, _ := r.AddDevice(sap.DeviceConfig{RNTI: 5})
		dci := phymac.MakeDciBuilder().
			WithRNTI(5).
			WithSymbols(1, 2).
			WithRbgMask(phymac.FullRbgMask(2)).
			WithStream(3, 50, 1, 0).
			Build()
		Expect(d.DlHarq.AssignNewData(dci, nil)).To(Succeed())

		Expect(r.UpdateConfiguration(5, 7, 2)).To(Succeed())

		Expect(d.BeamID).To(Equal(sap.BeamID(7)))
		Expect(d.TransmissionMode).To(Equal(uint8(2)))
		Expect(d.DlHarq.Counts(0).Awaiting).To(Equal(1))
		Expect(r.UpdateConfiguration(6, 7, 2)).To(MatchError(ErrUnknownRNTI))
	})

	It("should list devices by RNTI", func() {
		for _, rnti := range []uint16{9, 2, 5} {
			_, _ = r.AddDevice(sap.DeviceConfig{RNTI: rnti})
		}

		devices := r.Devices()
		Expect(devices).To(HaveLen(3))
		Expect(devices[0].RNTI).To(Equal(uint16(2)))
		Expect(devices[2].RNTI).To(Equal(uint16(9)))
	})

	It("should panic on MustDevice with an unknown RNTI", func() {
		Expect(func() { r.MustDevice(1) }).To(Panic())
	})

	It("should provide HARQ entities", func() {
		d, _ := r.AddDevice(sap.DeviceConfig{RNTI: 5})

		e, ok := r.HarqEntity(5, phymac.UL)
		Expect(ok).To(BeTrue())
		Expect(e).To(BeIdenticalTo(d.UlHarq))

		_, ok = r.HarqEntity(6, phymac.DL)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Device", func() {
	var (
		r *Registry
		d *Device
	)

	BeforeEach(func() {
		r = New(DefaultConfig())
		d, _ = r.AddDevice(sap.DeviceConfig{RNTI: 1})

		Expect(r.AddLogicalChannel(1, sap.LogicalChannelConfig{
			LCID: 4, Group: 1, Qos: sap.QosParams{Priority: 5},
		})).To(Succeed())
		Expect(r.AddLogicalChannel(1, sap.LogicalChannelConfig{
			LCID: 3, Group: 1, Qos: sap.QosParams{Priority: 5},
		})).To(Succeed())
		Expect(r.AddLogicalChannel(1, sap.LogicalChannelConfig{
			LCID: 1, Group: 0, Qos: sap.QosParams{Priority: 1},
		})).To(Succeed())
	})

	It("should order channels by priority, then LCID", func() {
		lcs := d.LogicalChannels()

		Expect(lcs).To(HaveLen(3))
		Expect(lcs[0].LCID()).To(Equal(uint8(1)))
		Expect(lcs[1].LCID()).To(Equal(uint8(3)))
		Expect(lcs[2].LCID()).To(Equal(uint8(4)))
	})

	It("should track DL buffers", func() {
		Expect(d.UpdateDlBuffer(phymac.RlcBufferStatus{
			RNTI: 1, LCID: 3, TxQueueSize: 100, StatusPduSize: 10,
		})).To(Succeed())
		Expect(d.UpdateDlBuffer(phymac.RlcBufferStatus{
			RNTI: 1, LCID: 9, TxQueueSize: 100,
		})).To(MatchError(ErrUnknownLogicalChannel))

		Expect(d.DlBuffered()).To(Equal(uint32(110)))
		Expect(d.ActiveDlChannels()).To(HaveLen(1))

		lc, _ := d.LogicalChannel(3)
		lc.Drain(30)
		Expect(lc.StatusPduSize).To(Equal(uint32(0)))
		Expect(lc.TxQueueSize).To(Equal(uint32(80)))
	})

	It("should drain UL groups in order", func() {
		d.UlLcgBytes = [phymac.NumLcgs]uint32{0, 50, 0, 100}
		Expect(d.ActiveUlGroups()).To(Equal([]uint8{1, 3}))

		d.DrainUl(70)

		Expect(d.UlLcgBytes).To(Equal([phymac.NumLcgs]uint32{0, 0, 0, 80}))
		Expect(d.UlBuffered()).To(Equal(uint32(80)))
	})

	It("should expire CQI", func() {
		d.Dl.Cqi[0] = 12
		d.Dl.Mcs[0] = 20
		d.Dl.CqiTimer = 2

		Expect(d.Dl.Age(0)).To(BeFalse())
		Expect(d.Dl.Age(0)).To(BeFalse())
		Expect(d.Dl.Age(0)).To(BeTrue())
		Expect(d.Dl.Cqi[0]).To(Equal(uint8(1)))
		Expect(d.Dl.Mcs[0]).To(Equal(uint8(0)))
		Expect(d.Dl.Age(0)).To(BeFalse())
	})
})
