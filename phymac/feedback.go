package phymac

// HarqStatus is the feedback of one stream of a HARQ process.
type HarqStatus uint8

// HARQ feedback values. HarqNone means the stream was not transmitted.
const (
	HarqNone HarqStatus = iota
	HarqAck
	HarqNack
)

func (s HarqStatus) String() string {
	return [...]string{"NONE", "ACK", "NACK"}[s]
}

// HarqFeedback reports the outcome of one HARQ process of one device.
type HarqFeedback struct {
	RNTI      uint16
	Direction Direction
	ProcessID uint8
	BwpIndex  uint8
	Streams   []HarqStatus
}

// IsReceivedOk tells if every transmitted stream was acknowledged.
func (f HarqFeedback) IsReceivedOk() bool {
	for _, s := range f.Streams {
		if s == HarqNack {
			return false
		}
	}

	return true
}

// DlCqiReport is a channel quality report sent by a device. SubbandCqi is
// optional and indexed by RBG.
type DlCqiReport struct {
	RNTI        uint16
	Slot        SlotID
	WidebandCqi []uint8
	SubbandCqi  []uint8
	Rank        uint8
}

// UlCqiSource tells which UL transmission a SINR measurement comes from.
type UlCqiSource uint8

// UL CQI sources.
const (
	UlCqiPusch UlCqiSource = iota
	UlCqiSrs
)

func (s UlCqiSource) String() string {
	if s == UlCqiSrs {
		return "SRS"
	}

	return "PUSCH"
}

// UlCqiReport carries per-RB SINR, in dB, measured by the base station.
type UlCqiReport struct {
	RNTI   uint16
	Slot   SlotID
	Source UlCqiSource
	SinrDb []float64
}

// NumLcgs is the number of logical channel groups a short BSR reports.
const NumLcgs = 4

// BsrReport carries the quantized buffer level of each logical channel group.
type BsrReport struct {
	RNTI   uint16
	Levels [NumLcgs]uint8
}

// RachInfo is a random access attempt. EstimatedSize is the expected size,
// in bits, of the first UL message.
type RachInfo struct {
	RNTI          uint16
	PreambleID    uint8
	EstimatedSize uint32
}

// RarElement answers a RachInfo.
type RarElement struct {
	RNTI       uint16
	PreambleID uint8
	Slot       SlotID
}

// RlcBufferStatus is the DL queue state of one logical channel.
type RlcBufferStatus struct {
	RNTI          uint16
	LCID          uint8
	TxQueueSize   uint32
	RetxQueueSize uint32
	StatusPduSize uint32
}

// Total returns all the bytes the channel wants to send.
func (s RlcBufferStatus) Total() uint32 {
	return s.TxQueueSize + s.RetxQueueSize + s.StatusPduSize
}
