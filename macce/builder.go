package macce

import (
	"log"

	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phymac"
)

// A Builder can build Assemblers.
type Builder struct {
	direction phymac.Direction
	sendDci   bool
	rlc       RlcUser
	phy       PhySink
	harq      harq.EntityProvider
	buffers   BufferReporter
}

// MakeBuilder creates a Builder for a DL assembler that also sends DCIs.
func MakeBuilder() Builder {
	return Builder{
		direction: phymac.DL,
		sendDci:   true,
	}
}

// WithDirection sets which data allocations get transport blocks.
func (b Builder) WithDirection(dir phymac.Direction) Builder {
	b.direction = dir
	return b
}

// WithDciMessages sets whether every data DCI is sent as a control message.
func (b Builder) WithDciMessages(send bool) Builder {
	b.sendDci = send
	return b
}

// WithRlcUser sets the layer that fills transmit opportunities.
func (b Builder) WithRlcUser(rlc RlcUser) Builder {
	b.rlc = rlc
	return b
}

// WithPhySink sets where PDUs and control messages go.
func (b Builder) WithPhySink(phy PhySink) Builder {
	b.phy = phy
	return b
}

// WithHarqProvider sets where transport blocks are stored for
// retransmission.
func (b Builder) WithHarqProvider(p harq.EntityProvider) Builder {
	b.harq = p
	return b
}

// WithBufferReporter enables the short BSR CE. The CE is appended when the
// device still has data after the PDU is built.
func (b Builder) WithBufferReporter(r BufferReporter) Builder {
	b.buffers = r
	return b
}

// Build creates a new Assembler.
func (b Builder) Build() *Assembler {
	b.parametersMustBeValid()

	return &Assembler{
		direction: b.direction,
		sendDci:   b.sendDci,
		rlc:       b.rlc,
		phy:       b.phy,
		harq:      b.harq,
		buffers:   b.buffers,
	}
}

func (b Builder) parametersMustBeValid() {
	if b.rlc == nil {
		log.Panic("rlc user is not set")
	}

	if b.phy == nil {
		log.Panic("phy sink is not set")
	}

	if b.harq == nil {
		log.Panic("harq provider is not set")
	}
}
