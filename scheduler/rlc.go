package scheduler

import (
	"github.com/sarchlab/nrmac/macce"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/registry"
)

// minTbSize is the smallest block that can carry a MAC header, an RLC header
// and some data.
const minTbSize = 7

// splitTxOpportunities shares a transport block among the active channels in
// proportion to their buffered bytes, after one sub-header per channel. The
// first channel in priority order receives the rounding remainder.
func splitTxOpportunities(
	tbSize uint32,
	lcs []*registry.LogicalChannel,
) []phymac.RlcTxOpportunity {
	if len(lcs) == 0 {
		return nil
	}

	headers := uint32(len(lcs)) * macce.SubheaderSize
	if tbSize <= headers {
		if tbSize <= macce.SubheaderSize {
			return nil
		}

		return []phymac.RlcTxOpportunity{{
			LCID: lcs[0].LCID(),
			Size: tbSize - macce.SubheaderSize,
		}}
	}

	avail := tbSize - headers

	var total uint64
	for _, lc := range lcs {
		total += uint64(lc.Buffered())
	}

	ops := make([]phymac.RlcTxOpportunity, len(lcs))
	given := uint32(0)

	for i, lc := range lcs {
		share := uint32(0)
		if total > 0 {
			share = uint32(uint64(avail) * uint64(lc.Buffered()) / total)
		}

		ops[i] = phymac.RlcTxOpportunity{LCID: lc.LCID(), Size: share}
		given += share
	}

	ops[0].Size += avail - given

	out := ops[:0]
	for _, op := range ops {
		if op.Size > 0 {
			out = append(out, op)
		}
	}

	return out
}
