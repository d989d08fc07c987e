package gnbmac

import (
	"fmt"
	"strings"

	"github.com/sarchlab/nrmac/phymac"
)

// A Pattern is the repeating TDD sequence of slot types.
type Pattern []phymac.SlotType

// ParsePattern reads a pattern such as "DDDSU" or "F|F|D|U|". The '|'
// separators are optional.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern

	for _, c := range s {
		if c == '|' || c == ' ' {
			continue
		}

		t, ok := phymac.ParseSlotType(c)
		if !ok {
			return nil, fmt.Errorf("invalid slot type %q in pattern %q", c, s)
		}

		p = append(p, t)
	}

	if len(p) == 0 {
		return nil, fmt.Errorf("empty tdd pattern")
	}

	return p, nil
}

// SlotType returns the type of a slot.
func (p Pattern) SlotType(slot phymac.SlotID) phymac.SlotType {
	return p[slot.Normalized()%uint64(len(p))]
}

func (p Pattern) String() string {
	var b strings.Builder

	for _, t := range p {
		b.WriteByte("DUSF"[t])
		b.WriteByte('|')
	}

	return b.String()
}
