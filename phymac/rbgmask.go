package phymac

import "strings"

// RbgMask has one entry per resource block group; true means used.
type RbgMask []bool

// NewRbgMask returns an all-unused mask of n RBGs.
func NewRbgMask(n int) RbgMask {
	return make(RbgMask, n)
}

// FullRbgMask returns a mask with all n RBGs used.
func FullRbgMask(n int) RbgMask {
	m := NewRbgMask(n)
	for i := range m {
		m[i] = true
	}

	return m
}

// RbgMaskFromIndices returns a mask of n RBGs with the given indices used.
func RbgMaskFromIndices(n int, indices ...int) RbgMask {
	m := NewRbgMask(n)
	for _, i := range indices {
		m[i] = true
	}

	return m
}

// Set marks RBG i as used.
func (m RbgMask) Set(i int) {
	m[i] = true
}

// Count returns the number of used RBGs.
func (m RbgMask) Count() int {
	c := 0

	for _, used := range m {
		if used {
			c++
		}
	}

	return c
}

// Overlaps tells if any RBG is used in both masks.
func (m RbgMask) Overlaps(other RbgMask) bool {
	n := min(len(m), len(other))
	for i := 0; i < n; i++ {
		if m[i] && other[i] {
			return true
		}
	}

	return false
}

// Indices returns the used RBG indices in ascending order.
func (m RbgMask) Indices() []int {
	idx := make([]int, 0, len(m))

	for i, used := range m {
		if used {
			idx = append(idx, i)
		}
	}

	return idx
}

// Clone returns an independent copy.
func (m RbgMask) Clone() RbgMask {
	c := make(RbgMask, len(m))
	copy(c, m)

	return c
}

func (m RbgMask) String() string {
	var sb strings.Builder

	for _, used := range m {
		if used {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}

	return sb.String()
}
