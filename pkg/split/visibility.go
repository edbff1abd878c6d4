package split

import "github.com/Faultbox/dkr-levelkit/pkg/level"

// VisibilityOracle decides which segments can be seen from a segment of a
// freshly split model.
type VisibilityOracle interface {
	VisibleSegments(m *level.Model, segment int) []int
}

// AllVisible marks every segment visible from every other segment.
type AllVisible struct{}

// VisibleSegments implements VisibilityOracle.
func (AllVisible) VisibleSegments(m *level.Model, _ int) []int {
	out := make([]int, len(m.Segments))
	for i := range out {
		out[i] = i
	}
	return out
}

// StaticVisibility returns fixed per-segment sets. Segments without an
// entry see only themselves.
type StaticVisibility map[int][]int

// VisibleSegments implements VisibilityOracle.
func (s StaticVisibility) VisibleSegments(_ *level.Model, segment int) []int {
	if set, ok := s[segment]; ok {
		return set
	}
	return []int{segment}
}

// StaticFromBitfields turns existing visibility masks into a
// StaticVisibility oracle.
func StaticFromBitfields(bitfields []level.Bitfield) StaticVisibility {
	out := make(StaticVisibility, len(bitfields))
	for i, bf := range bitfields {
		out[i] = bf.Segments()
	}
	return out
}

func bitfields(m *level.Model, oracle VisibilityOracle) []level.Bitfield {
	n := len(m.Segments)
	out := make([]level.Bitfield, n)
	for i := range out {
		out[i] = level.BitfieldFromSegments(n, oracle.VisibleSegments(m, i))
	}
	return out
}
