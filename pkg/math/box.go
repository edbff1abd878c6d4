package math

import "fmt"

// Box is an integer axis-aligned bounding box. Min and Max are inclusive.
type Box struct {
	Min [3]int
	Max [3]int
}

// NewBox returns the box spanning the two corners.
func NewBox(minX, minY, minZ, maxX, maxY, maxZ int) Box {
	return Box{
		Min: [3]int{minX, minY, minZ},
		Max: [3]int{maxX, maxY, maxZ},
	}
}

// FullBox covers the whole signed 16-bit coordinate space.
func FullBox() Box {
	return NewBox(MinS16, MinS16, MinS16, MaxS16, MaxS16, MaxS16)
}

// Extent returns the size of the box along axis.
func (b Box) Extent(axis Axis) int {
	return b.Max[axis] - b.Min[axis]
}

// Size returns the extents on all three axes.
func (b Box) Size() [3]int {
	return [3]int{b.Extent(AxisX), b.Extent(AxisY), b.Extent(AxisZ)}
}

// Midpoint returns min + extent/2 on axis, rounded toward min.
func (b Box) Midpoint(axis Axis) int {
	return b.Min[axis] + b.Extent(axis)/2
}

// Center returns the midpoint on all three axes.
func (b Box) Center() [3]int {
	return [3]int{b.Midpoint(AxisX), b.Midpoint(AxisY), b.Midpoint(AxisZ)}
}

// Split divides the box at value on axis. below keeps the original minimum
// and has its maximum clamped to value; above has its minimum clamped to
// value and keeps the original maximum.
func (b Box) Split(axis Axis, value int) (below, above Box, err error) {
	if !axis.Valid() {
		return Box{}, Box{}, fmt.Errorf("split %v: invalid axis", axis)
	}
	if value < b.Min[axis] || value > b.Max[axis] {
		return Box{}, Box{}, fmt.Errorf("split %v at %d: outside [%d, %d]",
			axis, value, b.Min[axis], b.Max[axis])
	}
	below, above = b, b
	below.Max[axis] = value
	above.Min[axis] = value
	return below, above, nil
}

// Union returns the smallest box containing both b and other.
func (b Box) Union(other Box) Box {
	out := b
	for i := 0; i < 3; i++ {
		out.Min[i] = min(out.Min[i], other.Min[i])
		out.Max[i] = max(out.Max[i], other.Max[i])
	}
	return out
}

// ContainsPoint reports whether (x, y, z) lies in the half-open box
// [Min, Max).
func (b Box) ContainsPoint(x, y, z int) bool {
	return x >= b.Min[0] && x < b.Max[0] &&
		y >= b.Min[1] && y < b.Max[1] &&
		z >= b.Min[2] && z < b.Max[2]
}

// String formats the box as "[minX,minY,minZ]-[maxX,maxY,maxZ]".
func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d]-[%d,%d,%d]",
		b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}
