package level

import (
	"fmt"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Vertex is a segment vertex: a signed 16-bit position and an RGBA color.
type Vertex struct {
	X, Y, Z int16
	Color   Color
}

// NewVertex builds a vertex, truncating and clamping the position into the
// int16 range.
func NewVertex(x, y, z float64, c Color) Vertex {
	return Vertex{
		X:     lmath.ToS16(x),
		Y:     lmath.ToS16(y),
		Z:     lmath.ToS16(z),
		Color: c,
	}
}

// Equal reports exact equality of position and color.
func (v Vertex) Equal(other Vertex) bool {
	return v == other
}

// SamePosition reports whether both vertices share a position, ignoring
// color.
func (v Vertex) SamePosition(other Vertex) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Position returns the coordinates as ints.
func (v Vertex) Position() [3]int {
	return [3]int{int(v.X), int(v.Y), int(v.Z)}
}

// String implements fmt.Stringer.
func (v Vertex) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}
