package level

import (
	"fmt"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// NoChild marks a missing BSP child.
const NoChild = -1

// BspNode is an internal node of the BSP tree. Children are addressed by
// their index in BspTree.Nodes. Segment is the first segment of the right
// subtree; a missing left child resolves to Segment-1 and a missing right
// child to Segment.
type BspNode struct {
	Axis    lmath.Axis
	Value   int16
	Segment uint8
	Left    int
	Right   int
}

// BspTree stores nodes in pre-order (node 0 is the root) together with one
// visibility bitfield per segment.
type BspTree struct {
	Nodes     []BspNode
	Bitfields []Bitfield
}

// Empty reports whether the tree has no nodes.
func (t *BspTree) Empty() bool {
	return t == nil || len(t.Nodes) == 0
}

// Validate checks that child indices are in range and that the nodes form
// a tree rooted at node 0.
func (t *BspTree) Validate() error {
	if t.Empty() {
		return nil
	}
	seen := make([]bool, len(t.Nodes))
	var walk func(i int) error
	walk = func(i int) error {
		if i < 0 || i >= len(t.Nodes) {
			return fmt.Errorf("BSP child index %d out of range [0, %d)", i, len(t.Nodes))
		}
		if seen[i] {
			return fmt.Errorf("BSP node %d referenced twice", i)
		}
		seen[i] = true
		n := t.Nodes[i]
		if !n.Axis.Valid() {
			return fmt.Errorf("BSP node %d: invalid axis %d", i, n.Axis)
		}
		if n.Left != NoChild {
			if err := walk(n.Left); err != nil {
				return err
			}
		}
		if n.Right != NoChild {
			return walk(n.Right)
		}
		return nil
	}
	return walk(0)
}

// LeafSegments returns the segment number of every leaf slot, left to
// right.
func (t *BspTree) LeafSegments() []int {
	if t.Empty() {
		return nil
	}
	var out []int
	var walk func(i int)
	walk = func(i int) {
		n := t.Nodes[i]
		if n.Left == NoChild {
			out = append(out, int(n.Segment)-1)
		} else {
			walk(n.Left)
		}
		if n.Right == NoChild {
			out = append(out, int(n.Segment))
		} else {
			walk(n.Right)
		}
	}
	walk(0)
	return out
}

// SegmentAt descends the tree to find the segment containing a point.
// Points on a split plane go right.
func (t *BspTree) SegmentAt(x, y, z int) int {
	if t.Empty() {
		return 0
	}
	p := [3]int{x, y, z}
	i := 0
	for {
		n := t.Nodes[i]
		if p[n.Axis] < int(n.Value) {
			if n.Left == NoChild {
				return int(n.Segment) - 1
			}
			i = n.Left
		} else {
			if n.Right == NoChild {
				return int(n.Segment)
			}
			i = n.Right
		}
	}
}
