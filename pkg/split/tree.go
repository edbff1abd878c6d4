package split

import (
	"fmt"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// AutoTree builds a tree with n leaves over box. Depth parity alternates
// the split axis between X and Z, each split is at the box midpoint, and
// the segment budget divides as n-n/2 below and n/2 above.
func AutoTree(box lmath.Box, n int) (*Node, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrSegmentCount, n)
	}
	return autoNode(box, n, 0)
}

func autoNode(box lmath.Box, n, depth int) (*Node, error) {
	if n == 1 {
		return nil, nil
	}
	axis := lmath.AxisX
	if depth&1 == 1 {
		axis = lmath.AxisZ
	}
	value := box.Midpoint(axis)
	below, above, err := box.Split(axis, value)
	if err != nil {
		return nil, err
	}
	right := n / 2
	node := &Node{Axis: axis, Value: value}
	if node.Left, err = autoNode(below, n-right, depth+1); err != nil {
		return nil, err
	}
	if node.Right, err = autoNode(above, right, depth+1); err != nil {
		return nil, err
	}
	return node, nil
}

// Leaves walks the tree over box and returns the leaf boxes left to right.
// Leaf i becomes segment i.
func Leaves(box lmath.Box, root *Node) ([]lmath.Box, error) {
	var out []lmath.Box
	var walk func(b lmath.Box, n *Node) error
	walk = func(b lmath.Box, n *Node) error {
		if n == nil {
			out = append(out, b)
			return nil
		}
		below, above, err := b.Split(n.Axis, n.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSplitTree, err)
		}
		if err := walk(below, n.Left); err != nil {
			return err
		}
		return walk(above, n.Right)
	}
	if err := walk(box, root); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildBSP flattens a split tree into a pre-order node arena. Each node's
// segment number is the index of the first leaf of its right subtree.
func BuildBSP(root *Node) []level.BspNode {
	if root == nil {
		return nil
	}
	segments := make(map[*Node]int)
	next := 1
	var number func(n *Node)
	number = func(n *Node) {
		if n == nil {
			return
		}
		number(n.Left)
		segments[n] = next
		next++
		number(n.Right)
	}
	number(root)

	var nodes []level.BspNode
	var emit func(n *Node) int
	emit = func(n *Node) int {
		if n == nil {
			return level.NoChild
		}
		i := len(nodes)
		nodes = append(nodes, level.BspNode{
			Axis:    n.Axis,
			Value:   int16(n.Value),
			Segment: uint8(segments[n]),
		})
		left := emit(n.Left)
		right := emit(n.Right)
		nodes[i].Left, nodes[i].Right = left, right
		return i
	}
	emit(root)
	return nodes
}

// TreeFromBSP rebuilds a split tree from a node arena.
func TreeFromBSP(bsp *level.BspTree) (*Node, error) {
	if bsp.Empty() {
		return nil, nil
	}
	if err := bsp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplitTree, err)
	}
	var build func(i int) *Node
	build = func(i int) *Node {
		if i == level.NoChild {
			return nil
		}
		n := bsp.Nodes[i]
		return &Node{Axis: n.Axis, Value: int(n.Value), Left: build(n.Left), Right: build(n.Right)}
	}
	return build(0), nil
}
