// Package split re-segments a model along a BSP tree of axis-aligned split
// planes, either generated automatically or supplied by the caller.
package split

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Split errors.
var (
	ErrInvalidSplitTree = errors.New("invalid split tree")
	ErrSegmentCount     = errors.New("segment count must be at least 1")
)

// Node is one split plane of a split tree. A nil child is a leaf.
type Node struct {
	Axis  lmath.Axis
	Value int
	Left  *Node
	Right *Node
}

type nodeDoc struct {
	Axis  string `yaml:"axis"`
	Value int    `yaml:"value"`
	Left  *Node  `yaml:"left"`
	Right *Node  `yaml:"right"`
}

// UnmarshalYAML reads {axis, value, left, right}. Axis names are case
// insensitive.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var doc nodeDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	axis, err := lmath.ParseAxis(doc.Axis)
	if err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidSplitTree, value.Line, err)
	}
	*n = Node{Axis: axis, Value: doc.Value, Left: doc.Left, Right: doc.Right}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n *Node) MarshalYAML() (interface{}, error) {
	return nodeDoc{Axis: n.Axis.String(), Value: n.Value, Left: n.Left, Right: n.Right}, nil
}

// treeFile is the on-disk form; JSON files parse the same way.
type treeFile struct {
	Root *Node `yaml:"root"`
}

// ParseTree parses a YAML or JSON split tree document and validates it.
func ParseTree(data []byte) (*Node, error) {
	var f treeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplitTree, err)
	}
	if f.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidSplitTree)
	}
	if err := f.Root.Validate(); err != nil {
		return nil, err
	}
	return f.Root, nil
}

// LoadTree reads a split tree file.
func LoadTree(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading split tree: %w", err)
	}
	return ParseTree(data)
}

// MarshalTree renders a tree in the format ParseTree accepts.
func MarshalTree(root *Node) ([]byte, error) {
	return yaml.Marshal(treeFile{Root: root})
}

// Validate checks axis and value range recursively.
func (n *Node) Validate() error {
	if n == nil {
		return nil
	}
	if !n.Axis.Valid() {
		return fmt.Errorf("%w: axis %d", ErrInvalidSplitTree, n.Axis)
	}
	if n.Value < lmath.MinS16 || n.Value > lmath.MaxS16 {
		return fmt.Errorf("%w: value %d outside the 16-bit range", ErrInvalidSplitTree, n.Value)
	}
	if err := n.Left.Validate(); err != nil {
		return err
	}
	return n.Right.Validate()
}

// Leaves returns the number of leaf slots under n. A nil tree is one leaf.
func (n *Node) Leaves() int {
	if n == nil {
		return 1
	}
	return n.Left.Leaves() + n.Right.Leaves()
}

// Internal returns the number of split nodes in the tree.
func (n *Node) Internal() int {
	if n == nil {
		return 0
	}
	return 1 + n.Left.Internal() + n.Right.Internal()
}
