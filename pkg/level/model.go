package level

import (
	"fmt"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Kind distinguishes level models from standalone object models.
type Kind uint8

// Model kinds.
const (
	KindLevel Kind = iota
	KindObject
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindObject {
		return "object"
	}
	return "level"
}

// Model is the top-level container. Level models carry a BSP tree with
// visibility bitfields; object models leave BSP nil.
type Model struct {
	Kind     Kind
	Segments []*Segment
	Textures []*Texture
	BSP      *BspTree

	HasUntexturedTriangles bool
}

// NewLevelModel returns an empty level model.
func NewLevelModel() *Model {
	return &Model{Kind: KindLevel, BSP: &BspTree{}}
}

// NewObjectModel returns an empty object model.
func NewObjectModel() *Model {
	return &Model{Kind: KindObject}
}

// Bounds merges the bounding boxes of all non-empty segments.
func (m *Model) Bounds() lmath.Box {
	var b lmath.Box
	first := true
	for _, seg := range m.Segments {
		if len(seg.Vertices) == 0 {
			continue
		}
		if first {
			b = seg.Bounds()
			first = false
			continue
		}
		b = b.Union(seg.Bounds())
	}
	return b
}

// VertexCount returns the number of vertices across all segments.
func (m *Model) VertexCount() int {
	n := 0
	for _, seg := range m.Segments {
		n += len(seg.Vertices)
	}
	return n
}

// TriangleCount returns the number of triangles across all segments.
func (m *Model) TriangleCount() int {
	n := 0
	for _, seg := range m.Segments {
		n += len(seg.Triangles)
	}
	return n
}

// BatchCount returns the number of batches across all segments.
func (m *Model) BatchCount() int {
	n := 0
	for _, seg := range m.Segments {
		n += len(seg.Batches)
	}
	return n
}

// Validate checks every segment against limits and the BSP tree layout.
func (m *Model) Validate(limits Limits) error {
	if m.Kind == KindLevel && len(m.Segments) > MaxSegments {
		return fmt.Errorf("%w: %d > %d", ErrTooManySegments, len(m.Segments), MaxSegments)
	}
	for i, seg := range m.Segments {
		if err := seg.Validate(limits); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		for j := range seg.Batches {
			ti := int(seg.Batches[j].TextureIndex)
			if ti != int(Untextured) && (ti < 0 || ti >= len(m.Textures)) {
				return fmt.Errorf("segment %d batch %d: texture index %d out of range", i, j, ti)
			}
		}
	}
	if m.Kind == KindLevel {
		if err := m.BSP.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Repack rebuilds every segment whose batches exceed limits.
func (m *Model) Repack(limits Limits) (int, error) {
	repacked := 0
	for i, seg := range m.Segments {
		if seg.Validate(limits) == nil {
			continue
		}
		out, err := seg.Repack(limits)
		if err != nil {
			return repacked, fmt.Errorf("segment %d: %w", i, err)
		}
		m.Segments[i] = out
		repacked++
	}
	return repacked, nil
}
