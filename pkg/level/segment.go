package level

import (
	"fmt"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Segment is an independently indexable chunk of geometry. Batches
// partition Vertices and Triangles contiguously and in order; triangle
// vertex indices are relative to the owning batch's vertex window.
type Segment struct {
	Vertices  []Vertex
	Triangles []Triangle
	Batches   []Batch

	limits Limits
	bounds *lmath.Box
}

// NewSegment returns an empty segment that packs batches under limits.
func NewSegment(limits Limits) *Segment {
	return &Segment{limits: limits}
}

// Limits returns the batch capacities used by AddTriangle.
func (s *Segment) Limits() Limits {
	if s.limits.MaxVertices == 0 || s.limits.MaxTriangles == 0 {
		return DefaultLimits
	}
	return s.limits
}

// AddTriangle appends a triangle through the greedy batch packer. A new
// batch starts when there is none yet, when texture or batch flags change,
// when the current batch is full of triangles, or when the vertices that
// cannot be reused would overflow the vertex cap. Vertices are only reused
// from the current batch.
func (s *Segment) AddTriangle(texIndex int8, batchFlags uint32, triFlags uint8,
	v0, v1, v2 Vertex, uv0, uv1, uv2 UV) {
	limits := s.Limits()
	if len(s.Batches) == 0 || s.current().TextureIndex != texIndex ||
		s.current().Flags != batchFlags || int(s.current().TriCount) >= limits.MaxTriangles {
		s.newBatch(texIndex, batchFlags)
	}

	verts := [3]Vertex{v0, v1, v2}
	indices := [3]int{-1, -1, -1}
	newVerts := 3
	for i, v := range verts {
		indices[i] = s.findInCurrentBatch(v)
		if indices[i] >= 0 {
			newVerts--
		}
	}

	if int(s.current().VertCount)+newVerts > limits.MaxVertices {
		s.newBatch(texIndex, batchFlags)
		indices = [3]int{-1, -1, -1}
	}

	batch := s.current()
	for i, v := range verts {
		if indices[i] >= 0 {
			continue
		}
		indices[i] = len(s.Vertices) - int(batch.VertOffset)
		s.Vertices = append(s.Vertices, v)
		batch.VertCount++
	}

	s.Triangles = append(s.Triangles, Triangle{
		Flags:   triFlags,
		Indices: [3]uint8{uint8(indices[0]), uint8(indices[1]), uint8(indices[2])},
		UVs:     [3]UV{uv0, uv1, uv2},
	})
	batch.TriCount++
	s.bounds = nil
}

func (s *Segment) current() *Batch {
	return &s.Batches[len(s.Batches)-1]
}

func (s *Segment) newBatch(texIndex int8, flags uint32) {
	b := Batch{TextureIndex: texIndex, Flags: flags}
	if len(s.Batches) > 0 {
		prev := s.current()
		b.VertOffset = prev.VertOffset + prev.VertCount
		b.TriOffset = prev.TriOffset + prev.TriCount
	}
	s.Batches = append(s.Batches, b)
}

func (s *Segment) findInCurrentBatch(v Vertex) int {
	b := s.current()
	for i := 0; i < int(b.VertCount); i++ {
		if s.Vertices[int(b.VertOffset)+i].Equal(v) {
			return i
		}
	}
	return -1
}

// BatchForTriangle returns the index of the batch owning triangle i.
func (s *Segment) BatchForTriangle(i int) (int, error) {
	for bi, b := range s.Batches {
		if i >= int(b.TriOffset) && i < int(b.TriOffset)+int(b.TriCount) {
			return bi, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrInvalidTriangleIndex, i)
}

// TextureForTriangle returns the texture index of the batch owning
// triangle i.
func (s *Segment) TextureForTriangle(i int) (int8, error) {
	bi, err := s.BatchForTriangle(i)
	if err != nil {
		return Untextured, err
	}
	return s.Batches[bi].TextureIndex, nil
}

// TriangleVertices resolves the three vertices of triangle i.
func (s *Segment) TriangleVertices(i int) ([3]Vertex, error) {
	bi, err := s.BatchForTriangle(i)
	if err != nil {
		return [3]Vertex{}, err
	}
	base := int(s.Batches[bi].VertOffset)
	var out [3]Vertex
	for k, idx := range s.Triangles[i].Indices {
		vi := base + int(idx)
		if vi >= len(s.Vertices) {
			return [3]Vertex{}, fmt.Errorf("%w: triangle %d references vertex %d of %d",
				ErrInvalidTriangleIndex, i, vi, len(s.Vertices))
		}
		out[k] = s.Vertices[vi]
	}
	return out, nil
}

// Bounds returns the memoized bounding box of all vertices. An empty
// segment has a zero box.
func (s *Segment) Bounds() lmath.Box {
	if s.bounds != nil {
		return *s.bounds
	}
	var b lmath.Box
	for i, v := range s.Vertices {
		p := v.Position()
		if i == 0 {
			b = lmath.Box{Min: p, Max: p}
			continue
		}
		b = b.Union(lmath.Box{Min: p, Max: p})
	}
	s.bounds = &b
	return b
}

// Size returns the bounding box extents.
func (s *Segment) Size() [3]int {
	return s.Bounds().Size()
}

// Center returns the bounding box midpoint, rounded toward the minimum.
func (s *Segment) Center() [3]int {
	return s.Bounds().Center()
}

// InvalidateBounds drops the memoized bounding box after direct edits to
// Vertices.
func (s *Segment) InvalidateBounds() {
	s.bounds = nil
}

// Validate checks batch capacity and contiguity against limits, and that
// every triangle index falls inside its batch's vertex window.
func (s *Segment) Validate(limits Limits) error {
	var vertOffset, triOffset int
	for i, b := range s.Batches {
		if int(b.VertCount) > limits.MaxVertices || int(b.TriCount) > limits.MaxTriangles {
			return fmt.Errorf("%w: batch %d has %d vertices, %d triangles (max %d/%d)",
				ErrBatchCapacity, i, b.VertCount, b.TriCount, limits.MaxVertices, limits.MaxTriangles)
		}
		if int(b.VertOffset) != vertOffset || int(b.TriOffset) != triOffset {
			return fmt.Errorf("%w: batch %d starts at vertex %d, triangle %d; expected %d, %d",
				ErrBatchLayout, i, b.VertOffset, b.TriOffset, vertOffset, triOffset)
		}
		for t := int(b.TriOffset); t < int(b.TriOffset)+int(b.TriCount); t++ {
			if t >= len(s.Triangles) {
				return fmt.Errorf("%w: batch %d covers missing triangle %d", ErrBatchLayout, i, t)
			}
			for _, idx := range s.Triangles[t].Indices {
				if int(idx) >= int(b.VertCount) {
					return fmt.Errorf("%w: triangle %d index %d outside batch %d window of %d",
						ErrInvalidTriangleIndex, t, idx, i, b.VertCount)
				}
			}
		}
		vertOffset += int(b.VertCount)
		triOffset += int(b.TriCount)
	}
	if vertOffset != len(s.Vertices) || triOffset != len(s.Triangles) {
		return fmt.Errorf("%w: batches cover %d/%d vertices, %d/%d triangles",
			ErrBatchLayout, vertOffset, len(s.Vertices), triOffset, len(s.Triangles))
	}
	return nil
}

// Repack re-inserts every triangle, in order, into a new segment packed
// under limits.
func (s *Segment) Repack(limits Limits) (*Segment, error) {
	out := NewSegment(limits)
	for _, b := range s.Batches {
		for t := int(b.TriOffset); t < int(b.TriOffset)+int(b.TriCount); t++ {
			verts, err := s.TriangleVertices(t)
			if err != nil {
				return nil, err
			}
			tri := s.Triangles[t]
			out.AddTriangle(b.TextureIndex, b.Flags, tri.Flags,
				verts[0], verts[1], verts[2], tri.UVs[0], tri.UVs[1], tri.UVs[2])
		}
	}
	return out, nil
}
