package level

import (
	"fmt"
	"sync"
)

// Adjacency returns, for every triangle, the index of the neighbouring
// triangle across edges v0-v1, v1-v2 and v2-v0. An entry equal to the
// triangle's own index marks a boundary edge. The first triangle sharing
// both edge positions wins.
func (s *Segment) Adjacency() ([][3]uint16, error) {
	positions := make([][3]Vertex, len(s.Triangles))
	for i := range s.Triangles {
		verts, err := s.TriangleVertices(i)
		if err != nil {
			return nil, err
		}
		positions[i] = verts
	}

	out := make([][3]uint16, len(s.Triangles))
	for i := range positions {
		out[i] = neighbours(positions, i)
	}
	return out, nil
}

func neighbours(tris [][3]Vertex, self int) [3]uint16 {
	out := [3]uint16{uint16(self), uint16(self), uint16(self)}
	pending := [3]bool{true, true, true}
	v := tris[self]

	for i, other := range tris {
		if i == self {
			continue
		}
		if !pending[0] && !pending[1] && !pending[2] {
			break
		}
		in0 := containsPosition(other, v[0])
		in1 := containsPosition(other, v[1])
		in2 := containsPosition(other, v[2])

		if pending[0] && in0 && in1 {
			out[0] = uint16(i)
			pending[0] = false
		}
		if pending[1] && in1 && in2 {
			out[1] = uint16(i)
			pending[1] = false
		}
		if pending[2] && in2 && in0 {
			out[2] = uint16(i)
			pending[2] = false
		}
	}
	return out
}

func containsPosition(tri [3]Vertex, v Vertex) bool {
	return v.SamePosition(tri[0]) || v.SamePosition(tri[1]) || v.SamePosition(tri[2])
}

// ModelAdjacency computes Adjacency for every segment of m concurrently.
// The result is indexed by segment.
func ModelAdjacency(m *Model) ([][][3]uint16, error) {
	out := make([][][3]uint16, len(m.Segments))
	errs := make([]error, len(m.Segments))

	var wg sync.WaitGroup
	for i, seg := range m.Segments {
		wg.Add(1)
		go func(i int, seg *Segment) {
			defer wg.Done()
			out[i], errs[i] = seg.Adjacency()
		}(i, seg)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return out, nil
}
