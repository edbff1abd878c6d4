package split

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Splitter clips a model into the leaf boxes of a split tree and repacks
// each leaf into a new segment.
type Splitter struct {
	// Oracle fills the visibility bitfields. Nil means AllVisible.
	Oracle VisibilityOracle
	// Limits are the batch capacities of the new segments.
	Limits level.Limits
	Log    *zap.Logger
}

// sourceTriangle is a triangle of the input model with everything needed
// to re-insert clipped pieces of it.
type sourceTriangle struct {
	tex        int8
	batchFlags uint32
	triFlags   uint8
	verts      [3]level.Vertex
	uvs        [3]level.UV
	pos        [3]mgl64.Vec3
}

// Auto splits m into n segments with an automatically generated tree.
func (s *Splitter) Auto(m *level.Model, n int) (*level.Model, error) {
	if n > level.MaxSegments {
		return nil, fmt.Errorf("%w: %d > %d", level.ErrTooManySegments, n, level.MaxSegments)
	}
	box := m.Bounds()
	root, err := AutoTree(box, n)
	if err != nil {
		return nil, err
	}
	return s.split(m, box, root)
}

// Manual splits m along a caller supplied tree. Split values must fall
// inside the model's bounding box.
func (s *Splitter) Manual(m *level.Model, root *Node) (*level.Model, error) {
	if err := root.Validate(); err != nil {
		return nil, err
	}
	return s.split(m, m.Bounds(), root)
}

func (s *Splitter) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Splitter) split(m *level.Model, box lmath.Box, root *Node) (*level.Model, error) {
	leaves, err := Leaves(box, root)
	if err != nil {
		return nil, err
	}
	if len(leaves) > level.MaxSegments {
		return nil, fmt.Errorf("%w: %d > %d", level.ErrTooManySegments, len(leaves), level.MaxSegments)
	}
	tris, err := sourceTriangles(m)
	if err != nil {
		return nil, err
	}

	segments := make([]*level.Segment, len(leaves))
	var wg sync.WaitGroup
	for i, leaf := range leaves {
		wg.Add(1)
		go func(i int, leaf lmath.Box) {
			defer wg.Done()
			segments[i] = s.fill(tris, leaf)
		}(i, leaf)
	}
	wg.Wait()

	out := level.NewLevelModel()
	out.Textures = m.Textures
	out.HasUntexturedTriangles = m.HasUntexturedTriangles
	out.Segments = segments
	out.BSP.Nodes = BuildBSP(root)

	oracle := s.Oracle
	if oracle == nil {
		oracle = AllVisible{}
	}
	out.BSP.Bitfields = bitfields(out, oracle)

	s.logger().Info("split model",
		zap.Int("segments", len(segments)),
		zap.Int("source_triangles", len(tris)),
		zap.Int("triangles", out.TriangleCount()),
		zap.Stringer("bounds", box))
	return out, nil
}

func sourceTriangles(m *level.Model) ([]sourceTriangle, error) {
	var out []sourceTriangle
	for si, seg := range m.Segments {
		for _, b := range seg.Batches {
			for t := int(b.TriOffset); t < int(b.TriOffset)+int(b.TriCount); t++ {
				verts, err := seg.TriangleVertices(t)
				if err != nil {
					return nil, fmt.Errorf("segment %d: %w", si, err)
				}
				tri := seg.Triangles[t]
				st := sourceTriangle{
					tex:        b.TextureIndex,
					batchFlags: b.Flags,
					triFlags:   tri.Flags,
					verts:      verts,
					uvs:        tri.UVs,
				}
				for k, v := range verts {
					st.pos[k] = VertexPos(v)
				}
				out = append(out, st)
			}
		}
	}
	return out, nil
}

// fill clips every source triangle against leaf and fan-triangulates the
// surviving polygons into a new segment.
func (s *Splitter) fill(tris []sourceTriangle, leaf lmath.Box) *level.Segment {
	seg := level.NewSegment(s.Limits)
	lo, hi := BoxCorners(leaf)
	for _, t := range tris {
		poly := ClipToBox(Triangle(t.pos[0], t.pos[1], t.pos[2]), lo, hi)
		if len(poly) < 3 {
			continue
		}
		verts := make([]level.Vertex, len(poly))
		uvs := make([]level.UV, len(poly))
		for k, cv := range poly {
			verts[k], uvs[k] = t.resolve(cv)
		}
		for k := 1; k+1 < len(poly); k++ {
			seg.AddTriangle(t.tex, t.batchFlags, t.triFlags,
				verts[0], verts[k], verts[k+1], uvs[0], uvs[k], uvs[k+1])
		}
	}
	return seg
}

// resolve maps a clip vertex back to a level vertex and UV. Copies of
// source corners keep their attributes; introduced points interpolate them.
func (t *sourceTriangle) resolve(cv ClipVertex) (level.Vertex, level.UV) {
	if cv.Orig >= 0 {
		return t.verts[cv.Orig], t.uvs[cv.Orig]
	}
	a, b, c := t.pos[0], t.pos[1], t.pos[2]
	v := level.Vertex{
		X:     lmath.ToS16(cv.Pos[0]),
		Y:     lmath.ToS16(cv.Pos[1]),
		Z:     lmath.ToS16(cv.Pos[2]),
		Color: InterpolateColor(cv.Pos, a, b, c, t.verts[0].Color, t.verts[1].Color, t.verts[2].Color),
	}
	return v, InterpolateUV(cv.Pos, a, b, c, t.uvs[0], t.uvs[1], t.uvs[2])
}
