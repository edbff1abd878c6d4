package level

import (
	"errors"
	"math/rand"
	"testing"
)

// stripTriangles returns 20 triangles over 12 vertices: a 10-triangle
// strip followed by the same strip with reversed winding.
func stripTriangles() [][3]Vertex {
	verts := make([]Vertex, 12)
	for i := range verts {
		verts[i] = NewVertex(float64(i*10), float64((i%2)*10), 0, White)
	}
	var tris [][3]Vertex
	for i := 0; i < 10; i++ {
		tris = append(tris, [3]Vertex{verts[i], verts[i+1], verts[i+2]})
	}
	for i := 0; i < 10; i++ {
		tris = append(tris, [3]Vertex{verts[i+2], verts[i+1], verts[i]})
	}
	return tris
}

func addAll(seg *Segment, tex int8, tris [][3]Vertex) {
	for _, t := range tris {
		seg.AddTriangle(tex, DefaultBatchFlags, DefaultTriangleFlags,
			t[0], t[1], t[2], NewUV(0, 0), NewUV(1, 0), NewUV(0, 1))
	}
}

func TestAddTriangle_SingleBatchSharedVertices(t *testing.T) {
	seg := NewSegment(Limits{MaxVertices: 32, MaxTriangles: 32})
	addAll(seg, 0, stripTriangles())

	if len(seg.Batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(seg.Batches))
	}
	b := seg.Batches[0]
	if b.VertCount != 12 {
		t.Errorf("expected 12 vertices, got %d", b.VertCount)
	}
	if b.TriCount != 20 {
		t.Errorf("expected 20 triangles, got %d", b.TriCount)
	}
	for i, tri := range seg.Triangles {
		for _, idx := range tri.Indices {
			if idx >= 12 {
				t.Errorf("triangle %d: index %d outside [0,12)", i, idx)
			}
		}
	}
}

func TestAddTriangle_TriangleCapSplitsBatch(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	addAll(seg, 0, stripTriangles())

	if len(seg.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(seg.Batches))
	}
	first, second := seg.Batches[0], seg.Batches[1]
	if first.VertCount != 12 || first.TriCount != 16 {
		t.Errorf("first batch = %d verts/%d tris, want 12/16", first.VertCount, first.TriCount)
	}
	// No reuse across batches: the last four reversed triangles touch
	// vertices 6..11.
	if second.VertCount != 6 || second.TriCount != 4 {
		t.Errorf("second batch = %d verts/%d tris, want 6/4", second.VertCount, second.TriCount)
	}
	if second.VertOffset != 12 || second.TriOffset != 16 {
		t.Errorf("second batch offsets = %d/%d, want 12/16", second.VertOffset, second.TriOffset)
	}
	if err := seg.Validate(DefaultLimits); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAddTriangle_TextureChangeStartsBatch(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	tris := stripTriangles()[:2]
	addAll(seg, 0, tris)
	addAll(seg, 1, tris)
	addAll(seg, 1, tris)
	addAll(seg, Untextured, tris)

	if len(seg.Batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(seg.Batches))
	}
	want := []int8{0, 1, Untextured}
	for i, b := range seg.Batches {
		if b.TextureIndex != want[i] {
			t.Errorf("batch %d: texture %d, want %d", i, b.TextureIndex, want[i])
		}
	}
	// Batch 1 received the same two triangles twice and reuses all vertices.
	if seg.Batches[1].VertCount != 4 || seg.Batches[1].TriCount != 4 {
		t.Errorf("batch 1 = %d verts/%d tris, want 4/4", seg.Batches[1].VertCount, seg.Batches[1].TriCount)
	}
}

func TestAddTriangle_FlagsChangeStartsBatch(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	v := stripTriangles()[0]
	seg.AddTriangle(0, 0x10, 0, v[0], v[1], v[2], UV{}, UV{}, UV{})
	seg.AddTriangle(0, 0x20, 0, v[0], v[1], v[2], UV{}, UV{}, UV{})

	if len(seg.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(seg.Batches))
	}
}

func TestAddTriangle_ColorBreaksReuse(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	a := NewVertex(0, 0, 0, White)
	b := NewVertex(10, 0, 0, White)
	c := NewVertex(0, 10, 0, White)
	red := NewVertex(0, 0, 0, Color{255, 0, 0, 255})

	seg.AddTriangle(0, 0, 0, a, b, c, UV{}, UV{}, UV{})
	seg.AddTriangle(0, 0, 0, red, b, c, UV{}, UV{}, UV{})

	if len(seg.Vertices) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(seg.Vertices))
	}
}

func TestAddTriangle_VertexCapForcesBatch(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	// Disjoint triangles: 3 new vertices each, so the 9th triangle would
	// need 27 vertices.
	for i := 0; i < 9; i++ {
		x := float64(i * 100)
		seg.AddTriangle(0, 0, 0,
			NewVertex(x, 0, 0, White), NewVertex(x+1, 0, 0, White), NewVertex(x, 1, 0, White),
			UV{}, UV{}, UV{})
	}

	if len(seg.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(seg.Batches))
	}
	if seg.Batches[0].VertCount != 24 || seg.Batches[0].TriCount != 8 {
		t.Errorf("first batch = %d/%d, want 24/8", seg.Batches[0].VertCount, seg.Batches[0].TriCount)
	}
	if seg.Triangles[8].Indices != [3]uint8{0, 1, 2} {
		t.Errorf("indices should reset in the new batch, got %v", seg.Triangles[8].Indices)
	}
}

func TestAddTriangle_RandomInputKeepsInvariants(t *testing.T) {
	limits := []Limits{DefaultLimits, {MaxVertices: 32, MaxTriangles: 16}}
	rng := rand.New(rand.NewSource(42))

	for _, lim := range limits {
		seg := NewSegment(lim)
		for i := 0; i < 500; i++ {
			var v [3]Vertex
			for k := range v {
				v[k] = NewVertex(float64(rng.Intn(6)), float64(rng.Intn(6)), 0, White)
			}
			tex := int8(rng.Intn(3)) - 1
			seg.AddTriangle(tex, DefaultBatchFlags, 0, v[0], v[1], v[2], UV{}, UV{}, UV{})
		}

		if err := seg.Validate(lim); err != nil {
			t.Fatalf("limits %+v: %v", lim, err)
		}
		for i := 0; i+1 < len(seg.Batches); i++ {
			a, b := seg.Batches[i], seg.Batches[i+1]
			if b.VertOffset != a.VertOffset+a.VertCount || b.TriOffset != a.TriOffset+a.TriCount {
				t.Fatalf("batch %d and %d are not contiguous", i, i+1)
			}
		}
	}
}

func TestSegment_TriangleVertices(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	tris := stripTriangles()
	addAll(seg, 0, tris)

	for i, want := range tris {
		got, err := seg.TriangleVertices(i)
		if err != nil {
			t.Fatalf("TriangleVertices(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("triangle %d = %v, want %v", i, got, want)
		}
	}

	_, err := seg.TriangleVertices(len(tris))
	if !errors.Is(err, ErrInvalidTriangleIndex) {
		t.Errorf("expected ErrInvalidTriangleIndex, got %v", err)
	}
}

func TestSegment_Bounds(t *testing.T) {
	seg := NewSegment(DefaultLimits)
	if b := seg.Bounds(); b.Min != [3]int{} || b.Max != [3]int{} {
		t.Errorf("empty segment bounds = %v, want zero", b)
	}

	seg = NewSegment(DefaultLimits)
	addAll(seg, 0, stripTriangles())
	b := seg.Bounds()
	if b.Min != [3]int{0, 0, 0} || b.Max != [3]int{110, 10, 0} {
		t.Errorf("bounds = %v", b)
	}
	if got := seg.Size(); got != [3]int{110, 10, 0} {
		t.Errorf("size = %v", got)
	}
	if got := seg.Center(); got != [3]int{55, 5, 0} {
		t.Errorf("center = %v", got)
	}

	seg.Vertices[0].X = -40
	if seg.Bounds().Min[0] != 0 {
		t.Error("bounds should stay memoized until invalidated")
	}
	seg.InvalidateBounds()
	if seg.Bounds().Min[0] != -40 {
		t.Errorf("bounds after invalidate = %v", seg.Bounds())
	}
}

func TestSegment_Repack(t *testing.T) {
	seg := NewSegment(Limits{MaxVertices: 32, MaxTriangles: 32})
	addAll(seg, 0, stripTriangles())

	if err := seg.Validate(DefaultLimits); !errors.Is(err, ErrBatchCapacity) {
		t.Fatalf("expected ErrBatchCapacity, got %v", err)
	}

	out, err := seg.Repack(DefaultLimits)
	if err != nil {
		t.Fatalf("Repack failed: %v", err)
	}
	if err := out.Validate(DefaultLimits); err != nil {
		t.Errorf("repacked segment invalid: %v", err)
	}
	if len(out.Triangles) != 20 {
		t.Errorf("expected 20 triangles, got %d", len(out.Triangles))
	}
}
