package split

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// createTestCube builds a single-segment level model of a cube spanning
// [-r, r] on every axis.
func createTestCube(r float64) *level.Model {
	corner := func(x, y, z float64) level.Vertex {
		return level.NewVertex(x*r, y*r, z*r, level.White)
	}
	faces := [][4]level.Vertex{
		{corner(-1, -1, -1), corner(-1, 1, -1), corner(-1, 1, 1), corner(-1, -1, 1)},
		{corner(1, -1, -1), corner(1, -1, 1), corner(1, 1, 1), corner(1, 1, -1)},
		{corner(-1, -1, -1), corner(-1, -1, 1), corner(1, -1, 1), corner(1, -1, -1)},
		{corner(-1, 1, -1), corner(1, 1, -1), corner(1, 1, 1), corner(-1, 1, 1)},
		{corner(-1, -1, -1), corner(1, -1, -1), corner(1, 1, -1), corner(-1, 1, -1)},
		{corner(-1, -1, 1), corner(-1, 1, 1), corner(1, 1, 1), corner(1, -1, 1)},
	}

	m := level.NewLevelModel()
	m.Textures = []*level.Texture{{Width: 32, Height: 32, OriginalIndex: 3}}
	seg := level.NewSegment(level.DefaultLimits)
	uv := [4]level.UV{level.NewUV(0, 0), level.NewUV(1, 0), level.NewUV(1, 1), level.NewUV(0, 1)}
	for _, f := range faces {
		seg.AddTriangle(0, level.DefaultBatchFlags, 0, f[0], f[1], f[2], uv[0], uv[1], uv[2])
		seg.AddTriangle(0, level.DefaultBatchFlags, 0, f[0], f[2], f[3], uv[0], uv[2], uv[3])
	}
	m.Segments = []*level.Segment{seg}
	return m
}

func TestAutoTree_CubeIntoTwo(t *testing.T) {
	box := lmath.NewBox(-100, -100, -100, 100, 100, 100)
	root, err := AutoTree(box, 2)
	if err != nil {
		t.Fatalf("AutoTree failed: %v", err)
	}
	want := &Node{Axis: lmath.AxisX, Value: 0}
	if !reflect.DeepEqual(root, want) {
		t.Errorf("root = %+v, want %+v", root, want)
	}

	leaves, err := Leaves(box, root)
	if err != nil {
		t.Fatalf("Leaves failed: %v", err)
	}
	wantLeaves := []lmath.Box{
		lmath.NewBox(-100, -100, -100, 0, 100, 100),
		lmath.NewBox(0, -100, -100, 100, 100, 100),
	}
	if !reflect.DeepEqual(leaves, wantLeaves) {
		t.Errorf("leaves = %v, want %v", leaves, wantLeaves)
	}
}

func TestAutoTree_AlternatesAxes(t *testing.T) {
	box := lmath.NewBox(0, 0, 0, 400, 50, 400)
	root, err := AutoTree(box, 4)
	if err != nil {
		t.Fatal(err)
	}
	if root.Axis != lmath.AxisX || root.Value != 200 {
		t.Errorf("root = %v@%d, want X@200", root.Axis, root.Value)
	}
	for _, child := range []*Node{root.Left, root.Right} {
		if child == nil || child.Axis != lmath.AxisZ || child.Value != 200 {
			t.Errorf("child = %+v, want Z@200", child)
		}
	}
}

func TestAutoTree_LeafCount(t *testing.T) {
	box := lmath.NewBox(-1000, -50, -1000, 1000, 50, 1000)
	for n := 1; n <= 40; n++ {
		root, err := AutoTree(box, n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got := root.Internal(); got != n-1 {
			t.Errorf("n=%d: %d internal nodes, want %d", n, got, n-1)
		}
		leaves, err := Leaves(box, root)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(leaves) != n {
			t.Errorf("n=%d: %d leaves", n, len(leaves))
		}

		nodes := BuildBSP(root)
		if len(nodes) != n-1 {
			t.Errorf("n=%d: %d BSP nodes", n, len(nodes))
		}
		if n == 1 {
			continue
		}
		tree := &level.BspTree{Nodes: nodes}
		if err := tree.Validate(); err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		segs := tree.LeafSegments()
		sort.Ints(segs)
		for i, s := range segs {
			if s != i {
				t.Fatalf("n=%d: leaf segments %v are not 0..%d", n, segs, n-1)
			}
		}
	}
}

func TestAutoTree_InvalidCount(t *testing.T) {
	if _, err := AutoTree(lmath.FullBox(), 0); !errors.Is(err, ErrSegmentCount) {
		t.Errorf("expected ErrSegmentCount, got %v", err)
	}
}

func TestLeaves_SplitOutsideBox(t *testing.T) {
	box := lmath.NewBox(-100, -100, -100, 100, 100, 100)
	root := &Node{Axis: lmath.AxisY, Value: 500}
	if _, err := Leaves(box, root); !errors.Is(err, ErrInvalidSplitTree) {
		t.Errorf("expected ErrInvalidSplitTree, got %v", err)
	}
}

func TestBuildBSP_SegmentNumbers(t *testing.T) {
	// Left-heavy tree: leaves 0,1 under the left node, 2 on the right.
	root := &Node{
		Axis: lmath.AxisX, Value: 0,
		Left: &Node{Axis: lmath.AxisZ, Value: 0},
	}
	nodes := BuildBSP(root)
	want := []level.BspNode{
		{Axis: lmath.AxisX, Value: 0, Segment: 2, Left: 1, Right: level.NoChild},
		{Axis: lmath.AxisZ, Value: 0, Segment: 1, Left: level.NoChild, Right: level.NoChild},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("nodes = %+v, want %+v", nodes, want)
	}

	back, err := TreeFromBSP(&level.BspTree{Nodes: nodes})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, root) {
		t.Errorf("TreeFromBSP = %+v, want %+v", back, root)
	}
}

func TestClipToBox(t *testing.T) {
	lo := mgl64.Vec3{0, -100, -100}
	hi := mgl64.Vec3{100, 100, 100}

	t.Run("inside", func(t *testing.T) {
		tri := Triangle(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{20, 0, 0}, mgl64.Vec3{10, 10, 0})
		got := ClipToBox(tri, lo, hi)
		if !reflect.DeepEqual(got, tri) {
			t.Errorf("got %v, want %v", got, tri)
		}
	})

	t.Run("outside", func(t *testing.T) {
		tri := Triangle(mgl64.Vec3{-30, 0, 0}, mgl64.Vec3{-20, 0, 0}, mgl64.Vec3{-30, 10, 0})
		if got := ClipToBox(tri, lo, hi); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("straddling", func(t *testing.T) {
		tri := Triangle(mgl64.Vec3{-10, 0, 0}, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{10, 10, 0})
		got := ClipToBox(tri, lo, hi)
		if len(got) != 4 {
			t.Fatalf("got %d vertices, want 4: %v", len(got), got)
		}
		introduced := 0
		for _, v := range got {
			if v.Orig >= 0 {
				continue
			}
			introduced++
			if math.Abs(v.Pos[0]) > PlaneEpsilon {
				t.Errorf("introduced vertex %v is off the x=0 plane", v.Pos)
			}
		}
		if introduced != 2 {
			t.Errorf("introduced %d vertices, want 2", introduced)
		}
	})

	t.Run("touching plane", func(t *testing.T) {
		tri := Triangle(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{-10, 0, 0}, mgl64.Vec3{0, 10, 0})
		if got := ClipToBox(tri, lo, hi); len(got) >= 3 {
			t.Errorf("expected a degenerate result, got %v", got)
		}
	})
}

func TestInterpolateUV(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{0, 10, 0}
	uva, uvb, uvc := level.NewUV(0, 0), level.NewUV(1, 0), level.NewUV(0, 1)

	tests := []struct {
		p    mgl64.Vec3
		u, v float64
	}{
		{mgl64.Vec3{0, 0, 0}, 0, 0},
		{mgl64.Vec3{5, 0, 0}, 0.5, 0},
		{mgl64.Vec3{0, 5, 0}, 0, 0.5},
		{mgl64.Vec3{5, 5, 0}, 0.5, 0.5},
	}
	for _, tt := range tests {
		got := InterpolateUV(tt.p, a, b, c, uva, uvb, uvc)
		if math.Abs(got.U-tt.u) > 1e-9 || math.Abs(got.V-tt.v) > 1e-9 {
			t.Errorf("InterpolateUV(%v) = (%g, %g), want (%g, %g)", tt.p, got.U, got.V, tt.u, tt.v)
		}
	}

	// Collinear corners must not divide by zero.
	got := InterpolateUV(mgl64.Vec3{1, 0, 0}, a, b, mgl64.Vec3{20, 0, 0}, uva, uvb, uvc)
	if math.IsNaN(got.U) || math.IsNaN(got.V) || math.IsInf(got.U, 0) {
		t.Errorf("degenerate interpolation produced %v", got)
	}
}

func TestInterpolateColor(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{0, 10, 0}
	got := InterpolateColor(mgl64.Vec3{5, 0, 0}, a, b, c,
		level.Color{R: 0, A: 255}, level.Color{R: 200, A: 255}, level.Color{R: 50, A: 255})
	if got != (level.Color{R: 100, A: 255}) {
		t.Errorf("InterpolateColor = %v, want R=100 A=255", got)
	}
}

func TestSplitter_AutoCube(t *testing.T) {
	s := &Splitter{}
	out, err := s.Auto(createTestCube(100), 2)
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if len(out.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(out.Segments))
	}

	want := []lmath.Box{
		lmath.NewBox(-100, -100, -100, 0, 100, 100),
		lmath.NewBox(0, -100, -100, 100, 100, 100),
	}
	for i, seg := range out.Segments {
		if got := seg.Bounds(); got != want[i] {
			t.Errorf("segment %d bounds = %v, want %v", i, got, want[i])
		}
		if err := seg.Validate(level.DefaultLimits); err != nil {
			t.Errorf("segment %d: %v", i, err)
		}
		for _, b := range seg.Batches {
			if b.TextureIndex != 0 || b.Flags != level.DefaultBatchFlags {
				t.Errorf("segment %d batch lost texture or flags: %+v", i, b)
			}
		}
	}

	wantNodes := []level.BspNode{{Axis: lmath.AxisX, Value: 0, Segment: 1, Left: level.NoChild, Right: level.NoChild}}
	if !reflect.DeepEqual(out.BSP.Nodes, wantNodes) {
		t.Errorf("BSP nodes = %+v, want %+v", out.BSP.Nodes, wantNodes)
	}
	for i, bf := range out.BSP.Bitfields {
		if !reflect.DeepEqual(bf.Segments(), []int{0, 1}) {
			t.Errorf("bitfield %d = %v, want all visible", i, bf.Segments())
		}
	}
	if out.Textures[0].OriginalIndex != 3 {
		t.Error("textures were not carried over")
	}
}

func TestSplitter_ClippedUVsInterpolate(t *testing.T) {
	m := level.NewLevelModel()
	m.Textures = []*level.Texture{{Width: 32, Height: 32}}
	seg := level.NewSegment(level.DefaultLimits)
	seg.AddTriangle(0, level.DefaultBatchFlags, level.TriangleFlagRenderBackface,
		level.NewVertex(-100, 0, 0, level.White), level.NewVertex(100, 0, 0, level.White), level.NewVertex(-100, 0, 100, level.White),
		level.NewUV(0, 0), level.NewUV(1, 0), level.NewUV(0, 1))
	m.Segments = []*level.Segment{seg}

	out, err := (&Splitter{}).Manual(m, &Node{Axis: lmath.AxisX, Value: 0})
	if err != nil {
		t.Fatalf("Manual failed: %v", err)
	}
	right := out.Segments[1]
	if len(right.Triangles) != 1 {
		t.Fatalf("right segment has %d triangles, want 1", len(right.Triangles))
	}
	if right.Triangles[0].Flags != level.TriangleFlagRenderBackface {
		t.Error("triangle flags were not preserved")
	}
	for k, idx := range right.Triangles[0].Indices {
		v := right.Vertices[idx]
		uv := right.Triangles[0].UVs[k]
		wantU := (float64(v.X) + 100) / 200
		if math.Abs(uv.U-wantU) > 1e-9 {
			t.Errorf("vertex %v: U = %g, want %g", v, uv.U, wantU)
		}
	}
}

func TestSplitter_ManualY(t *testing.T) {
	m := createTestCube(100)
	root := &Node{Axis: lmath.AxisY, Value: -50, Right: &Node{Axis: lmath.AxisX, Value: 20}}
	out, err := (&Splitter{Oracle: StaticVisibility{0: {0, 2}}}).Manual(m, root)
	if err != nil {
		t.Fatalf("Manual failed: %v", err)
	}
	if len(out.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(out.Segments))
	}
	if got := out.Segments[0].Bounds(); got.Max[1] != -50 {
		t.Errorf("segment 0 bounds = %v, want max y -50", got)
	}
	if got := out.Segments[2].Bounds(); got.Min[0] != 20 || got.Min[1] != -50 {
		t.Errorf("segment 2 bounds = %v, want min x 20, min y -50", got)
	}

	if got := out.BSP.Bitfields[0].Segments(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("bitfield 0 = %v, want [0 2]", got)
	}
	if got := out.BSP.Bitfields[1].Segments(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("bitfield 1 = %v, want [1]", got)
	}
	if got := out.BSP.SegmentAt(90, 90, 0); got != 2 {
		t.Errorf("SegmentAt(90,90,0) = %d, want 2", got)
	}
}

func TestSplitter_Errors(t *testing.T) {
	m := createTestCube(100)
	s := &Splitter{}
	if _, err := s.Auto(m, 300); !errors.Is(err, level.ErrTooManySegments) {
		t.Errorf("expected ErrTooManySegments, got %v", err)
	}
	if _, err := s.Manual(m, &Node{Axis: lmath.Axis(5)}); !errors.Is(err, ErrInvalidSplitTree) {
		t.Errorf("expected ErrInvalidSplitTree, got %v", err)
	}
	if _, err := s.Manual(m, &Node{Axis: lmath.AxisX, Value: 1000}); !errors.Is(err, ErrInvalidSplitTree) {
		t.Errorf("expected ErrInvalidSplitTree for a split outside the model, got %v", err)
	}
}

func TestParseTree(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    *Node
		wantErr bool
	}{
		{
			name: "json",
			doc:  `{"root": {"axis": "x", "value": 10, "left": null, "right": {"axis": "Z", "value": -4, "left": null, "right": null}}}`,
			want: &Node{Axis: lmath.AxisX, Value: 10, Right: &Node{Axis: lmath.AxisZ, Value: -4}},
		},
		{
			name: "yaml",
			doc:  "root:\n  axis: Y\n  value: 7\n",
			want: &Node{Axis: lmath.AxisY, Value: 7},
		},
		{name: "bad axis", doc: "root:\n  axis: W\n  value: 0\n", wantErr: true},
		{name: "value range", doc: "root:\n  axis: X\n  value: 40000\n", wantErr: true},
		{name: "no root", doc: "tree: {}\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTree([]byte(tt.doc))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSplitTree) {
					t.Errorf("expected ErrInvalidSplitTree, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTree failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMarshalTree_RoundTrip(t *testing.T) {
	root, err := AutoTree(lmath.NewBox(0, 0, 0, 800, 10, 800), 5)
	if err != nil {
		t.Fatal(err)
	}
	data, err := MarshalTree(root)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseTree(data)
	if err != nil {
		t.Fatalf("ParseTree failed: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(back, root) {
		t.Errorf("round trip mismatch:\n%s", data)
	}
}
