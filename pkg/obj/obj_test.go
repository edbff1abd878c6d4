package obj

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// createTestPNG writes a w x h image whose top-left pixel is red.
func createTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// createTestOBJ lays out an OBJ, its MTL library and one texture image in
// a temp dir and returns the OBJ path.
func createTestOBJ(t *testing.T, objText, mtlText string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tex"), 0o755); err != nil {
		t.Fatal(err)
	}
	createTestPNG(t, filepath.Join(dir, "tex", "grass.png"), 32, 16)
	if mtlText != "" {
		if err := os.WriteFile(filepath.Join(dir, "test.mtl"), []byte(mtlText), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := filepath.Join(dir, "test.obj")
	if err := os.WriteFile(p, []byte(objText), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const testMTL = `# materials
newmtl grass
map_Kd tex/grass.png

newmtl flat
`

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"v 1 2 3", []string{"v", "1", "2", "3"}},
		{"v 1 2 3 # trailing", []string{"v", "1", "2", "3"}},
		{"# comment only", nil},
		{"#!dkr segment 2", []string{"segment", "2"}},
		{"#!dkr vertex_color #FF0000", []string{"vertex_color", "#FF0000"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := splitLine(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestRead_QuadAndMaterials(t *testing.T) {
	p := createTestOBJ(t, `mtllib test.mtl
o quad
v 0 0 0 1 0 0
v 1 0 0 0.5 0.5 0.5 0.5
v 1 0 1
#!dkr vertex_color 10 20 30
v 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl grass
f 1/1 2/2 3/3 4/4
usemtl flat
f 1 3 4
`, testMTL)

	m, err := Read(p, Options{Scale: 100})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if m.Kind != level.KindLevel || len(m.Segments) != 1 {
		t.Fatalf("got %v model with %d segments", m.Kind, len(m.Segments))
	}
	if len(m.Textures) != 1 {
		t.Fatalf("textures = %d, want 1 (flat has no image)", len(m.Textures))
	}
	tex := m.Textures[0]
	if tex.Name != "grass" || tex.Width != 32 || tex.Height != 16 ||
		tex.Format != level.FormatRGBA16 || tex.IsStock() {
		t.Errorf("texture = %+v", tex)
	}
	if !m.HasUntexturedTriangles {
		t.Error("expected untextured triangles flag")
	}

	seg := m.Segments[0]
	if len(seg.Triangles) != 3 || len(seg.Batches) != 2 {
		t.Fatalf("got %d triangles in %d batches", len(seg.Triangles), len(seg.Batches))
	}
	if seg.Batches[0].TextureIndex != 0 || seg.Batches[1].TextureIndex != level.Untextured {
		t.Errorf("batch textures = %d, %d", seg.Batches[0].TextureIndex, seg.Batches[1].TextureIndex)
	}
	if seg.Batches[0].Flags != level.DefaultBatchFlags {
		t.Errorf("batch flags = 0x%X", seg.Batches[0].Flags)
	}
	// Quad split (0,1,2) + (0,2,3) with shared vertices
	if seg.Batches[0].VertCount != 4 {
		t.Errorf("quad batch vertices = %d, want 4", seg.Batches[0].VertCount)
	}
	if got := seg.Triangles[1].Indices; got != [3]uint8{0, 2, 3} {
		t.Errorf("second quad triangle = %v", got)
	}
	if got := seg.Triangles[1].UVs[2]; got.U != 0 || got.V != 1 {
		t.Errorf("second quad triangle uv = %+v", got)
	}

	wantVerts := []level.Vertex{
		{X: 0, Y: 0, Z: 0, Color: level.Color{R: 255, G: 0, B: 0, A: 255}},
		{X: 100, Y: 0, Z: 0, Color: level.Color{R: 127, G: 127, B: 127, A: 127}},
		{X: 100, Y: 0, Z: 100, Color: level.Color{R: 10, G: 20, B: 30, A: 255}},
		{X: 0, Y: 0, Z: 100, Color: level.White},
	}
	if !reflect.DeepEqual(seg.Vertices[:4], wantVerts) {
		t.Errorf("vertices = %v", seg.Vertices[:4])
	}
	if len(m.BSP.Bitfields) != 1 || !m.BSP.Bitfields[0].Has(0) {
		t.Errorf("default mask = %v", m.BSP.Bitfields)
	}
}

func TestRead_Segments(t *testing.T) {
	p := createTestOBJ(t, `#!dkr number_of_segments 3
#!dkr bsp_tree_start
#!dkr bsp_tree_node -1 1 X 1 0
#!dkr bsp_tree_node -1 -1 z 2 50
#!dkr bsp_tree_end
#!dkr segment_mask 0x3
#!dkr segment_mask 0x7
#!dkr segment_mask 6
v 0 0 0
v 1 0 0
v 0 1 0
#!dkr segment 2
f 1 2 3
#!dkr segment 0
f 3 2 1
`, "")

	m, err := Read(p, Options{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(m.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(m.Segments))
	}
	if len(m.Segments[0].Triangles) != 1 || len(m.Segments[1].Triangles) != 0 || len(m.Segments[2].Triangles) != 1 {
		t.Error("faces landed in the wrong segments")
	}
	want := []level.BspNode{
		{Axis: lmath.AxisX, Value: 0, Segment: 1, Left: -1, Right: 1},
		{Axis: lmath.AxisZ, Value: 50, Segment: 2, Left: -1, Right: -1},
	}
	if !reflect.DeepEqual(m.BSP.Nodes, want) {
		t.Errorf("nodes = %+v", m.BSP.Nodes)
	}
	if got := m.BSP.LeafSegments(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("leaf segments = %v", got)
	}
	masks := [][]int{{0, 1}, {0, 1, 2}, {1, 2}}
	for i, bf := range m.BSP.Bitfields {
		if !reflect.DeepEqual(bf.Segments(), masks[i]) {
			t.Errorf("mask %d = %v, want %v", i, bf.Segments(), masks[i])
		}
	}
}

func TestRead_SingleSegmentPlaceholderTree(t *testing.T) {
	p := createTestOBJ(t, `#!dkr number_of_segments 1
#!dkr bsp_tree_start
#!dkr bsp_tree_node -1 -1 X 0 0
#!dkr bsp_tree_end
#!dkr segment_mask 1
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`, "")
	m, err := Read(p, Options{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !m.BSP.Empty() {
		t.Errorf("placeholder node kept: %+v", m.BSP.Nodes)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		obj  string
		want error
	}{
		{"pentagon", "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nv 0 2 0\nf 1 2 3 4 5\n", ErrUnsupportedFace},
		{"face index", "v 0 0 0\nf 1 2 3\n", ErrInvalidFace},
		{"two libraries", "mtllib test.mtl\nmtllib test.mtl\n", ErrDuplicateMaterials},
		{"unknown material", "mtllib test.mtl\nusemtl stone\n", ErrUnknownMaterial},
		{"segment without count", "#!dkr segment 1\n", ErrSegmentWithoutCount},
		{"count twice", "#!dkr number_of_segments 2\n#!dkr number_of_segments 2\n", ErrDuplicateSegments},
		{"segment range", "#!dkr number_of_segments 2\n#!dkr segment 2\n", ErrInvalidSegment},
		{"node outside tree", "#!dkr bsp_tree_node -1 -1 X 1 0\n", ErrNodeOutsideTree},
		{"unterminated tree", "#!dkr bsp_tree_start\n", ErrNodeOutsideTree},
		{"bad axis", "#!dkr bsp_tree_start\n#!dkr bsp_tree_node -1 -1 W 1 0\n", lmath.ErrInvalidAxis},
		{"bad color", "v 0 0 0\n#!dkr vertex_color 1 2\n", level.ErrInvalidColor},
		{"too many segments", "#!dkr number_of_segments 300\n", level.ErrTooManySegments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := createTestOBJ(t, tt.obj, testMTL)
			_, err := Read(p, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("Read() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type stubResolver struct {
	img     image.Image
	flipped bool
}

func (r stubResolver) Resolve(index int32) (image.Image, bool, error) {
	if index != 42 {
		return nil, false, texture.ErrTextureNotFound
	}
	return r.img, r.flipped, nil
}

func TestRead_VanillaTexture(t *testing.T) {
	stock := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	stock.SetNRGBA(0, 0, color.NRGBA{G: 200, A: 255})

	p := createTestOBJ(t, "mtllib test.mtl\n", `newmtl stock
#!dkr vanilla_tex 42
map_Kd tex/grass.png

newmtl missing
#!dkr vanilla_tex 7
map_Kd tex/grass.png
`)
	m, err := Read(p, Options{Resolver: stubResolver{img: stock, flipped: true}})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(m.Textures) != 2 {
		t.Fatalf("textures = %d, want 2", len(m.Textures))
	}
	got := m.Textures[0]
	if got.OriginalIndex != 42 || got.Width != 8 || got.Height != 4 {
		t.Errorf("stock texture = %+v", got)
	}
	if got.Image.(*image.NRGBA).NRGBAAt(0, 3).G != 200 {
		t.Error("expected flipped stock image")
	}
	// Unknown stock index falls back to map_Kd but keeps the index
	if m.Textures[1].OriginalIndex != 7 || m.Textures[1].Width != 32 {
		t.Errorf("fallback texture = %+v", m.Textures[1])
	}
}

// createTestModel builds a two-segment level with one textured and one
// untextured batch.
func createTestModel() *level.Model {
	m := level.NewLevelModel()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	m.Textures = []*level.Texture{{
		Image: img, Width: 16, Height: 8, Format: level.FormatRGBA16,
		OriginalIndex: 3, Name: "wall",
	}}
	red := level.Color{R: 255, A: 255}
	for s := 0; s < 2; s++ {
		seg := level.NewSegment(level.DefaultLimits)
		for i := 0; i < 5; i++ {
			x := float64(s*1000 + i*10)
			a := level.NewVertex(x, 0, 0, red)
			b := level.NewVertex(x+10, 0, 0, level.White)
			c := level.NewVertex(x, 0, 10, level.Color{R: 1, G: 2, B: 3, A: 4})
			tex := int8(0)
			if i >= 3 {
				tex = level.Untextured
			}
			seg.AddTriangle(tex, level.DefaultBatchFlags, level.DefaultTriangleFlags,
				a, b, c, level.NewUV(0, 0), level.NewUV(0.5, 0), level.NewUV(0, 0.25))
		}
		m.Segments = append(m.Segments, seg)
	}
	m.HasUntexturedTriangles = true
	m.BSP.Nodes = []level.BspNode{{Axis: lmath.AxisX, Value: 500, Segment: 1, Left: -1, Right: -1}}
	m.BSP.Bitfields = []level.Bitfield{
		level.BitfieldFromSegments(2, []int{0}),
		level.BitfieldFromSegments(2, []int{0, 1}),
	}
	return m
}

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, format := range []ImageFormat{ImagePNG, ImageWebP} {
		t.Run(string(format), func(t *testing.T) {
			m := createTestModel()
			p := filepath.Join(t.TempDir(), "level")
			if err := Write(m, p, Options{ImageFormat: format}); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			imgPath := filepath.Join(filepath.Dir(p), "level", "wall."+string(format))
			if _, err := texture.Load(imgPath); err != nil {
				t.Fatalf("texture image: %v", err)
			}

			got, err := Read(p+".obj", Options{})
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if len(got.Segments) != 2 {
				t.Fatalf("segments = %d", len(got.Segments))
			}
			for i := range m.Segments {
				want, have := m.Segments[i], got.Segments[i]
				if !reflect.DeepEqual(have.Vertices, want.Vertices) {
					t.Errorf("segment %d vertices differ", i)
				}
				if !reflect.DeepEqual(have.Triangles, want.Triangles) {
					t.Errorf("segment %d triangles differ", i)
				}
				if !reflect.DeepEqual(have.Batches, want.Batches) {
					t.Errorf("segment %d batches = %+v, want %+v", i, have.Batches, want.Batches)
				}
			}
			if !reflect.DeepEqual(got.BSP.Nodes, m.BSP.Nodes) {
				t.Errorf("nodes = %+v", got.BSP.Nodes)
			}
			if !reflect.DeepEqual(got.BSP.Bitfields, m.BSP.Bitfields) {
				t.Errorf("bitfields = %v", got.BSP.Bitfields)
			}
			tex := got.Textures[0]
			if tex.Name != "wall" || tex.OriginalIndex != 3 || tex.Width != 16 || tex.Height != 8 {
				t.Errorf("texture = %+v", tex)
			}
			if !got.HasUntexturedTriangles {
				t.Error("untextured flag lost")
			}
		})
	}
}

func TestWrite_SingleSegment(t *testing.T) {
	m := createTestModel()
	m.Segments = m.Segments[:1]
	m.BSP = &level.BspTree{}
	m.Textures[0].Image = nil
	m.Textures[0].Name = ""

	dir := t.TempDir()
	if err := Write(m, filepath.Join(dir, "one.obj"), Options{Scale: 2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "one.obj"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(raw)
	for _, want := range []string{
		"mtllib one.mtl\n",
		"#!dkr number_of_segments 1\n",
		"#!dkr bsp_tree_node -1 -1 X 0 0\n",
		"#!dkr segment_mask 1\n",
		"#!dkr vertex_color #FF0000\n",
		"#!dkr vertex_color #01020304\n",
		"v 5 0 0\n",
		"usemtl untextured\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}

	mtl, err := os.ReadFile(filepath.Join(dir, "one.mtl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(mtl), "newmtl tex_0\n#!dkr vanilla_tex 3\nmap_Kd one/tex_0.png\n") {
		t.Errorf("mtl = %q", mtl)
	}
	// A nil image is replaced by a placeholder of the texture's size
	img, err := texture.Load(filepath.Join(dir, "one", "tex_0.png"))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("placeholder size = %v", b)
	}
}

func TestWrite_PlaceholderFollowsPixelFormat(t *testing.T) {
	m := createTestModel()
	m.Textures[0].Image = nil
	m.Textures[0].Format = level.FormatI8 | 0x80

	dir := t.TempDir()
	if err := Write(m, filepath.Join(dir, "grey.obj"), Options{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	img, err := texture.Load(filepath.Join(dir, "grey", "wall.png"))
	if err != nil {
		t.Fatal(err)
	}
	// Top-right quadrant holds the placeholder colour.
	r, g, b, _ := img.At(12, 1).RGBA()
	if r != g || g != b {
		t.Errorf("placeholder colour for packed I8 = %d %d %d, want grey", r>>8, g>>8, b>>8)
	}
	if r == 0xFFFF {
		t.Error("placeholder quadrant is white")
	}
}

func TestParseImageFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ImageFormat
		wantErr bool
	}{
		{"", ImagePNG, false},
		{"PNG", ImagePNG, false},
		{"webp", ImageWebP, false},
		{"bmp", "", true},
	}
	for _, tt := range tests {
		got, err := ParseImageFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseImageFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
