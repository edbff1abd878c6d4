package obj

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Read loads a level model from an OBJ file. The material library and
// texture images are resolved relative to the file's directory.
func Read(path string, opts Options) (*level.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("obj: open: %w", err)
	}
	defer f.Close()

	m, err := Decode(f, filepath.Dir(path), opts)
	if err != nil {
		return nil, fmt.Errorf("obj: %s: %w", path, err)
	}
	return m, nil
}

// decoder carries the state of one OBJ parse.
type decoder struct {
	opts Options
	dir  string
	m    *level.Model

	vertices []level.Vertex
	uvs      []level.UV

	materials    map[string]int8
	texIndex     int8
	segment      int
	segmentCount bool

	inTree bool
	nodes  []level.BspNode
	masks  []string
}

// Decode parses OBJ text. dir is the directory that mtllib and map_Kd
// paths are relative to.
func Decode(r io.Reader, dir string, opts Options) (*level.Model, error) {
	d := &decoder{
		opts:     opts.withDefaults(),
		dir:      dir,
		m:        level.NewLevelModel(),
		texIndex: level.Untextured,
	}
	d.m.Segments = []*level.Segment{level.NewSegment(d.opts.Limits)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		parts := splitLine(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if err := d.command(parts); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if d.inTree {
		return nil, fmt.Errorf("%w: missing bsp_tree_end", ErrNodeOutsideTree)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}

	d.opts.Log.Debug("Decoded OBJ model",
		zap.Int("segments", len(d.m.Segments)),
		zap.Int("textures", len(d.m.Textures)),
		zap.Int("vertices", d.m.VertexCount()),
		zap.Int("triangles", d.m.TriangleCount()))
	return d.m, nil
}

func (d *decoder) command(parts []string) error {
	args := parts[1:]
	switch parts[0] {
	case "v":
		return d.vertex(args)
	case "vt":
		if len(args) < 2 {
			return fmt.Errorf("%w: vt needs 2 values", ErrMalformedLine)
		}
		u, err1 := strconv.ParseFloat(args[0], 64)
		v, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("%w: vt %s", ErrMalformedLine, strings.Join(args, " "))
		}
		d.uvs = append(d.uvs, level.NewUV(u, v))
	case "f":
		return d.face(args)
	case "mtllib":
		if d.materials != nil {
			return ErrDuplicateMaterials
		}
		if len(args) < 1 {
			return fmt.Errorf("%w: mtllib without a path", ErrMalformedLine)
		}
		mats, err := loadMaterials(resolvePath(d.dir, args[0]), d.dir, d.m, d.opts)
		if err != nil {
			return err
		}
		d.materials = mats
	case "usemtl":
		if len(args) < 1 {
			return fmt.Errorf("%w: usemtl without a name", ErrMalformedLine)
		}
		idx, ok := d.materials[args[0]]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMaterial, args[0])
		}
		d.texIndex = idx
	case "vn", "o", "g", "s":
	case "vertex_color":
		if len(d.vertices) == 0 {
			return fmt.Errorf("%w: vertex_color before any vertex", ErrMalformedLine)
		}
		c, err := level.ParseColor(strings.Join(args, " "))
		if err != nil {
			return err
		}
		d.vertices[len(d.vertices)-1].Color = c
	case "number_of_segments":
		if d.segmentCount {
			return ErrDuplicateSegments
		}
		n, err := d.intArg(args, 0)
		if err != nil {
			return err
		}
		if n < 1 || n > level.MaxSegments {
			return fmt.Errorf("%w: %d", level.ErrTooManySegments, n)
		}
		d.segmentCount = true
		for len(d.m.Segments) < n {
			d.m.Segments = append(d.m.Segments, level.NewSegment(d.opts.Limits))
		}
	case "segment":
		if !d.segmentCount {
			return ErrSegmentWithoutCount
		}
		n, err := d.intArg(args, 0)
		if err != nil {
			return err
		}
		if n < 0 || n >= len(d.m.Segments) {
			return fmt.Errorf("%w: %d", ErrInvalidSegment, n)
		}
		d.segment = n
	case "bsp_tree_start":
		d.inTree = true
		d.nodes = d.nodes[:0]
	case "bsp_tree_node":
		if !d.inTree {
			return ErrNodeOutsideTree
		}
		return d.bspNode(args)
	case "bsp_tree_end":
		if !d.inTree {
			return ErrNodeOutsideTree
		}
		d.inTree = false
	case "segment_mask":
		if len(args) < 1 {
			return fmt.Errorf("%w: segment_mask without a value", ErrMalformedLine)
		}
		d.masks = append(d.masks, args[0])
	default:
		d.opts.Log.Debug("Unimplemented OBJ command", zap.String("command", parts[0]))
	}
	return nil
}

func (d *decoder) intArg(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrMalformedLine, i+1)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedLine, args[i])
	}
	return n, nil
}

// vertex parses "v x y z [r g b [a]]". Colour channels are fractions of 255.
func (d *decoder) vertex(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: v needs 3 coordinates", ErrMalformedLine)
	}
	var pos [3]float64
	for i := range pos {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return fmt.Errorf("%w: v %s", ErrMalformedLine, strings.Join(args, " "))
		}
		pos[i] = f * d.opts.Scale
	}

	c := level.White
	if len(args) == 6 || len(args) == 7 {
		ch := [4]float64{1, 1, 1, 1}
		valid := true
		for i, s := range args[3:] {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				valid = false
				break
			}
			ch[i] = f
		}
		if valid {
			c = level.Color{
				R: lmath.ToU8(ch[0] * 255),
				G: lmath.ToU8(ch[1] * 255),
				B: lmath.ToU8(ch[2] * 255),
				A: lmath.ToU8(ch[3] * 255),
			}
		}
	}
	d.vertices = append(d.vertices, level.NewVertex(pos[0], pos[1], pos[2], c))
	return nil
}

// face parses a triangle or quad of "v", "v/vt" or "v/vt/vn" corners.
// Quads split into (0,1,2) and (0,2,3).
func (d *decoder) face(args []string) error {
	if len(args) > 4 {
		return fmt.Errorf("%w: got %d", ErrUnsupportedFace, len(args))
	}
	if len(args) < 3 {
		return fmt.Errorf("%w: %d corners", ErrInvalidFace, len(args))
	}

	var (
		verts [4]level.Vertex
		uvs   [4]level.UV
	)
	for i, corner := range args {
		refs := strings.Split(corner, "/")
		vi, err := reference(refs[0], len(d.vertices))
		if err != nil {
			return fmt.Errorf("%w: vertex %q: %v", ErrInvalidFace, corner, err)
		}
		verts[i] = d.vertices[vi]
		if len(refs) > 1 && refs[1] != "" {
			ti, err := reference(refs[1], len(d.uvs))
			if err != nil {
				return fmt.Errorf("%w: uv %q: %v", ErrInvalidFace, corner, err)
			}
			uvs[i] = d.uvs[ti]
		}
	}

	if d.texIndex == level.Untextured {
		d.m.HasUntexturedTriangles = true
	}
	seg := d.m.Segments[d.segment]
	seg.AddTriangle(d.texIndex, level.DefaultBatchFlags, level.DefaultTriangleFlags,
		verts[0], verts[1], verts[2], uvs[0], uvs[1], uvs[2])
	if len(args) == 4 {
		seg.AddTriangle(d.texIndex, level.DefaultBatchFlags, level.DefaultTriangleFlags,
			verts[0], verts[2], verts[3], uvs[0], uvs[2], uvs[3])
	}
	return nil
}

// reference resolves a 1-based (or negative, relative) OBJ index.
func reference(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	}
	return 0, fmt.Errorf("index %d out of range [1, %d]", i, n)
}

// bspNode parses "L R AXIS SEGMENT VALUE".
func (d *decoder) bspNode(args []string) error {
	if len(args) < 5 {
		return fmt.Errorf("%w: bsp_tree_node needs 5 values", ErrMalformedLine)
	}
	axis, err := lmath.ParseAxis(args[2])
	if err != nil {
		return err
	}
	var nums [4]int
	for i, idx := range []int{0, 1, 3, 4} {
		if nums[i], err = d.intArg(args, idx); err != nil {
			return err
		}
	}
	if nums[2] < 0 || nums[2] > 255 {
		return fmt.Errorf("%w: segment number %d", ErrMalformedLine, nums[2])
	}
	d.nodes = append(d.nodes, level.BspNode{
		Axis:    axis,
		Left:    nums[0],
		Right:   nums[1],
		Segment: uint8(nums[2]),
		Value:   lmath.ToS16(float64(nums[3])),
	})
	return nil
}

// finish attaches the BSP tree and visibility masks. Single-segment models
// carry a placeholder node that is dropped. Missing masks default to every
// segment being visible.
func (d *decoder) finish() error {
	n := len(d.m.Segments)
	if n > 1 {
		d.m.BSP.Nodes = append([]level.BspNode(nil), d.nodes...)
		if err := d.m.BSP.Validate(); err != nil {
			return err
		}
	}

	d.m.BSP.Bitfields = make([]level.Bitfield, n)
	for i := range d.m.BSP.Bitfields {
		if i >= len(d.masks) {
			d.m.BSP.Bitfields[i] = fullMask(n)
			continue
		}
		bf, err := level.ParseBitfield(d.masks[i], n)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		d.m.BSP.Bitfields[i] = bf
	}
	if len(d.masks) > n {
		d.opts.Log.Warn("Ignoring extra segment masks",
			zap.Int("masks", len(d.masks)), zap.Int("segments", n))
	}
	return nil
}

func fullMask(n int) level.Bitfield {
	bf := level.NewBitfield(n)
	for i := 0; i < n; i++ {
		bf.Set(i)
	}
	return bf
}
