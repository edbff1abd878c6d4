package formats

import (
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// DecodeOptions configures DecodeLevel. The zero value decodes with
// placeholder textures and no logging.
type DecodeOptions struct {
	// Resolver supplies stock texture pixels. Nil means placeholders only.
	Resolver texture.Resolver
	// Palette generates placeholder images. Nil allocates a fresh one.
	Palette *texture.Palette
	// Namer names decoded textures. Nil allocates a fresh one.
	Namer *level.TextureNamer
	// Limits are stored on decoded segments for later packing. Zero means
	// the limits of the layout detected from the header.
	Limits level.Limits
	Log    *zap.Logger
}

func (o DecodeOptions) withDefaults(h *Header) DecodeOptions {
	if o.Palette == nil {
		o.Palette = texture.NewPalette(1)
	}
	if o.Namer == nil {
		o.Namer = &level.TextureNamer{}
	}
	if o.Limits.MaxVertices == 0 || o.Limits.MaxTriangles == 0 {
		o.Limits = h.Layout().Limits()
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// reader hands out bounds-checked byte ranges of a level binary.
type reader struct {
	data []byte
}

func (r reader) span(off, n int, what string) ([]byte, error) {
	if off < 0 || n < 0 || off > len(r.data) || n > len(r.data)-off {
		return nil, fmt.Errorf("%w: %s at 0x%X+0x%X exceeds 0x%X bytes", ErrTruncatedLevelData, what, off, n, len(r.data))
	}
	return r.data[off : off+n], nil
}

// DecodeLevel reconstructs a level model from a level binary. Both known
// layouts are accepted since every section is located through the header.
func DecodeLevel(data []byte, opts DecodeOptions) (*level.Model, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults(h)
	r := reader{data: data}
	m := level.NewLevelModel()

	for i := 0; i < int(h.TextureCount); i++ {
		tex, err := decodeTexture(r, int(h.TexturesOffset)+i*TextureNodeSize, opts)
		if err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		m.Textures = append(m.Textures, tex)
	}

	for i := 0; i < int(h.SegmentCount); i++ {
		seg, untextured, err := decodeSegment(r, int(h.SegmentsOffset)+i*SegmentHeaderSize, m.Textures, opts.Limits)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if untextured {
			m.HasUntexturedTriangles = true
		}
		m.Segments = append(m.Segments, seg)
	}

	treeless, err := decodeBSP(r, h, m.BSP)
	if err != nil {
		return nil, err
	}
	if !treeless {
		if err := decodeBitfields(r, h, m.BSP); err != nil {
			return nil, err
		}
	}

	opts.Log.Debug("decoded level",
		zap.Int("textures", len(m.Textures)),
		zap.Int("segments", len(m.Segments)),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("bsp_nodes", len(m.BSP.Nodes)))
	return m, nil
}

// DecodeLevelFile decodes a level binary from disk.
func DecodeLevelFile(path string, opts DecodeOptions) (*level.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level file: %w", err)
	}
	return DecodeLevel(data, opts)
}

func decodeTexture(r reader, off int, opts DecodeOptions) (*level.Texture, error) {
	rec, err := r.span(off, TextureNodeSize, "texture node")
	if err != nil {
		return nil, err
	}
	tex := &level.Texture{
		OriginalIndex: int32(be.Uint32(rec[0:])),
		Width:         rec[4],
		Height:        rec[5],
		Format:        rec[6],
		CollisionType: rec[7],
		Name:          opts.Namer.Next(),
	}
	tex.Image = textureImage(tex, opts)
	return tex, nil
}

// textureImage resolves stock pixels, falling back to a placeholder.
func textureImage(tex *level.Texture, opts DecodeOptions) *image.NRGBA {
	if opts.Resolver != nil {
		img, flipped, err := opts.Resolver.Resolve(tex.OriginalIndex)
		if err == nil {
			if flipped {
				return texture.FlipVertical(img)
			}
			return texture.ToNRGBA(img)
		}
		opts.Log.Warn("stock texture unavailable, using placeholder",
			zap.String("texture", tex.Name),
			zap.Int32("index", tex.OriginalIndex),
			zap.Error(err))
	}
	return opts.Palette.Placeholder(int(tex.Width), int(tex.Height), tex.PixelFormat())
}

func decodeSegment(r reader, off int, textures []*level.Texture, limits level.Limits) (*level.Segment, bool, error) {
	hdr, err := r.span(off, SegmentHeaderSize, "segment header")
	if err != nil {
		return nil, false, err
	}
	nv := int(be.Uint16(hdr[segVertexCount:]))
	nt := int(be.Uint16(hdr[segTriangleCount:]))
	nb := int(be.Uint16(hdr[segBatchCount:]))

	vdata, err := r.span(int(be.Uint32(hdr[segVertices:])), nv*VertexSize, "vertices")
	if err != nil {
		return nil, false, err
	}
	tdata, err := r.span(int(be.Uint32(hdr[segTriangles:])), nt*TriangleSize, "triangles")
	if err != nil {
		return nil, false, err
	}
	bdata, err := r.span(int(be.Uint32(hdr[segBatches:])), (nb+1)*BatchSize, "batches")
	if err != nil {
		return nil, false, err
	}

	seg := level.NewSegment(limits)
	seg.Vertices = make([]level.Vertex, nv)
	for i := range seg.Vertices {
		rec := vdata[i*VertexSize:]
		seg.Vertices[i] = level.Vertex{
			X:     int16(be.Uint16(rec[0:])),
			Y:     int16(be.Uint16(rec[2:])),
			Z:     int16(be.Uint16(rec[4:])),
			Color: level.Color{R: rec[6], G: rec[7], B: rec[8], A: rec[9]},
		}
	}

	seg.Triangles = make([]level.Triangle, nt)
	for i := range seg.Triangles {
		rec := tdata[i*TriangleSize:]
		tri := level.Triangle{
			Flags:   rec[0],
			Indices: [3]uint8{rec[1], rec[2], rec[3]},
		}
		for k := 0; k < 3; k++ {
			tri.UVs[k] = level.NewFixedUV(int16(be.Uint16(rec[4+k*4:])), int16(be.Uint16(rec[6+k*4:])))
		}
		seg.Triangles[i] = tri
	}

	untextured := false
	seg.Batches = make([]level.Batch, nb)
	for j := 0; j < nb; j++ {
		cur := bdata[j*BatchSize:]
		next := bdata[(j+1)*BatchSize:]
		b := level.Batch{
			TextureIndex: int8(cur[0]),
			VertOffset:   be.Uint16(cur[2:]),
			TriOffset:    be.Uint16(cur[4:]),
			Flags:        be.Uint32(cur[8:]),
		}
		nextVert, nextTri := be.Uint16(next[2:]), be.Uint16(next[4:])
		if nextVert < b.VertOffset || int(nextVert) > nv || nextTri < b.TriOffset || int(nextTri) > nt {
			return nil, false, fmt.Errorf("%w: batch %d window [%d,%d) [%d,%d) outside %d vertices %d triangles",
				ErrInvalidOffset, j, b.VertOffset, nextVert, b.TriOffset, nextTri, nv, nt)
		}
		b.VertCount = nextVert - b.VertOffset
		b.TriCount = nextTri - b.TriOffset

		if b.TextureIndex != level.Untextured && (b.TextureIndex < 0 || int(b.TextureIndex) >= len(textures)) {
			return nil, false, fmt.Errorf("%w: batch %d texture index %d (have %d)", ErrInvalidOffset, j, b.TextureIndex, len(textures))
		}

		for t := int(b.TriOffset); t < int(b.TriOffset+b.TriCount); t++ {
			tri := &seg.Triangles[t]
			for _, idx := range tri.Indices {
				if uint16(idx) >= b.VertCount {
					return nil, false, fmt.Errorf("%w: triangle %d index %d outside batch %d", level.ErrInvalidTriangleIndex, t, idx, j)
				}
			}
			if b.TextureIndex == level.Untextured {
				untextured = true
				tri.UVs = [3]level.UV{}
				continue
			}
			tex := textures[b.TextureIndex]
			for k := range tri.UVs {
				if err := tri.UVs[k].Normalize(tex.Width, tex.Height); err != nil {
					return nil, false, fmt.Errorf("triangle %d: %w", t, err)
				}
			}
		}
		seg.Batches[j] = b
	}
	return seg, untextured, nil
}

func decodeBitfields(r reader, h *Header, tree *level.BspTree) error {
	n := int(h.SegmentCount)
	size := level.BitfieldSize(n)
	for i := 0; i < n; i++ {
		raw, err := r.span(int(h.BitfieldsOffset)+i*size, size, "bitfield")
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		bf := level.NewBitfield(n)
		copy(bf, raw)
		tree.Bitfields = append(tree.Bitfields, bf)
	}
	return nil
}

// decodeBSP walks the node array from the root. Single-segment levels and
// levels whose root is the placeholder node decode to an empty tree, and
// treeless is set so the placeholder bitfield block is skipped too.
func decodeBSP(r reader, h *Header, tree *level.BspTree) (treeless bool, err error) {
	if h.SegmentCount <= 1 {
		return true, nil
	}
	start := int(h.BSPOffset)
	avail := h.sectionEnd(h.BSPOffset, len(r.data)) - start
	if avail < BSPNodeSize {
		return false, nil
	}
	count := avail / BSPNodeSize
	nodes := make([]level.BspNode, count)
	seen := make([]bool, count)
	last := 0

	var walk func(i int) error
	walk = func(i int) error {
		if i < 0 || i >= count {
			return fmt.Errorf("%w: BSP node index %d outside %d nodes", ErrInvalidOffset, i, count)
		}
		if seen[i] {
			return fmt.Errorf("%w: BSP node %d referenced twice", ErrInvalidOffset, i)
		}
		seen[i] = true
		if i > last {
			last = i
		}

		rec, err := r.span(start+i*BSPNodeSize, BSPNodeSize, "BSP node")
		if err != nil {
			return err
		}
		node, err := readBSPNode(rec, i)
		if err != nil {
			return err
		}
		nodes[i] = node
		if node.Left != level.NoChild {
			if err := walk(node.Left); err != nil {
				return err
			}
		}
		if node.Right != level.NoChild {
			return walk(node.Right)
		}
		return nil
	}

	root, err := r.span(start, BSPNodeSize, "BSP node")
	if err != nil {
		return false, err
	}
	if n, err := readBSPNode(root, 0); err == nil && n == placeholderNode {
		return true, nil
	}
	if err := walk(0); err != nil {
		return false, err
	}
	tree.Nodes = nodes[:last+1]
	return false, nil
}

func readBSPNode(rec []byte, i int) (level.BspNode, error) {
	axis := lmath.Axis(rec[4])
	if !axis.Valid() {
		return level.BspNode{}, fmt.Errorf("%w: node %d axis code %d", ErrInvalidAxis, i, rec[4])
	}
	return level.BspNode{
		Left:    int(int16(be.Uint16(rec[0:]))),
		Right:   int(int16(be.Uint16(rec[2:]))),
		Axis:    axis,
		Segment: rec[5],
		Value:   int16(be.Uint16(rec[6:])),
	}, nil
}
