package formats

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// EncodeLevel serialises a level model in the given layout. The model must
// already satisfy the layout's batch limits; see level.Model.Repack.
func EncodeLevel(m *level.Model, v Version, log *zap.Logger) ([]byte, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l, err := v.layout()
	if err != nil {
		return nil, err
	}
	if m.Kind != level.KindLevel {
		return nil, fmt.Errorf("%w: got %s", ErrNotLevelModel, m.Kind)
	}
	if err := m.Validate(v.Limits()); err != nil {
		return nil, fmt.Errorf("encoding %s level: %w", v, err)
	}
	for i, seg := range m.Segments {
		if len(seg.Vertices) > 0xFFFF || len(seg.Triangles) > 0xFFFF {
			return nil, fmt.Errorf("segment %d: %d vertices, %d triangles exceed the 16-bit counts", i, len(seg.Vertices), len(seg.Triangles))
		}
	}

	adjacency, err := level.ModelAdjacency(m)
	if err != nil {
		return nil, fmt.Errorf("computing adjacency: %w", err)
	}

	e := &encoder{m: m, l: l, log: log, adjacency: adjacency}
	e.plan()
	e.buf = make([]byte, e.total)
	e.writeHeader()
	e.writeTextures()
	e.writeSegments()
	e.writeBounds()
	e.writeAdjacency()
	e.writeBitfields()
	e.writeBSP()

	log.Debug("encoded level",
		zap.Stringer("version", v),
		zap.Int("segments", len(m.Segments)),
		zap.Int("textures", len(m.Textures)),
		zap.Int("bytes", len(e.buf)))
	return e.buf, nil
}

// EncodeLevelFile encodes a level model and writes it to path.
func EncodeLevelFile(m *level.Model, v Version, path string, log *zap.Logger) error {
	data, err := EncodeLevel(m, v, log)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing level file: %w", err)
	}
	return nil
}

type encoder struct {
	m         *level.Model
	l         layout
	log       *zap.Logger
	adjacency [][][3]uint16

	offset map[section]int
	total  int
	buf    []byte
}

// placeholderNode fills the BSP section of treeless levels. A real root
// never has both children missing with segment 0.
var placeholderNode = level.BspNode{Left: level.NoChild, Right: level.NoChild, Axis: lmath.AxisX}

// treeless reports whether the BSP and bitfield sections hold placeholders.
// V2 shrinks them to one node and 16 bytes, V1 keeps the regular sizes.
func (e *encoder) treeless() bool {
	return len(e.m.Segments) <= 1 || e.m.BSP.Empty()
}

func (e *encoder) tableSize(start int) int {
	size := lmath.Align(len(e.m.Segments)*SegmentHeaderSize, e.l.tableAlign)
	if e.l.tableSkew {
		size += start % 16
	}
	return size
}

func (e *encoder) payloadSize(seg *level.Segment, p payload) int {
	switch p {
	case payloadVertices:
		return lmath.Align(len(seg.Vertices)*VertexSize, e.l.vertexAlign)
	case payloadTriangles:
		return lmath.Align(len(seg.Triangles)*TriangleSize, e.l.triangleAlign)
	default:
		return lmath.Align((len(seg.Batches)+1)*BatchSize, e.l.batchAlign)
	}
}

func (e *encoder) bspNodeSlots() int {
	n := len(e.m.Segments) - 1
	if e.m.BSP != nil && len(e.m.BSP.Nodes) > n {
		n = len(e.m.BSP.Nodes)
	}
	if n < 0 {
		n = 0
	}
	return n
}

func (e *encoder) sectionSize(s section, start int) int {
	ns := len(e.m.Segments)
	switch s {
	case sectionTextures:
		return lmath.Align(len(e.m.Textures)*TextureNodeSize, e.l.textureAlign)
	case sectionSegments:
		size := e.tableSize(start)
		for _, seg := range e.m.Segments {
			for _, p := range e.l.payloads {
				size += e.payloadSize(seg, p)
			}
		}
		return size
	case sectionBounds:
		return lmath.Align(ns*BoundingBoxSize, e.l.boundsAlign)
	case sectionAdjacency:
		return lmath.Align(e.m.TriangleCount()*AdjacencyNodeSize, e.l.adjacencyAlign)
	case sectionBitfields:
		if e.l.placeholderBSP && e.treeless() {
			return 16
		}
		return lmath.Align(level.BitfieldSize(ns)*ns, e.l.bitfieldAlign)
	case sectionBSP:
		if e.l.placeholderBSP && e.treeless() {
			return BSPNodeSize
		}
		return lmath.Align(e.bspNodeSlots()*BSPNodeSize, 16)
	}
	return 0
}

// plan assigns every section its absolute offset.
func (e *encoder) plan() {
	e.offset = make(map[section]int, len(e.l.sections))
	cur := HeaderSize
	for _, s := range e.l.sections {
		e.offset[s] = cur
		cur += e.sectionSize(s, cur)
	}
	e.total = cur
}

func (e *encoder) writeHeader() {
	b := e.buf
	be.PutUint32(b[0x00:], uint32(e.offset[sectionTextures]))
	be.PutUint32(b[0x04:], uint32(e.offset[sectionSegments]))
	be.PutUint32(b[0x08:], uint32(e.offset[sectionBounds]))
	be.PutUint32(b[0x0C:], uint32(e.offset[sectionAdjacency]))
	be.PutUint32(b[0x10:], uint32(e.offset[sectionBitfields]))
	be.PutUint32(b[0x14:], uint32(e.offset[sectionBSP]))
	be.PutUint16(b[0x18:], uint16(len(e.m.Textures)))
	be.PutUint16(b[0x1A:], uint16(len(e.m.Segments)))
	be.PutUint32(b[0x3C:], LevelBoundary)
	be.PutUint32(b[0x40:], LevelBoundary)
	be.PutUint32(b[0x44:], LevelBoundary)
	be.PutUint32(b[0x48:], uint32(e.total))
}

func (e *encoder) writeTextures() {
	off := e.offset[sectionTextures]
	for i, tex := range e.m.Textures {
		rec := e.buf[off+i*TextureNodeSize:]
		index := uint32(tex.OriginalIndex)
		if !tex.IsStock() {
			e.log.Warn("custom textures are not supported yet, writing stock texture 0",
				zap.Int("texture", i), zap.String("name", tex.Name))
			index = 0
		}
		be.PutUint32(rec[0:], index)
		rec[4] = tex.Width
		rec[5] = tex.Height
		rec[6] = tex.Format
		rec[7] = tex.CollisionType
	}
}

func (e *encoder) writeSegments() {
	start := e.offset[sectionSegments]
	cur := start + e.tableSize(start)
	adj := e.offset[sectionAdjacency]
	bfSize := level.BitfieldSize(len(e.m.Segments))

	for i, seg := range e.m.Segments {
		hdr := e.buf[start+i*SegmentHeaderSize:]
		be.PutUint16(hdr[segVertexCount:], uint16(len(seg.Vertices)))
		be.PutUint16(hdr[segTriangleCount:], uint16(len(seg.Triangles)))
		be.PutUint16(hdr[segBatchCount:], uint16(len(seg.Batches)))
		hdr[segBatchCountByte] = uint8(len(seg.Batches))
		if e.l.bitfieldOffsets {
			be.PutUint16(hdr[segBitfieldOffset:], uint16(i*bfSize))
		}
		be.PutUint32(hdr[segAdjacency:], uint32(adj))
		adj += len(seg.Triangles) * AdjacencyNodeSize

		for _, p := range e.l.payloads {
			switch p {
			case payloadVertices:
				be.PutUint32(hdr[segVertices:], uint32(cur))
				e.writeVertices(cur, seg)
			case payloadTriangles:
				be.PutUint32(hdr[segTriangles:], uint32(cur))
				e.writeTriangles(cur, seg)
			case payloadBatches:
				be.PutUint32(hdr[segBatches:], uint32(cur))
				e.writeBatches(cur, seg)
			}
			cur += e.payloadSize(seg, p)
		}
	}
}

func (e *encoder) writeVertices(off int, seg *level.Segment) {
	for i, v := range seg.Vertices {
		rec := e.buf[off+i*VertexSize:]
		be.PutUint16(rec[0:], uint16(v.X))
		be.PutUint16(rec[2:], uint16(v.Y))
		be.PutUint16(rec[4:], uint16(v.Z))
		rec[6], rec[7], rec[8], rec[9] = v.Color.R, v.Color.G, v.Color.B, v.Color.A
	}
}

func (e *encoder) writeTriangles(off int, seg *level.Segment) {
	for _, b := range seg.Batches {
		var tex *level.Texture
		if b.TextureIndex != level.Untextured {
			tex = e.m.Textures[b.TextureIndex]
		}
		for t := int(b.TriOffset); t < int(b.TriOffset+b.TriCount); t++ {
			tri := seg.Triangles[t]
			rec := e.buf[off+t*TriangleSize:]
			rec[0] = tri.Flags
			rec[1], rec[2], rec[3] = tri.Indices[0], tri.Indices[1], tri.Indices[2]
			if tex == nil {
				continue
			}
			for k, uv := range tri.UVs {
				u, v := uv.Fixed(tex.Width, tex.Height)
				be.PutUint16(rec[4+k*4:], uint16(u))
				be.PutUint16(rec[6+k*4:], uint16(v))
			}
		}
	}
}

func (e *encoder) writeBatches(off int, seg *level.Segment) {
	for j, b := range seg.Batches {
		rec := e.buf[off+j*BatchSize:]
		rec[0] = uint8(b.TextureIndex)
		be.PutUint16(rec[2:], b.VertOffset)
		be.PutUint16(rec[4:], b.TriOffset)
		be.PutUint32(rec[8:], b.Flags)
	}
	sentinel := e.buf[off+len(seg.Batches)*BatchSize:]
	sentinel[0] = 0xFF // texture -1
	be.PutUint16(sentinel[2:], uint16(len(seg.Vertices)))
	be.PutUint16(sentinel[4:], uint16(len(seg.Triangles)))
}

func (e *encoder) writeBounds() {
	off := e.offset[sectionBounds]
	for i, seg := range e.m.Segments {
		box := seg.Bounds()
		rec := e.buf[off+i*BoundingBoxSize:]
		for a := 0; a < 3; a++ {
			be.PutUint16(rec[a*2:], uint16(int16(box.Min[a])))
			be.PutUint16(rec[6+a*2:], uint16(int16(box.Max[a])))
		}
	}
}

func (e *encoder) writeAdjacency() {
	off := e.offset[sectionAdjacency]
	for si := range e.m.Segments {
		for t, n := range e.adjacency[si] {
			rec := e.buf[off:]
			be.PutUint16(rec[0:], uint16(t))
			be.PutUint16(rec[2:], n[0])
			be.PutUint16(rec[4:], n[1])
			be.PutUint16(rec[6:], n[2])
			off += AdjacencyNodeSize
		}
	}
}

func (e *encoder) writeBitfields() {
	off := e.offset[sectionBitfields]
	if e.treeless() {
		if e.sectionSize(sectionBitfields, off) > 0 {
			e.buf[off] = 1
		}
		return
	}
	ns := len(e.m.Segments)
	size := level.BitfieldSize(ns)
	for i := 0; i < ns && e.m.BSP != nil && i < len(e.m.BSP.Bitfields); i++ {
		copy(e.buf[off+i*size:off+(i+1)*size], e.m.BSP.Bitfields[i])
	}
}

func (e *encoder) writeBSP() {
	off := e.offset[sectionBSP]
	if e.treeless() {
		slots := 1
		if !e.l.placeholderBSP {
			slots = e.bspNodeSlots()
		}
		for i := 0; i < slots; i++ {
			putBSPNode(e.buf[off+i*BSPNodeSize:], placeholderNode)
		}
		return
	}
	if e.m.BSP == nil {
		return
	}
	for i, n := range e.m.BSP.Nodes {
		putBSPNode(e.buf[off+i*BSPNodeSize:], n)
	}
}

func putBSPNode(rec []byte, n level.BspNode) {
	be.PutUint16(rec[0:], uint16(int16(n.Left)))
	be.PutUint16(rec[2:], uint16(int16(n.Right)))
	rec[4] = uint8(n.Axis)
	rec[5] = n.Segment
	be.PutUint16(rec[6:], uint16(n.Value))
}
