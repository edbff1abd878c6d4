package level

// Known triangle flags.
const (
	TriangleFlagRenderBackface uint8 = 0x40
)

// Triangle references three vertices relative to the vertex window of the
// batch that owns it.
type Triangle struct {
	Flags   uint8
	Indices [3]uint8
	UVs     [3]UV
}

// Batch is a contiguous run of triangles sharing one texture and flag set.
type Batch struct {
	TextureIndex int8 // Untextured for none
	Flags        uint32
	VertOffset   uint16
	VertCount    uint16
	TriOffset    uint16
	TriCount     uint16
}

// Untextured is the batch texture index for geometry without a texture.
const Untextured int8 = -1

// Default flags used when importing geometry that carries none.
const (
	DefaultBatchFlags    uint32 = 0x10
	DefaultTriangleFlags uint8  = 0x00
)

// Limits are the hardware capacities of a single draw batch.
type Limits struct {
	MaxVertices  int
	MaxTriangles int
}

// DefaultLimits are the capacities of the canonical format version.
var DefaultLimits = Limits{MaxVertices: 24, MaxTriangles: 16}
