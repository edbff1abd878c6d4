package formats

import (
	"fmt"
	"strings"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
)

// Version selects one of the two known level binary layouts.
type Version uint8

// Known layouts.
//
// V1 orders sections textures, segments, bounding boxes, adjacency,
// bitfields, BSP, pads every section and per-segment array to 16 bytes and
// stores segment payloads as vertices, triangles, batches. Batches hold up
// to 32 vertices and 16 triangles.
//
// V2 orders sections textures, segments, bounding boxes, BSP, bitfields,
// adjacency. Only the segment table is 16-byte aligned (plus the start
// offset modulo 16), batch and vertex arrays are 8-byte aligned, triangles
// and the remaining sections are unpadded. Segment payloads are stored as
// batches, triangles, vertices and batches hold up to 24 vertices and 16
// triangles. Single-segment or treeless levels get a placeholder BSP node
// and a 16 byte bitfield block.
const (
	V1 Version = 1
	V2 Version = 2
)

// DefaultVersion is the layout written when none is requested.
const DefaultVersion = V2

// String returns "v1" or "v2".
func (v Version) String() string {
	return fmt.Sprintf("v%d", uint8(v))
}

// Valid reports whether v is a known layout.
func (v Version) Valid() bool {
	return v == V1 || v == V2
}

// Limits returns the batch capacities of the layout.
func (v Version) Limits() level.Limits {
	if v == V1 {
		return level.Limits{MaxVertices: 32, MaxTriangles: 16}
	}
	return level.Limits{MaxVertices: 24, MaxTriangles: 16}
}

// ParseVersion parses "1", "v1", "2" or "v2". An empty string selects
// DefaultVersion.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultVersion, nil
	case "1", "v1":
		return V1, nil
	case "2", "v2":
		return V2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so versions can be read
// from config files.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

type section uint8

const (
	sectionTextures section = iota
	sectionSegments
	sectionBounds
	sectionAdjacency
	sectionBitfields
	sectionBSP
)

type payload uint8

const (
	payloadVertices payload = iota
	payloadTriangles
	payloadBatches
)

// layout captures everything that differs between versions.
type layout struct {
	sections [6]section
	payloads [3]payload

	textureAlign   int
	tableAlign     int
	tableSkew      bool
	vertexAlign    int
	triangleAlign  int
	batchAlign     int
	boundsAlign    int
	adjacencyAlign int
	bitfieldAlign  int

	placeholderBSP  bool
	bitfieldOffsets bool
}

var layouts = map[Version]layout{
	V1: {
		sections:       [6]section{sectionTextures, sectionSegments, sectionBounds, sectionAdjacency, sectionBitfields, sectionBSP},
		payloads:       [3]payload{payloadVertices, payloadTriangles, payloadBatches},
		textureAlign:   16,
		tableAlign:     16,
		vertexAlign:    16,
		triangleAlign:  16,
		batchAlign:     16,
		boundsAlign:    16,
		adjacencyAlign: 16,
		bitfieldAlign:  16,
	},
	V2: {
		sections:        [6]section{sectionTextures, sectionSegments, sectionBounds, sectionBSP, sectionBitfields, sectionAdjacency},
		payloads:        [3]payload{payloadBatches, payloadTriangles, payloadVertices},
		textureAlign:    1,
		tableAlign:      16,
		tableSkew:       true,
		vertexAlign:     8,
		triangleAlign:   1,
		batchAlign:      8,
		boundsAlign:     1,
		adjacencyAlign:  1,
		bitfieldAlign:   1,
		placeholderBSP:  true,
		bitfieldOffsets: true,
	},
}

func (v Version) layout() (layout, error) {
	l, ok := layouts[v]
	if !ok {
		return layout{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, uint8(v))
	}
	return l, nil
}
