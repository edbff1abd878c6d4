// Package formats encodes and decodes Diddy Kong Racing level binaries.
//
// All multi-byte values are big-endian. A level file starts with a fixed
// 0x50 byte header holding absolute section offsets, followed by the
// texture, segment, bounding box, adjacency, bitfield and BSP sections in a
// version-dependent order.
package formats

import (
	"encoding/binary"
	"errors"
)

// Level binary errors.
var (
	ErrTruncatedLevelData = errors.New("truncated level data")
	ErrInvalidOffset      = errors.New("invalid level offset")
	ErrInvalidAxis        = errors.New("invalid BSP axis")
	ErrUnsupportedVersion = errors.New("unsupported level format version")
	ErrNotLevelModel      = errors.New("model is not a level model")
)

// Record sizes in bytes.
const (
	HeaderSize        = 0x50
	TextureNodeSize   = 0x08
	SegmentHeaderSize = 0x44
	VertexSize        = 0x0A
	TriangleSize      = 0x10
	BatchSize         = 0x0C
	BoundingBoxSize   = 0x0C
	AdjacencyNodeSize = 0x08
	BSPNodeSize       = 0x08
)

// LevelBoundary is written three times into the header at 0x3C, 0x40 and
// 0x44.
const LevelBoundary uint32 = 0x80007FFF

// Segment header field offsets.
const (
	segVertices       = 0x00
	segTriangles      = 0x04
	segBatches        = 0x0C
	segAdjacency      = 0x14
	segVertexCount    = 0x1C
	segTriangleCount  = 0x1E
	segBatchCount     = 0x20
	segBitfieldOffset = 0x28
	segBatchCountByte = 0x40
)

var be = binary.BigEndian
