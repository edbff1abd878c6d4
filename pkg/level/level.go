// Package level holds the in-memory Diddy Kong Racing model: vertices,
// triangles, draw batches, segments, textures and the BSP tree.
package level

import "errors"

// Level model errors.
var (
	ErrUVAlreadyNormalized  = errors.New("UV coordinate has already been normalized")
	ErrInvalidColor         = errors.New("invalid vertex color")
	ErrInvalidTriangleIndex = errors.New("invalid triangle index")
	ErrBatchCapacity        = errors.New("batch exceeds capacity")
	ErrBatchLayout          = errors.New("batches are not contiguous")
	ErrTooManySegments      = errors.New("too many segments")
)

// MaxSegments is the largest number of segments a BSP node can address.
const MaxSegments = 256
