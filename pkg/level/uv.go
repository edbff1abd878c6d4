package level

import (
	"fmt"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// UV is a texture coordinate. Coordinates read from a level binary start
// out in fixed-point texel units (texel size * 32) and have to be
// normalized against the owning texture exactly once per axis.
type UV struct {
	U, V float64

	normalizedU bool
	normalizedV bool
}

// NewUV returns a texture-space UV.
func NewUV(u, v float64) UV {
	return UV{U: u, V: v}
}

// NewFixedUV returns a raw on-disk UV awaiting Normalize.
func NewFixedUV(u, v int16) UV {
	return UV{U: float64(u), V: float64(v)}
}

// Normalize divides both axes down into texture space.
func (uv *UV) Normalize(width, height uint8) error {
	if err := uv.NormalizeU(width); err != nil {
		return err
	}
	return uv.NormalizeV(height)
}

// NormalizeU converts U from fixed-point texel units into texture space.
func (uv *UV) NormalizeU(width uint8) error {
	if uv.normalizedU {
		return fmt.Errorf("%w: U", ErrUVAlreadyNormalized)
	}
	uv.normalizedU = true
	if width == 0 {
		uv.U = 0
		return nil
	}
	uv.U /= float64(width) * 32
	return nil
}

// NormalizeV converts V from fixed-point texel units into texture space.
func (uv *UV) NormalizeV(height uint8) error {
	if uv.normalizedV {
		return fmt.Errorf("%w: V", ErrUVAlreadyNormalized)
	}
	uv.normalizedV = true
	if height == 0 {
		uv.V = 0
		return nil
	}
	uv.V /= float64(height) * 32
	return nil
}

// Fixed returns the on-disk fixed-point pair for a texture of the given
// size.
func (uv UV) Fixed(width, height uint8) (u, v int16) {
	return lmath.ToS16(uv.U * float64(width) * 32), lmath.ToS16(uv.V * float64(height) * 32)
}

// Lerp blends three UVs with barycentric weights.
func Lerp(a, b, c UV, wa, wb, wc float64) UV {
	return NewUV(a.U*wa+b.U*wb+c.U*wc, a.V*wa+b.V*wb+c.V*wc)
}
