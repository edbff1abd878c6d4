package split

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// PlaneEpsilon is the half thickness of a clip plane. Points closer than
// this count as on the plane.
const PlaneEpsilon = 1e-6

// degenerateArea replaces the area of zero-area triangles during UV
// interpolation.
const degenerateArea = 1e-4

// ClipVertex is a polygon corner produced by clipping. Orig is the index
// of the source triangle vertex it copies, or -1 for a point introduced on
// a clip plane.
type ClipVertex struct {
	Pos  mgl64.Vec3
	Orig int
}

// Triangle returns the three corners as an unclipped polygon.
func Triangle(a, b, c mgl64.Vec3) []ClipVertex {
	return []ClipVertex{{Pos: a, Orig: 0}, {Pos: b, Orig: 1}, {Pos: c, Orig: 2}}
}

// ClipToBox clips a convex polygon against the box [lo, hi], one axis at a
// time: first against lo, then against hi.
func ClipToBox(poly []ClipVertex, lo, hi mgl64.Vec3) []ClipVertex {
	for a := 0; a < 3; a++ {
		poly = clipPlane(poly, 1, a, lo)
		poly = clipPlane(poly, -1, a, hi)
	}
	return poly
}

// clipPlane keeps the part of poly where s*(p[a]-c[a]) >= 0.
func clipPlane(poly []ClipVertex, s float64, a int, c mgl64.Vec3) []ClipVertex {
	n := len(poly)
	if n <= 1 {
		return nil
	}
	out := make([]ClipVertex, 0, n+1)
	for j := 0; j < n; j++ {
		p1 := poly[(j+n-1)%n]
		p2 := poly[j]
		d1 := classify(s * (p1.Pos[a] - c[a]))
		d2 := classify(s * (p2.Pos[a] - c[a]))

		if d1*d2 == -1 {
			alpha := (p2.Pos[a] - c[a]) / (p2.Pos[a] - p1.Pos[a])
			out = appendDistinct(out, ClipVertex{Pos: lerp(alpha, p1.Pos, p2.Pos), Orig: -1}, false)
		}
		if d2 >= 0 {
			out = appendDistinct(out, p2, true)
		}
	}
	if len(out) > 0 && out[len(out)-1].Pos == out[0].Pos {
		out = out[:len(out)-1]
	}
	return out
}

func classify(d float64) int {
	switch {
	case d > PlaneEpsilon:
		return 1
	case d < -PlaneEpsilon:
		return -1
	default:
		return 0
	}
}

// lerp returns alpha*p1 + (1-alpha)*p2.
func lerp(alpha float64, p1, p2 mgl64.Vec3) mgl64.Vec3 {
	return p1.Mul(alpha).Add(p2.Mul(1 - alpha))
}

// appendDistinct appends v unless it repeats the previous position.
// Intersection points are always appended.
func appendDistinct(poly []ClipVertex, v ClipVertex, dedupe bool) []ClipVertex {
	if dedupe && len(poly) > 0 && poly[len(poly)-1].Pos == v.Pos {
		return poly
	}
	return append(poly, v)
}

// Barycentric returns the area-ratio weights of p against triangle abc.
func Barycentric(p, a, b, c mgl64.Vec3) (wa, wb, wc float64) {
	area := a.Sub(b).Cross(a.Sub(c)).Len()
	if area == 0 {
		area = degenerateArea
	}
	f1, f2, f3 := a.Sub(p), b.Sub(p), c.Sub(p)
	return f2.Cross(f3).Len() / area, f3.Cross(f1).Len() / area, f1.Cross(f2).Len() / area
}

// InterpolateUV blends the corner UVs of triangle abc at point p.
func InterpolateUV(p, a, b, c mgl64.Vec3, uva, uvb, uvc level.UV) level.UV {
	wa, wb, wc := Barycentric(p, a, b, c)
	return level.Lerp(uva, uvb, uvc, wa, wb, wc)
}

// InterpolateColor blends the corner colours of triangle abc at point p.
func InterpolateColor(p, a, b, c mgl64.Vec3, ca, cb, cc level.Color) level.Color {
	wa, wb, wc := Barycentric(p, a, b, c)
	fa, fb, fc := colorVec(ca), colorVec(cb), colorVec(cc)
	mix := fa.Mul(wa).Add(fb.Mul(wb)).Add(fc.Mul(wc))
	return level.Color{
		R: lmath.ToU8(mix[0] + 0.5),
		G: lmath.ToU8(mix[1] + 0.5),
		B: lmath.ToU8(mix[2] + 0.5),
		A: lmath.ToU8(mix[3] + 0.5),
	}
}

func colorVec(c level.Color) mgl64.Vec4 {
	return mgl64.Vec4{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
}

// VertexPos converts a level vertex into clip space.
func VertexPos(v level.Vertex) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

// BoxCorners returns the minimum and maximum corners of a box.
func BoxCorners(b lmath.Box) (lo, hi mgl64.Vec3) {
	for a := 0; a < 3; a++ {
		lo[a] = float64(b.Min[a])
		hi[a] = float64(b.Max[a])
	}
	return lo, hi
}
