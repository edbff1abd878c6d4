package level

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lmath "github.com/Faultbox/dkr-levelkit/pkg/math"
)

// Color is an 8-bit RGBA vertex color.
type Color struct {
	R, G, B, A uint8
}

// White is the default vertex color.
var White = Color{255, 255, 255, 255}

// ColorFromFloats builds a color from channel values that are either in
// [0, 255] or fractions strictly between 0 and 1.
func ColorFromFloats(r, g, b, a float64) Color {
	return Color{
		R: channel(r),
		G: channel(g),
		B: channel(b),
		A: channel(a),
	}
}

func channel(v float64) uint8 {
	if v > 0 && v < 1 {
		v *= 255
	}
	return lmath.ToU8(v)
}

// ParseColor parses a color string. Accepted forms:
//
//	F05511  #F05511  $F05511  0xF05511  (and 8-digit RGBA variants)
//	250 100 50        (3 or 4 integer channels)
//	0.9 0.4 0.1 1.0   (channels with a decimal point are scaled by 255)
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "  ") {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	parts := strings.Split(s, " ")
	switch len(parts) {
	case 1:
		return parseHexColor(parts[0])
	case 3, 4:
		values := [4]float64{255, 255, 255, 255}
		for i, p := range parts {
			if strings.Contains(p, ".") {
				f, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
				}
				values[i] = math.Round(f * 255)
				continue
			}
			n, err := strconv.Atoi(p)
			if err != nil {
				return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
			}
			values[i] = float64(n)
		}
		return ColorFromFloats(values[0], values[1], values[2], values[3]), nil
	}
	return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

func parseHexColor(s string) (Color, error) {
	h := strings.ToLower(s)
	switch {
	case strings.HasPrefix(h, "0x"):
		h = h[2:]
	case strings.HasPrefix(h, "$"), strings.HasPrefix(h, "#"):
		h = h[1:]
	}
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("%w: invalid hex string %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: invalid hex string %q", ErrInvalidColor, s)
	}
	if len(h) == 6 {
		return Color{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, nil
	}
	return Color{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// Floats returns the channels scaled to [0, 1].
func (c Color) Floats() (r, g, b, a float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255
}

// Hex returns "#RRGGBB", or "#RRGGBBAA" when the color is translucent.
func (c Color) Hex() string {
	if c.A < 255 {
		return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
	}
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return c.Hex()
}
