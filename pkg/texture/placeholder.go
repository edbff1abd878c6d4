package texture

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
)

// Placeholder colour search limits. When no sufficiently distinct colour
// turns up in time the last candidate is accepted anyway.
const (
	colorTolerance     = 10
	greyTolerance      = 30
	maxColorAttempts   = 500
	maxGreyAttempts    = 100
	darkChannelLimit   = 60
	brightChannelLimit = 230
)

// Palette remembers the colours already handed out to placeholder textures
// so that neighbouring textures stay distinguishable. Each conversion owns
// one.
type Palette struct {
	rng  *rand.Rand
	used [][3]uint8
}

// NewPalette returns a palette seeded for reproducible colours.
func NewPalette(seed int64) *Palette {
	return &Palette{rng: rand.New(rand.NewSource(seed))}
}

// Used returns the colours handed out so far.
func (p *Palette) Used() [][3]uint8 {
	return p.used
}

// Color picks the next placeholder colour for a pixel format.
func (p *Palette) Color(format uint8) color.NRGBA {
	hasColor := level.HasColor(format)
	tolerance, attempts := colorTolerance, maxColorAttempts
	if !hasColor {
		tolerance, attempts = greyTolerance, maxGreyAttempts
	}

	var c [3]uint8
	for i := 0; ; i++ {
		c = p.candidate(hasColor)
		if !p.similar(c, tolerance) || i >= attempts {
			break
		}
	}
	p.used = append(p.used, c)
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xFF}
}

func (p *Palette) candidate(hasColor bool) [3]uint8 {
	for {
		var c [3]uint8
		if hasColor {
			c = [3]uint8{p.channel(), p.channel(), p.channel()}
		} else {
			i := p.channel()
			c = [3]uint8{i, i, i}
		}
		dark := c[0] < darkChannelLimit && c[1] < darkChannelLimit && c[2] < darkChannelLimit
		bright := c[0] > brightChannelLimit && c[1] > brightChannelLimit && c[2] > brightChannelLimit
		if !dark && !bright {
			return c
		}
	}
}

func (p *Palette) channel() uint8 {
	return uint8(p.rng.Float64() * 255)
}

func (p *Palette) similar(c [3]uint8, tolerance int) bool {
	for _, u := range p.used {
		score := absDiff(u[0], c[0]) + absDiff(u[1], c[1]) + absDiff(u[2], c[2])
		if score < tolerance {
			return true
		}
	}
	return false
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Placeholder draws a white image with the next palette colour filling the
// bottom-left and top-right quadrants.
func (p *Palette) Placeholder(width, height int, format uint8) *image.NRGBA {
	c := p.Color(format)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Rect, image.NewUniform(color.White), image.Point{}, draw.Src)

	hw, hh := width/2, height/2
	fill := image.NewUniform(c)
	draw.Draw(img, image.Rect(0, hh, hw, height), fill, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(hw, 0, width, hh), fill, image.Point{}, draw.Src)
	return img
}
