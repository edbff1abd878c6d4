package level

import (
	"fmt"
	"image"
)

// Pixel format codes stored in the low 7 bits of Texture.Format.
const (
	FormatRGBA32 uint8 = 0
	FormatRGBA16 uint8 = 1
	FormatI8     uint8 = 2
	FormatI4     uint8 = 3
	FormatIA16   uint8 = 4
	FormatIA8    uint8 = 5
	FormatIA4    uint8 = 6
	FormatCI4    uint8 = 7
	FormatCI8    uint8 = 8
)

// NoOriginalIndex marks a texture that does not come from the stock
// game texture set.
const NoOriginalIndex int32 = -1

// Texture is texture metadata. Image is carried along for the text front
// end but never inspected by the codec.
type Texture struct {
	Image         image.Image
	Width         uint8
	Height        uint8
	Format        uint8
	CollisionType uint8
	OriginalIndex int32
	Name          string
}

// PixelFormat returns the pixel format code without the packing flag.
func (t *Texture) PixelFormat() uint8 {
	return t.Format & 0x7F
}

// Packed reports the top bit of Format.
func (t *Texture) Packed() bool {
	return t.Format&0x80 != 0
}

// IsStock reports whether the texture references a stock game texture.
func (t *Texture) IsStock() bool {
	return t.OriginalIndex != NoOriginalIndex
}

// HasColor reports whether the pixel format carries chroma.
func HasColor(format uint8) bool {
	f := format & 0x7F
	return f == FormatRGBA16 || f == FormatRGBA32
}

// TextureNamer hands out default texture names. Each conversion owns one.
type TextureNamer struct {
	next int
}

// Next returns "tex_<n>" and advances the counter.
func (n *TextureNamer) Next() string {
	name := fmt.Sprintf("tex_%d", n.next)
	n.next++
	return name
}
