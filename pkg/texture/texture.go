// Package texture resolves stock game textures from a decomp asset tree and
// generates placeholder images when no pixels are available.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/webp"
)

// Texture errors.
var (
	ErrTextureNotFound = errors.New("stock texture not found")
)

// Resolver supplies pixels for stock game textures.
type Resolver interface {
	// Resolve returns the image for a stock texture index and whether the
	// stored image is upside down.
	Resolve(index int32) (img image.Image, flipped bool, err error)
}

// Load decodes an image file. PNG, JPEG, TGA and WebP are supported.
func Load(path string) (image.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	img, err := Decode(raw, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes image bytes. The format is taken from the magic bytes,
// then from ext; data matching neither is read as TGA, which has no magic.
// image.Decode is not usable here: the tga package registers an empty
// magic string that matches any input.
func Decode(raw []byte, ext string) (image.Image, error) {
	decode := decoderFor(raw, ext)
	return decode(bytes.NewReader(raw))
}

func decoderFor(raw []byte, ext string) func(io.Reader) (image.Image, error) {
	switch {
	case bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")):
		return png.Decode
	case bytes.HasPrefix(raw, []byte{0xFF, 0xD8, 0xFF}):
		return jpeg.Decode
	case len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WEBP":
		return webp.Decode
	}
	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode
	case ".jpg", ".jpeg":
		return jpeg.Decode
	case ".webp":
		return webp.Decode
	}
	return tga.Decode
}

// ToNRGBA converts any image to NRGBA with a zero origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// FlipVertical returns a copy of src mirrored top to bottom.
func FlipVertical(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	// Source to destination: (x, y) -> (x - minX, minY + h - y).
	m := f64.Aff3{
		1, 0, float64(-b.Min.X),
		0, -1, float64(b.Min.Y + b.Dy()),
	}
	xdraw.NearestNeighbor.Transform(dst, m, src, b, xdraw.Src, nil)
	return dst
}

// Size clamps an image's dimensions into the 8-bit range used by texture
// headers.
func Size(img image.Image) (w, h uint8) {
	b := img.Bounds()
	return clampU8(b.Dx()), clampU8(b.Dy())
}

func clampU8(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
