// Package obj reads and writes level models as Wavefront OBJ text with an
// accompanying MTL material library. Level-specific data that OBJ has no
// syntax for travels in "#!dkr" comment directives, so the files stay
// loadable by ordinary 3D tools.
package obj

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// Directive prefix for level-specific commands hidden in OBJ comments.
const directivePrefix = "#!dkr "

// Errors returned while reading OBJ and MTL text.
var (
	ErrUnsupportedFace     = errors.New("faces with more than 4 vertices are not supported")
	ErrInvalidFace         = errors.New("invalid face")
	ErrDuplicateMaterials  = errors.New("material library already defined")
	ErrUnknownMaterial     = errors.New("unknown material")
	ErrDuplicateSegments   = errors.New("number of segments already set")
	ErrSegmentWithoutCount = errors.New("segment directive before number_of_segments")
	ErrInvalidSegment      = errors.New("segment index out of range")
	ErrNodeOutsideTree     = errors.New("bsp_tree_node outside bsp_tree_start/bsp_tree_end")
	ErrMalformedLine       = errors.New("malformed line")
)

// ImageFormat selects the file format for exported texture images.
type ImageFormat string

// Supported texture image formats.
const (
	ImagePNG  ImageFormat = "png"
	ImageWebP ImageFormat = "webp"
)

// ParseImageFormat maps a config value onto an ImageFormat. Empty means PNG.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return ImagePNG, nil
	case "webp":
		return ImageWebP, nil
	}
	return "", fmt.Errorf("unknown image format %q (want png or webp)", s)
}

// Options configures reading and writing.
type Options struct {
	// Scale multiplies positions on read and divides them on write. Zero
	// means 1.
	Scale float64
	// Resolver supplies pixels for vanilla_tex materials. Nil keeps the
	// map_Kd image.
	Resolver texture.Resolver
	// Namer names textures that arrive without a name.
	Namer *level.TextureNamer
	// Limits are the batch capacities used while packing imported faces.
	Limits level.Limits
	// ImageFormat is the exported texture image format.
	ImageFormat ImageFormat
	Log         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Namer == nil {
		o.Namer = &level.TextureNamer{}
	}
	if o.Limits.MaxVertices == 0 || o.Limits.MaxTriangles == 0 {
		o.Limits = level.DefaultLimits
	}
	if o.ImageFormat == "" {
		o.ImageFormat = ImagePNG
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// splitLine turns one line into command fields. Directive lines lose their
// prefix, any other comment is stripped.
func splitLine(line string) []string {
	switch {
	case strings.HasPrefix(line, directivePrefix):
		line = line[len(directivePrefix):]
	case strings.Contains(line, "#"):
		line = line[:strings.Index(line, "#")]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return strings.Fields(line)
}
