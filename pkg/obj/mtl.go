package obj

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// material is one newmtl block of an MTL file.
type material struct {
	name          string
	imagePath     string
	img           image.Image
	flipped       bool
	originalIndex int32
}

func (m *material) hasTexture() bool {
	return m.imagePath != "" || m.img != nil
}

// loadMaterials reads an MTL library, appends a texture to the model for
// every material that has an image, and returns the material to texture
// index mapping. Materials without an image map to level.Untextured.
// Image paths are relative to dir.
func loadMaterials(path, dir string, m *level.Model, opts Options) (map[string]int8, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("obj: open material library: %w", err)
	}
	defer f.Close()

	mats, err := parseMaterials(f, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("obj: %s: %w", path, err)
	}

	out := make(map[string]int8, len(mats))
	for _, mat := range mats {
		if !mat.hasTexture() {
			out[mat.name] = level.Untextured
			continue
		}
		tex, err := mat.texture()
		if err != nil {
			return nil, err
		}
		if len(m.Textures) >= 128 {
			return nil, fmt.Errorf("obj: material %s: more than 128 textures", mat.name)
		}
		out[mat.name] = int8(len(m.Textures))
		m.Textures = append(m.Textures, tex)
	}
	return out, nil
}

func parseMaterials(r io.Reader, dir string, opts Options) ([]*material, error) {
	var (
		mats []*material
		cur  *material
	)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		parts := splitLine(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] != "newmtl" && cur == nil {
			continue
		}
		switch parts[0] {
		case "newmtl":
			if len(parts) < 2 {
				return nil, fmt.Errorf("%w: line %d: newmtl without a name", ErrMalformedLine, lineNo)
			}
			cur = &material{name: parts[1], originalIndex: level.NoOriginalIndex}
			mats = append(mats, cur)
		case "map_Kd":
			if len(parts) < 2 {
				return nil, fmt.Errorf("%w: line %d: map_Kd without a path", ErrMalformedLine, lineNo)
			}
			// The first image wins.
			if !cur.hasTexture() {
				cur.imagePath = resolvePath(dir, parts[len(parts)-1])
				cur.flipped = false
			}
		case "vanilla_tex":
			if len(parts) < 2 {
				return nil, fmt.Errorf("%w: line %d: vanilla_tex without an index", ErrMalformedLine, lineNo)
			}
			idx, err := strconv.ParseInt(parts[1], 10, 32)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("%w: line %d: vanilla_tex %q", ErrMalformedLine, lineNo, parts[1])
			}
			cur.originalIndex = int32(idx)
			if opts.Resolver == nil {
				continue
			}
			img, flipped, err := opts.Resolver.Resolve(cur.originalIndex)
			if err != nil {
				if !errors.Is(err, texture.ErrTextureNotFound) {
					opts.Log.Warn("stock texture unavailable, keeping material image",
						zap.String("material", cur.name),
						zap.Int32("index", cur.originalIndex),
						zap.Error(err))
				}
				continue
			}
			cur.img, cur.flipped = img, flipped
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mats, nil
}

// texture loads the material image and builds RGBA16 texture metadata
// sized after it.
func (m *material) texture() (*level.Texture, error) {
	img := m.img
	if img == nil {
		var err error
		if img, err = texture.Load(m.imagePath); err != nil {
			return nil, fmt.Errorf("obj: material %s: %w", m.name, err)
		}
	}
	if m.flipped {
		img = texture.FlipVertical(img)
	}
	w, h := texture.Size(img)
	return &level.Texture{
		Image:         img,
		Width:         w,
		Height:        h,
		Format:        level.FormatRGBA16,
		OriginalIndex: m.originalIndex,
		Name:          m.name,
	}, nil
}

func resolvePath(dir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
