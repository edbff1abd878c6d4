package texture

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
)

// Location of the 3D texture table inside a decomp checkout.
const textureTablePath = "assets/vanilla/us_1.0/asset_textures_3d.json"

type textureTable struct {
	Folder string `json:"folder"`
	Files  struct {
		Order    []string `json:"order"`
		Sections map[string]struct {
			Filename string `json:"filename"`
		} `json:"sections"`
	} `json:"files"`
}

type textureEntry struct {
	Img     string `json:"img"`
	Flipped bool   `json:"flipped-image"`
}

// DecompResolver loads stock textures from a decomp asset tree.
type DecompResolver struct {
	Root string

	once  sync.Once
	table *textureTable
	err   error
}

// NewDecompResolver returns a resolver rooted at a decomp checkout.
func NewDecompResolver(root string) *DecompResolver {
	return &DecompResolver{Root: root}
}

func (r *DecompResolver) base() string {
	return filepath.Join(r.Root, filepath.FromSlash(filepath.Dir(textureTablePath)))
}

func (r *DecompResolver) loadTable() (*textureTable, error) {
	r.once.Do(func() {
		path := filepath.Join(r.Root, filepath.FromSlash(textureTablePath))
		raw, err := os.ReadFile(path)
		if err != nil {
			r.err = fmt.Errorf("texture: read texture table: %w", err)
			return
		}
		var t textureTable
		if err := json.Unmarshal(raw, &t); err != nil {
			r.err = fmt.Errorf("texture: parse %s: %w", path, err)
			return
		}
		r.table = &t
	})
	return r.table, r.err
}

// Resolve implements Resolver.
func (r *DecompResolver) Resolve(index int32) (image.Image, bool, error) {
	table, err := r.loadTable()
	if err != nil {
		return nil, false, err
	}
	if index < 0 || int(index) >= len(table.Files.Order) {
		return nil, false, fmt.Errorf("%w: index %d", ErrTextureNotFound, index)
	}
	id := table.Files.Order[index]
	section, ok := table.Files.Sections[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrTextureNotFound, id)
	}

	dir := filepath.Join(r.base(), filepath.FromSlash(table.Folder))
	entryPath := filepath.Join(dir, filepath.FromSlash(section.Filename))
	raw, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, false, fmt.Errorf("texture: read %s: %w", entryPath, err)
	}
	var entry textureEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("texture: parse %s: %w", entryPath, err)
	}

	img, err := Load(filepath.Join(dir, filepath.FromSlash(entry.Img)))
	if err != nil {
		return nil, false, err
	}
	return img, entry.Flipped, nil
}
