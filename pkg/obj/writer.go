package obj

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/pkg/level"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// untexturedMaterial names the material emitted for untextured batches.
const untexturedMaterial = "untextured"

// Write saves m as <name>.obj next to <name>.mtl and a <name>/ folder of
// texture images. A missing ".obj" extension is appended.
func Write(m *level.Model, objPath string, opts Options) error {
	opts = opts.withDefaults()
	if !strings.EqualFold(filepath.Ext(objPath), ".obj") {
		objPath += ".obj"
	}
	dir := filepath.Dir(objPath)
	name := strings.TrimSuffix(filepath.Base(objPath), filepath.Ext(objPath))

	names := textureNames(m, opts.Namer)
	var body strings.Builder
	usesUntextured := writeGeometry(&body, m, name, names, opts.Scale)

	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		return fmt.Errorf("obj: create texture folder: %w", err)
	}
	var mtl strings.Builder
	palette := texture.NewPalette(1)
	for i, tex := range m.Textures {
		rel := path.Join(name, names[i]+"."+string(opts.ImageFormat))
		img := tex.Image
		if img == nil {
			img = palette.Placeholder(int(tex.Width), int(tex.Height), tex.PixelFormat())
		}
		if err := saveImage(filepath.Join(dir, filepath.FromSlash(rel)), img, opts.ImageFormat); err != nil {
			return err
		}
		fmt.Fprintf(&mtl, "newmtl %s\n", names[i])
		if tex.IsStock() {
			fmt.Fprintf(&mtl, "%svanilla_tex %d\n", directivePrefix, tex.OriginalIndex)
		}
		fmt.Fprintf(&mtl, "map_Kd %s\n\n", rel)
	}
	if usesUntextured {
		fmt.Fprintf(&mtl, "newmtl %s\n\n", untexturedMaterial)
	}

	if err := os.WriteFile(filepath.Join(dir, name+".mtl"), []byte(mtl.String()), 0o644); err != nil {
		return fmt.Errorf("obj: write material library: %w", err)
	}
	if err := os.WriteFile(objPath, []byte(body.String()), 0o644); err != nil {
		return fmt.Errorf("obj: write: %w", err)
	}

	opts.Log.Info("Wrote OBJ model",
		zap.String("path", objPath),
		zap.Int("segments", len(m.Segments)),
		zap.Int("textures", len(m.Textures)),
		zap.String("images", string(opts.ImageFormat)))
	return nil
}

// textureNames returns a unique material name per texture.
func textureNames(m *level.Model, namer *level.TextureNamer) []string {
	seen := map[string]bool{untexturedMaterial: true}
	out := make([]string, len(m.Textures))
	for i, tex := range m.Textures {
		n := strings.Join(strings.Fields(tex.Name), "_")
		for n == "" || seen[n] {
			n = namer.Next()
		}
		seen[n] = true
		out[i] = n
	}
	return out
}

// writeGeometry emits the OBJ body and reports whether any batch refers to
// the untextured material.
func writeGeometry(b *strings.Builder, m *level.Model, name string, names []string, scale float64) bool {
	fmt.Fprintf(b, "o %s\n\n", name)
	fmt.Fprintf(b, "mtllib %s.mtl\n\n", name)

	n := len(m.Segments)
	directive(b, "number_of_segments", strconv.Itoa(n))
	if m.Kind == level.KindLevel {
		writeTree(b, m)
	}
	b.WriteString("\n")

	usesUntextured := false
	vertBase := 0
	uvIndex := 0
	lastTex := level.Untextured
	for si, seg := range m.Segments {
		fmt.Fprintf(b, "g segment_%d\n", si)
		directive(b, "segment", strconv.Itoa(si))
		for _, v := range seg.Vertices {
			fmt.Fprintf(b, "v %s %s %s\n",
				formatFloat(float64(v.X)/scale),
				formatFloat(float64(v.Y)/scale),
				formatFloat(float64(v.Z)/scale))
			directive(b, "vertex_color", v.Color.Hex())
		}
		for _, batch := range seg.Batches {
			if batch.TextureIndex != lastTex {
				mat := untexturedMaterial
				if batch.TextureIndex != level.Untextured {
					mat = names[batch.TextureIndex]
				} else {
					usesUntextured = true
				}
				fmt.Fprintf(b, "usemtl %s\n", mat)
				lastTex = batch.TextureIndex
			}
			base := vertBase + int(batch.VertOffset)
			for t := 0; t < int(batch.TriCount); t++ {
				tri := seg.Triangles[int(batch.TriOffset)+t]
				for _, uv := range tri.UVs {
					fmt.Fprintf(b, "vt %s %s\n", formatFloat(uv.U), formatFloat(uv.V))
				}
				fmt.Fprintf(b, "f %d/%d %d/%d %d/%d\n",
					base+int(tri.Indices[0])+1, uvIndex+1,
					base+int(tri.Indices[1])+1, uvIndex+2,
					base+int(tri.Indices[2])+1, uvIndex+3)
				uvIndex += 3
			}
		}
		vertBase += len(seg.Vertices)
		if si < n-1 {
			b.WriteString("\n")
		}
	}
	return usesUntextured
}

// writeTree emits the BSP block and one mask per segment. Models with a
// single segment get a blank tree.
func writeTree(b *strings.Builder, m *level.Model) {
	n := len(m.Segments)
	directive(b, "bsp_tree_start", "")
	if n <= 1 || m.BSP.Empty() {
		directive(b, "bsp_tree_node", "-1 -1 X 0 0")
		directive(b, "bsp_tree_end", "")
		directive(b, "segment_mask", "1")
		return
	}
	for _, node := range m.BSP.Nodes {
		directive(b, "bsp_tree_node", fmt.Sprintf("%d %d %s %d %d",
			node.Left, node.Right, node.Axis, node.Segment, node.Value))
	}
	directive(b, "bsp_tree_end", "")
	for i := 0; i < n; i++ {
		mask := fullMask(n)
		if i < len(m.BSP.Bitfields) {
			mask = m.BSP.Bitfields[i]
		}
		directive(b, "segment_mask", mask.Text())
	}
}

func directive(b *strings.Builder, cmd, value string) {
	b.WriteString(directivePrefix)
	b.WriteString(cmd)
	if value != "" {
		b.WriteByte(' ')
		b.WriteString(value)
	}
	b.WriteByte('\n')
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func saveImage(p string, img image.Image, format ImageFormat) error {
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("obj: create image: %w", err)
	}
	w := bufio.NewWriter(f)
	switch format {
	case ImageWebP:
		err = nativewebp.Encode(w, img, nil)
	default:
		err = png.Encode(w, img)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("obj: encode %s: %w", p, err)
	}
	return nil
}
