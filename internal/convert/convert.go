// Package convert drives dkrtool conversions: load a model by file
// extension, optionally re-segment it, and save it by output extension.
package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/internal/config"
	"github.com/Faultbox/dkr-levelkit/pkg/formats"
	"github.com/Faultbox/dkr-levelkit/pkg/level"
	"github.com/Faultbox/dkr-levelkit/pkg/obj"
	"github.com/Faultbox/dkr-levelkit/pkg/split"
	"github.com/Faultbox/dkr-levelkit/pkg/texture"
)

// Conversion errors.
var (
	ErrSplitConflict     = errors.New("auto segments and a split file cannot be combined")
	ErrSplitFileMissing  = errors.New("split file does not exist")
	ErrUnknownExtension  = errors.New("unsupported file extension")
	ErrMissingOutputPath = errors.New("output path required")
)

// File extensions understood by Load and Save.
const (
	ExtOBJ  = ".obj"
	ExtBin  = ".bin"
	ExtCBin = ".cbin"
)

// Options describes one conversion.
type Options struct {
	Input  string
	Output string

	Version      formats.Version
	AutoSegments int    // 0 keeps the input segmentation
	SplitFile    string // manual split tree, YAML or JSON
	Scale        float64
	ImageFormat  obj.ImageFormat
	DecompPath   string // decomp checkout for stock textures

	Log *zap.Logger
}

// FromConfig builds Options from the merged tool configuration.
func FromConfig(cfg *config.Config, input, output string, log *zap.Logger) (Options, error) {
	v, err := cfg.Version()
	if err != nil {
		return Options{}, err
	}
	img, err := cfg.ImageFormat()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Input:        input,
		Output:       output,
		Version:      v,
		AutoSegments: cfg.Split.AutoSegments,
		SplitFile:    cfg.Split.SplitFile,
		Scale:        cfg.Conversion.Scale,
		ImageFormat:  img,
		DecompPath:   cfg.Textures.DecompPath,
		Log:          log,
	}, nil
}

func (o Options) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o Options) version() formats.Version {
	if o.Version == 0 {
		return formats.DefaultVersion
	}
	return o.Version
}

// Validate rejects conflicting settings before any input is decoded.
func (o Options) Validate() error {
	if o.AutoSegments > 0 && o.SplitFile != "" {
		return ErrSplitConflict
	}
	if o.AutoSegments > level.MaxSegments {
		return fmt.Errorf("%w: %d > %d", level.ErrTooManySegments, o.AutoSegments, level.MaxSegments)
	}
	if o.SplitFile != "" {
		if _, err := os.Stat(o.SplitFile); err != nil {
			return fmt.Errorf("%w: %s", ErrSplitFileMissing, o.SplitFile)
		}
	}
	if !o.version().Valid() {
		return fmt.Errorf("%w: %d", formats.ErrUnsupportedVersion, o.Version)
	}
	if _, err := kind(o.Input); err != nil {
		return err
	}
	if o.Output != "" {
		if _, err := kind(o.Output); err != nil {
			return err
		}
	}
	return nil
}

// kind classifies a path by extension, case-insensitively.
func kind(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ExtOBJ, ExtBin, ExtCBin:
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q must end with .obj, .bin, or .cbin", ErrUnknownExtension, path)
}

func (o Options) resolver() texture.Resolver {
	if o.DecompPath == "" {
		return nil
	}
	return texture.NewDecompResolver(o.DecompPath)
}

// Load reads a model from an OBJ file or a level binary.
func Load(path string, o Options) (*level.Model, error) {
	ext, err := kind(path)
	if err != nil {
		return nil, err
	}
	log := o.logger()
	if ext == ExtOBJ {
		return obj.Read(path, obj.Options{
			Scale:    o.Scale,
			Resolver: o.resolver(),
			Limits:   o.version().Limits(),
			Log:      log.Named("obj"),
		})
	}
	return formats.DecodeLevelFile(path, formats.DecodeOptions{
		Resolver: o.resolver(),
		Log:      log.Named("codec"),
	})
}

// Save writes m to path, choosing the writer by extension. Level binaries
// are repacked first when batches exceed the target version's limits.
func Save(m *level.Model, path string, o Options) error {
	ext, err := kind(path)
	if err != nil {
		return err
	}
	log := o.logger()
	if ext == ExtOBJ {
		return obj.Write(m, path, obj.Options{
			Scale:       o.Scale,
			ImageFormat: o.ImageFormat,
			Log:         log.Named("obj"),
		})
	}

	v := o.version()
	n, err := m.Repack(v.Limits())
	if err != nil {
		return fmt.Errorf("repack for %s: %w", v, err)
	}
	if n > 0 {
		log.Warn("Repacked segments to fit format limits",
			zap.Stringer("version", v),
			zap.Int("segments", n),
			zap.Int("max_vertices", v.Limits().MaxVertices),
			zap.Int("max_triangles", v.Limits().MaxTriangles))
	}
	return formats.EncodeLevelFile(m, v, path, log.Named("codec"))
}

// Split re-segments m when the options ask for it and returns m untouched
// otherwise. Existing visibility is dropped; every new segment sees every
// other.
func Split(m *level.Model, o Options) (*level.Model, error) {
	s := &split.Splitter{
		Limits: o.version().Limits(),
		Log:    o.logger().Named("split"),
	}
	switch {
	case o.AutoSegments > 0:
		return s.Auto(m, o.AutoSegments)
	case o.SplitFile != "":
		root, err := split.LoadTree(o.SplitFile)
		if err != nil {
			return nil, err
		}
		return s.Manual(m, root)
	}
	return m, nil
}

// Result summarises a finished conversion.
type Result struct {
	Input     string
	Output    string
	Segments  int
	Textures  int
	Vertices  int
	Triangles int
}

// Run validates o, loads the input, applies any split and saves the
// output.
func Run(o Options) (*Result, error) {
	if o.Output == "" {
		return nil, ErrMissingOutputPath
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	log := o.logger()

	m, err := Load(o.Input, o)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.Input, err)
	}
	log.Info("Loaded model",
		zap.String("path", o.Input),
		zap.Int("segments", len(m.Segments)),
		zap.Int("textures", len(m.Textures)))

	if m, err = Split(m, o); err != nil {
		return nil, fmt.Errorf("split %s: %w", o.Input, err)
	}
	if err := Save(m, o.Output, o); err != nil {
		return nil, fmt.Errorf("save %s: %w", o.Output, err)
	}

	return &Result{
		Input:     o.Input,
		Output:    o.Output,
		Segments:  len(m.Segments),
		Textures:  len(m.Textures),
		Vertices:  m.VertexCount(),
		Triangles: m.TriangleCount(),
	}, nil
}
