// dkrtool converts, inspects and re-segments Diddy Kong Racing level models.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/dkr-levelkit/internal/config"
	"github.com/Faultbox/dkr-levelkit/internal/convert"
	"github.com/Faultbox/dkr-levelkit/internal/logger"
	"github.com/Faultbox/dkr-levelkit/pkg/formats"
	"github.com/Faultbox/dkr-levelkit/pkg/level"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "convert", "c":
		err = cmdConvert(args)
	case "split":
		err = cmdSplit(args)
	case "info", "i":
		err = cmdInfo(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dkrtool - Diddy Kong Racing level model utility

Usage:
  dkrtool <command> [options]

Commands:
  convert [flags] <input> <output>   Convert between .obj and .bin/.cbin
  split [flags] <input> <output>     Re-segment a level (-segments or -split required)
  info [flags] <file>                Show model statistics
  config [flags] [-save] [-o path]   Print or save the effective configuration

Flags shared by every command:
  -config <path>    Config file (default ./dkrtool.yaml or user config dir)
  -debug            Enable debug logging
  -format v1|v2     Level binary format version (default v2)
  -segments N       Automatically split into N segments
  -split <path>     Manual split tree (YAML or JSON)
  -scale F          OBJ scale factor
  -decomp <path>    Decomp checkout used to resolve stock textures

Examples:
  dkrtool convert level.bin level.obj
  dkrtool convert -format v1 -scale 100 track.obj track.cbin
  dkrtool split -segments 8 track.obj track.bin
  dkrtool info -decomp ~/dkr level.bin`)
}

// setup parses the shared flags for one command, loads the config and
// initializes logging.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (*flag.FlagSet, *config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.BindFlags(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, err
	}
	return fs, cfg, nil
}

func cmdConvert(args []string) error {
	fs, cfg, err := setup("convert", args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: dkrtool convert [flags] <input> <output>")
	}
	return runConversion(cfg, fs.Arg(0), fs.Arg(1))
}

func cmdSplit(args []string) error {
	fs, cfg, err := setup("split", args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: dkrtool split [flags] <input> <output>")
	}
	if cfg.Split.AutoSegments == 0 && cfg.Split.SplitFile == "" {
		return errors.New("split needs -segments or -split")
	}
	return runConversion(cfg, fs.Arg(0), fs.Arg(1))
}

func runConversion(cfg *config.Config, input, output string) error {
	opts, err := convert.FromConfig(cfg, input, output, logger.Log)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(output), convert.ExtOBJ) {
		fmt.Println("Converting to OBJ, please wait...")
	} else {
		fmt.Printf("Converting to level binary (%s), please wait...\n", opts.Version)
	}

	res, err := convert.Run(opts)
	if err != nil {
		return err
	}
	logger.Info("Conversion finished",
		zap.String("input", res.Input),
		zap.String("output", res.Output))
	fmt.Printf("Wrote %s: %d segments, %d textures, %d vertices, %d triangles\n",
		res.Output, res.Segments, res.Textures, res.Vertices, res.Triangles)
	return nil
}

func cmdInfo(args []string) error {
	var segments *bool
	fs, cfg, err := setup("info", args, func(fs *flag.FlagSet) {
		segments = fs.Bool("v", false, "List every segment")
	})
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: dkrtool info [flags] <file>")
	}
	path := fs.Arg(0)

	opts, err := convert.FromConfig(cfg, path, "", logger.Log)
	if err != nil {
		return err
	}
	m, err := convert.Load(path, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Model:     %s\n", path)
	if !strings.EqualFold(filepath.Ext(path), convert.ExtOBJ) {
		h, err := formats.ReadHeaderFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Layout:    %s (%d bytes)\n", h.Layout(), h.FileSize)
	}
	fmt.Printf("Segments:  %d\n", len(m.Segments))
	fmt.Printf("Textures:  %d\n", len(m.Textures))
	fmt.Printf("Vertices:  %d\n", m.VertexCount())
	fmt.Printf("Triangles: %d\n", m.TriangleCount())
	fmt.Printf("Batches:   %d\n", m.BatchCount())
	fmt.Printf("Bounds:    %s\n", m.Bounds())
	if m.HasUntexturedTriangles {
		fmt.Println("Contains untextured triangles")
	}
	if !m.BSP.Empty() {
		fmt.Printf("BSP nodes: %d\n", len(m.BSP.Nodes))
	}

	printTextureFormats(m)

	if *segments {
		fmt.Println()
		fmt.Println("Segments:")
		for i, seg := range m.Segments {
			visible := "-"
			if i < len(m.BSP.Bitfields) {
				visible = fmt.Sprint(m.BSP.Bitfields[i].Segments())
			}
			fmt.Printf("  %3d  %4d verts %4d tris %3d batches  %s  sees %s\n",
				i, len(seg.Vertices), len(seg.Triangles), len(seg.Batches), seg.Bounds(), visible)
		}
	}
	return nil
}

func printTextureFormats(m *level.Model) {
	if len(m.Textures) == 0 {
		return
	}
	counts := make(map[uint8]int)
	stock := 0
	for _, tex := range m.Textures {
		counts[tex.PixelFormat()]++
		if tex.IsStock() {
			stock++
		}
	}

	type formatStat struct {
		format uint8
		count  int
	}
	var stats []formatStat
	for f, c := range counts {
		stats = append(stats, formatStat{f, c})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].count > stats[j].count
	})

	fmt.Println()
	fmt.Printf("Textures by format (%d stock):\n", stock)
	for _, s := range stats {
		fmt.Printf("  %-8s %d\n", formatName(s.format), s.count)
	}
}

func formatName(f uint8) string {
	names := map[uint8]string{
		level.FormatRGBA32: "RGBA32",
		level.FormatRGBA16: "RGBA16",
		level.FormatI8:     "I8",
		level.FormatI4:     "I4",
		level.FormatIA16:   "IA16",
		level.FormatIA8:    "IA8",
		level.FormatIA4:    "IA4",
		level.FormatCI4:    "CI4",
		level.FormatCI8:    "CI8",
	}
	if n, ok := names[f]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", f)
}

func cmdConfig(args []string) error {
	var save *bool
	var out *string
	_, cfg, err := setup("config", args, func(fs *flag.FlagSet) {
		save = fs.Bool("save", false, "Save to the user config directory")
		out = fs.String("o", "", "Save to a specific path")
	})
	if err != nil {
		return err
	}

	switch {
	case *out != "":
		if err := cfg.SaveTo(*out); err != nil {
			return err
		}
		fmt.Printf("Saved: %s\n", *out)
	case *save:
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved: %s\n", filepath.Join(config.ConfigDir(), config.FileName))
	default:
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	return nil
}
