package config

import "flag"

// Flags are the command-line overrides shared by every dkrtool command.
type Flags struct {
	Config   *string
	Debug    *bool
	Format   *string
	Segments *int
	Split    *string
	Scale    *float64
	Decomp   *string
}

// BindFlags registers the shared flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config:   fs.String("config", "", "Path to config file"),
		Debug:    fs.Bool("debug", false, "Enable debug logging"),
		Format:   fs.String("format", "", "Level binary format version (v1, v2)"),
		Segments: fs.Int("segments", 0, "Automatically split into N segments"),
		Split:    fs.String("split", "", "Split tree file (YAML or JSON)"),
		Scale:    fs.Float64("scale", 0, "OBJ scale factor"),
		Decomp:   fs.String("decomp", "", "Path to a decomp checkout for stock textures"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if *f.Format != "" {
		cfg.Conversion.FormatVersion = *f.Format
	}
	if *f.Segments > 0 {
		cfg.Split.AutoSegments = *f.Segments
	}
	if *f.Split != "" {
		cfg.Split.SplitFile = *f.Split
	}
	if *f.Scale > 0 {
		cfg.Conversion.Scale = *f.Scale
	}
	if *f.Decomp != "" {
		cfg.Textures.DecompPath = *f.Decomp
	}
}
