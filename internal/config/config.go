// Package config handles dkrtool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/dkr-levelkit/pkg/formats"
	"github.com/Faultbox/dkr-levelkit/pkg/obj"
)

// Config holds all tool settings.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Conversion ConversionConfig `yaml:"conversion"`
	Split      SplitConfig      `yaml:"split"`
	Textures   TexturesConfig   `yaml:"textures"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ConversionConfig holds settings for reading and writing models.
type ConversionConfig struct {
	FormatVersion string  `yaml:"format_version"` // "v1" or "v2"
	Scale         float64 `yaml:"scale"`          // OBJ units per level unit
	ImageFormat   string  `yaml:"image_format"`   // "png" or "webp"
}

// SplitConfig holds segmentation settings. At most one of the two may be
// set.
type SplitConfig struct {
	AutoSegments int    `yaml:"auto_segments"`
	SplitFile    string `yaml:"split_file"`
}

// TexturesConfig holds stock texture lookup settings.
type TexturesConfig struct {
	DecompPath string `yaml:"decomp_path"` // Root of a decomp checkout
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Conversion: ConversionConfig{
			FormatVersion: formats.DefaultVersion.String(),
			Scale:         1,
			ImageFormat:   string(obj.ImagePNG),
		},
	}
}

// Version parses the configured binary format version.
func (c *Config) Version() (formats.Version, error) {
	return formats.ParseVersion(c.Conversion.FormatVersion)
}

// ImageFormat parses the configured texture image format.
func (c *Config) ImageFormat() (obj.ImageFormat, error) {
	return obj.ParseImageFormat(c.Conversion.ImageFormat)
}

// Validate checks value ranges that YAML decoding cannot.
func (c *Config) Validate() error {
	if _, err := c.Version(); err != nil {
		return err
	}
	if _, err := c.ImageFormat(); err != nil {
		return err
	}
	if c.Conversion.Scale <= 0 {
		return fmt.Errorf("conversion.scale must be positive, got %g", c.Conversion.Scale)
	}
	if c.Split.AutoSegments < 0 {
		return fmt.Errorf("split.auto_segments must not be negative, got %d", c.Split.AutoSegments)
	}
	return nil
}
