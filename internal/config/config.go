// Package config handles converter configuration loading and management.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/uvfconv/pkg/math"
	"github.com/Faultbox/uvfconv/pkg/uvf"
)

// FileName is the config file looked up in the search locations.
const FileName = "uvftool.yaml"

// Config holds all converter settings.
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Face    FaceConfig    `yaml:"face"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConvertConfig holds output and indexing settings.
type ConvertConfig struct {
	OutputDir    string     `yaml:"output_dir"`
	BaseName     string     `yaml:"base_name"` // empty: derived from the input file
	Deduplicate  bool       `yaml:"deduplicate"`
	ResourcesDir string     `yaml:"resources_dir"`
	ManifestName string     `yaml:"manifest_name"`
	Scale        float32    `yaml:"scale"`
	Translate    [3]float32 `yaml:"translate,flow"`
}

// FaceConfig holds display properties written on every face.
type FaceConfig struct {
	Color Color   `yaml:"color"`
	Alpha float64 `yaml:"alpha"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Color is a packed 0xRRGGBB value. In YAML it may be written as an
// integer or as a "#RRGGBB" / "0xRRGGBB" string.
type Color uint32

// ParseColor parses a packed color.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if v > 0xFFFFFF {
		return 0, fmt.Errorf("color %#x out of range", v)
	}
	return Color(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: color must be a scalar", value.Line)
	}
	v, err := ParseColor(value.Value)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Color) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			OutputDir:    "stl_output",
			Deduplicate:  true,
			ResourcesDir: uvf.ResourcesDir,
			ManifestName: uvf.ManifestFileName,
			Scale:        1,
		},
		Face: FaceConfig{
			Color: Color(uvf.DefaultColor),
			Alpha: uvf.DefaultAlpha,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that cannot be caught by YAML decoding.
func (c *Config) Validate() error {
	if c.Face.Alpha < 0 || c.Face.Alpha > 1 {
		return fmt.Errorf("face.alpha %v outside [0,1]", c.Face.Alpha)
	}
	if c.Convert.Scale <= 0 {
		return fmt.Errorf("convert.scale must be positive, got %v", c.Convert.Scale)
	}
	if strings.ContainsAny(c.Convert.BaseName, `/\`) {
		return fmt.Errorf("convert.base_name %q must not contain path separators", c.Convert.BaseName)
	}
	return nil
}

// Transform returns the root group transform: scale, then translate.
func (c *ConvertConfig) Transform() math.Mat4 {
	t := math.Vec3{X: c.Translate[0], Y: c.Translate[1], Z: c.Translate[2]}
	return math.Translate(t).Mul(math.Scale(c.Scale))
}

// Options returns assembly options for a scene named base.
func (c *Config) Options(base string) uvf.Options {
	opts := uvf.DefaultOptions(base)
	opts.Color = uint32(c.Face.Color)
	opts.Alpha = c.Face.Alpha
	opts.Transform = c.Convert.Transform()
	if c.Convert.ResourcesDir != "" {
		opts.ResourcesDir = c.Convert.ResourcesDir
	}
	if c.Convert.ManifestName != "" {
		opts.ManifestName = c.Convert.ManifestName
	}
	return opts
}
