package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/depthcloud/internal/depthcloud"
	"github.com/banshee-data/depthcloud/internal/units"
)

// DefaultConfigPath is the path to the canonical codec defaults file.
const DefaultConfigPath = "config/depthcloud.defaults.json"

// CodecConfig holds the quantization windows and encoding choices used when
// recording and converting depth frames. Bounds are in TargetUnit.
type CodecConfig struct {
	// Quantization windows
	MinDistance *float64 `json:"min_distance,omitempty"`
	MaxDistance *float64 `json:"max_distance,omitempty"`
	MinRange    *float64 `json:"min_range,omitempty"`
	MaxRange    *float64 `json:"max_range,omitempty"`

	// Encoding
	Mode *string `json:"mode,omitempty"` // "raw" or "compressed"

	// Units
	SourceUnit *string `json:"source_unit,omitempty"` // unit the camera reports
	TargetUnit *string `json:"target_unit,omitempty"` // unit stored on disk

	// Catalogue
	CatalogPath *string `json:"catalog_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyCodecConfig returns a CodecConfig with all fields set to nil.
// Use LoadCodecConfig to load actual values from the defaults file.
func EmptyCodecConfig() *CodecConfig {
	return &CodecConfig{}
}

// DefaultCodecConfig returns a CodecConfig with every field set to its
// built-in default.
func DefaultCodecConfig() *CodecConfig {
	return &CodecConfig{
		MinDistance: ptrFloat64(float64(depthcloud.DefaultMinBound)),
		MaxDistance: ptrFloat64(float64(depthcloud.DefaultMaxBound)),
		MinRange:    ptrFloat64(float64(depthcloud.DefaultMinBound)),
		MaxRange:    ptrFloat64(float64(depthcloud.DefaultMaxBound)),
		Mode:        ptrString("compressed"),
		SourceUnit:  ptrString(units.MM),
		TargetUnit:  ptrString(units.M),
		CatalogPath: ptrString("depthcloud.db"),
	}
}

// LoadCodecConfig loads a CodecConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadCodecConfig(path string) (*CodecConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCodecConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical codec defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *CodecConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCodecConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CodecConfig) Validate() error {
	if _, err := c.Bounds(); err != nil {
		return err
	}

	if c.Mode != nil {
		if _, err := depthcloud.ParseMode(*c.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}

	if c.SourceUnit != nil && !units.IsValid(*c.SourceUnit) {
		return fmt.Errorf("source_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.SourceUnit)
	}
	if c.TargetUnit != nil && !units.IsValid(*c.TargetUnit) {
		return fmt.Errorf("target_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.TargetUnit)
	}

	return nil
}

// Bounds returns the configured quantization windows.
func (c *CodecConfig) Bounds() (depthcloud.Bounds, error) {
	b := depthcloud.Bounds{
		MinDistance: float32(c.GetMinDistance()),
		MaxDistance: float32(c.GetMaxDistance()),
		MinRange:    float32(c.GetMinRange()),
		MaxRange:    float32(c.GetMaxRange()),
	}
	return b, b.Validate()
}

// GetMinDistance returns the min_distance value or the default.
func (c *CodecConfig) GetMinDistance() float64 {
	if c.MinDistance == nil {
		return float64(depthcloud.DefaultMinBound)
	}
	return *c.MinDistance
}

// GetMaxDistance returns the max_distance value or the default.
func (c *CodecConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return float64(depthcloud.DefaultMaxBound)
	}
	return *c.MaxDistance
}

// GetMinRange returns the min_range value or the default.
func (c *CodecConfig) GetMinRange() float64 {
	if c.MinRange == nil {
		return float64(depthcloud.DefaultMinBound)
	}
	return *c.MinRange
}

// GetMaxRange returns the max_range value or the default.
func (c *CodecConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return float64(depthcloud.DefaultMaxBound)
	}
	return *c.MaxRange
}

// GetMode returns the configured encoding, compressed by default.
func (c *CodecConfig) GetMode() depthcloud.Mode {
	if c.Mode == nil {
		return depthcloud.ModeCompressed
	}
	m, err := depthcloud.ParseMode(*c.Mode)
	if err != nil {
		return depthcloud.ModeCompressed // default on parse error
	}
	return m
}

// GetSourceUnit returns the source_unit value or the default.
func (c *CodecConfig) GetSourceUnit() string {
	if c.SourceUnit == nil {
		return units.MM
	}
	return *c.SourceUnit
}

// GetTargetUnit returns the target_unit value or the default.
func (c *CodecConfig) GetTargetUnit() string {
	if c.TargetUnit == nil {
		return units.M
	}
	return *c.TargetUnit
}

// GetCatalogPath returns the catalog_path value or the default.
func (c *CodecConfig) GetCatalogPath() string {
	if c.CatalogPath == nil || *c.CatalogPath == "" {
		return "depthcloud.db"
	}
	return *c.CatalogPath
}

// GetScaleFactor returns the multiplier from source to target units.
func (c *CodecConfig) GetScaleFactor() float64 {
	s, err := units.ScaleFactor(c.GetSourceUnit(), c.GetTargetUnit())
	if err != nil {
		return 1
	}
	return s
}

// Apply installs the configured windows on cloud.
func (c *CodecConfig) Apply(cloud *depthcloud.DepthCloud) error {
	b, err := c.Bounds()
	if err != nil {
		return err
	}
	return cloud.SetBounds(b)
}
