// Package config loads render tuning parameters from JSON files. Fields are
// pointer-typed so partial configs are safe: anything omitted falls back to
// the defaults baked into the Get accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical render defaults file.
const DefaultConfigPath = "config/render.defaults.json"

// RenderConfig is the root configuration for the render pipeline. The schema
// matches the /api/render query parameters so the same values can be used
// for startup configuration and per-request overrides.
type RenderConfig struct {
	// Rasterizer params
	ImageSize      *int     `json:"image_size,omitempty"`
	PointRadius    *float64 `json:"point_radius,omitempty"`
	PointsPerPixel *int     `json:"points_per_pixel,omitempty"`

	// Camera params
	CameraDistance  *float64    `json:"camera_distance,omitempty"`
	CameraElevation *float64    `json:"camera_elevation,omitempty"`
	CameraAzimuth   *float64    `json:"camera_azimuth,omitempty"`
	OrthoScale      *float64    `json:"ortho_scale,omitempty"`
	LookAt          *[3]float64 `json:"look_at,omitempty"`

	// Compositing params
	Compositor *string     `json:"compositor,omitempty"` // "alpha" or "norm"
	Background *[3]float64 `json:"background,omitempty"` // rgb in [0,1]
}

// EmptyRenderConfig returns a RenderConfig with all fields unset.
func EmptyRenderConfig() *RenderConfig {
	return &RenderConfig{}
}

// LoadRenderConfig loads a RenderConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Omitted fields retain
// their defaults, so partial configs are safe.
func LoadRenderConfig(path string) (*RenderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyRenderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that are set.
func (c *RenderConfig) Validate() error {
	if c.ImageSize != nil && (*c.ImageSize < 1 || *c.ImageSize > 8192) {
		return fmt.Errorf("image_size must be between 1 and 8192, got %d", *c.ImageSize)
	}
	if c.PointRadius != nil && (*c.PointRadius <= 0 || *c.PointRadius > 1) {
		return fmt.Errorf("point_radius must be in (0, 1], got %f", *c.PointRadius)
	}
	if c.PointsPerPixel != nil && (*c.PointsPerPixel < 1 || *c.PointsPerPixel > 256) {
		return fmt.Errorf("points_per_pixel must be between 1 and 256, got %d", *c.PointsPerPixel)
	}
	if c.CameraDistance != nil && *c.CameraDistance <= 0 {
		return fmt.Errorf("camera_distance must be positive, got %f", *c.CameraDistance)
	}
	if c.CameraElevation != nil && (*c.CameraElevation <= -90 || *c.CameraElevation >= 90) {
		return fmt.Errorf("camera_elevation must be within (-90, 90), got %f", *c.CameraElevation)
	}
	if c.OrthoScale != nil && *c.OrthoScale <= 0 {
		return fmt.Errorf("ortho_scale must be positive, got %f", *c.OrthoScale)
	}
	if c.Compositor != nil && *c.Compositor != "alpha" && *c.Compositor != "norm" {
		return fmt.Errorf("compositor must be alpha or norm, got %q", *c.Compositor)
	}
	if c.Background != nil {
		for i, v := range *c.Background {
			if v < 0 || v > 1 {
				return fmt.Errorf("background channel %d must be in [0, 1], got %f", i, v)
			}
		}
	}
	return nil
}

// GetImageSize returns the image_size value or the default.
func (c *RenderConfig) GetImageSize() int {
	if c.ImageSize == nil {
		return 512
	}
	return *c.ImageSize
}

// GetPointRadius returns the point_radius value or the default.
func (c *RenderConfig) GetPointRadius() float64 {
	if c.PointRadius == nil {
		return 0.01
	}
	return *c.PointRadius
}

// GetPointsPerPixel returns the points_per_pixel value or the default.
func (c *RenderConfig) GetPointsPerPixel() int {
	if c.PointsPerPixel == nil {
		return 8
	}
	return *c.PointsPerPixel
}

// GetCameraDistance returns the camera_distance value or the default.
func (c *RenderConfig) GetCameraDistance() float64 {
	if c.CameraDistance == nil {
		return 2.0
	}
	return *c.CameraDistance
}

// GetCameraElevation returns the camera_elevation value or the default.
func (c *RenderConfig) GetCameraElevation() float64 {
	if c.CameraElevation == nil {
		return 10.0
	}
	return *c.CameraElevation
}

// GetCameraAzimuth returns the camera_azimuth value or the default.
func (c *RenderConfig) GetCameraAzimuth() float64 {
	if c.CameraAzimuth == nil {
		return 0
	}
	return *c.CameraAzimuth
}

// GetOrthoScale returns the ortho_scale value or the default.
func (c *RenderConfig) GetOrthoScale() float64 {
	if c.OrthoScale == nil {
		return 1.2
	}
	return *c.OrthoScale
}

// GetLookAt returns the look_at value or the default (the origin).
func (c *RenderConfig) GetLookAt() [3]float64 {
	if c.LookAt == nil {
		return [3]float64{}
	}
	return *c.LookAt
}

// GetCompositor returns the compositor value or the default.
func (c *RenderConfig) GetCompositor() string {
	if c.Compositor == nil {
		return "alpha"
	}
	return *c.Compositor
}

// GetBackground returns the background value or the default (white).
func (c *RenderConfig) GetBackground() [3]float64 {
	if c.Background == nil {
		return [3]float64{1, 1, 1}
	}
	return *c.Background
}
