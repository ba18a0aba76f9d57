// Package render assembles the point-cloud pipeline: project, rasterize,
// composite. The output image is a pure function of (cloud, camera,
// settings, compositor).
package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/banshee-data/cloudrender/internal/camera"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/composite"
	"github.com/banshee-data/cloudrender/internal/raster"
)

// Renderer binds rasterizer settings to a compositing strategy.
type Renderer struct {
	Settings   raster.Settings
	Compositor composite.Compositor
}

// New returns a renderer with validated settings.
func New(s raster.Settings, c composite.Compositor) (*Renderer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("compositor is required")
	}
	return &Renderer{Settings: s, Compositor: c}, nil
}

// Stats summarizes one render invocation.
type Stats struct {
	Points         int           `json:"points"`
	OccupiedPixels int           `json:"occupied_pixels"`
	Duration       time.Duration `json:"duration_ns"`
}

// Render produces an image of the cloud as seen by the camera. The context
// is checked between pipeline stages so long renders can be cancelled.
func (r *Renderer) Render(ctx context.Context, c *cloud.Cloud, cam *camera.Orthographic) (*image.RGBA, Stats, error) {
	start := time.Now()
	var stats Stats

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	projected := cam.ProjectCloud(c)

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	frags, err := raster.Rasterize(projected, r.Settings)
	if err != nil {
		return nil, stats, fmt.Errorf("rasterize: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	img := r.Compositor.Composite(frags, c, r.Settings)

	stats = Stats{
		Points:         c.Len(),
		OccupiedPixels: frags.Occupied(),
		Duration:       time.Since(start),
	}
	return img, stats, nil
}

// WritePNG encodes the image to a PNG file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
