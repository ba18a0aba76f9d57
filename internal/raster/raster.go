// Package raster bins projected points onto a pixel grid, keeping for each
// pixel the K nearest fragments in depth order for downstream compositing.
package raster

import (
	"fmt"
	"math"

	"github.com/banshee-data/cloudrender/internal/camera"
)

// Settings configures a rasterization pass. Radius is the point footprint
// radius in NDC units; PointsPerPixel is the fragment capacity K per pixel.
type Settings struct {
	ImageSize      int
	Radius         float64
	PointsPerPixel int
}

// DefaultSettings matches the service defaults.
func DefaultSettings() Settings {
	return Settings{ImageSize: 512, Radius: 0.01, PointsPerPixel: 8}
}

// Validate checks the settings ranges.
func (s Settings) Validate() error {
	if s.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", s.ImageSize)
	}
	if s.Radius <= 0 {
		return fmt.Errorf("point radius must be positive, got %v", s.Radius)
	}
	if s.PointsPerPixel <= 0 {
		return fmt.Errorf("points per pixel must be positive, got %d", s.PointsPerPixel)
	}
	return nil
}

// Fragments holds the rasterization result. For pixel (x, y) and slot k the
// flat index is (y*Size+x)*K + k. Idx is the point index or -1 for an empty
// slot; slots are filled front to back in increasing depth. Dist2 is the
// squared NDC distance from the pixel center to the point center.
type Fragments struct {
	Size  int
	K     int
	Idx   []int32
	Depth []float32
	Dist2 []float32
}

// At returns the slot base offset for pixel (x, y).
func (f *Fragments) At(x, y int) int {
	return (y*f.Size + x) * f.K
}

// Rasterize splats each projected point over the pixels its footprint
// covers. Points with non-positive depth (behind the camera) are culled.
// Deterministic: equal-depth collisions keep the lower point index first.
func Rasterize(pts []camera.Projected, s Settings) (*Fragments, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	n := s.ImageSize * s.ImageSize * s.PointsPerPixel
	f := &Fragments{
		Size:  s.ImageSize,
		K:     s.PointsPerPixel,
		Idx:   make([]int32, n),
		Depth: make([]float32, n),
		Dist2: make([]float32, n),
	}
	for i := range f.Idx {
		f.Idx[i] = -1
	}

	// One NDC unit spans half the image.
	half := float64(s.ImageSize) / 2.0
	r2 := s.Radius * s.Radius

	for i, p := range pts {
		if p.Depth <= 0 {
			continue
		}

		// Footprint bounding box in pixel coordinates. NDC +Y is up,
		// pixel +y is down.
		x0 := int(math.Floor((p.X-s.Radius+1)*half - 0.5))
		x1 := int(math.Ceil((p.X+s.Radius+1)*half - 0.5))
		y0 := int(math.Floor((1-(p.Y+s.Radius))*half - 0.5))
		y1 := int(math.Ceil((1-(p.Y-s.Radius))*half - 0.5))
		if x0 < 0 {
			x0 = 0
		}
		if y0 < 0 {
			y0 = 0
		}
		if x1 > s.ImageSize-1 {
			x1 = s.ImageSize - 1
		}
		if y1 > s.ImageSize-1 {
			y1 = s.ImageSize - 1
		}

		for y := y0; y <= y1; y++ {
			// Pixel center in NDC.
			cy := 1 - (float64(y)+0.5)/half
			dy := cy - p.Y
			for x := x0; x <= x1; x++ {
				cx := (float64(x)+0.5)/half - 1
				dx := cx - p.X
				d2 := dx*dx + dy*dy
				if d2 > r2 {
					continue
				}
				f.insert(x, y, int32(i), float32(p.Depth), float32(d2))
			}
		}
	}
	return f, nil
}

// insert places a fragment into the pixel's depth-ordered slots, dropping it
// when all K slots hold nearer fragments.
func (f *Fragments) insert(x, y int, idx int32, depth, dist2 float32) {
	base := f.At(x, y)
	for k := 0; k < f.K; k++ {
		at := base + k
		if f.Idx[at] == -1 {
			f.Idx[at] = idx
			f.Depth[at] = depth
			f.Dist2[at] = dist2
			return
		}
		if depth < f.Depth[at] {
			// Shift deeper fragments down one slot.
			for m := f.K - 1; m > k; m-- {
				f.Idx[base+m] = f.Idx[base+m-1]
				f.Depth[base+m] = f.Depth[base+m-1]
				f.Dist2[base+m] = f.Dist2[base+m-1]
			}
			f.Idx[at] = idx
			f.Depth[at] = depth
			f.Dist2[at] = dist2
			return
		}
	}
}

// Occupied reports how many pixels received at least one fragment.
func (f *Fragments) Occupied() int {
	count := 0
	for i := 0; i < len(f.Idx); i += f.K {
		if f.Idx[i] != -1 {
			count++
		}
	}
	return count
}
