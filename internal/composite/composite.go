// Package composite blends per-pixel point fragments into a final image.
// Two strategies are provided: front-to-back alpha compositing and a
// normalized weighted sum. Fragment weights fall off with the squared
// distance from the pixel center to the point center.
package composite

import (
	"fmt"
	"image"

	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/raster"
)

// Background is an rgb color with channels in [0, 1].
type Background [3]float64

// White is the default background.
var White = Background{1, 1, 1}

// Compositor turns rasterized fragments and the source cloud into an image.
type Compositor interface {
	// Name identifies the strategy ("alpha" or "norm").
	Name() string
	Composite(f *raster.Fragments, c *cloud.Cloud, s raster.Settings) *image.RGBA
}

// ForName returns the compositor registered under the given name.
func ForName(name string, bg Background) (Compositor, error) {
	switch name {
	case "alpha", "":
		return &Alpha{Background: bg}, nil
	case "norm":
		return &NormWeighted{Background: bg}, nil
	}
	return nil, fmt.Errorf("unknown compositor %q (want alpha or norm)", name)
}

// fragmentWeight maps the squared center distance to an opacity in [0, 1]:
// 1 at the point center, 0 at the footprint edge.
func fragmentWeight(dist2 float32, radius float64) float64 {
	w := 1 - float64(dist2)/(radius*radius)
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// Alpha composites fragments front to back with over-blending; whatever
// transmittance survives all fragments is filled with the background.
type Alpha struct {
	Background Background
}

// Name implements Compositor.
func (a *Alpha) Name() string { return "alpha" }

// Composite implements Compositor.
func (a *Alpha) Composite(f *raster.Fragments, c *cloud.Cloud, s raster.Settings) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Size, f.Size))
	for y := 0; y < f.Size; y++ {
		for x := 0; x < f.Size; x++ {
			base := f.At(x, y)
			var cr, cg, cb float64
			t := 1.0 // remaining transmittance
			for k := 0; k < f.K; k++ {
				idx := f.Idx[base+k]
				if idx < 0 {
					break
				}
				w := fragmentWeight(f.Dist2[base+k], s.Radius)
				r, g, b := c.Color(int(idx))
				cr += t * w * float64(r)
				cg += t * w * float64(g)
				cb += t * w * float64(b)
				t *= 1 - w
			}
			cr += t * a.Background[0]
			cg += t * a.Background[1]
			cb += t * a.Background[2]
			setPixel(img, x, y, cr, cg, cb)
		}
	}
	return img
}

// NormWeighted composites fragments by a weighted average: each fragment
// contributes proportionally to its weight regardless of occlusion order.
// A small delta keeps empty pixels well-defined and resolving to the
// background color.
type NormWeighted struct {
	Background Background
}

const normDelta = 1e-10

// Name implements Compositor.
func (n *NormWeighted) Name() string { return "norm" }

// Composite implements Compositor.
func (n *NormWeighted) Composite(f *raster.Fragments, c *cloud.Cloud, s raster.Settings) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Size, f.Size))
	for y := 0; y < f.Size; y++ {
		for x := 0; x < f.Size; x++ {
			base := f.At(x, y)
			var cr, cg, cb, total float64
			for k := 0; k < f.K; k++ {
				idx := f.Idx[base+k]
				if idx < 0 {
					break
				}
				w := fragmentWeight(f.Dist2[base+k], s.Radius)
				r, g, b := c.Color(int(idx))
				cr += w * float64(r)
				cg += w * float64(g)
				cb += w * float64(b)
				total += w
			}
			cr = (cr + normDelta*n.Background[0]) / (total + normDelta)
			cg = (cg + normDelta*n.Background[1]) / (total + normDelta)
			cb = (cb + normDelta*n.Background[2]) / (total + normDelta)
			setPixel(img, x, y, cr, cg, cb)
		}
	}
	return img
}

func setPixel(img *image.RGBA, x, y int, r, g, b float64) {
	off := img.PixOffset(x, y)
	img.Pix[off] = channel255(r)
	img.Pix[off+1] = channel255(g)
	img.Pix[off+2] = channel255(b)
	img.Pix[off+3] = 255
}

func channel255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
