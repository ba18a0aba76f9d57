// Package cloud holds the in-memory point cloud model: flat position and
// color arrays loaded once from an archive and immutable afterwards.
package cloud

import (
	"fmt"
	"math"

	"github.com/banshee-data/cloudrender/internal/npz"
)

// Archive member names expected in a point-cloud .npz file.
const (
	PositionsKey = "verts"
	ColorsKey    = "rgb"
)

// Cloud is an ordered set of 3D points with optional per-point colors.
// Positions is a flat xyz array (len = 3*N); Colors is either nil or a flat
// rgb array of the same point count with channels in [0, 1].
type Cloud struct {
	Positions []float32
	Colors    []float32
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	return len(c.Positions) / 3
}

// Position returns the xyz coordinates of point i.
func (c *Cloud) Position(i int) (x, y, z float32) {
	return c.Positions[3*i], c.Positions[3*i+1], c.Positions[3*i+2]
}

// Color returns the rgb channels of point i. When the cloud carries no
// colors, a neutral grey is returned so rendering stays defined.
func (c *Cloud) Color(i int) (r, g, b float32) {
	if c.Colors == nil {
		return 0.5, 0.5, 0.5
	}
	return c.Colors[3*i], c.Colors[3*i+1], c.Colors[3*i+2]
}

// New builds a Cloud from flat position and color arrays, enforcing the
// length invariant. colors may be nil.
func New(positions, colors []float32) (*Cloud, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("positions length %d is not a multiple of 3", len(positions))
	}
	if colors != nil && len(colors) != len(positions) {
		return nil, fmt.Errorf("color count %d does not match point count %d",
			len(colors)/3, len(positions)/3)
	}
	return &Cloud{Positions: positions, Colors: colors}, nil
}

// FromArchive loads a point cloud from an .npz archive containing a "verts"
// member (N,3) and optionally an "rgb" member (N,3).
func FromArchive(path string) (*Cloud, error) {
	arrays, err := npz.Open(path)
	if err != nil {
		return nil, err
	}

	verts, ok := arrays[PositionsKey]
	if !ok {
		return nil, fmt.Errorf("archive %s has no %q member", path, PositionsKey)
	}
	if len(verts.Shape) != 2 || verts.Shape[1] != 3 {
		return nil, fmt.Errorf("member %q has shape %v, want (N, 3)", PositionsKey, verts.Shape)
	}
	positions, err := verts.Float32s()
	if err != nil {
		return nil, fmt.Errorf("member %q: %w", PositionsKey, err)
	}

	var colors []float32
	if rgb, ok := arrays[ColorsKey]; ok {
		if len(rgb.Shape) != 2 || rgb.Shape[1] != 3 {
			return nil, fmt.Errorf("member %q has shape %v, want (N, 3)", ColorsKey, rgb.Shape)
		}
		colors, err = rgb.Float32s()
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", ColorsKey, err)
		}
	}

	return New(positions, colors)
}

// Bounds returns the axis-aligned bounding box of the cloud.
// Zero points yields all-zero bounds.
func (c *Cloud) Bounds() (min, max [3]float32) {
	if c.Len() == 0 {
		return min, max
	}
	for i := 0; i < 3; i++ {
		min[i] = float32(math.Inf(1))
		max[i] = float32(math.Inf(-1))
	}
	for i := 0; i < c.Len(); i++ {
		for j := 0; j < 3; j++ {
			v := c.Positions[3*i+j]
			if v < min[j] {
				min[j] = v
			}
			if v > max[j] {
				max[j] = v
			}
		}
	}
	return min, max
}

// Centroid returns the mean position of all points.
func (c *Cloud) Centroid() [3]float32 {
	var sum [3]float64
	n := c.Len()
	if n == 0 {
		return [3]float32{}
	}
	for i := 0; i < n; i++ {
		sum[0] += float64(c.Positions[3*i])
		sum[1] += float64(c.Positions[3*i+1])
		sum[2] += float64(c.Positions[3*i+2])
	}
	return [3]float32{
		float32(sum[0] / float64(n)),
		float32(sum[1] / float64(n)),
		float32(sum[2] / float64(n)),
	}
}
