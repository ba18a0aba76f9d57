// Package camera constructs orthographic camera poses from spherical
// (distance, elevation, azimuth) coordinates and projects point clouds into
// normalized device coordinates.
//
// Conventions: world up is +Y. The camera sits on a sphere of the given
// radius around the look-at target; elevation is the angle above the XZ
// plane and azimuth rotates around +Y, with azimuth 0 placing the camera on
// the +Z axis. View space has +Z pointing from the camera towards the
// target, so visible points have positive depth.
package camera

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudrender/internal/cloud"
)

// Orthographic is an immutable orthographic camera: a world-to-view rotation
// R (3x3, row-major), the camera position in world coordinates, and the
// half-extent of the view volume mapped to [-1, 1] NDC.
type Orthographic struct {
	r        *mat.Dense
	position [3]float64
	scale    float64
}

// Projected is one point mapped to normalized device coordinates.
// X grows rightwards and Y upwards, both in [-1, 1] inside the view volume;
// Depth is the view-space distance along the camera forward axis.
type Projected struct {
	X, Y  float64
	Depth float64
}

// LookAtFromAngles builds an orthographic camera on the sphere of radius
// dist around the target at, looking at the target. Angles are in degrees.
// scale is the world-space half-extent mapped to the NDC range.
func LookAtFromAngles(dist, elevDeg, azimDeg float64, at [3]float64, scale float64) (*Orthographic, error) {
	if dist <= 0 {
		return nil, fmt.Errorf("camera distance must be positive, got %v", dist)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("ortho scale must be positive, got %v", scale)
	}
	if math.Abs(elevDeg) >= 90 {
		return nil, fmt.Errorf("elevation must be within (-90, 90) degrees, got %v", elevDeg)
	}

	elev := elevDeg * math.Pi / 180.0
	azim := azimDeg * math.Pi / 180.0

	pos := [3]float64{
		at[0] + dist*math.Cos(elev)*math.Sin(azim),
		at[1] + dist*math.Sin(elev),
		at[2] + dist*math.Cos(elev)*math.Cos(azim),
	}

	// Forward points from the camera towards the target.
	forward := normalize3([3]float64{at[0] - pos[0], at[1] - pos[1], at[2] - pos[2]})
	worldUp := [3]float64{0, 1, 0}
	right := normalize3(cross3(worldUp, forward))
	up := cross3(forward, right)

	// Rows of R are the camera basis vectors, so R maps world deltas into
	// view coordinates.
	r := mat.NewDense(3, 3, []float64{
		right[0], right[1], right[2],
		up[0], up[1], up[2],
		forward[0], forward[1], forward[2],
	})

	return &Orthographic{r: r, position: pos, scale: scale}, nil
}

// Position returns the camera position in world coordinates.
func (o *Orthographic) Position() [3]float64 {
	return o.position
}

// Scale returns the NDC half-extent in world units.
func (o *Orthographic) Scale() float64 {
	return o.scale
}

// Rotation returns a copy of the 3x3 world-to-view rotation.
func (o *Orthographic) Rotation() *mat.Dense {
	var out mat.Dense
	out.CloneFrom(o.r)
	return &out
}

// ProjectPoint maps a single world-space point to NDC.
func (o *Orthographic) ProjectPoint(x, y, z float64) Projected {
	d := mat.NewVecDense(3, []float64{
		x - o.position[0],
		y - o.position[1],
		z - o.position[2],
	})
	var v mat.VecDense
	v.MulVec(o.r, d)
	return Projected{
		X:     v.AtVec(0) / o.scale,
		Y:     v.AtVec(1) / o.scale,
		Depth: v.AtVec(2),
	}
}

// ProjectCloud maps every point of the cloud to NDC. The result is indexed
// identically to the cloud's points.
func (o *Orthographic) ProjectCloud(c *cloud.Cloud) []Projected {
	out := make([]Projected, c.Len())
	// Inline the rotation rows to avoid per-point allocations.
	r := o.r.RawMatrix().Data
	for i := range out {
		px, py, pz := c.Position(i)
		dx := float64(px) - o.position[0]
		dy := float64(py) - o.position[1]
		dz := float64(pz) - o.position[2]
		out[i] = Projected{
			X:     (r[0]*dx + r[1]*dy + r[2]*dz) / o.scale,
			Y:     (r[3]*dx + r[4]*dy + r[5]*dz) / o.scale,
			Depth: r[6]*dx + r[7]*dy + r[8]*dz,
		}
	}
	return out
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}
