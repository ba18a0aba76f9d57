package raster

import (
	"testing"

	"github.com/banshee-data/cloudrender/internal/camera"
)

func TestRasterizeSinglePointCenter(t *testing.T) {
	s := Settings{ImageSize: 8, Radius: 0.3, PointsPerPixel: 4}
	pts := []camera.Projected{{X: 0, Y: 0, Depth: 1}}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	// The four center pixels all lie within the footprint.
	for _, px := range [][2]int{{3, 3}, {4, 3}, {3, 4}, {4, 4}} {
		base := f.At(px[0], px[1])
		if f.Idx[base] != 0 {
			t.Errorf("pixel %v: expected fragment for point 0, got idx %d", px, f.Idx[base])
		}
		if f.Depth[base] != 1 {
			t.Errorf("pixel %v: depth = %v, want 1", px, f.Depth[base])
		}
	}

	// A corner pixel is outside the footprint.
	if f.Idx[f.At(0, 0)] != -1 {
		t.Errorf("corner pixel should be empty, got idx %d", f.Idx[f.At(0, 0)])
	}
}

func TestRasterizeDepthOrdering(t *testing.T) {
	s := Settings{ImageSize: 4, Radius: 1.5, PointsPerPixel: 3}
	// Farther point listed first; slots must still come out nearest-first.
	pts := []camera.Projected{
		{X: 0, Y: 0, Depth: 5},
		{X: 0, Y: 0, Depth: 1},
		{X: 0, Y: 0, Depth: 3},
	}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	base := f.At(2, 2)
	wantIdx := []int32{1, 2, 0}
	wantDepth := []float32{1, 3, 5}
	for k := 0; k < 3; k++ {
		if f.Idx[base+k] != wantIdx[k] {
			t.Errorf("slot %d: idx = %d, want %d", k, f.Idx[base+k], wantIdx[k])
		}
		if f.Depth[base+k] != wantDepth[k] {
			t.Errorf("slot %d: depth = %v, want %v", k, f.Depth[base+k], wantDepth[k])
		}
	}
}

func TestRasterizeOverflowKeepsNearest(t *testing.T) {
	s := Settings{ImageSize: 2, Radius: 2, PointsPerPixel: 2}
	pts := []camera.Projected{
		{X: 0, Y: 0, Depth: 4},
		{X: 0, Y: 0, Depth: 2},
		{X: 0, Y: 0, Depth: 1},
	}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	base := f.At(0, 0)
	if f.Idx[base] != 2 || f.Idx[base+1] != 1 {
		t.Errorf("slots = [%d %d], want [2 1]", f.Idx[base], f.Idx[base+1])
	}
}

func TestRasterizeEqualDepthTieBreak(t *testing.T) {
	s := Settings{ImageSize: 2, Radius: 2, PointsPerPixel: 2}
	pts := []camera.Projected{
		{X: 0, Y: 0, Depth: 1},
		{X: 0, Y: 0, Depth: 1},
	}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	base := f.At(0, 0)
	if f.Idx[base] != 0 || f.Idx[base+1] != 1 {
		t.Errorf("equal depths should keep index order, got [%d %d]", f.Idx[base], f.Idx[base+1])
	}
}

func TestRasterizeCullsBehindCamera(t *testing.T) {
	s := Settings{ImageSize: 4, Radius: 1, PointsPerPixel: 2}
	pts := []camera.Projected{
		{X: 0, Y: 0, Depth: -1},
		{X: 0, Y: 0, Depth: 0},
	}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if got := f.Occupied(); got != 0 {
		t.Errorf("expected no occupied pixels for culled points, got %d", got)
	}
}

func TestRasterizeOffscreenPointClipped(t *testing.T) {
	s := Settings{ImageSize: 4, Radius: 0.1, PointsPerPixel: 2}
	pts := []camera.Projected{{X: 5, Y: 5, Depth: 1}}

	f, err := Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if got := f.Occupied(); got != 0 {
		t.Errorf("expected no occupied pixels for offscreen point, got %d", got)
	}
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name string
		s    Settings
	}{
		{"zero size", Settings{ImageSize: 0, Radius: 0.1, PointsPerPixel: 1}},
		{"zero radius", Settings{ImageSize: 4, Radius: 0, PointsPerPixel: 1}},
		{"zero k", Settings{ImageSize: 4, Radius: 0.1, PointsPerPixel: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.s.Validate(); err == nil {
				t.Errorf("expected validation error for %+v", tc.s)
			}
		})
	}
}
