package composite

import (
	"image"
	"math"
	"testing"

	"github.com/banshee-data/cloudrender/internal/camera"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/raster"
)

func testSettings() raster.Settings {
	return raster.Settings{ImageSize: 2, Radius: 2, PointsPerPixel: 2}
}

func rasterizeFor(t *testing.T, pts []camera.Projected, s raster.Settings) *raster.Fragments {
	t.Helper()
	f, err := raster.Rasterize(pts, s)
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	return f
}

func pixelRGB(img *image.RGBA, x, y int) (r, g, b uint8) {
	off := img.PixOffset(x, y)
	return img.Pix[off], img.Pix[off+1], img.Pix[off+2]
}

func TestForName(t *testing.T) {
	a, err := ForName("alpha", White)
	if err != nil || a.Name() != "alpha" {
		t.Errorf("ForName(alpha) = %v, %v", a, err)
	}
	n, err := ForName("norm", White)
	if err != nil || n.Name() != "norm" {
		t.Errorf("ForName(norm) = %v, %v", n, err)
	}
	if _, err := ForName("wavelet", White); err == nil {
		t.Error("expected error for unknown compositor name")
	}
}

func TestAlphaEmptyPixelIsBackground(t *testing.T) {
	s := testSettings()
	f := rasterizeFor(t, nil, s)
	c, _ := cloud.New(nil, nil)

	img := (&Alpha{Background: Background{1, 0, 0}}).Composite(f, c, s)
	r, g, b := pixelRGB(img, 0, 0)
	if r != 255 || g != 0 || b != 0 {
		t.Errorf("empty pixel = (%d %d %d), want background red", r, g, b)
	}
}

func TestAlphaFullyOpaqueFragment(t *testing.T) {
	s := testSettings()
	// A point exactly on a pixel center would be ideal; with radius 2 the
	// center-distance weight is close enough to saturate against white.
	pts := []camera.Projected{{X: -0.5, Y: 0.5, Depth: 1}}
	f := rasterizeFor(t, pts, s)
	c, err := cloud.New([]float32{0, 0, 0}, []float32{0, 0, 1})
	if err != nil {
		t.Fatalf("cloud.New failed: %v", err)
	}

	img := (&Alpha{Background: White}).Composite(f, c, s)
	// Pixel (0,0) center is NDC (-0.5, 0.5): distance 0 from the point, so
	// the fragment weight is exactly 1 and the output is pure point color.
	r, g, b := pixelRGB(img, 0, 0)
	if r != 0 || g != 0 || b != 255 {
		t.Errorf("pixel = (%d %d %d), want pure blue", r, g, b)
	}
}

func TestAlphaOcclusionOrder(t *testing.T) {
	s := testSettings()
	// Near point sits on the pixel center (weight 1) and must fully hide
	// the far point.
	pts := []camera.Projected{
		{X: -0.5, Y: 0.5, Depth: 5},
		{X: -0.5, Y: 0.5, Depth: 1},
	}
	f := rasterizeFor(t, pts, s)
	c, err := cloud.New(
		[]float32{0, 0, 0, 0, 0, 0},
		[]float32{1, 0, 0, 0, 1, 0},
	)
	if err != nil {
		t.Fatalf("cloud.New failed: %v", err)
	}

	img := (&Alpha{Background: White}).Composite(f, c, s)
	r, g, b := pixelRGB(img, 0, 0)
	if r != 0 || g != 255 || b != 0 {
		t.Errorf("pixel = (%d %d %d), want the nearer green point", r, g, b)
	}
}

func TestNormWeightedAveragesRegardlessOfDepth(t *testing.T) {
	s := testSettings()
	pts := []camera.Projected{
		{X: -0.5, Y: 0.5, Depth: 5},
		{X: -0.5, Y: 0.5, Depth: 1},
	}
	f := rasterizeFor(t, pts, s)
	c, err := cloud.New(
		[]float32{0, 0, 0, 0, 0, 0},
		[]float32{1, 0, 0, 0, 1, 0},
	)
	if err != nil {
		t.Fatalf("cloud.New failed: %v", err)
	}

	img := (&NormWeighted{Background: White}).Composite(f, c, s)
	// Both fragments carry weight 1, so the result is the mean color.
	r, g, b := pixelRGB(img, 0, 0)
	if math.Abs(float64(r)-128) > 1 || math.Abs(float64(g)-128) > 1 || b != 0 {
		t.Errorf("pixel = (%d %d %d), want ~(128 128 0)", r, g, b)
	}
}

func TestNormWeightedEmptyPixelIsBackground(t *testing.T) {
	s := testSettings()
	f := rasterizeFor(t, nil, s)
	c, _ := cloud.New(nil, nil)

	img := (&NormWeighted{Background: Background{0, 0, 1}}).Composite(f, c, s)
	r, g, b := pixelRGB(img, 1, 1)
	if r != 0 || g != 0 || b != 255 {
		t.Errorf("empty pixel = (%d %d %d), want background blue", r, g, b)
	}
}

func TestImageDimensionsMatchSettings(t *testing.T) {
	s := raster.Settings{ImageSize: 16, Radius: 0.1, PointsPerPixel: 2}
	f := rasterizeFor(t, nil, s)
	c, _ := cloud.New(nil, nil)

	for _, comp := range []Compositor{&Alpha{Background: White}, &NormWeighted{Background: White}} {
		img := comp.Composite(f, c, s)
		if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
			t.Errorf("%s: image bounds = %v, want 16x16", comp.Name(), img.Bounds())
		}
	}
}
