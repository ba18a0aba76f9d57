package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := EmptyRenderConfig()

	if cfg.GetImageSize() != 512 {
		t.Errorf("GetImageSize = %d, want 512", cfg.GetImageSize())
	}
	if cfg.GetPointRadius() != 0.01 {
		t.Errorf("GetPointRadius = %v, want 0.01", cfg.GetPointRadius())
	}
	if cfg.GetPointsPerPixel() != 8 {
		t.Errorf("GetPointsPerPixel = %d, want 8", cfg.GetPointsPerPixel())
	}
	if cfg.GetCameraDistance() != 2.0 {
		t.Errorf("GetCameraDistance = %v, want 2.0", cfg.GetCameraDistance())
	}
	if cfg.GetCompositor() != "alpha" {
		t.Errorf("GetCompositor = %q, want alpha", cfg.GetCompositor())
	}
	if cfg.GetBackground() != [3]float64{1, 1, 1} {
		t.Errorf("GetBackground = %v, want white", cfg.GetBackground())
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"image_size": 256, "compositor": "norm"}`)

	cfg, err := LoadRenderConfig(path)
	if err != nil {
		t.Fatalf("LoadRenderConfig failed: %v", err)
	}
	if cfg.GetImageSize() != 256 {
		t.Errorf("GetImageSize = %d, want 256", cfg.GetImageSize())
	}
	if cfg.GetCompositor() != "norm" {
		t.Errorf("GetCompositor = %q, want norm", cfg.GetCompositor())
	}
	// Untouched fields keep defaults.
	if cfg.GetPointRadius() != 0.01 {
		t.Errorf("GetPointRadius = %v, want default 0.01", cfg.GetPointRadius())
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"image_size": 128,
		"point_radius": 0.05,
		"points_per_pixel": 16,
		"camera_distance": 3.5,
		"camera_elevation": 25,
		"camera_azimuth": 45,
		"ortho_scale": 2.0,
		"look_at": [0.5, 0, -0.5],
		"compositor": "alpha",
		"background": [0, 0, 0]
	}`)

	cfg, err := LoadRenderConfig(path)
	if err != nil {
		t.Fatalf("LoadRenderConfig failed: %v", err)
	}
	if cfg.GetCameraAzimuth() != 45 {
		t.Errorf("GetCameraAzimuth = %v, want 45", cfg.GetCameraAzimuth())
	}
	if cfg.GetLookAt() != [3]float64{0.5, 0, -0.5} {
		t.Errorf("GetLookAt = %v", cfg.GetLookAt())
	}
	if cfg.GetBackground() != [3]float64{0, 0, 0} {
		t.Errorf("GetBackground = %v, want black", cfg.GetBackground())
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	if _, err := LoadRenderConfig("render.yaml"); err == nil {
		t.Fatal("expected error for non-json extension")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := LoadRenderConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero image size", `{"image_size": 0}`},
		{"huge image size", `{"image_size": 100000}`},
		{"negative radius", `{"point_radius": -0.1}`},
		{"zero k", `{"points_per_pixel": 0}`},
		{"zero distance", `{"camera_distance": 0}`},
		{"vertical elevation", `{"camera_elevation": 90}`},
		{"bad compositor", `{"compositor": "premultiplied"}`},
		{"background out of range", `{"background": [2, 0, 0]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := LoadRenderConfig(path); err == nil {
				t.Errorf("expected validation error for %s", tc.content)
			}
		})
	}
}
