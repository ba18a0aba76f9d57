package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/config"
	"github.com/banshee-data/cloudrender/internal/render"
)

func testServer(t *testing.T) *WebServer {
	t.Helper()
	c, err := cloud.New(
		[]float32{0, 0, 0, 0.1, 0.1, 0, -0.1, 0.2, 0.3},
		nil,
	)
	if err != nil {
		t.Fatalf("cloud.New failed: %v", err)
	}
	return NewWebServer(c, config.EmptyRenderConfig())
}

func TestHandleScatter(t *testing.T) {
	ws := testServer(t)
	mux := http.NewServeMux()
	ws.AttachDebugRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/scatter", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("expected an echarts page in the response body")
	}
}

func TestHandleScatterEmptyCloud(t *testing.T) {
	ws := NewWebServer(&cloud.Cloud{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/debug/scatter", nil)
	rec := httptest.NewRecorder()
	ws.handleScatter(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDepthHist(t *testing.T) {
	ws := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/depth-hist.png?dist=3&elev=5&azim=30", nil)
	rec := httptest.NewRecorder()
	ws.handleDepthHist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty png body")
	}
}

func TestHandleTimings(t *testing.T) {
	ws := testServer(t)

	// No samples yet.
	rec := httptest.NewRecorder()
	ws.handleTimings(rec, httptest.NewRequest(http.MethodGet, "/debug/timings.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any renders", rec.Code)
	}

	ws.RecordRender("alpha", render.Stats{Points: 3, Duration: 5 * time.Millisecond})
	ws.RecordRender("norm", render.Stats{Points: 3, Duration: 7 * time.Millisecond})

	rec = httptest.NewRecorder()
	ws.handleTimings(rec, httptest.NewRequest(http.MethodGet, "/debug/timings.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
}

func TestRecordRenderBoundsHistory(t *testing.T) {
	ws := testServer(t)
	for i := 0; i < maxTimingSamples+50; i++ {
		ws.RecordRender("alpha", render.Stats{Duration: time.Millisecond})
	}
	ws.mu.Lock()
	n := len(ws.timings)
	ws.mu.Unlock()
	if n != maxTimingSamples {
		t.Errorf("history length = %d, want %d", n, maxTimingSamples)
	}
}
