// Package monitor exposes debug visualisation endpoints for the loaded
// point cloud and recent render activity. These are debugging-only pages
// with no auth, mirroring what the ops dashboard consumes.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/cloudrender/internal/camera"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/config"
	"github.com/banshee-data/cloudrender/internal/render"
)

// maxTimingSamples bounds the in-memory render history.
const maxTimingSamples = 256

// WebServer serves the debug endpoints for one loaded cloud.
type WebServer struct {
	cloud *cloud.Cloud
	cfg   *config.RenderConfig

	mu      sync.Mutex
	timings []renderSample
}

type renderSample struct {
	At       time.Time
	Stats    render.Stats
	Strategy string
}

// NewWebServer creates a monitor for the given cloud and render defaults.
func NewWebServer(c *cloud.Cloud, cfg *config.RenderConfig) *WebServer {
	if cfg == nil {
		cfg = config.EmptyRenderConfig()
	}
	return &WebServer{cloud: c, cfg: cfg}
}

// RecordRender appends one render invocation to the timing history.
func (ws *WebServer) RecordRender(strategy string, stats render.Stats) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.timings = append(ws.timings, renderSample{At: time.Now(), Stats: stats, Strategy: strategy})
	if len(ws.timings) > maxTimingSamples {
		ws.timings = ws.timings[len(ws.timings)-maxTimingSamples:]
	}
}

// AttachDebugRoutes mounts the debug handlers on mux.
func (ws *WebServer) AttachDebugRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/scatter", ws.handleScatter)
	mux.HandleFunc("/debug/depth-hist.png", ws.handleDepthHist)
	mux.HandleFunc("/debug/timings.png", ws.handleTimings)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// cameraFromQuery builds the debug camera from query params, falling back to
// the configured defaults.
func (ws *WebServer) cameraFromQuery(r *http.Request) (*camera.Orthographic, error) {
	dist := ws.cfg.GetCameraDistance()
	elev := ws.cfg.GetCameraElevation()
	azim := ws.cfg.GetCameraAzimuth()
	if v := r.URL.Query().Get("dist"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			dist = f
		}
	}
	if v := r.URL.Query().Get("elev"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			elev = f
		}
	}
	if v := r.URL.Query().Get("azim"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			azim = f
		}
	}
	return camera.LookAtFromAngles(dist, elev, azim, ws.cfg.GetLookAt(), ws.cfg.GetOrthoScale())
}

// handleScatter renders an HTML scatter of the projected cloud using
// go-echarts, colored by view depth. Query params:
//   - dist, elev, azim (optional; default to the configured camera)
//   - max_points (optional; default 8000) to reduce payload size
func (ws *WebServer) handleScatter(w http.ResponseWriter, r *http.Request) {
	if ws.cloud == nil || ws.cloud.Len() == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no point cloud loaded")
		return
	}

	cam, err := ws.cameraFromQuery(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	projected := cam.ProjectCloud(ws.cloud)

	stride := 1
	if len(projected) > maxPoints {
		stride = int(math.Ceil(float64(len(projected)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(projected)/stride+1)
	maxDepth := 0.0
	for i := 0; i < len(projected); i += stride {
		p := projected[i]
		if p.Depth <= 0 {
			continue
		}
		if p.Depth > maxDepth {
			maxDepth = p.Depth
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Depth}})
	}
	if maxDepth == 0 {
		maxDepth = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Point Cloud (NDC)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Projected Point Cloud", Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1.1, Max: 1.1, Name: "X (ndc)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1.1, Max: 1.1, Name: "Y (ndc)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDepth),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
