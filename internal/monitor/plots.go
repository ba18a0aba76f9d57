package monitor

import (
	"fmt"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// handleDepthHist serves a histogram of view-space point depths as PNG.
// Accepts the same camera query params as /debug/scatter.
func (ws *WebServer) handleDepthHist(w http.ResponseWriter, r *http.Request) {
	if ws.cloud == nil || ws.cloud.Len() == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no point cloud loaded")
		return
	}

	cam, err := ws.cameraFromQuery(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	projected := cam.ProjectCloud(ws.cloud)
	depths := make(plotter.Values, 0, len(projected))
	for _, p := range projected {
		if p.Depth > 0 {
			depths = append(depths, p.Depth)
		}
	}
	if len(depths) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no points in front of the camera")
		return
	}

	p := plot.New()
	p.Title.Text = "View Depth Distribution"
	p.X.Label.Text = "Depth (world units)"
	p.Y.Label.Text = "Points"

	hist, err := plotter.NewHist(depths, 50)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build histogram: %v", err))
		return
	}
	p.Add(hist)

	ws.servePlotPNG(w, p, 8*vg.Inch, 4*vg.Inch)
}

// handleTimings serves a line plot of recent render durations as PNG.
func (ws *WebServer) handleTimings(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	samples := make([]renderSample, len(ws.timings))
	copy(samples, ws.timings)
	ws.mu.Unlock()

	if len(samples) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no renders recorded yet")
		return
	}

	p := plot.New()
	p.Title.Text = "Render Duration"
	p.X.Label.Text = "Invocation"
	p.Y.Label.Text = "Milliseconds"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: float64(i), Y: float64(s.Stats.Duration.Microseconds()) / 1000.0}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build plot: %v", err))
		return
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("duration", line)
	p.Legend.Top = true

	ws.servePlotPNG(w, p, 8*vg.Inch, 4*vg.Inch)
}

func (ws *WebServer) servePlotPNG(w http.ResponseWriter, p *plot.Plot, width, height vg.Length) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write plot: %v", err))
	}
}
