// Package api implements the HTTP surface of the render service: a
// synchronous render endpoint, an async job queue, and job inspection.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/cloudrender/internal/camera"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/composite"
	"github.com/banshee-data/cloudrender/internal/config"
	"github.com/banshee-data/cloudrender/internal/monitor"
	"github.com/banshee-data/cloudrender/internal/raster"
	"github.com/banshee-data/cloudrender/internal/render"
	"github.com/banshee-data/cloudrender/internal/renderdb"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"
const colorYellow = "\033[33m"

// Server holds the loaded cloud and the job store.
type Server struct {
	db        *renderdb.DB
	cloud     *cloud.Cloud
	source    string
	cfg       *config.RenderConfig
	monitor   *monitor.WebServer
	outputDir string

	// wake nudges the job worker after an enqueue.
	wake chan struct{}
}

// NewServer builds the API server. monitor may be nil; outputDir receives
// async job PNGs.
func NewServer(db *renderdb.DB, c *cloud.Cloud, source string, cfg *config.RenderConfig, mon *monitor.WebServer, outputDir string) *Server {
	if cfg == nil {
		cfg = config.EmptyRenderConfig()
	}
	return &Server{
		db:        db,
		cloud:     c,
		source:    source,
		cfg:       cfg,
		monitor:   mon,
		outputDir: outputDir,
		wake:      make(chan struct{}, 1),
	}
}

// ServeMux returns the API routes. Callers mount this under /api.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/render", s.handleRender)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"points": s.cloud.Len(),
	})
}

// renderParams is the camera/raster parameter bundle for one render,
// seeded from config defaults and overridable per request.
type renderParams struct {
	Azimuth    float64 `json:"azim"`
	Elevation  float64 `json:"elev"`
	Distance   float64 `json:"dist"`
	ImageSize  int     `json:"size"`
	Radius     float64 `json:"radius"`
	Compositor string  `json:"compositor"`
}

func (s *Server) defaultParams() renderParams {
	return renderParams{
		Azimuth:    s.cfg.GetCameraAzimuth(),
		Elevation:  s.cfg.GetCameraElevation(),
		Distance:   s.cfg.GetCameraDistance(),
		ImageSize:  s.cfg.GetImageSize(),
		Radius:     s.cfg.GetPointRadius(),
		Compositor: s.cfg.GetCompositor(),
	}
}

// validate bounds the parameters before they reach the renderer. Both the
// synchronous path and the job queue go through this, so a stored job can
// never carry an allocation-sized image through to rasterization.
func (p renderParams) validate() error {
	if p.ImageSize < 1 || p.ImageSize > 4096 {
		return fmt.Errorf("size must be between 1 and 4096, got %d", p.ImageSize)
	}
	if p.Radius <= 0 || p.Radius > 1 {
		return fmt.Errorf("radius must be in (0, 1], got %v", p.Radius)
	}
	if p.Distance <= 0 {
		return fmt.Errorf("dist must be positive, got %v", p.Distance)
	}
	if p.Elevation <= -90 || p.Elevation >= 90 {
		return fmt.Errorf("elev must be within (-90, 90), got %v", p.Elevation)
	}
	return nil
}

func (s *Server) paramsFromQuery(r *http.Request) (renderParams, error) {
	p := s.defaultParams()
	q := r.URL.Query()
	var err error
	if v := q.Get("azim"); v != "" {
		if p.Azimuth, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid azim %q", v)
		}
	}
	if v := q.Get("elev"); v != "" {
		if p.Elevation, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid elev %q", v)
		}
	}
	if v := q.Get("dist"); v != "" {
		if p.Distance, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid dist %q", v)
		}
	}
	if v := q.Get("size"); v != "" {
		if p.ImageSize, err = strconv.Atoi(v); err != nil {
			return p, fmt.Errorf("invalid size %q", v)
		}
	}
	if v := q.Get("radius"); v != "" {
		if p.Radius, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid radius %q", v)
		}
	}
	if v := q.Get("compositor"); v != "" {
		p.Compositor = v
	}
	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}

// renderWithParams runs the full pipeline for one parameter bundle.
func (s *Server) renderWithParams(ctx context.Context, p renderParams) (*bytes.Buffer, render.Stats, error) {
	var stats render.Stats

	cam, err := camera.LookAtFromAngles(p.Distance, p.Elevation, p.Azimuth,
		s.cfg.GetLookAt(), s.cfg.GetOrthoScale())
	if err != nil {
		return nil, stats, err
	}

	comp, err := composite.ForName(p.Compositor, composite.Background(s.cfg.GetBackground()))
	if err != nil {
		return nil, stats, err
	}

	rnd, err := render.New(raster.Settings{
		ImageSize:      p.ImageSize,
		Radius:         p.Radius,
		PointsPerPixel: s.cfg.GetPointsPerPixel(),
	}, comp)
	if err != nil {
		return nil, stats, err
	}

	img, stats, err := rnd.Render(ctx, s.cloud, cam)
	if err != nil {
		return nil, stats, err
	}

	if s.monitor != nil {
		s.monitor.RecordRender(comp.Name(), stats)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, stats, fmt.Errorf("failed to encode png: %w", err)
	}
	return &buf, stats, nil
}

// handleRender renders synchronously and returns the PNG. Query params
// azim, elev, dist, size, radius and compositor override the defaults.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	p, err := s.paramsFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buf, stats, err := s.renderWithParams(r.Context(), p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("rendered %d points to %dx%d (%s, %s)",
		stats.Points, p.ImageSize, p.ImageSize, p.Compositor, stats.Duration.Round(time.Microsecond))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Render-Duration-Ms", strconv.FormatInt(stats.Duration.Milliseconds(), 10))
	_, _ = w.Write(buf.Bytes())
}

// handleJobs enqueues a job (POST) or lists recent jobs (GET).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		jobs, err := s.db.RecentJobs(limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if jobs == nil {
			jobs = []*renderdb.Job{}
		}
		s.writeJSON(w, http.StatusOK, jobs)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "use GET or POST")
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	p := s.defaultParams()
	if r.Body != nil {
		// An empty body keeps the defaults.
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job body: %v", err))
			return
		}
	}
	if err := p.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := composite.ForName(p.Compositor, composite.White); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := json.Marshal(p)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job := &renderdb.Job{
		Source:     s.source,
		Compositor: p.Compositor,
		Params:     string(params),
	}
	if err := s.db.CreateJob(job); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Nudge the worker without blocking when a nudge is already queued.
	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.db.GetJob(id)
	if errors.Is(err, renderdb.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// RunWorker drains pending jobs until the context is cancelled. Completed
// jobs leave a PNG in the output directory named after the job id.
func (s *Server) RunWorker(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		s.drainPending(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

func (s *Server) drainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := s.db.NextPending()
		if err != nil {
			log.Printf("failed to poll pending jobs: %v", err)
			return
		}
		if job == nil {
			return
		}
		s.processJob(ctx, job)
	}
}

func (s *Server) processJob(ctx context.Context, job *renderdb.Job) {
	if err := s.db.MarkRunning(job.ID); err != nil {
		log.Printf("failed to mark job %s running: %v", job.ID, err)
		return
	}

	p := s.defaultParams()
	if err := json.Unmarshal([]byte(job.Params), &p); err != nil {
		_ = s.db.MarkError(job.ID, fmt.Errorf("invalid stored params: %w", err))
		return
	}
	// Stored params are re-validated so a job row written by an older
	// build cannot drive an unbounded allocation in the rasterizer.
	if err := p.validate(); err != nil {
		_ = s.db.MarkError(job.ID, fmt.Errorf("invalid stored params: %w", err))
		return
	}

	buf, stats, err := s.renderWithParams(ctx, p)
	if err != nil {
		if dbErr := s.db.MarkError(job.ID, err); dbErr != nil {
			log.Printf("failed to mark job %s errored: %v", job.ID, dbErr)
		}
		return
	}

	out := filepath.Join(s.outputDir, job.ID+".png")
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		_ = s.db.MarkError(job.ID, err)
		return
	}
	if err := s.db.MarkDone(job.ID, out, stats.Duration); err != nil {
		log.Printf("failed to mark job %s done: %v", job.ID, err)
		return
	}
	log.Printf("job %s rendered to %s in %s", job.ID, out, stats.Duration.Round(time.Microsecond))
}
