package main

import (
	"context"
	"embed"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/cloudrender/api"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/config"
	"github.com/banshee-data/cloudrender/internal/fetch"
	"github.com/banshee-data/cloudrender/internal/httputil"
	"github.com/banshee-data/cloudrender/internal/monitor"
	"github.com/banshee-data/cloudrender/internal/renderdb"
	"github.com/banshee-data/cloudrender/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode       = flag.Bool("dev", false, "Run in dev mode (serve static files from disk)")
	listen        = flag.String("listen", ":8080", "Listen address")
	dataSource    = flag.String("data", "", "Point cloud archive: local .npz path or http(s) URL (required)")
	dbFile        = flag.String("db", "render_jobs.db", "Path to the sqlite job database")
	cacheDir      = flag.String("cache", "data", "Directory for downloaded archives")
	outputDir     = flag.String("output", "renders", "Directory for async job output images")
	configPath    = flag.String("config", "", "Optional render config JSON")
	migrationsDir = flag.String("migrations", "", "Run sqlite migrations from this directory before serving")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *dataSource == "" {
		log.Fatal("-data is required")
	}
	log.Printf("cloudrender %s (%s)", version.Version, version.GitSHA)

	cfg := config.EmptyRenderConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadRenderConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the data source: remote archives are cached locally.
	path := *dataSource
	if fetch.IsURL(path) {
		path = fetch.LocalPath(*dataSource, *cacheDir)
		if err := fetch.Fetch(ctx, httputil.NewStandardClient(nil), *dataSource, path); err != nil {
			log.Fatalf("failed to fetch data archive: %v", err)
		}
	}

	c, err := cloud.FromArchive(path)
	if err != nil {
		log.Fatalf("failed to load point cloud: %v", err)
	}
	log.Printf("loaded %d points from %s", c.Len(), path)

	db, err := renderdb.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open job database: %v", err)
	}
	defer db.Close()

	if *migrationsDir != "" {
		if err := db.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	mon := monitor.NewWebServer(c, cfg)
	server := api.NewServer(db, c, filepath.Base(path), cfg, mon, *outputDir)

	var wg sync.WaitGroup

	// Job worker drains async render jobs.
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.RunWorker(ctx)
		log.Print("job worker terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		mon.AttachDebugRoutes(mux)
		mux.Handle("/api/", http.StripPrefix("/api", server.ServeMux()))

		// Static files come from the embedded filesystem in production, or
		// from ./static in dev for easier iteration without restarting.
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LogRequests(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
