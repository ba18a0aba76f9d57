// Command snapshot renders a single image of a point-cloud archive: fetch
// the archive if needed, load it, build the camera, rasterize, composite,
// and write a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/cloudrender/internal/camera"
	"github.com/banshee-data/cloudrender/internal/cloud"
	"github.com/banshee-data/cloudrender/internal/composite"
	"github.com/banshee-data/cloudrender/internal/config"
	"github.com/banshee-data/cloudrender/internal/fetch"
	"github.com/banshee-data/cloudrender/internal/httputil"
	"github.com/banshee-data/cloudrender/internal/raster"
	"github.com/banshee-data/cloudrender/internal/render"
	"github.com/banshee-data/cloudrender/internal/version"
)

var (
	dataSource  = flag.String("data", "", "Point cloud archive: local .npz path or http(s) URL (required)")
	outPath     = flag.String("out", "render.png", "Output PNG path")
	cacheDir    = flag.String("cache", "data", "Directory for downloaded archives")
	configPath  = flag.String("config", "", "Optional render config JSON")
	compositor  = flag.String("compositor", "", "Compositing strategy: alpha or norm (default from config)")
	azim        = flag.Float64("azim", 0, "Camera azimuth in degrees")
	elev        = flag.Float64("elev", 10, "Camera elevation in degrees")
	dist        = flag.Float64("dist", 2, "Camera distance from the look-at target")
	size        = flag.Int("size", 0, "Output image size in pixels (default from config)")
	radius      = flag.Float64("radius", 0, "Point footprint radius in NDC units (default from config)")
	exportPCD   = flag.String("export-pcd", "", "Also export the loaded cloud as a .pcd file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("snapshot %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *dataSource == "" {
		log.Fatal("-data is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("snapshot failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg := config.EmptyRenderConfig()
	if *configPath != "" {
		loaded, err := config.LoadRenderConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	path := *dataSource
	if fetch.IsURL(path) {
		local := fetch.LocalPath(path, *cacheDir)
		if err := fetch.Fetch(ctx, httputil.NewStandardClient(nil), path, local); err != nil {
			return err
		}
		path = local
	}

	c, err := cloud.FromArchive(path)
	if err != nil {
		return err
	}
	log.Printf("loaded %d points from %s", c.Len(), path)

	if *exportPCD != "" {
		written, err := c.WritePCD(*exportPCD)
		if err != nil {
			return err
		}
		log.Printf("exported point cloud to %s", written)
	}

	set := explicitFlags(flag.CommandLine)
	cam, err := camera.LookAtFromAngles(
		pick("dist", set, *dist, cfg.GetCameraDistance()),
		pick("elev", set, *elev, cfg.GetCameraElevation()),
		pick("azim", set, *azim, cfg.GetCameraAzimuth()),
		cfg.GetLookAt(), cfg.GetOrthoScale())
	if err != nil {
		return err
	}

	name := *compositor
	if name == "" {
		name = cfg.GetCompositor()
	}
	comp, err := composite.ForName(name, composite.Background(cfg.GetBackground()))
	if err != nil {
		return err
	}

	settings := raster.Settings{
		ImageSize:      cfg.GetImageSize(),
		Radius:         cfg.GetPointRadius(),
		PointsPerPixel: cfg.GetPointsPerPixel(),
	}
	if *size > 0 {
		settings.ImageSize = *size
	}
	if *radius > 0 {
		settings.Radius = *radius
	}

	rnd, err := render.New(settings, comp)
	if err != nil {
		return err
	}

	img, stats, err := rnd.Render(ctx, c, cam)
	if err != nil {
		return err
	}

	if err := render.WritePNG(*outPath, img); err != nil {
		return err
	}
	log.Printf("wrote %dx%d image to %s (%s compositing, %d/%d pixels covered, %s)",
		settings.ImageSize, settings.ImageSize, *outPath, comp.Name(),
		stats.OccupiedPixels, settings.ImageSize*settings.ImageSize, stats.Duration)
	return nil
}

// explicitFlags reports which flags were set on the command line, so a flag
// passed with its default value still counts as set.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// pick prefers an explicitly set flag value over the config value.
func pick(name string, set map[string]bool, flagVal, cfgVal float64) float64 {
	if set[name] {
		return flagVal
	}
	return cfgVal
}
