package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"groundtrack/internal/api"
	"groundtrack/pkg/basemap"
	"groundtrack/pkg/cache"
	"groundtrack/pkg/canvas"
	"groundtrack/pkg/config"
	"groundtrack/pkg/db"
	"groundtrack/pkg/export"
	"groundtrack/pkg/geo"
	"groundtrack/pkg/logging"
	"groundtrack/pkg/observability"
	"groundtrack/pkg/probe"
	"groundtrack/pkg/request"
	"groundtrack/pkg/source"
	"groundtrack/pkg/track"
	"groundtrack/pkg/tracker"
	"groundtrack/pkg/version"
	"groundtrack/pkg/watcher"
)

const (
	defaultConfigPath = "configs/groundtrack.yaml"
	tleWatchInterval  = 30 * time.Second
)

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("groundtrack started", "version", version.Version, "provider", appCfg.Source.Provider)

	dbConn, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	tr := tracker.New()
	reqClient := request.NewWithOptions(cache.NewSQLiteCache(dbConn), tr, request.Options{
		Timeout:     time.Duration(appCfg.Request.Timeout),
		MaxAttempts: appCfg.Request.Retries,
		BaseDelay:   time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:    time.Duration(appCfg.Request.Backoff.MaxDelay),
		SafetyGap:   time.Duration(appCfg.Request.SafetyGap),
	})

	src, err := newPositionSource(ctx, appCfg, reqClient)
	if err != nil {
		return err
	}

	// Surfaces
	m := appCfg.Map
	proj := geo.NewProjection(geo.ProjectorByName(m.Projection), m.Scale, m.Width, m.Height)
	adapter := geo.NewAdapter(proj, m.Resample)
	base := canvas.NewRaster(m.Width, m.Height)
	overlay := canvas.NewRaster(m.Width, m.Height)
	renderer := basemap.NewRenderer(adapter, base, basemap.DefaultStyle())

	land := &geo.LandSet{}
	landLoader := source.NewLand(reqClient, appCfg.Source.LandURL, appCfg.Source.LandPath, m.LandObject)
	initBaseMap(ctx, landLoader, land, renderer)

	if err := probe.AnalyzeResults(probe.Run(ctx, startupProbes(appCfg, dbConn, land))); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		observability.NewTrackerCollector(tr),
	)
	metrics, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Animation
	hint := &api.Hint{}
	anim := track.NewAnimator(animatorConfig(appCfg), adapter, overlay, track.NewTickerScheduler(),
		track.WithHint(hint.Set),
		track.WithMetrics(metrics),
		track.WithLogger(slog.With("component", "animator")),
	)
	defer anim.Abort()

	stream := api.NewStreamHandler()
	anim.OnFrame(stream.Publish)
	anim.OnFrame(logFinishedRun)

	var rec api.Recording
	if appCfg.Export.Enabled {
		r := export.NewRecorder(base, overlay, export.Options{
			Dir:       appCfg.Export.Dir,
			MaxFrames: appCfg.Export.MaxFrames,
			Delay:     time.Duration(appCfg.Export.Delay),
		})
		anim.OnFrame(r.OnFrame)
		rec = r
		slog.Info("GIF export enabled", "dir", appCfg.Export.Dir)
	}

	observer := source.Observer{
		Lat:       appCfg.Observer.Lat,
		Lon:       appCfg.Observer.Lon,
		Elevation: appCfg.Observer.Elevation.Meters(),
		Duration:  time.Duration(appCfg.Observer.Duration),
	}

	// Server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, api.Handlers{
		Track:   api.NewTrackHandler(anim, src, hint, observer),
		Map:     api.NewMapHandler(base, overlay, renderer, land, landLoader, rec),
		Hint:    hint,
		Stream:  stream,
		Stats:   api.NewStatsHandler(tr, anim.Colors(), stream),
		Metrics: metrics,
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func initDB(appCfg *config.Config) (*db.DB, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if ttl := time.Duration(appCfg.DB.CacheTTL); ttl > 0 {
		n, err := dbConn.PruneCache(ttl)
		if err != nil {
			slog.Warn("Cache prune failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned stale cache entries", "count", n)
		}
	}
	return dbConn, nil
}

func newPositionSource(ctx context.Context, cfg *config.Config, client *request.Client) (source.PositionSource, error) {
	switch cfg.Source.Provider {
	case "sgp4":
		path := cfg.Source.TLEFile
		tles, err := source.LoadTLEFile(path)
		if err != nil {
			return nil, err
		}
		s := source.NewSGP4(tles, time.Now)
		slog.Info("Offline propagation enabled", "tle_file", path, "objects", len(s.IDs()))

		// Element sets age quickly; pick up a refreshed file without a restart.
		go watcher.NewService(path).Run(ctx, tleWatchInterval, func() {
			tles, err := source.LoadTLEFile(path)
			if err != nil {
				slog.Warn("TLE reload failed, keeping previous sets", "error", err)
				return
			}
			s.Replace(tles)
			slog.Info("TLE file reloaded", "objects", len(tles))
		})
		return s, nil
	default:
		return source.NewN2YO(client, cfg.Source.BaseURL, cfg.Source.APIKey), nil
	}
}

// initBaseMap draws the land once at startup. A failed load leaves the static
// surface blank; POST /api/map/reload does the first draw once data is reachable.
func initBaseMap(ctx context.Context, loader *source.Land, land *geo.LandSet, renderer *basemap.Renderer) {
	loadCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := loader.LoadInto(loadCtx, land); err != nil {
		slog.Warn("Land data unavailable, no base map drawn", "error", err)
		return
	}
	renderer.Sync(land)
}

func startupProbes(cfg *config.Config, dbConn *db.DB, land *geo.LandSet) []probe.Probe {
	probes := []probe.Probe{
		{Name: "Cache database", Check: probe.Ping(dbConn), Critical: true},
		{
			Name: "Land data",
			Check: probe.NonEmpty(func() int {
				features, _ := land.Features()
				return len(features)
			}, "no land features loaded"),
		},
	}
	switch cfg.Source.Provider {
	case "sgp4":
		probes = append(probes, probe.Probe{Name: "TLE file", Check: probe.FileExists(cfg.Source.TLEFile), Critical: true})
	default:
		probes = append(probes, probe.Probe{
			Name:  "N2YO API key",
			Check: probe.NonEmpty(func() int { return len(cfg.Source.APIKey) }, "no API key; set "+config.EnvAPIKey),
		})
	}
	if cfg.Export.Enabled {
		probes = append(probes, probe.Probe{Name: "Export directory", Check: probe.Writable(cfg.Export.Dir), Critical: true})
	}
	return probes
}

func animatorConfig(cfg *config.Config) track.Config {
	ac := track.DefaultConfig()
	a := cfg.Animation
	ac.TickInterval = time.Duration(a.Tick)
	ac.Acceleration = a.Acceleration
	ac.CursorStep = a.CursorStep
	ac.MarkerRadius = a.MarkerRadius
	ac.LabelOffset = a.LabelOffset
	if a.ClockFormat != "" {
		ac.ClockFormat = a.ClockFormat
	}
	return ac
}

func logFinishedRun(f track.Frame) {
	if !f.Final {
		return
	}
	ids := make([]string, 0, len(f.Markers))
	for _, m := range f.Markers {
		ids = append(ids, m.Label)
	}
	logging.LogEvent(logging.Event{
		Type:    "run",
		Title:   "Run completed",
		Summary: fmt.Sprintf("%d frames, %d samples (%s)", f.Tick+1, f.Length, strings.Join(ids, ", ")),
	})
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if logging.RequestLogger != nil {
			logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}
