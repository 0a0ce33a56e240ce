// Command trackgif renders a complete ground-track run to an animated GIF
// offline: positions come from SGP4 and the animation clock is driven by hand,
// so a one-hour track takes as long as it takes to draw, not an hour.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"groundtrack/pkg/basemap"
	"groundtrack/pkg/canvas"
	"groundtrack/pkg/config"
	"groundtrack/pkg/export"
	"groundtrack/pkg/geo"
	"groundtrack/pkg/model"
	"groundtrack/pkg/source"
	"groundtrack/pkg/track"
)

type options struct {
	configPath string
	tlePath    string
	landPath   string
	ids        string
	start      string
	duration   time.Duration
	out        string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Config file for map and animation settings (defaults when empty)")
	flag.StringVar(&o.tlePath, "tle", "", "Path to a TLE file")
	flag.StringVar(&o.landPath, "land", "", "Landmass file (.shp, TopoJSON or GeoJSON); graticule only when empty")
	flag.StringVar(&o.ids, "ids", "", "Comma separated catalog ids; every object in the TLE file when empty")
	flag.StringVar(&o.start, "start", "", "First sample time, RFC 3339 (now when empty)")
	flag.DurationVar(&o.duration, "duration", 90*time.Minute, "Length of the track")
	flag.StringVar(&o.out, "out", "track.gif", "Output GIF")
	flag.Parse()

	if o.tlePath == "" {
		flag.Usage()
		log.Fatal("-tle is required")
	}

	frames, err := run(context.Background(), o)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %d frames to %s\n", frames, o.out)
}

func run(ctx context.Context, o options) (int, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return 0, fmt.Errorf("failed to load config: %w", err)
		}
	}

	start := time.Now().UTC()
	if o.start != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, o.start); err != nil {
			return 0, fmt.Errorf("invalid -start: %w", err)
		}
	}

	tles, err := source.LoadTLEFile(o.tlePath)
	if err != nil {
		return 0, err
	}
	src := source.NewSGP4(tles, func() time.Time { return start })

	ids := strings.Split(o.ids, ",")
	if strings.TrimSpace(o.ids) == "" {
		ids = src.IDs()
		slices.Sort(ids)
	}
	sel := model.NewSelection(ids)
	series, err := source.FetchAll(ctx, src, sel, source.Observer{Duration: o.duration})
	if err != nil {
		return 0, err
	}

	m := cfg.Map
	adapter := geo.NewAdapter(geo.NewProjection(geo.ProjectorByName(m.Projection), m.Scale, m.Width, m.Height), m.Resample)
	base := canvas.NewRaster(m.Width, m.Height)
	overlay := canvas.NewRaster(m.Width, m.Height)

	var land []*geojson.Feature
	if o.landPath != "" {
		if land, err = geo.LoadLandFile(o.landPath, m.LandObject); err != nil {
			return 0, err
		}
	}
	basemap.NewRenderer(adapter, base, basemap.DefaultStyle()).Render(land)

	sched := track.NewManualScheduler(start)
	anim := track.NewAnimator(animatorConfig(cfg), adapter, overlay, sched)
	rec := export.NewRecorder(base, overlay, export.Options{
		MaxFrames: cfg.Export.MaxFrames,
		Delay:     time.Duration(cfg.Export.Delay),
	})
	anim.OnFrame(rec.OnFrame)

	res, err := anim.Start(series)
	if err != nil {
		return 0, err
	}
	if res != track.Started {
		return 0, fmt.Errorf("run not started: %s", res)
	}

	// One tick per frame; the run stops its own timer when the cursor passes the end.
	ticks := sched.RunUntilIdle(model.MaxLen(series) + 1)
	slog.Debug("Offline run finished", "ticks", ticks, "dropped", rec.Dropped())

	if err := rec.Save(o.out); err != nil {
		return 0, err
	}
	return rec.Len(), nil
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
