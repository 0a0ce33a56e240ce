// Package probe runs the startup checks: the cache database answers, the
// configured data files exist, output directories are writable.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultTimeout = 5 * time.Second

// CheckFunc returns nil when the check passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool          // a failure prevents startup
	Timeout  time.Duration // per check; defaults to 5s
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes probes concurrently. Results keep the order of probes.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(cctx)
			results[i] = Result{Probe: p, Error: err, Duration: time.Since(start)}
		}()
	}
	wg.Wait()
	return results
}

// AnalyzeResults logs every result and joins the errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")
	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		switch {
		case r.Error == nil:
			slog.Info(msg)
		case r.Probe.Critical:
			slog.Error(msg, "error", r.Error)
			criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		default:
			slog.Warn(msg, "error", r.Error)
		}
	}
	return errors.Join(criticalErrors...)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping checks that a database connection answers.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.PingContext(ctx)
	}
}

// FileExists checks that path names a readable, non-empty regular file.
// An empty path passes: the feature is simply not configured.
func FileExists(path string) CheckFunc {
	return func(context.Context) error {
		if path == "" {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", path)
		}
		return nil
	}
}

// Writable checks that files can be created in dir, creating it if needed.
func Writable(dir string) CheckFunc {
	return func(context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}

// NonEmpty fails with msg when count returns zero.
func NonEmpty(count func() int, msg string) CheckFunc {
	return func(context.Context) error {
		if count() == 0 {
			return errors.New(msg)
		}
		return nil
	}
}
