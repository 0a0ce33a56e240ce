package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name:     "Success Probe",
			Check:    func(ctx context.Context) error { return nil },
			Critical: true,
		},
		{
			Name:  "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error { return errors.New("minor issue") },
		},
		{
			Name: "Slow Probe",
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			Timeout: 20 * time.Millisecond,
		},
	}

	results := Run(context.Background(), probes)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("Expected success probe to pass, got error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("Expected failure probe to fail, got nil")
	}
	if !errors.Is(results[2].Error, context.DeadlineExceeded) {
		t.Errorf("Expected slow probe to time out, got %v", results[2].Error)
	}
	for i, r := range results {
		if r.Probe.Name != probes[i].Name {
			t.Errorf("result %d is for %q", i, r.Probe.Name)
		}
	}
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name:    "All Pass",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}}},
		},
		{
			name:    "Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")}},
			wantErr: true,
		},
		{
			name:    "Non-Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1"}, Error: errors.New("fail")}},
		},
		{
			name: "Mixed Failure",
			results: []Result{
				{Probe: Probe{Name: "P1"}, Error: errors.New("fail")},
				{Probe: Probe{Name: "P2", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("AnalyzeResults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestChecks(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "stations.tle")
	empty := filepath.Join(dir, "empty.tle")
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		check   CheckFunc
		wantErr bool
	}{
		{"PingOK", Ping(fakePinger{}), false},
		{"PingFails", Ping(fakePinger{err: errors.New("locked")}), true},
		{"FileExists", FileExists(full), false},
		{"FileNotConfigured", FileExists(""), false},
		{"FileMissing", FileExists(filepath.Join(dir, "missing")), true},
		{"FileEmpty", FileExists(empty), true},
		{"FileIsDir", FileExists(dir), true},
		{"WritableCreatesDir", Writable(filepath.Join(dir, "export", "gifs")), false},
		{"WritableBlockedByFile", Writable(filepath.Join(full, "sub")), true},
		{"NonEmpty", NonEmpty(func() int { return 2 }, "none"), false},
		{"Empty", NonEmpty(func() int { return 0 }, "none"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "export", "gifs"))
	if len(entries) != 0 {
		t.Errorf("Writable left %d files behind", len(entries))
	}
}
