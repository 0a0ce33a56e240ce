// Package watcher polls a data file and reports when it was replaced, so
// refreshed element sets are picked up without a restart.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Service watches one file by modification time and size.
type Service struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
}

// NewService starts watching path. The file's current state is the baseline;
// a file that does not exist yet is reported once it appears.
func NewService(path string) *Service {
	s := &Service{path: path}
	if info, err := os.Stat(path); err == nil {
		s.modTime, s.size = info.ModTime(), info.Size()
	} else {
		slog.Warn("Watcher: file does not exist yet", "path", path)
	}
	return s
}

// CheckChanged reports whether the file changed since the previous call.
func (s *Service) CheckChanged() bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return false
	}
	s.modTime, s.size = info.ModTime(), info.Size()
	slog.Info("Watcher: file changed", "path", s.path, "size", s.size)
	return true
}

// Run polls every interval until ctx is done, calling onChange after each change.
func (s *Service) Run(ctx context.Context, interval time.Duration, onChange func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.CheckChanged() {
				onChange()
			}
		}
	}
}
