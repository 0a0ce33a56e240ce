package logging

import "log/slog"

// EnableTrace turns on per-tick logging. Off by default: a running animation
// would otherwise log every frame.
var EnableTrace = false

// Trace logs at DEBUG level, but only when EnableTrace is set.
// A nil logger means slog.Default().
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !EnableTrace {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug(msg, args...)
}
