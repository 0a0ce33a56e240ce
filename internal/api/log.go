package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"groundtrack/pkg/logging"
)

// maxStatusValue drops attributes such as run ids and URLs from the status line.
const maxStatusValue = 20

var attrPattern = regexp.MustCompile(`([\w\-.]+)=(?:"([^"]*)"|(\S+))`)

// LatestLog is the body of GET /api/log/latest.
type LatestLog struct {
	Log   string `json:"log"`
	Event string `json:"event"`
}

// handleLatestLog serves the newest server log line as a status line, plus the
// newest run event.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(LatestLog{
		Log:   statusLine(logging.GlobalLogCapture.GetLastLine()),
		Event: logging.GlobalEventCapture.GetLastLine(),
	})
	if err != nil {
		slog.Error("Failed to write log response", "error", err)
	}
}

// statusLine turns a slog text record into "15:04:05 message (k=v, ...)".
// Lines that are not key=value records come back unchanged.
func statusLine(raw string) string {
	var clock, msg string
	var attrs []string
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], strings.TrimSpace(m[2]+m[3])
		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format(time.TimeOnly)
			}
		case "msg":
			msg = val
		case "level":
		default:
			if len(val) <= maxStatusValue {
				attrs = append(attrs, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	var b strings.Builder
	if clock != "" {
		b.WriteString(clock)
		b.WriteByte(' ')
	}
	b.WriteString(msg)
	if len(attrs) > 0 {
		sort.Strings(attrs)
		b.WriteString(" (")
		b.WriteString(strings.Join(attrs, ", "))
		b.WriteByte(')')
	}
	return b.String()
}
