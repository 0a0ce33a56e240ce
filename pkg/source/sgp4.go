package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"groundtrack/pkg/geo"
	"groundtrack/pkg/model"
)

// TLE is one two-line element set with its optional title line.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// CatalogID returns the NORAD catalog number encoded in line 1.
func (t TLE) CatalogID() string {
	if len(t.Line1) < 7 {
		return ""
	}
	return strings.TrimLeft(strings.TrimSpace(t.Line1[2:7]), "0")
}

// tleLineLen is the fixed width of an element line.
const tleLineLen = 69

// ParseTLEs reads two- or three-line element sets. Blank lines are ignored.
func ParseTLEs(r io.Reader) ([]TLE, error) {
	var (
		out  []TLE
		name string
		l1   string
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), " \r")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, "1 "):
			if len(line) < tleLineLen {
				return nil, fmt.Errorf("line %d: element line too short", n)
			}
			l1 = line
		case strings.HasPrefix(line, "2 "):
			if l1 == "" {
				return nil, fmt.Errorf("line %d: line 2 without line 1", n)
			}
			if len(line) < tleLineLen {
				return nil, fmt.Errorf("line %d: element line too short", n)
			}
			out = append(out, TLE{Name: name, Line1: l1, Line2: line})
			name, l1 = "", ""
		default:
			name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTLEFile parses the element sets in path.
func LoadTLEFile(path string) ([]TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTLEs(f)
}

// SGP4 propagates element sets locally, without network access.
type SGP4 struct {
	mu   sync.RWMutex
	tles map[string]TLE
	now  func() time.Time
}

// NewSGP4 indexes tles by catalog id. now sets the first sample time; nil means time.Now.
func NewSGP4(tles []TLE, now func() time.Time) *SGP4 {
	if now == nil {
		now = time.Now
	}
	s := &SGP4{now: now}
	s.Replace(tles)
	return s
}

// Replace swaps in a new set of element sets, e.g. after the TLE file was refreshed.
func (s *SGP4) Replace(tles []TLE) {
	m := make(map[string]TLE, len(tles))
	for _, t := range tles {
		m[t.CatalogID()] = t
	}
	s.mu.Lock()
	s.tles = m
	s.mu.Unlock()
}

// IDs lists the known catalog ids.
func (s *SGP4) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tles))
	for id := range s.tles {
		ids = append(ids, id)
	}
	return ids
}

// Positions implements PositionSource with one sample per second from now.
// The observer location does not affect a ground track and is ignored.
func (s *SGP4) Positions(ctx context.Context, id string, obs Observer) (model.Series, error) {
	s.mu.RLock()
	tle, ok := s.tles[strings.TrimLeft(strings.TrimSpace(id), "0")]
	s.mu.RUnlock()
	if !ok {
		return model.Series{}, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return model.Series{}, fmt.Errorf("invalid element set for %s: %s", id, sat.ErrorStr)
	}

	name := tle.Name
	if name == "" {
		name = tle.CatalogID()
	}
	series := model.Series{
		Info:      model.ObjectInfo{ID: tle.CatalogID(), Name: name},
		Positions: make([]geo.Point, obs.Seconds()),
	}
	start := s.now().UTC().Truncate(time.Second)
	for i := range series.Positions {
		if i%600 == 0 && ctx.Err() != nil {
			return model.Series{}, ctx.Err()
		}
		series.Positions[i] = subPoint(sat, start.Add(time.Duration(i)*time.Second))
	}
	return series, nil
}

// subPoint returns the point on the ground directly below sat at t.
func subPoint(sat satellite.Satellite, t time.Time) geo.Point {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return geo.Missing()
	}
	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, sec)
	_, _, ll := satellite.ECIToLLA(pos, gmst)

	lat := ll.Latitude * 180 / math.Pi
	lon := geo.NormalizeAngle(ll.Longitude * 180 / math.Pi)
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return geo.Missing()
	}
	return geo.Point{Lat: lat, Lon: lon}
}
