package model

import (
	"strings"
	"unicode"

	"groundtrack/pkg/geo"
)

// ObjectInfo identifies a tracked object. It does not change during a run.
type ObjectInfo struct {
	ID   string `json:"id"`   // Catalog number (NORAD id)
	Name string `json:"name"` // Display name, e.g. "STARLINK-1234"
}

// Series is the ordered ground track of one object, one sample per simulated second.
// Samples with missing coordinates are kept in place as invalid points.
type Series struct {
	Info      ObjectInfo  `json:"info"`
	Positions []geo.Point `json:"positions"`
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Positions)
}

// ValidCount returns how many samples carry usable coordinates.
func (s Series) ValidCount() int {
	n := 0
	for _, p := range s.Positions {
		if p.Valid() {
			n++
		}
	}
	return n
}

// ValidCount returns the number of usable samples across all series.
func ValidCount(series []Series) int {
	n := 0
	for _, s := range series {
		n += s.ValidCount()
	}
	return n
}

// MaxLen returns the length of the longest series.
func MaxLen(series []Series) int {
	m := 0
	for _, s := range series {
		if s.Len() > m {
			m = s.Len()
		}
	}
	return m
}

// LabelFor derives the short marker label for a display name: its digits,
// or the trimmed name when it has none.
func LabelFor(name string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
	if digits != "" {
		return digits
	}
	return strings.TrimSpace(name)
}

// Selection is a deduplicated list of object ids in the order they were chosen.
type Selection []string

// NewSelection drops blanks and repeats while keeping first-seen order.
func NewSelection(ids []string) Selection {
	seen := make(map[string]bool, len(ids))
	out := make(Selection, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
