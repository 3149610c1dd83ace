package invoker

import "strings"

// Selection names a strategy for picking the authoritative output line.
type Selection string

const (
	// SelectLastLine keeps the last non-blank line.
	SelectLastLine Selection = "last_line"
	// SelectFirstMarker keeps the first line that carries a marker.
	SelectFirstMarker Selection = "first_marker"
)

// selector consumes output lines in order and yields at most one.
type selector interface {
	observe(line string)
	selected() (string, bool)
}

func newSelector(s Selection, markers []string) selector {
	if s == SelectFirstMarker {
		return &firstMarkerSelector{markers: markers}
	}
	return &lastLineSelector{}
}

type lastLineSelector struct {
	line string
	ok   bool
}

func (s *lastLineSelector) observe(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	s.line = line
	s.ok = true
}

func (s *lastLineSelector) selected() (string, bool) {
	return s.line, s.ok
}

type firstMarkerSelector struct {
	markers []string
	line    string
	ok      bool
}

func (s *firstMarkerSelector) observe(line string) {
	if s.ok || strings.TrimSpace(line) == "" {
		return
	}
	if HasMarker(line, s.markers) {
		s.line = line
		s.ok = true
	}
}

func (s *firstMarkerSelector) selected() (string, bool) {
	return s.line, s.ok
}
