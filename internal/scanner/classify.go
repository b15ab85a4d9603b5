package scanner

import "strings"

const (
	DefaultFoundMarker   = "FOUND"
	DefaultOKMarker      = "OK"
	DefaultSummaryBanner = "----------- SCAN SUMMARY -----------"
)

// Markers are the substrings that identify engine output lines.
type Markers struct {
	Found         string
	OK            string
	SummaryBanner string
}

// DefaultMarkers returns the markers printed by clamscan.
func DefaultMarkers() Markers {
	return Markers{
		Found:         DefaultFoundMarker,
		OK:            DefaultOKMarker,
		SummaryBanner: DefaultSummaryBanner,
	}
}

// withDefaults fills any empty marker from DefaultMarkers. An empty
// marker would otherwise match every line.
func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.Found == "" {
		m.Found = d.Found
	}
	if m.OK == "" {
		m.OK = d.OK
	}
	if m.SummaryBanner == "" {
		m.SummaryBanner = d.SummaryBanner
	}
	return m
}

// Classification is the result of matching one output line. The three
// flags are independent; a single line may set any combination.
type Classification struct {
	Detection    bool
	SummaryStart bool
	Verdict      bool
}

// Classify matches line against each marker.
func (m Markers) Classify(line string) Classification {
	m = m.withDefaults()
	return Classification{
		Detection:    strings.Contains(line, m.Found),
		SummaryStart: strings.Contains(line, m.SummaryBanner),
		Verdict:      strings.Contains(line, m.OK),
	}
}
