// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package hotspot

import (
	"github.com/civicmap/civicmap/spatial"
)

// View is the initial framing of a map.
type View struct {
	Center spatial.Point `json:"center"`
	Zoom   int           `json:"zoom"`
}

// FocusFor frames the map on the primary hotspot, zooming closer the denser
// it is. Without a hotspot the fallback view is returned.
func FocusFor(primary *Cluster, fallback View) View {
	if primary == nil || primary.Count() == 0 {
		return fallback
	}

	zoom := 10

	switch n := primary.Count(); {
	case n >= 5:
		zoom = 12
	case n >= 3:
		zoom = 11
	}

	return View{Center: primary.Center.Round(6), Zoom: zoom}
}

// Severity buckets clusters for display.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns the severity band for a cluster of count members.
func SeverityFor(count int) Severity {
	switch {
	case count >= 5:
		return SeverityHigh
	case count >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Color returns the fill colour the dashboard uses for the band.
func (s Severity) Color() string {
	switch s {
	case SeverityHigh:
		return "#ef4444"
	case SeverityMedium:
		return "#f97316"
	default:
		return "#3b82f6"
	}
}
