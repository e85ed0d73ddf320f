// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package hotspot

import (
	"testing"

	"github.com/civicmap/civicmap/spatial"
	"github.com/stretchr/testify/assert"
)

func TestFocusFor(t *testing.T) {
	fallback := View{Center: spatial.Point{Lat: 23.233236, Lng: 85.964145}, Zoom: 8}

	clusterOf := func(n int) *Cluster {
		records := make([]Record, n)
		for i := range records {
			records[i] = Record{Point: spatial.Point{Lat: 23.34411234, Lng: 85.30961234}}
		}

		return Default().Cluster(records)[0]
	}

	tests := []struct {
		name    string
		primary *Cluster
		want    int
	}{
		{"single complaint", clusterOf(1), 10},
		{"two complaints", clusterOf(2), 10},
		{"three complaints", clusterOf(3), 11},
		{"five complaints", clusterOf(5), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := FocusFor(tt.primary, fallback)
			assert.Equal(t, tt.want, view.Zoom)
			assert.Equal(t, spatial.Point{Lat: 23.344112, Lng: 85.309612}, view.Center)
		})
	}

	assert.Equal(t, fallback, FocusFor(nil, fallback))
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		count int
		want  Severity
		color string
	}{
		{1, SeverityLow, "#3b82f6"},
		{2, SeverityMedium, "#f97316"},
		{4, SeverityMedium, "#f97316"},
		{5, SeverityHigh, "#ef4444"},
		{40, SeverityHigh, "#ef4444"},
	}

	for _, tt := range tests {
		got := SeverityFor(tt.count)
		assert.Equal(t, tt.want, got, "count %d", tt.count)
		assert.Equal(t, tt.color, got.Color())
	}
}
