// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"encoding/json"
	"testing"

	"github.com/civicmap/civicmap/hotspot"
	"github.com/civicmap/civicmap/spatial"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jharkhand = spatial.Bounds{MinLat: 21.95, MaxLat: 25.35, MinLng: 83.30, MaxLng: 87.95}

func TestPartition(t *testing.T) {
	locations := []*Location{
		located("a", 1, spatial.Point{Lat: 23.3441, Lng: 85.3096}, "Ranchi", "Lalpur"),
		located("b", 2, spatial.Point{Lat: 28.6139, Lng: 77.2090}, "Delhi", "Connaught Place"),
		{ID: "c", Seq: 3, District: "Dhanbad", City: "Dhanbad", Locality: "Hirapur"},
	}

	records, places, outside := Partition(locations, jharkhand)

	wantRecords := []hotspot.Record{{
		ID:       "a",
		Point:    spatial.Point{Lat: 23.3441, Lng: 85.3096},
		District: "Ranchi",
		City:     "Ranchi",
		Locality: "Lalpur",
	}}
	if diff := cmp.Diff(wantRecords, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	wantPlaces := []hotspot.Place{{ID: "c", District: "Dhanbad", City: "Dhanbad", Locality: "Hirapur"}}
	if diff := cmp.Diff(wantPlaces, places); diff != "" {
		t.Errorf("places mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, outside)
}

func TestPartitionWithoutBounds(t *testing.T) {
	locations := []*Location{
		located("b", 2, spatial.Point{Lat: 28.6139, Lng: 77.2090}, "Delhi", "Connaught Place"),
	}

	records, places, outside := Partition(locations, spatial.Bounds{})
	assert.Len(t, records, 1)
	assert.Empty(t, places)
	assert.Zero(t, outside)
}

func TestLocationJSON(t *testing.T) {
	var l Location
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "x",
		"subCategory": "Garbage",
		"submissionDate": "2025-01-10T08:30:00.000Z",
		"latitude": 23.5,
		"longitude": null
	}`), &l))

	assert.Equal(t, "Garbage", l.SubCategory)
	assert.Equal(t, "2025-01-10T08:30:00.000Z", l.SubmissionDate)

	_, ok := l.Point()
	assert.False(t, ok, "a single coordinate is not a point")

	l.SetPoint(spatial.Point{Lat: 1, Lng: 2})

	p, ok := l.Point()
	require.True(t, ok)
	assert.Equal(t, spatial.Point{Lat: 1, Lng: 2}, p)
}
