// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package complaints fetches, stores and geocodes the locations of citizen
// complaints.
package complaints

import (
	"github.com/civicmap/civicmap/hotspot"
	"github.com/civicmap/civicmap/spatial"
)

// Location is a complaint as returned by the complaints backend location feed.
type Location struct {
	ID             string   `json:"id"`
	Seq            int64    `json:"seq"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	SubCategory    string   `json:"subCategory"`
	Status         string   `json:"status"`
	Urgency        string   `json:"urgency"`
	SubmissionDate string   `json:"submissionDate"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	District       string   `json:"district"`
	City           string   `json:"city"`
	Locality       string   `json:"locality"`
	Pin            string   `json:"pin"`
	H3Cell         int64    `json:"-"`
}

// Point returns the coordinates of the complaint, if both are known.
func (l *Location) Point() (spatial.Point, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return spatial.Point{}, false
	}

	return spatial.Point{Lat: *l.Latitude, Lng: *l.Longitude}, true
}

// SetPoint sets both coordinates.
func (l *Location) SetPoint(p spatial.Point) {
	lat, lng := p.Lat, p.Lng
	l.Latitude = &lat
	l.Longitude = &lng
}

func (l *Location) place() hotspot.Place {
	return hotspot.Place{
		ID:       l.ID,
		District: l.District,
		City:     l.City,
		Locality: l.Locality,
	}
}

// Partition splits locations into records that can be clustered, places
// known only by name, and the number of located complaints outside bounds.
// A zero bounds accepts every coordinate.
func Partition(locations []*Location, bounds spatial.Bounds) ([]hotspot.Record, []hotspot.Place, int) {
	records := make([]hotspot.Record, 0, len(locations))
	places := make([]hotspot.Place, 0)
	outside := 0

	for _, l := range locations {
		p, ok := l.Point()
		if !ok {
			places = append(places, l.place())

			continue
		}

		if !bounds.IsZero() && !bounds.Contains(p) {
			outside++

			continue
		}

		records = append(records, hotspot.Record{
			ID:       l.ID,
			Point:    p,
			District: l.District,
			City:     l.City,
			Locality: l.Locality,
		})
	}

	return records, places, outside
}
