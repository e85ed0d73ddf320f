// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/civicmap/civicmap/spatial"
)

// GeocodingResult represents a geocoding result from any provider.
type GeocodingResult struct {
	Point       spatial.Point
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder interface for different geocoding providers.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*GeocodingResult, error)
}

// GeocodeQuery builds the free-text address of a complaint known only by
// name, most specific part first. Empty and repeated parts are skipped.
func GeocodeQuery(l *Location, region string) string {
	parts := make([]string, 0, 5)
	seen := make(map[string]bool)

	for _, p := range []string{l.Locality, l.City, l.District, region, "India"} {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)

		if p == "" || seen[key] {
			continue
		}

		seen[key] = true
		parts = append(parts, p)
	}

	return strings.Join(parts, ", ")
}

// GeocodeStats summarizes a GeocodeMissing run.
type GeocodeStats struct {
	Total    int
	Geocoded int
	Failed   int
}

// GeocodeMissing fills the coordinates of stored complaints that have none.
// Failures of single complaints are collected and returned joined; rate limit
// and quota errors stop the run since every following request would fail too.
func GeocodeMissing(ctx context.Context, repo LocationRepository, geocoder Geocoder, region string) (GeocodeStats, error) {
	var stats GeocodeStats

	missing, err := repo.ListMissingCoordinates()
	if err != nil {
		return stats, fmt.Errorf("listing locations without coordinates: %w", err)
	}

	stats.Total = len(missing)

	var errs []error

	for _, l := range missing {
		if err := ctx.Err(); err != nil {
			return stats, errors.Join(append(errs, err)...)
		}

		query := GeocodeQuery(l, region)

		result, err := geocoder.Geocode(ctx, query)
		if err != nil {
			stats.Failed++

			if IsRateLimitError(err) || IsQuotaExceededError(err) {
				log.Printf("Geocoding aborted at %s: %v", l.ID, err)

				return stats, errors.Join(append(errs, fmt.Errorf("geocoding %s: %w", l.ID, err))...)
			}

			errs = append(errs, fmt.Errorf("geocoding %s (%q): %w", l.ID, query, err))

			continue
		}

		if err := repo.UpdateCoordinates(l.ID, result.Point); err != nil {
			stats.Failed++

			errs = append(errs, err)

			continue
		}

		stats.Geocoded++
	}

	return stats, errors.Join(errs...)
}
