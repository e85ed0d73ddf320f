// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package hotspot groups geo-tagged complaints into non-overlapping density
// circles for map overlays and picks the densest one to frame the map.
package hotspot

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/civicmap/civicmap/spatial"
)

// UnknownDistrict labels members without a district.
const UnknownDistrict = "Unknown"

// MaxPrecision is the largest seeding precision. Finer keys stop being
// representable once coordinates are scaled past 10^18.
const MaxPrecision = 10

// Options tunes the clustering heuristics.
type Options struct {
	// Precision is the number of decimal places coordinates are rounded to
	// when seeding clusters (3 is roughly 111m at the equator).
	Precision int `yaml:"precision"`

	// BaseRadiusMeters is the display radius of an empty cluster.
	BaseRadiusMeters float64 `yaml:"base_radius_meters"`

	// PerMemberRadiusMeters is added to the display radius for every member.
	PerMemberRadiusMeters float64 `yaml:"per_member_radius_meters"`
}

// DefaultOptions returns the options used by the admin heat map.
func DefaultOptions() Options {
	return Options{
		Precision:             3,
		BaseRadiusMeters:      1000,
		PerMemberRadiusMeters: 500,
	}
}

// RadiusFor returns the display radius in meters for a cluster of count members.
func (o Options) RadiusFor(count int) float64 {
	return float64(count)*o.PerMemberRadiusMeters + o.BaseRadiusMeters
}

// Validate reports options the clusterer cannot honour.
func (o Options) Validate() error {
	var errs []error

	if o.Precision < 0 || o.Precision > MaxPrecision {
		errs = append(errs, fmt.Errorf("precision %d outside 0..%d", o.Precision, MaxPrecision))
	}

	if o.BaseRadiusMeters < 0 || o.PerMemberRadiusMeters < 0 {
		errs = append(errs, errors.New("radii must not be negative"))
	}

	return errors.Join(errs...)
}

// Record is a complaint with known coordinates.
type Record struct {
	ID       string        `json:"id"`
	Point    spatial.Point `json:"point"`
	District string        `json:"district"`
	City     string        `json:"city"`
	Locality string        `json:"locality"`
}

// Cluster is a group of records drawn as a single circle.
type Cluster struct {
	Center   spatial.Point
	Members  []Record
	District string

	options Options
}

// Count returns the number of members.
func (c *Cluster) Count() int {
	return len(c.Members)
}

// DisplayRadiusMeters returns the heuristic circle radius for the cluster.
func (c *Cluster) DisplayRadiusMeters() float64 {
	return c.options.RadiusFor(len(c.Members))
}

// MemberIDs returns the ids of the members in membership order.
func (c *Cluster) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}

	return ids
}

// overlaps reports whether the display circles of both clusters touch.
func (c *Cluster) overlaps(other *Cluster) bool {
	return c.Center.HaversineDistance(&other.Center) <= c.DisplayRadiusMeters()+other.DisplayRadiusMeters()
}

// absorb moves the members of other into c and recomputes the derived fields.
func (c *Cluster) absorb(other *Cluster) {
	c.Members = append(c.Members, other.Members...)
	c.refresh()
}

func (c *Cluster) refresh() {
	c.Center = meanPoint(c.Members)
	c.District = modeDistrict(c.Members)
}

// Clusterer merges records into hotspots. It holds no state between calls.
type Clusterer struct {
	options Options
}

// New returns a Clusterer using the given options. Precision is clamped to
// 0..MaxPrecision and negative radii to zero.
func New(options Options) *Clusterer {
	options.Precision = min(max(options.Precision, 0), MaxPrecision)
	options.BaseRadiusMeters = max(options.BaseRadiusMeters, 0)
	options.PerMemberRadiusMeters = max(options.PerMemberRadiusMeters, 0)

	return &Clusterer{options: options}
}

// Options returns the options the clusterer was built with.
func (c *Clusterer) Options() Options {
	return c.options
}

type cellKey struct {
	lat, lng int64
}

// Cluster seeds one cluster per rounded coordinate and then merges clusters
// whose display circles overlap until none do. The result order follows the
// first appearance of each seed in records.
func (c *Clusterer) Cluster(records []Record) []*Cluster {
	clusters := c.seed(records)

	for {
		i, j, found := findOverlap(clusters)
		if !found {
			break
		}

		clusters[i].absorb(clusters[j])
		clusters = slices.Delete(clusters, j, j+1)
	}

	return clusters
}

// FindPrimaryHotspot returns the cluster with the most members, or nil when
// records is empty.
func (c *Clusterer) FindPrimaryHotspot(records []Record) *Cluster {
	return Primary(c.Cluster(records))
}

// Primary returns the cluster with the most members, or nil for no clusters.
// Ties go to the cluster that appears first.
func Primary(clusters []*Cluster) *Cluster {
	var primary *Cluster

	for _, c := range clusters {
		if primary == nil || c.Count() > primary.Count() {
			primary = c
		}
	}

	return primary
}

func (c *Clusterer) seed(records []Record) []*Cluster {
	scale := math.Pow(10, float64(c.options.Precision))
	index := make(map[cellKey]*Cluster, len(records))
	clusters := make([]*Cluster, 0, len(records))

	for _, r := range records {
		key := cellKey{
			lat: int64(math.Round(r.Point.Lat * scale)),
			lng: int64(math.Round(r.Point.Lng * scale)),
		}

		cl, ok := index[key]
		if !ok {
			cl = &Cluster{options: c.options}
			index[key] = cl
			clusters = append(clusters, cl)
		}

		cl.Members = append(cl.Members, r)
	}

	for _, cl := range clusters {
		cl.refresh()
	}

	return clusters
}

// findOverlap returns the first pair (i < j) of overlapping clusters.
func findOverlap(clusters []*Cluster) (int, int, bool) {
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			if clusters[i].overlaps(clusters[j]) {
				return i, j, true
			}
		}
	}

	return 0, 0, false
}

func meanPoint(records []Record) spatial.Point {
	if len(records) == 0 {
		return spatial.Point{}
	}

	var lat, lng float64
	for _, r := range records {
		lat += r.Point.Lat
		lng += r.Point.Lng
	}

	n := float64(len(records))

	return spatial.Point{Lat: lat / n, Lng: lng / n}
}

// modeDistrict returns the most frequent district. Ties go to the
// lexicographically smallest name.
func modeDistrict(records []Record) string {
	counts := make(map[string]int)

	for _, r := range records {
		counts[districtOf(r.District)]++
	}

	best, bestCount := UnknownDistrict, 0

	for district, n := range counts {
		if n > bestCount || (n == bestCount && district < best) {
			best, bestCount = district, n
		}
	}

	return best
}

func districtOf(district string) string {
	district = strings.TrimSpace(district)
	if district == "" {
		return UnknownDistrict
	}

	return district
}

var defaultClusterer = New(DefaultOptions())

// Default returns a Clusterer using DefaultOptions.
func Default() *Clusterer {
	return defaultClusterer
}

// FindPrimaryHotspot finds the primary hotspot with the default options.
func FindPrimaryHotspot(records []Record) *Cluster {
	return defaultClusterer.FindPrimaryHotspot(records)
}
