// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package hotspot

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/civicmap/civicmap/spatial"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metersPerDegree is the length of one degree of longitude at the equator.
const metersPerDegree = 111194.92664455874

var (
	ranchi     = spatial.Point{Lat: 23.3441, Lng: 85.3096}
	dhanbad    = spatial.Point{Lat: 23.7957, Lng: 86.4304}
	jamshedpur = spatial.Point{Lat: 22.8046, Lng: 86.2029}
	bokaro     = spatial.Point{Lat: 23.6693, Lng: 86.1511}
	delhi      = spatial.Point{Lat: 28.6139, Lng: 77.2090}
	mumbai     = spatial.Point{Lat: 19.0760, Lng: 72.8777}
)

var approxPoint = cmpopts.EquateApprox(0, 1e-9)

func record(id string, p spatial.Point, district string) Record {
	return Record{ID: id, Point: p, District: district}
}

func totalMembers(clusters []*Cluster) int {
	n := 0
	for _, c := range clusters {
		n += c.Count()
	}

	return n
}

func assertNoOverlap(t *testing.T, clusters []*Cluster) {
	t.Helper()

	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			a, b := clusters[i], clusters[j]
			dist := a.Center.HaversineDistance(&b.Center)
			assert.Greater(t, dist, a.DisplayRadiusMeters()+b.DisplayRadiusMeters(),
				"clusters %d and %d overlap", i, j)
		}
	}
}

func assertCentersAreMeans(t *testing.T, clusters []*Cluster) {
	t.Helper()

	for i, c := range clusters {
		if diff := cmp.Diff(meanPoint(c.Members), c.Center, approxPoint); diff != "" {
			t.Errorf("cluster %d center is stale (-want +got):\n%s", i, diff)
		}
	}
}

func TestClusterEmpty(t *testing.T) {
	clusters := Default().Cluster(nil)
	require.NotNil(t, clusters)
	assert.Empty(t, clusters)

	assert.Nil(t, FindPrimaryHotspot(nil))
	assert.Nil(t, FindPrimaryHotspot([]Record{}))
}

func TestClusterSingleRecord(t *testing.T) {
	x := record("a", ranchi, "Ranchi")

	clusters := Default().Cluster([]Record{x})
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.Equal(t, []Record{x}, c.Members)
	assert.Equal(t, ranchi, c.Center)
	assert.Equal(t, 1500.0, c.DisplayRadiusMeters())
	assert.Equal(t, "Ranchi", c.District)
}

func TestClusterCoincidentRecordsMerge(t *testing.T) {
	clusters := Default().Cluster([]Record{
		record("a", ranchi, "Ranchi"),
		record("b", ranchi, "Ranchi"),
	})

	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Count())
	assert.Equal(t, []string{"a", "b"}, clusters[0].MemberIDs())
	assert.Equal(t, 2000.0, clusters[0].DisplayRadiusMeters())
}

func TestClusterFarApartRecordsStaySeparate(t *testing.T) {
	clusters := Default().Cluster([]Record{
		record("delhi", delhi, "New Delhi"),
		record("mumbai", mumbai, "Mumbai"),
	})

	require.Len(t, clusters, 2)
	assert.Equal(t, 1, clusters[0].Count())
	assert.Equal(t, 1, clusters[1].Count())
	assert.Equal(t, []string{"delhi"}, clusters[0].MemberIDs())
	assert.Equal(t, []string{"mumbai"}, clusters[1].MemberIDs())
}

func TestClusterChainedTransitiveMerge(t *testing.T) {
	// A-B and B-C circles overlap (2000m apart, radii 1500m each) while A-C
	// (4000m) do not. Once two of them merge the grown circle reaches the third.
	step := 2000 / metersPerDegree
	a := record("a", spatial.Point{Lat: 0, Lng: 0}, "")
	b := record("b", spatial.Point{Lat: 0, Lng: step}, "")
	c := record("c", spatial.Point{Lat: 0, Lng: 2 * step}, "")

	require.Greater(t, a.Point.HaversineDistance(&c.Point), 3000.0)

	orders := [][]Record{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	for _, order := range orders {
		name := fmt.Sprintf("%s%s%s", order[0].ID, order[1].ID, order[2].ID)
		t.Run(name, func(t *testing.T) {
			clusters := Default().Cluster(order)
			require.Len(t, clusters, 1)
			assert.Equal(t, 3, clusters[0].Count())
			assert.ElementsMatch(t, []string{"a", "b", "c"}, clusters[0].MemberIDs())
			assert.InDelta(t, step, clusters[0].Center.Lng, 1e-12)
		})
	}
}

func TestClusterSeedCenterUsesRawCoordinates(t *testing.T) {
	// Both records round to (23.344, 85.310) but the center is the mean of
	// the raw values.
	clusters := New(Options{Precision: 3, BaseRadiusMeters: 0, PerMemberRadiusMeters: 0}).Cluster([]Record{
		record("a", spatial.Point{Lat: 23.3441, Lng: 85.3096}, "Ranchi"),
		record("b", spatial.Point{Lat: 23.3444, Lng: 85.3099}, "Ranchi"),
	})

	require.Len(t, clusters, 1)

	want := spatial.Point{Lat: 23.34425, Lng: 85.30975}
	if diff := cmp.Diff(want, clusters[0].Center, approxPoint); diff != "" {
		t.Errorf("center mismatch (-want +got):\n%s", diff)
	}
}

func TestClusterMergeRecomputesCenter(t *testing.T) {
	clusters := Default().Cluster([]Record{
		record("a", spatial.Point{Lat: 0, Lng: 0}, ""),
		record("b", spatial.Point{Lat: 0, Lng: 0}, ""),
		record("c", spatial.Point{Lat: 0, Lng: 0.006}, ""),
	})

	require.Len(t, clusters, 1)
	assert.InDelta(t, 0.002, clusters[0].Center.Lng, 1e-12)
	assertCentersAreMeans(t, clusters)
}

func TestClusterDistrictMode(t *testing.T) {
	tests := []struct {
		name      string
		districts []string
		want      string
	}{
		{"majority", []string{"Ranchi", "Dhanbad", "Ranchi"}, "Ranchi"},
		{"tie broken lexicographically", []string{"Ranchi", "Dhanbad"}, "Dhanbad"},
		{"tie independent of order", []string{"Dhanbad", "Ranchi"}, "Dhanbad"},
		{"blank is unknown", []string{"", "  "}, UnknownDistrict},
		{"whitespace counts with empty", []string{"", " ", "Bokaro"}, UnknownDistrict},
		{"unknown loses to majority", []string{"", "Bokaro", "Bokaro"}, "Bokaro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]Record, len(tt.districts))
			for i, d := range tt.districts {
				records[i] = record(fmt.Sprint(i), ranchi, d)
			}

			clusters := Default().Cluster(records)
			require.Len(t, clusters, 1)
			assert.Equal(t, tt.want, clusters[0].District)
		})
	}
}

func TestClusterCustomOptions(t *testing.T) {
	records := []Record{
		record("a", spatial.Point{Lat: 0, Lng: 0}, ""),
		record("b", spatial.Point{Lat: 0, Lng: 0.005}, ""), // ~556m
	}

	assert.Len(t, Default().Cluster(records), 1)

	tight := New(Options{Precision: 3, BaseRadiusMeters: 10, PerMemberRadiusMeters: 0})
	clusters := tight.Cluster(records)
	require.Len(t, clusters, 2)
	assert.Equal(t, 10.0, clusters[0].DisplayRadiusMeters())

	coarse := New(Options{Precision: 1, BaseRadiusMeters: 0, PerMemberRadiusMeters: 0})
	assert.Len(t, coarse.Cluster(records), 1, "both round to the same seed")
}

func TestNewClampsOptions(t *testing.T) {
	records := []Record{
		record("delhi", delhi, "Delhi"),
		record("mumbai", mumbai, "Mumbai"),
		record("ranchi", ranchi, "Ranchi"),
		record("near", spatial.Point{Lat: ranchi.Lat + 0.001, Lng: ranchi.Lng}, "Ranchi"),
	}

	for _, precision := range []int{11, 19, 400} {
		t.Run(fmt.Sprint(precision), func(t *testing.T) {
			c := New(Options{Precision: precision})
			assert.Equal(t, MaxPrecision, c.Options().Precision)

			clusters := c.Cluster(records)
			require.Len(t, clusters, 4)
			assert.Equal(t, []string{"delhi"}, clusters[0].MemberIDs())
			assert.Equal(t, []string{"mumbai"}, clusters[1].MemberIDs())
		})
	}

	c := New(Options{Precision: -2, BaseRadiusMeters: -1, PerMemberRadiusMeters: -5})
	assert.Equal(t, Options{}, c.Options())
	assert.Len(t, c.Cluster(records), 3, "ranchi and near share a whole-degree seed")
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		wantErr string
	}{
		{"defaults", DefaultOptions(), ""},
		{"finest precision", Options{Precision: MaxPrecision}, ""},
		{"precision too fine", Options{Precision: 19}, "precision 19 outside 0..10"},
		{"negative precision", Options{Precision: -1}, "precision -1 outside 0..10"},
		{"negative base radius", Options{Precision: 3, BaseRadiusMeters: -1}, "radii must not be negative"},
		{"negative member radius", Options{Precision: 3, PerMemberRadiusMeters: -1}, "radii must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.options.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClusterMemberConservationAndNoOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, spread := range []float64{0.05, 0.2, 1.5} {
		t.Run(fmt.Sprint(spread), func(t *testing.T) {
			records := make([]Record, 300)
			for i := range records {
				p := spatial.Point{
					Lat: ranchi.Lat + (rng.Float64()*2-1)*spread,
					Lng: ranchi.Lng + (rng.Float64()*2-1)*spread,
				}
				records[i] = record(fmt.Sprint(i), p, "")
			}

			clusters := Default().Cluster(records)

			assert.Equal(t, len(records), totalMembers(clusters))

			seen := make(map[string]bool, len(records))
			for _, c := range clusters {
				for _, id := range c.MemberIDs() {
					assert.False(t, seen[id], "record %s appears twice", id)
					seen[id] = true
				}
			}

			assertNoOverlap(t, clusters)
			assertCentersAreMeans(t, clusters)
		})
	}
}

func TestClusterReclusterTerminalState(t *testing.T) {
	var records []Record

	for name, p := range map[string]spatial.Point{
		"ranchi": ranchi, "dhanbad": dhanbad, "jamshedpur": jamshedpur, "bokaro": bokaro,
	} {
		for k := 0; k < 4; k++ {
			q := spatial.Point{Lat: p.Lat + 0.0004*float64(k), Lng: p.Lng + 0.0003*float64(k)}
			records = append(records, record(fmt.Sprintf("%s-%d", name, k), q, name))
		}
	}

	first := Default().Cluster(records)
	require.Len(t, first, 4)

	var flattened []Record
	for _, c := range first {
		flattened = append(flattened, c.Members...)
	}

	second := Default().Cluster(flattened)
	require.Len(t, second, len(first))

	for i := range first {
		if diff := cmp.Diff(first[i].Center, second[i].Center, approxPoint); diff != "" {
			t.Errorf("cluster %d moved (-first +second):\n%s", i, diff)
		}

		assert.Equal(t, first[i].District, second[i].District)
	}
}

func TestFindPrimaryHotspot(t *testing.T) {
	records := []Record{
		record("d1", dhanbad, "Dhanbad"),
		record("r1", ranchi, "Ranchi"),
		record("r2", ranchi, "Ranchi"),
		record("r3", spatial.Point{Lat: ranchi.Lat + 0.001, Lng: ranchi.Lng}, "Ranchi"),
		record("j1", jamshedpur, "East Singhbhum"),
	}

	primary := FindPrimaryHotspot(records)
	require.NotNil(t, primary)
	assert.Equal(t, 3, primary.Count())
	assert.Equal(t, "Ranchi", primary.District)
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, primary.MemberIDs())
}

func TestFindPrimaryHotspotTieKeepsFirst(t *testing.T) {
	primary := FindPrimaryHotspot([]Record{
		record("j1", jamshedpur, "East Singhbhum"),
		record("d1", dhanbad, "Dhanbad"),
	})

	require.NotNil(t, primary)
	assert.Equal(t, []string{"j1"}, primary.MemberIDs())
}

func TestClusterCallsDoNotShareState(t *testing.T) {
	c := Default()
	records := []Record{record("a", ranchi, "Ranchi"), record("b", ranchi, "Ranchi")}

	first := c.Cluster(records)
	second := c.Cluster(records[:1])

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, 2, first[0].Count())
	assert.Equal(t, 1, second[0].Count())
	assert.Equal(t, "a", records[0].ID, "input must not be modified")
}

func TestPrimary(t *testing.T) {
	assert.Nil(t, Primary(nil))

	clusters := Default().Cluster([]Record{
		record("j1", jamshedpur, "East Singhbhum"),
		record("r1", ranchi, "Ranchi"),
		record("r2", ranchi, "Ranchi"),
		record("d1", dhanbad, "Dhanbad"),
		record("d2", dhanbad, "Dhanbad"),
	})
	require.Len(t, clusters, 3)

	primary := Primary(clusters)
	require.NotNil(t, primary)
	assert.Equal(t, []string{"r1", "r2"}, primary.MemberIDs(), "ties go to the first cluster")
	assert.Equal(t, []string{"j1"}, clusters[0].MemberIDs(), "clusters must keep their order")
}
