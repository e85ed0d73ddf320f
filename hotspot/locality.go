// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package hotspot

import (
	"sort"
	"strings"

	"github.com/civicmap/civicmap/utils/textutils"
)

// Place is a complaint known only by its administrative names.
type Place struct {
	ID       string `json:"id"`
	District string `json:"district"`
	City     string `json:"city"`
	Locality string `json:"locality"`
}

// LocalityGroup gathers places that share a locality name.
type LocalityGroup struct {
	Key      string
	Label    string
	District string
	Members  []Place
}

// Count returns the number of members.
func (g *LocalityGroup) Count() int {
	return len(g.Members)
}

// GroupByLocality groups places by folded locality name, falling back to the
// city and then to UnknownDistrict when both are blank. Groups are ordered by
// size, largest first, then by label.
func GroupByLocality(places []Place) []*LocalityGroup {
	index := make(map[string]*LocalityGroup)
	groups := make([]*LocalityGroup, 0)

	for _, p := range places {
		label := localityLabel(p)
		key := textutils.GroupingKey(label)

		g, ok := index[key]
		if !ok {
			g = &LocalityGroup{Key: key, Label: label}
			index[key] = g
			groups = append(groups, g)
		}

		g.Members = append(g.Members, p)
	}

	for _, g := range groups {
		records := make([]Record, len(g.Members))
		for i, m := range g.Members {
			records[i] = Record{District: m.District}
		}

		g.District = modeDistrict(records)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count() != groups[j].Count() {
			return groups[i].Count() > groups[j].Count()
		}

		return groups[i].Label < groups[j].Label
	})

	return groups
}

func localityLabel(p Place) string {
	if l := strings.TrimSpace(p.Locality); l != "" {
		return l
	}

	if c := strings.TrimSpace(p.City); c != "" {
		return c
	}

	return UnknownDistrict
}
