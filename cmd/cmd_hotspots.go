// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/hotspot"
	"github.com/spf13/cobra"
)

var hotspotsOptions struct {
	File     string
	District string
	Primary  bool
}

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Print the complaint hotspots",
	Long: `Clusters the located complaints inside the configured region and prints
one line per hotspot, densest first with --primary.

$ civicmap hotspots --file db/locations.json
#1	3	Ranchi	23.345033,85.310200	2500m	medium
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		locations, err := loadHotspotLocations()
		if err != nil {
			return err
		}

		if hotspotsOptions.District != "" {
			locations = filterDistrict(locations, hotspotsOptions.District)
		}

		records, places, outside := complaints.Partition(locations, cfg.Region.Bounds)
		clusterer := hotspot.New(cfg.Clustering)

		if hotspotsOptions.Primary {
			primary := clusterer.FindPrimaryHotspot(records)
			if primary == nil {
				fmt.Println("No located complaints")

				return nil
			}

			printCluster(os.Stdout, 1, primary)

			focus := hotspot.FocusFor(primary, cfg.DefaultView())
			fmt.Printf("focus\t%s\tzoom %d\n", focus.Center, focus.Zoom)

			return nil
		}

		clusters := clusterer.Cluster(records)
		for i, c := range clusters {
			printCluster(os.Stdout, i+1, c)
		}

		fmt.Fprintf(os.Stderr, "%d hotspots from %d complaints (%d outside %s, %d without coordinates)\n",
			len(clusters), len(records), outside, cfg.Region.Name, len(places))

		return nil
	},
}

func loadHotspotLocations() ([]*complaints.Location, error) {
	if hotspotsOptions.File != "" {
		seed, err := complaints.ReadSeedFile(hotspotsOptions.File)
		if err != nil {
			return nil, err
		}

		return seed.Locations, nil
	}

	repo, db, err := openRepository()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return repo.ListLocations(complaints.LocationFilter{})
}

func filterDistrict(locations []*complaints.Location, district string) []*complaints.Location {
	filtered := make([]*complaints.Location, 0, len(locations))

	for _, l := range locations {
		if strings.EqualFold(l.District, district) {
			filtered = append(filtered, l)
		}
	}

	return filtered
}

func printCluster(w io.Writer, rank int, c *hotspot.Cluster) {
	fmt.Fprintf(w, "#%d\t%d\t%s\t%s\t%.0fm\t%s\n",
		rank, c.Count(), c.District, c.Center, c.DisplayRadiusMeters(), hotspot.SeverityFor(c.Count()))
}

func init() {
	rootCmd.AddCommand(hotspotsCmd)

	hotspotsCmd.Flags().StringVar(&hotspotsOptions.File, "file", "", "read locations from a seed file instead of the store")
	hotspotsCmd.Flags().StringVar(&hotspotsOptions.District, "district", "", "only cluster complaints of this district")
	hotspotsCmd.Flags().BoolVar(&hotspotsOptions.Primary, "primary", false, "print only the densest hotspot and the map focus")
}
