// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/server"
	"github.com/civicmap/civicmap/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var locationsFile string

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Manage the local complaint location snapshot",
}

var locationsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download complaint locations from the backend",
	Long: `Fetches every complaint location visible to backend.token and upserts it
into the local store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := complaints.NewClient(&complaints.ClientOptions{
			BaseURL:             cfg.Backend.URL,
			Token:               cfg.Backend.Token,
			UserAgent:           fmt.Sprintf("civicmap/%s", Version),
			Timeout:             cfg.BackendTimeout(),
			MaxAttempts:         cfg.Backend.MaxAttempts,
			EnableHTTPTrace:     options.HTTPTrace,
			EnableHTTPBodyTrace: options.HTTPBodyTrace,
		})
		if err != nil {
			return err
		}

		repo, db, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		locations, err := client.FetchLocations(cmd.Context())
		if err != nil {
			if complaints.IsUnauthorizedError(err) {
				return fmt.Errorf("backend rejected the token, check backend.token or CIVICMAP_API_TOKEN: %w", err)
			}

			return fmt.Errorf("fetching locations: %w", err)
		}

		if err := repo.SaveLocations(locations); err != nil {
			return fmt.Errorf("saving locations: %w", err)
		}

		records, places, outside := complaints.Partition(locations, cfg.Region.Bounds)

		fmt.Printf("✅ Synced %s locations (%s in %s, %s outside, %s without coordinates)\n",
			textutils.FormatInt(int64(len(locations))),
			textutils.FormatInt(int64(len(records))),
			cfg.Region.Name,
			textutils.FormatInt(int64(outside)),
			textutils.FormatInt(int64(len(places))))

		return nil
	},
}

var locationsStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Export the stored locations to a file",
	Long:  `Exports all locations to a JSON file sorted by id to minimize diffs when checking into version control.`,
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		repo, db, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		path := seedPath()

		n, err := complaints.ExportToJSON(repo, path)
		if err != nil {
			return fmt.Errorf("exporting locations: %w", err)
		}

		fmt.Printf("✅ Exported %s locations to %s\n", textutils.FormatInt(int64(n)), path)

		return nil
	},
}

var locationsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import locations from a file",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		repo, db, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		path := seedPath()

		n, err := complaints.ImportFromJSON(repo, path)
		if err != nil {
			return fmt.Errorf("importing locations: %w", err)
		}

		fmt.Printf("✅ Imported %s locations from %s\n", textutils.FormatInt(int64(n)), path)

		return nil
	},
}

var locationsGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode stored locations that have no coordinates",
	Long: `Looks up locality, city and district of every stored complaint without
coordinates with the Google Maps Geocoding API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		apiKey, err := server.ResolveMapsKey(cmd.Context(), cfg.Maps)
		if err != nil {
			return fmt.Errorf("google maps key is required for geocoding: %w", err)
		}

		repo, db, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		missing, err := repo.ListMissingCoordinates()
		if err != nil {
			return fmt.Errorf("counting pending locations: %w", err)
		}

		if len(missing) == 0 {
			fmt.Println("✅ Every location has coordinates")

			return nil
		}

		var geocoder complaints.Geocoder = complaints.NewGoogleMapsGeocoder(apiKey)

		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar := progressbar.NewOptions(len(missing),
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			defer bar.Finish() //nolint:errcheck

			geocoder = &progressGeocoder{geocoder: geocoder, bar: bar}
		}

		stats, err := complaints.GeocodeMissing(cmd.Context(), repo, geocoder, cfg.Region.Name)

		fmt.Printf("✅ Geocoded %s of %s locations (%s failed)\n",
			textutils.FormatInt(int64(stats.Geocoded)),
			textutils.FormatInt(int64(stats.Total)),
			textutils.FormatInt(int64(stats.Failed)))

		if err != nil {
			log.Printf("⚠️ Geocoding finished with errors: %v", err)

			if complaints.IsRateLimitError(err) || complaints.IsQuotaExceededError(err) {
				return err
			}
		}

		return nil
	},
}

// progressGeocoder advances a progress bar after every lookup.
type progressGeocoder struct {
	geocoder complaints.Geocoder
	bar      *progressbar.ProgressBar
}

func (g *progressGeocoder) Geocode(ctx context.Context, query string) (*complaints.GeocodingResult, error) {
	defer g.bar.Add(1) //nolint:errcheck

	return g.geocoder.Geocode(ctx, query)
}

func seedPath() string {
	if locationsFile != "" {
		return locationsFile
	}

	return cfg.Store.SeedPath
}

func init() {
	rootCmd.AddCommand(locationsCmd)
	locationsCmd.AddCommand(locationsSyncCmd)
	locationsCmd.AddCommand(locationsStoreCmd)
	locationsCmd.AddCommand(locationsLoadCmd)
	locationsCmd.AddCommand(locationsGeocodeCmd)

	locationsCmd.PersistentFlags().StringVar(
		&locationsFile,
		"file",
		"",
		"seed file for store and load (defaults to store.seed_path)",
	)
}
