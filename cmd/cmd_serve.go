// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/server"
	"github.com/civicmap/civicmap/utils/textutils"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the hotspot API",
	Long: `Serves the stored complaint locations and their hotspots over HTTP.
The store is seeded from store.seed_path when it is empty.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}

		repo, db, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		seeded, n, err := complaints.SeedIfEmpty(repo, cfg.Store.SeedPath)
		if err != nil {
			return fmt.Errorf("seeding store: %w", err)
		}

		if seeded {
			log.Printf("✅ Seeded %s locations from %s", textutils.FormatInt(int64(n)), cfg.Store.SeedPath)
		}

		mapsKey, err := server.ResolveMapsKey(cmd.Context(), cfg.Maps)
		if err != nil {
			log.Printf("⚠️ No Google Maps key, falling back to OpenStreetMap tiles: %v", err)
		}

		metrics, err := server.NewMetrics(nil)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}

		fmt.Println("🗺️  Hotspot API starting...")
		fmt.Printf("📍 http://%s/api/hotspots\n", cfg.Server.Listen)

		return server.NewServer(repo, cfg, metrics, mapsKey).Run()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}
