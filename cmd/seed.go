// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/civicmap/civicmap/complaints"
	"github.com/spf13/cobra"
)

const testSeedFile = "cmd/testdata/seed.json"

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Recreates the store with data from cmd/testdata/seed.json",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return seedDatabase(file)
		},
	}

	cmd.Flags().StringVar(&file, "file", testSeedFile, "seed file to load")

	return cmd
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}

func seedDatabase(file string) error {
	// remove old db if it exists
	_ = os.Remove(cfg.Store.DBPath)
	_ = os.Remove(cfg.Store.DBPath + ".wal")

	repo, db, err := openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := complaints.ImportFromJSON(repo, file)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}

	fmt.Printf("Database seeded successfully with %d locations.\n", n)

	return nil
}
