// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/config"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

type rootOptions struct {
	ConfigPath    string
	DBPath        string
	HTTPTrace     bool
	HTTPBodyTrace bool
}

var (
	options = &rootOptions{}
	cfg     = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "civicmap",
	Short: "complaint hotspots for municipal dashboards",
	Long: `
civicmap mirrors the complaint locations of a civic complaints backend into a
local DuckDB file and groups them into hotspots for the admin heat map.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(options.ConfigPath)
		if err != nil {
			return err
		}

		if options.DBPath != "" {
			loaded.Store.DBPath = options.DBPath
		}

		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		cfg = loaded

		return nil
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// openRepository opens the DuckDB snapshot, creating the file and schema
// when needed.
func openRepository() (complaints.LocationRepository, *sql.DB, error) {
	if dir := filepath.Dir(cfg.Store.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", cfg.Store.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := complaints.NewLocationRepository(db, cfg.Store.H3Resolution)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return repo, db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&options.ConfigPath,
		"config",
		"civicmap.yaml",
		"configuration file, defaults are used when it does not exist",
	)
	rootCmd.PersistentFlags().StringVar(
		&options.DBPath,
		"db-path",
		"",
		"DuckDB file holding the complaint snapshot (overrides store.db_path)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&options.HTTPTrace,
		"http-trace",
		false,
		"trace outgoing HTTP requests to stderr",
	)
	rootCmd.PersistentFlags().BoolVar(
		&options.HTTPBodyTrace,
		"http-body-trace",
		false,
		"include request bodies in the HTTP trace",
	)
}
