// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/civicmap/civicmap/hotspot"
	"github.com/civicmap/civicmap/spatial"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugClusterOptions hotspot.Options

var debugClusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster points read from stdin",
	Long: `Reads one point per line as lat,lng[,district] and prints the resulting
clusters in order.

$ printf '23.3441,85.3096,Ranchi\n23.3450,85.3100\n' | civicmap debug cluster
#1	2	Ranchi	23.344550,85.309800	2000m	medium
	`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flags left unset follow the configuration file.
		if !cmd.Flags().Changed("precision") {
			debugClusterOptions.Precision = cfg.Clustering.Precision
		}

		if !cmd.Flags().Changed("base-radius") {
			debugClusterOptions.BaseRadiusMeters = cfg.Clustering.BaseRadiusMeters
		}

		if !cmd.Flags().Changed("per-member-radius") {
			debugClusterOptions.PerMemberRadiusMeters = cfg.Clustering.PerMemberRadiusMeters
		}

		if err := debugClusterOptions.Validate(); err != nil {
			return fmt.Errorf("invalid clustering flags: %w", err)
		}

		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		input := os.Stdin
		if isatty.IsTerminal(input.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter points as lat,lng[,district], one per line…")
		}

		records, err := readRecords(input, os.Stderr)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		for i, c := range hotspot.New(debugClusterOptions).Cluster(records) {
			printCluster(os.Stdout, i+1, c)
		}

		return nil
	},
}

// readRecords parses lat,lng[,district] lines. Malformed lines are reported
// to errOut and skipped; blank lines and # comments are ignored.
func readRecords(r io.Reader, errOut io.Writer) ([]hotspot.Record, error) {
	var records []hotspot.Record

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		record, err := parseRecord(line)
		if err != nil {
			fmt.Fprintf(errOut, "line %d: %v\n", n, err)

			continue
		}

		record.ID = "line-" + strconv.Itoa(n)
		records = append(records, record)
	}

	return records, scanner.Err()
}

func parseRecord(line string) (hotspot.Record, error) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 2 {
		return hotspot.Record{}, fmt.Errorf("expected lat,lng[,district], got %q", line)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return hotspot.Record{}, fmt.Errorf("invalid latitude %q", fields[0])
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return hotspot.Record{}, fmt.Errorf("invalid longitude %q", fields[1])
	}

	record := hotspot.Record{Point: spatial.Point{Lat: lat, Lng: lng}}
	if err := record.Point.Validate(); err != nil {
		return hotspot.Record{}, err
	}

	if len(fields) == 3 {
		record.District = strings.TrimSpace(fields[2])
	}

	return record, nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugClusterCmd)

	defaults := hotspot.DefaultOptions()
	debugClusterCmd.Flags().IntVar(&debugClusterOptions.Precision, "precision", defaults.Precision, "decimal places used to seed clusters")
	debugClusterCmd.Flags().Float64Var(&debugClusterOptions.BaseRadiusMeters, "base-radius", defaults.BaseRadiusMeters, "display radius of an empty cluster in meters")
	debugClusterCmd.Flags().Float64Var(&debugClusterOptions.PerMemberRadiusMeters, "per-member-radius", defaults.PerMemberRadiusMeters, "display radius added per member in meters")
}
