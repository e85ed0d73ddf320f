// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// SeedVersion is written to exported seed files.
const SeedVersion = "1.0"

// SeedData represents the JSON seed file format.
type SeedData struct {
	Version     string      `json:"version"`
	LastUpdated time.Time   `json:"last_updated"`
	Locations   []*Location `json:"locations"`
}

// ExportToJSON exports all locations to a JSON file. Locations are sorted
// by id so the file diffs cleanly.
func ExportToJSON(repo LocationRepository, filepath string) (int, error) {
	locations, err := repo.GetAllLocationsSorted()
	if err != nil {
		return 0, fmt.Errorf("listing locations: %w", err)
	}

	seed := &SeedData{
		Version:     SeedVersion,
		LastUpdated: time.Now().UTC(),
		Locations:   locations,
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return 0, fmt.Errorf("writing file: %w", err)
	}

	return len(locations), nil
}

// ReadSeedFile parses a seed file. A bare JSON array of locations, as
// returned in the backend "locations" field, is accepted too.
func ReadSeedFile(filepath string) (*SeedData, error) {
	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by admin
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		var locations []*Location
		if arrErr := json.Unmarshal(data, &locations); arrErr != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}

		seed.Locations = locations
	}

	return &seed, nil
}

// ImportFromJSON imports locations from a JSON file.
func ImportFromJSON(repo LocationRepository, filepath string) (int, error) {
	seed, err := ReadSeedFile(filepath)
	if err != nil {
		return 0, err
	}

	if err := repo.SaveLocations(seed.Locations); err != nil {
		return 0, fmt.Errorf("saving locations: %w", err)
	}

	return len(seed.Locations), nil
}

// SeedIfEmpty seeds the database from a JSON file if no locations exist.
func SeedIfEmpty(repo LocationRepository, filepath string) (bool, int, error) {
	count, err := repo.CountLocations()
	if err != nil {
		return false, 0, fmt.Errorf("counting locations: %w", err)
	}

	if count > 0 {
		return false, count, nil
	}

	if _, err := os.Stat(filepath); errors.Is(err, os.ErrNotExist) {
		// No seed file exists, that's okay
		return false, 0, nil
	}

	imported, err := ImportFromJSON(repo, filepath)
	if err != nil {
		return false, 0, err
	}

	return true, imported, nil
}
