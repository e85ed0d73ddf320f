// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the civicmap configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/hotspot"
	"github.com/civicmap/civicmap/spatial"
	"gopkg.in/yaml.v3"
)

// Config holds all civicmap configuration.
type Config struct {
	Backend    BackendConfig   `yaml:"backend"`
	Store      StoreConfig     `yaml:"store"`
	Server     ServerConfig    `yaml:"server"`
	Region     RegionConfig    `yaml:"region"`
	Clustering hotspot.Options `yaml:"clustering"`
	Maps       MapsConfig      `yaml:"maps"`
}

// BackendConfig configures the complaints backend the locations are read from.
type BackendConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// StoreConfig configures the local DuckDB snapshot.
type StoreConfig struct {
	DBPath       string `yaml:"db_path"`
	SeedPath     string `yaml:"seed_path"`
	H3Resolution int    `yaml:"h3_resolution"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string   `yaml:"listen"`
	Tokens []string `yaml:"tokens"`
}

// RegionConfig describes the area the heat map covers.
type RegionConfig struct {
	Name   string         `yaml:"name"`
	Bounds spatial.Bounds `yaml:"bounds"`
	Center spatial.Point  `yaml:"center"`
	Zoom   int            `yaml:"zoom"`
}

// MapsConfig configures Google Maps tiles and geocoding.
type MapsConfig struct {
	APIKey string `yaml:"api_key"`

	// KeyDisplayName and ProjectID locate the key through the API Keys
	// service when APIKey is empty.
	KeyDisplayName string `yaml:"key_display_name"`
	ProjectID      string `yaml:"project_id"`
}

// DefaultConfig returns the configuration for the Jharkhand dashboard.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:         "http://localhost:4000",
			Timeout:     "30s",
			MaxAttempts: 3,
		},
		Store: StoreConfig{
			DBPath:       "civicmap.duckdb",
			SeedPath:     "db/locations.json",
			H3Resolution: complaints.DefaultH3Resolution,
		},
		Server: ServerConfig{
			Listen: "localhost:8080",
		},
		Region: RegionConfig{
			Name: "Jharkhand",
			Bounds: spatial.Bounds{
				MinLat: 21.95,
				MaxLat: 25.35,
				MinLng: 83.30,
				MaxLng: 87.95,
			},
			Center: spatial.Point{Lat: 23.233236, Lng: 85.964145},
			Zoom:   8,
		},
		Clustering: hotspot.DefaultOptions(),
		Maps: MapsConfig{
			KeyDisplayName: "CivicMap Maps Key",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path is provided by admin
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CIVICMAP_API_URL"); v != "" {
		c.Backend.URL = v
	}

	if v := os.Getenv("CIVICMAP_API_TOKEN"); v != "" {
		c.Backend.Token = v
	}

	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		c.Maps.APIKey = v
	}

	if v := os.Getenv("CIVICMAP_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// BackendTimeout returns the backend timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}

	return d
}

// DefaultView is the map framing used when there are no hotspots.
func (c *Config) DefaultView() hotspot.View {
	return hotspot.View{Center: c.Region.Center, Zoom: c.Region.Zoom}
}

// Validate reports every inconsistent value.
func (c *Config) Validate() error {
	var errs []error

	if !c.Region.Bounds.Valid() {
		errs = append(errs, fmt.Errorf("region.bounds: min must not exceed max and values must be on Earth (%+v)", c.Region.Bounds))
	}

	if err := c.Region.Center.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("region.center: %w", err))
	}

	if err := c.Clustering.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("clustering: %w", err))
	}

	if c.Store.H3Resolution < 0 || c.Store.H3Resolution > 15 {
		errs = append(errs, fmt.Errorf("store.h3_resolution %d outside 0..15", c.Store.H3Resolution))
	}

	if c.Backend.Timeout != "" {
		if _, err := time.ParseDuration(c.Backend.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("backend.timeout: %w", err))
		}
	}

	for i, t := range c.Server.Tokens {
		if t == "" {
			errs = append(errs, fmt.Errorf("server.tokens[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}
