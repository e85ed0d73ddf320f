// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"github.com/civicmap/civicmap/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// ResolveMapsKey returns the configured Google Maps key. When none is set the
// key is looked up by display name through Application Default Credentials.
func ResolveMapsKey(ctx context.Context, cfg config.MapsConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	log.Println("Google Maps API key is not set. Attempting to retrieve via ADC...")

	key, err := getAPIKeyFromADC(ctx, cfg.ProjectID, cfg.KeyDisplayName)
	if err != nil {
		return "", err
	}

	log.Println("✅ Retrieved Google Maps API key via ADC")

	return key, nil
}

func getAPIKeyFromADC(ctx context.Context, projectID, displayName string) (string, error) {
	if displayName == "" {
		return "", errors.New("maps.key_display_name is empty")
	}

	if projectID == "" {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("finding default credentials: %w", err)
		}

		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project id in default credentials, set maps.project_id")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != displayName {
			continue
		}

		// ListKeys redacts the secret.
		log.Printf("Found key resource '%s', retrieving secret...", key.Name)

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' has an empty key string", displayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", displayName, projectID)
}
