// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/civicmap/civicmap/spatial"
)

// GoogleGeocodeURL is the endpoint of the Google Maps Geocoding API.
const GoogleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	region     string
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder biased to India.
func NewGoogleMapsGeocoder(apiKey string) *GoogleMapsGeocoder {
	return &GoogleMapsGeocoder{
		apiKey:   apiKey,
		endpoint: GoogleGeocodeURL,
		region:   "in",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithEndpoint points the geocoder at another server.
func (g *GoogleMapsGeocoder) WithEndpoint(endpoint string) *GoogleMapsGeocoder {
	g.endpoint = endpoint

	return g
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

func classifyGoogleStatus(status, message string) *BackendError {
	e := &BackendError{Message: "google maps status: " + status}
	if message != "" {
		e.Message += ": " + message
	}

	switch status {
	case "ZERO_RESULTS":
		e.Type = ErrorTypeNotFound
	case "OVER_QUERY_LIMIT":
		e.Type = ErrorTypeRateLimit
	case "OVER_DAILY_LIMIT":
		e.Type = ErrorTypeQuotaExceeded
	case "REQUEST_DENIED":
		e.Type = ErrorTypeForbidden
	case "INVALID_REQUEST":
		e.Type = ErrorTypeInvalidRequest
	case "UNKNOWN_ERROR":
		e.Type = ErrorTypeNetworkError
	default:
		e.Type = ErrorTypeUnknown
	}

	return e
}

func confidenceOf(locationType string) string {
	switch locationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		return "high"
	case "GEOMETRIC_CENTER":
		return "medium"
	default:
		return "low"
	}
}

// Geocode resolves a free-text address.
func (g *GoogleMapsGeocoder) Geocode(ctx context.Context, query string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)
	params.Set("region", g.region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating geocoding request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, "google maps")
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if gmResp.Status != "OK" {
		return nil, classifyGoogleStatus(gmResp.Status, gmResp.ErrorMessage)
	}

	if len(gmResp.Results) == 0 {
		return nil, &BackendError{Type: ErrorTypeNotFound, Message: "no results found for " + query}
	}

	result := gmResp.Results[0]

	return &GeocodingResult{
		Point: spatial.Point{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		Confidence:  confidenceOf(result.Geometry.LocationType),
		Provider:    "google_maps",
		DisplayName: result.FormattedAddress,
	}, nil
}
