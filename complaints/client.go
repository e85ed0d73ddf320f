// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

package complaints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/civicmap/civicmap/utils/httputils"
	"golang.org/x/oauth2"
)

// LocationsPath is the backend route serving complaint locations.
const LocationsPath = "/api/complaints/locations"

// ClientOptions configuration for Client.
type ClientOptions struct {
	// BaseURL of the complaints backend, e.g. http://localhost:4000
	BaseURL string

	// Token is the bearer token sent on every request
	Token string

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Timeout of a single request
	Timeout time.Duration

	// MaxAttempts for retryable failures, 1 disables retries
	MaxAttempts int

	// InitialBackoff before the first retry, doubled on every attempt
	InitialBackoff time.Duration

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// Client reads complaint locations from the complaints backend.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	options *ClientOptions
}

type locationsEnvelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Error     string      `json:"error"`
	Locations []*Location `json:"locations"`
}

// NewClient creates a new client with the provided options.
func NewClient(options *ClientOptions) (*Client, error) {
	if options == nil {
		options = &ClientOptions{}
	}

	baseURL, err := url.Parse(options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}

	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", options.BaseURL)
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	userAgent := "civicmap/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	var rt http.RoundTripper = &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent":   userAgent,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		Transport: loggingTransport,
	}

	if options.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: options.Token,
				TokenType:   "Bearer",
			}),
			Base: rt,
		}
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
		options: options,
	}, nil
}

// FetchLocations downloads every complaint location visible to the token.
// Rate limits, timeouts and network failures are retried with exponential
// backoff.
func (c *Client) FetchLocations(ctx context.Context) ([]*Location, error) {
	attempts := c.options.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := c.options.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	for attempt := 1; ; attempt++ {
		locations, err := c.fetchLocations(ctx)
		if err == nil {
			return locations, nil
		}

		if attempt >= attempts || !IsRetryableError(err) {
			return nil, err
		}

		log.Printf("[%d/%d] Fetching locations failed, retrying in %v: %v", attempt, attempts, backoff, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}
}

func (c *Client) fetchLocations(ctx context.Context) ([]*Location, error) {
	reqURL := c.baseURL.JoinPath(LocationsPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, transportError(err)
	}

	var envelope locationsEnvelope
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode != http.StatusOK {
		message := envelope.Message
		if message == "" {
			message = envelope.Error
		}

		return nil, ClassifyHTTPError(resp.StatusCode, message)
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decoding locations: %w", decodeErr)
	}

	if !envelope.Success {
		return nil, &BackendError{
			Type:       ErrorTypeRejected,
			StatusCode: resp.StatusCode,
			Message:    "backend rejected the request: " + envelope.Message,
		}
	}

	if envelope.Locations == nil {
		envelope.Locations = []*Location{}
	}

	return envelope.Locations, nil
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &BackendError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
	}

	return &BackendError{Type: ErrorTypeNetworkError, Message: "request failed", Err: err}
}
