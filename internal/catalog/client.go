/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog is the client for the external song download service. A
// fetch locates an audio file for (artist, title) and downloads it into the
// target folder; the caller bounds the wait with its context deadline.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("catalog: download service not configured")

// FetchResult reports a completed fetch.
type FetchResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

// Downloader fetches a song into the output folder.
type Downloader interface {
	Fetch(ctx context.Context, artist, title, outputFolder, quality string) (FetchResult, error)
	Enabled() bool
}

// Client talks JSON over HTTP to the download service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a client for the service at baseURL. The HTTP client
// carries no timeout of its own; callers pass a deadline context.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type fetchRequest struct {
	Artist       string `json:"artist"`
	Title        string `json:"title"`
	OutputFolder string `json:"output_folder"`
	Quality      string `json:"quality,omitempty"`
}

// Fetch requests a download and waits for the service's answer. The request
// is cancelled when ctx expires; a service that keeps downloading after that
// is detached, not chased.
func (c *Client) Fetch(ctx context.Context, artist, title, outputFolder, quality string) (FetchResult, error) {
	if !c.Enabled() {
		return FetchResult{}, ErrNotConfigured
	}

	body, err := json.Marshal(fetchRequest{
		Artist:       artist,
		Title:        title,
		OutputFolder: outputFolder,
		Quality:      quality,
	})
	if err != nil {
		return FetchResult{}, fmt.Errorf("encode fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/fetch", bytes.NewReader(body))
	if err != nil {
		return FetchResult{}, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %q by %q: %w", title, artist, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return FetchResult{}, fmt.Errorf("fetch %q by %q: unexpected status %d", title, artist, resp.StatusCode)
	}

	var result FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return FetchResult{}, fmt.Errorf("decode fetch response: %w", err)
	}

	c.logger.Debug().
		Str("artist", artist).
		Str("title", title).
		Bool("success", result.Success).
		Dur("elapsed", time.Since(started)).
		Msg("catalog fetch finished")
	return result, nil
}

// Noop is the downloader used when no service is configured.
type Noop struct{}

// Enabled always reports false.
func (Noop) Enabled() bool { return false }

// Fetch always fails with ErrNotConfigured.
func (Noop) Fetch(context.Context, string, string, string, string) (FetchResult, error) {
	return FetchResult{}, ErrNotConfigured
}
