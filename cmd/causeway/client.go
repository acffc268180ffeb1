// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NoeticSystems/Causeway/cmd/causeway/config"
	"github.com/NoeticSystems/Causeway/services/ledger"
)

// apiClient talks to the ledger API. All commands go through it so
// error decoding and timeouts live in one place.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient builds a client from the loaded config.
func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(config.Global.Server.URL, "/"),
		http:    &http.Client{Timeout: config.Global.Server.RequestTimeout()},
	}
}

// newAPIClientAt builds a client against an explicit base URL; tests
// use it to point at an httptest server.
func newAPIClientAt(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response from the ledger, decoded when the
// body was a standard error envelope.
type apiError struct {
	Status  int
	Message string
	Code    string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledger returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ledger returned %d: %s", e.Status, e.Message)
}

// getJSON issues a GET and decodes the response into out. A nil out
// discards the body.
func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to reach the ledger at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

// postJSON issues a POST with a JSON body and decodes the response
// into out. A nil body sends an empty request.
func (c *apiClient) postJSON(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode the request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("failed to reach the ledger at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

// postRaw issues a POST with an already-serialized JSON body. Used for
// epoch document import, where the bytes must pass through untouched.
func (c *apiClient) postRaw(path string, data []byte, out any) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to reach the ledger at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

// getRaw issues a GET and returns the body bytes unparsed. Used for
// epoch document export.
func (c *apiClient) getRaw(path string) ([]byte, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the ledger at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}
	return io.ReadAll(resp.Body)
}

// wsURL converts the configured base URL into the websocket form for
// the given path.
func (c *apiClient) wsURL(path string) string {
	url := c.baseURL + path
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}

func (c *apiClient) decode(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		return c.asError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse the ledger response: %w", err)
	}
	return nil
}

func (c *apiClient) asError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var envelope ledger.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return &apiError{Status: resp.StatusCode, Message: envelope.Error, Code: envelope.Code}
	}
	return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
