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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NoeticSystems/Causeway/services/ledger"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *apiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newAPIClientAt(server.URL, 5*time.Second)
}

// TestGetJSON verifies decoding of a successful response.
func TestGetJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ledger/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ledger.HealthResponse{
			Status:    "healthy",
			NodeCount: 7,
		})
	})

	var health ledger.HealthResponse
	if err := client.getJSON("/v1/ledger/health", &health); err != nil {
		t.Fatalf("getJSON() failed: %v", err)
	}
	if health.Status != "healthy" || health.NodeCount != 7 {
		t.Errorf("unexpected response: %+v", health)
	}
}

// TestGetJSON_ErrorEnvelope verifies decoding of the standard error body.
func TestGetJSON_ErrorEnvelope(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ledger.ErrorResponse{
			Error: "epoch not found",
			Code:  "EPOCH_NOT_FOUND",
		})
	})

	err := client.getJSON("/v1/epochs/42", nil)
	if err == nil {
		t.Fatal("getJSON() should fail on 404")
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
	if apiErr.Code != "EPOCH_NOT_FOUND" {
		t.Errorf("Code = %q, want EPOCH_NOT_FOUND", apiErr.Code)
	}
}

// TestGetJSON_NonEnvelopeError verifies a plain-text error body still
// surfaces usefully.
func TestGetJSON_NonEnvelopeError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream exploded")
	})

	err := client.getJSON("/v1/ledger/health", nil)
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiError, got %T", err)
	}
	if apiErr.Message != "upstream exploded" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

// TestPostJSON verifies the request body round-trips.
func TestPostJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ledger.CreateBranchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("server failed to decode body: %v", err)
		}
		if req.Name != "main" {
			t.Errorf("Name = %q, want main", req.Name)
		}
		json.NewEncoder(w).Encode(ledger.BranchInfo{Name: req.Name})
	})

	var info ledger.BranchInfo
	err := client.postJSON("/v1/branches", ledger.CreateBranchRequest{Name: "main"}, &info)
	if err != nil {
		t.Fatalf("postJSON() failed: %v", err)
	}
	if info.Name != "main" {
		t.Errorf("Name = %q", info.Name)
	}
}

// TestGetRaw verifies the body passes through unparsed.
func TestGetRaw(t *testing.T) {
	doc := []byte(`{"schema_version":"v1.0.0","epoch":{}}`)
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(doc)
	})

	got, err := client.getRaw("/v1/epochs/1/export")
	if err != nil {
		t.Fatalf("getRaw() failed: %v", err)
	}
	if string(got) != string(doc) {
		t.Errorf("getRaw() = %q, want %q", got, doc)
	}
}

// TestWsURL verifies scheme rewriting for the watch endpoint.
func TestWsURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8090", "ws://localhost:8090/v1/epochs/watch"},
		{"https://ledger.internal", "wss://ledger.internal/v1/epochs/watch"},
	}
	for _, tt := range tests {
		client := newAPIClientAt(tt.base, time.Second)
		if got := client.wsURL("/v1/epochs/watch"); got != tt.want {
			t.Errorf("wsURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
