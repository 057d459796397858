// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// FETCH TESTS
// =============================================================================

func TestFetch_SavesPayloadUnderUrlName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("installer payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := New().Fetch(context.Background(), srv.URL+"/Miniconda3-latest.sh", dir, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Base(path) != "Miniconda3-latest.sh" {
		t.Errorf("saved as %q, want name from URL", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "installer payload" {
		t.Errorf("payload = %q", string(data))
	}
}

func TestFetch_HttpErrorIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL+"/missing.exe", t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}

func TestFetch_ReportsProgress(t *testing.T) {
	payload := make([]byte, 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	var lastReceived, lastTotal int64
	_, err := New().Fetch(context.Background(), srv.URL+"/git.exe", t.TempDir(),
		func(received, total int64) {
			lastReceived, lastTotal = received, total
		})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// The final callback always fires with the complete byte count.
	if lastReceived != int64(len(payload)) {
		t.Errorf("final received = %d, want %d", lastReceived, len(payload))
	}
	if lastTotal != int64(len(payload)) {
		t.Errorf("final total = %d, want %d", lastTotal, len(payload))
	}
}

func TestFetch_UnreachableServer(t *testing.T) {
	_, err := New().Fetch(context.Background(), "http://127.0.0.1:1/x.exe", t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
}
