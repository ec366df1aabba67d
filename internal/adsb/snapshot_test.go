package adsb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Cache-Control"); got != "no-cache" {
			t.Errorf("Cache-Control = %q, want no-cache", got)
		}
		w.Write([]byte(`{"now":1766325600.5,"messages":42,"aircraft":[{"hex":"896180","flight":"FDB123"}]}`))
	}))
	defer srv.Close()

	snap, err := NewFetcher(srv.URL, 2*time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Now != 1766325600.5 {
		t.Errorf("Now = %v", snap.Now)
	}
	if snap.Messages != 42 {
		t.Errorf("Messages = %d", snap.Messages)
	}
	if len(snap.Aircraft) != 1 || snap.Aircraft[0]["hex"] != "896180" {
		t.Errorf("Aircraft = %v", snap.Aircraft)
	}
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewFetcher(srv.URL, 2*time.Second).Fetch(context.Background()); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"now":`))
	}))
	defer srv.Close()

	if _, err := NewFetcher(srv.URL, 2*time.Second).Fetch(context.Background()); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestNewFetcherDefaultURL(t *testing.T) {
	f := NewFetcher("", time.Second)
	if f.URL != DefaultSnapshotURL {
		t.Errorf("URL = %q, want default", f.URL)
	}
}
