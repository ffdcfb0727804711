package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchCachesResults(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := map[string]any{
			"data": map[string]any{
				"webPages": map[string]any{
					"value": []map[string]any{
						{"url": "https://a.example", "name": "A", "snippet": "s", "summary": "sum", "siteName": "A Site", "datePublished": "2026-01-01"},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := New(srv.URL, "", time.Second, 10, time.Hour, nil)
	r1 := a.Search(context.Background(), "Test Query", 5)
	r2 := a.Search(context.Background(), "test query", 5) // same query, different case

	if len(r1) != 1 || len(r2) != 1 {
		t.Fatalf("expected 1 result each, got %d and %d", len(r1), len(r2))
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to avoid second HTTP call, got %d calls", calls)
	}
}

func TestSearchSwallowsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(srv.URL, "", time.Second, 10, time.Hour, nil)
	results := a.Search(context.Background(), "anything", 5)
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty (non-nil) slice on error, got %v", results)
	}
}

func TestSearchWithoutBaseURLReturnsEmpty(t *testing.T) {
	a := New("", "", time.Second, 10, time.Hour, nil)
	results := a.Search(context.Background(), "anything", 5)
	if len(results) != 0 {
		t.Fatalf("expected empty result with no base_url, got %v", results)
	}
}
