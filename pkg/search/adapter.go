// Package search implements the web-search adapter the Searcher agent
// calls: a query-level search with a response-time LRU/TTL cache.
package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeready-toolchain/deepresearch/pkg/metrics"
)

// Result is one web-search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Summary string `json:"summary"`
	SiteName string `json:"site_name"`
	Date    string `json:"date"`
}

type cacheEntry struct {
	results []Result
	expiry  time.Time
}

// Adapter is the Search Adapter: search(query, count) -> []Result, with
// timeouts and network errors swallowed rather than propagated.
type Adapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *lru.Cache[string, cacheEntry]
	ttl        time.Duration
	log        *slog.Logger
}

// New constructs a Search Adapter with an LRU cache of the given size and
// per-entry TTL.
func New(baseURL, apiKey string, timeout time.Duration, cacheSize int, ttl time.Duration, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Adapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		ttl:        ttl,
		log:        log,
	}
}

type searchRequest struct {
	Query     string `json:"query"`
	Count     int    `json:"count"`
	Summary   bool   `json:"summary"`
	Freshness string `json:"freshness"`
}

type searchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				URL           string `json:"url"`
				Name          string `json:"name"`
				Snippet       string `json:"snippet"`
				Summary       string `json:"summary"`
				SiteName      string `json:"siteName"`
				DatePublished string `json:"datePublished"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

// Search performs a cached web search. Any failure (timeout, transport
// error, non-2xx, decode error) is swallowed and returns an empty slice,
// per spec: "network errors never propagate".
func (a *Adapter) Search(ctx context.Context, query string, count int) []Result {
	key := cacheKey(query)
	if cached, ok := a.cache.Get(key); ok {
		if time.Now().Before(cached.expiry) {
			return cached.results
		}
		a.cache.Remove(key)
	}

	results, err := a.doSearch(ctx, query, count)
	if err != nil {
		a.log.Warn("search adapter call failed, returning empty result", "query", query, "error", err)
		metrics.SearchCalls.WithLabelValues("error").Inc()
		return []Result{}
	}

	metrics.SearchCalls.WithLabelValues("ok").Inc()
	a.cache.Add(key, cacheEntry{results: results, expiry: time.Now().Add(a.ttl)})
	return results
}

func (a *Adapter) doSearch(ctx context.Context, query string, count int) ([]Result, error) {
	if a.baseURL == "" {
		return nil, fmt.Errorf("search adapter has no base_url configured")
	}

	reqBody, err := json.Marshal(searchRequest{Query: query, Count: count, Summary: true, Freshness: "noLimit"})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Result, 0, len(parsed.Data.WebPages.Value))
	for _, v := range parsed.Data.WebPages.Value {
		out = append(out, Result{
			URL:      v.URL,
			Title:    v.Name,
			Snippet:  v.Snippet,
			Summary:  v.Summary,
			SiteName: v.SiteName,
			Date:     v.DatePublished,
		})
	}
	return out, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}
