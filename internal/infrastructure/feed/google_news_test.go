package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AnalystIntel/internal/config"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>"TCS" - Google News</title>
  <item>
    <title>Jefferies raises TCS target - Mint</title>
    <link>https://n.example/a?utm=1</link>
    <pubDate>Sat, 30 Aug 2026 09:00:00 GMT</pubDate>
    <description>&lt;a href="https://n.example/a"&gt;Jefferies raises TCS target&lt;/a&gt; to 4200</description>
  </item>
  <item>
    <title>Jefferies raises TCS target - Mint</title>
    <link>https://n.example/a?utm=1</link>
    <pubDate>Sat, 30 Aug 2026 09:00:00 GMT</pubDate>
    <description>duplicate entry</description>
  </item>
  <item>
    <title>TCS target hiked by brokerage - MarketScreener</title>
    <link>https://blocked.example/x</link>
    <pubDate>Sat, 30 Aug 2026 08:00:00 GMT</pubDate>
    <description>blacklisted source</description>
  </item>
</channel>
</rss>`

const emptyRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>empty</title></channel></rss>`

func newTestSource(t *testing.T, handler http.HandlerFunc) (*GoogleNewsSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.FeedConfig{
		BaseURL:         server.URL,
		QueryTemplates:  []string{"%s analyst rating target price"},
		SourceBlacklist: []string{"marketscreener"},
		MaxPerQuery:     10,
		Timeout:         5 * time.Second,
	}
	return NewGoogleNewsSource(cfg, server.Client(), nil, nil), server
}

func TestFetchParsesAndFilters(t *testing.T) {
	t.Parallel()

	var gotQuery string
	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	})

	candidates, err := source.Fetch(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if gotQuery != "TCS analyst rating target price" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate after dedup and blacklist, got %d", len(candidates))
	}

	cand := candidates[0]
	if cand.Symbol != "TCS" {
		t.Fatalf("unexpected symbol: %q", cand.Symbol)
	}
	if cand.RawTitle != "Jefferies raises TCS target" {
		t.Fatalf("publisher suffix must be split off, got %q", cand.RawTitle)
	}
	if cand.Source != "Mint" {
		t.Fatalf("unexpected source: %q", cand.Source)
	}
	if cand.RawURL != "https://n.example/a?utm=1" {
		t.Fatalf("raw url must be untouched here, got %q", cand.RawURL)
	}
	if cand.Snippet != "Jefferies raises TCS target to 4200" {
		t.Fatalf("html must be stripped from snippet, got %q", cand.Snippet)
	}
	if cand.PublishedAt.IsZero() {
		t.Fatal("published date must be parsed")
	}
}

func TestFetchEmptyFeedIsNotAnError(t *testing.T) {
	t.Parallel()

	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(emptyRSS))
	})

	candidates, err := source.Fetch(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("empty feed must not error: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestFetchAllQueriesFailing(t *testing.T) {
	t.Parallel()

	source, _ := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	_, err := source.Fetch(context.Background(), "TCS")
	if err == nil {
		t.Fatal("expected an error when every query fails")
	}
}

func TestFetchUsesCompanyName(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(emptyRSS))
	}))
	t.Cleanup(server.Close)

	cfg := config.FeedConfig{
		BaseURL:        server.URL,
		QueryTemplates: []string{"%s analyst rating"},
		Timeout:        5 * time.Second,
	}
	namer := func(symbol string) string {
		if symbol == "TCS" {
			return "Tata Consultancy Services"
		}
		return ""
	}
	source := NewGoogleNewsSource(cfg, server.Client(), namer, nil)

	if _, err := source.Fetch(context.Background(), "TCS"); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotQuery != "Tata Consultancy Services analyst rating" {
		t.Fatalf("expected company name in query, got %q", gotQuery)
	}
}
