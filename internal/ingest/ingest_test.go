package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lokalarchiv/internal/extractor"
	"lokalarchiv/internal/storage"
)

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Blatt</title>
    <item>
      <title>Altstadtfest beginnt</title>
      <link>%s/artikel/fest</link>
      <description>Teaser zum Fest</description>
      <pubDate>Mon, 07 Jul 2025 10:30:00 GMT</pubDate>
    </item>
    <item>
      <title>Ohne Datum</title>
      <link>%s/artikel/ohne-datum</link>
    </item>
    <item>
      <title></title>
      <link>%s/artikel/ohne-titel</link>
    </item>
    <item>
      <title>Ohne Link</title>
    </item>
  </channel>
</rss>`, server.URL, server.URL, server.URL)
	})

	mux.HandleFunc("/artikel/fest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Altstadtfest beginnt</h1><article><p>Volltext zum Fest.</p></article></body></html>`))
	})

	mux.HandleFunc("/artikel/ohne-datum", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()

	store, err := storage.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIngester_Run(t *testing.T) {
	server := newFeedServer(t)
	store := newTestStore(t)

	feedURL := server.URL + "/feed"
	ingester := New(store, extractor.New(5*time.Second), []string{feedURL}, 5*time.Second)

	report := ingester.Run()

	// Entries without link or title are skipped
	if report.TotalArticles != 2 {
		t.Fatalf("Expected 2 processed entries, got %d", report.TotalArticles)
	}
	if report.PerFeed[feedURL] != 2 {
		t.Errorf("Expected per-feed count 2, got %d", report.PerFeed[feedURL])
	}

	// The dated entry got its full text resolved from the article page
	fest, err := store.GetArticleByURL(server.URL + "/artikel/fest")
	if err != nil {
		t.Fatalf("Failed to load ingested article: %v", err)
	}
	if fest.Title != "Altstadtfest beginnt" {
		t.Errorf("Unexpected title: %q", fest.Title)
	}
	if fest.Summary != "Teaser zum Fest" {
		t.Errorf("Expected feed teaser as summary, got %q", fest.Summary)
	}
	if fest.Content != "Volltext zum Fest." {
		t.Errorf("Expected extracted body, got %q", fest.Content)
	}
	if fest.Source != "Test Blatt" {
		t.Errorf("Expected feed title as source, got %q", fest.Source)
	}
	if fest.PublishedAt == nil {
		t.Fatal("Expected a published date")
	}
	want := time.Date(2025, 7, 7, 10, 30, 0, 0, time.UTC)
	if !fest.PublishedAt.Equal(want) {
		t.Errorf("Expected published at %v, got %v", want, fest.PublishedAt)
	}

	// The entry whose page 404s is still saved, just without content
	undated, err := store.GetArticleByURL(server.URL + "/artikel/ohne-datum")
	if err != nil {
		t.Fatalf("Failed to load article with failed page fetch: %v", err)
	}
	if undated.Content != "" {
		t.Errorf("Expected empty content for failed page fetch, got %q", undated.Content)
	}
	if undated.PublishedAt != nil {
		t.Errorf("Expected no published date, got %v", undated.PublishedAt)
	}
}

func TestIngester_FailingFeedContributesZero(t *testing.T) {
	server := newFeedServer(t)
	store := newTestStore(t)

	goodFeed := server.URL + "/feed"
	badFeed := server.URL + "/kaputt"
	ingester := New(store, extractor.New(5*time.Second), []string{badFeed, goodFeed}, 5*time.Second)

	report := ingester.Run()

	if report.PerFeed[badFeed] != 0 {
		t.Errorf("Expected 0 for failing feed, got %d", report.PerFeed[badFeed])
	}
	if report.PerFeed[goodFeed] != 2 {
		t.Errorf("Expected remaining feed to still be processed, got %d", report.PerFeed[goodFeed])
	}
	if report.TotalArticles != 2 {
		t.Errorf("Expected total 2, got %d", report.TotalArticles)
	}
}

func TestIngester_RunIsIdempotent(t *testing.T) {
	server := newFeedServer(t)
	store := newTestStore(t)

	ingester := New(store, extractor.New(5*time.Second), []string{server.URL + "/feed"}, 5*time.Second)

	ingester.Run()
	first, err := store.GetArticleByURL(server.URL + "/artikel/fest")
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}

	ingester.Run()

	count, err := store.CountArticles()
	if err != nil {
		t.Fatalf("Failed to count articles: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 articles after re-run, got %d", count)
	}

	second, err := store.GetArticleByURL(server.URL + "/artikel/fest")
	if err != nil {
		t.Fatalf("Failed to load article after re-run: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected created_at to survive re-ingestion, got %v then %v", first.CreatedAt, second.CreatedAt)
	}
}
