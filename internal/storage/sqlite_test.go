package storage

import (
	"testing"
	"time"

	"lokalarchiv/internal/models"
)

func newTestStorage(t *testing.T) Storage {
	t.Helper()

	store, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("Bad test date %q: %v", value, err)
	}
	return &parsed
}

func TestSQLiteStorage_UpsertIsIdempotent(t *testing.T) {
	store := newTestStorage(t)

	article := &models.Article{
		URL:     "https://example.com/lokales/goettingen-lk/goettingen/fest-123.html",
		Title:   "Altstadtfest beginnt",
		Summary: "Teaser",
		Content: "Erster Absatz.\n\nZweiter Absatz.",
		Source:  "Test Blatt",
	}

	if err := store.UpsertArticle(article); err != nil {
		t.Fatalf("Failed to upsert article: %v", err)
	}

	first, err := store.GetArticleByURL(article.URL)
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}

	// Second write with a different title must update in place
	article.Title = "Altstadtfest eröffnet"
	if err := store.UpsertArticle(article); err != nil {
		t.Fatalf("Failed to upsert article again: %v", err)
	}

	count, err := store.CountArticles()
	if err != nil {
		t.Fatalf("Failed to count articles: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 record after double upsert, got %d", count)
	}

	second, err := store.GetArticleByURL(article.URL)
	if err != nil {
		t.Fatalf("Failed to load article after update: %v", err)
	}

	if second.Title != "Altstadtfest eröffnet" {
		t.Errorf("Expected updated title, got %q", second.Title)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected created_at to stay %v, got %v", first.CreatedAt, second.CreatedAt)
	}

	if second.ID != first.ID {
		t.Errorf("Expected the same row id, got %d and %d", first.ID, second.ID)
	}
}

func TestSQLiteStorage_QueryVariantsAreUnioned(t *testing.T) {
	store := newTestStorage(t)

	articles := []*models.Article{
		{URL: "https://example.com/1", Title: "Goettingen feiert", Source: "Test"},
		{URL: "https://example.com/2", Title: "Kassel feiert", Source: "Test"},
		{URL: "https://example.com/3", Title: "Ruhiger Tag", Summary: "Fest in göttingen", Source: "Test"},
	}
	for _, a := range articles {
		if err := store.UpsertArticle(a); err != nil {
			t.Fatalf("Failed to upsert article: %v", err)
		}
	}

	results, err := store.QueryArticles(&models.ArticleQuery{
		Terms: []string{"göttingen", "gottingen", "goettingen"},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Failed to query articles: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 matches across variants, got %d", len(results))
	}
}

func TestSQLiteStorage_DateWindowIsInclusive(t *testing.T) {
	store := newTestStorage(t)

	inside := &models.Article{
		URL:         "https://example.com/inside",
		Title:       "Konzert im Juli",
		PublishedAt: datePtr(t, "2025-07-31T23:00:00Z"),
		Source:      "Test",
	}
	outside := &models.Article{
		URL:         "https://example.com/outside",
		Title:       "Konzert im August",
		PublishedAt: datePtr(t, "2025-08-01T00:00:00Z"),
		Source:      "Test",
	}
	for _, a := range []*models.Article{inside, outside} {
		if err := store.UpsertArticle(a); err != nil {
			t.Fatalf("Failed to upsert article: %v", err)
		}
	}

	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 31, 23, 59, 59, 0, time.UTC)

	results, err := store.QueryArticles(&models.ArticleQuery{
		Terms: []string{"konzert"},
		From:  &from,
		To:    &to,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Failed to query articles: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 match inside the window, got %d", len(results))
	}
	if results[0].URL != inside.URL {
		t.Errorf("Expected %s, got %s", inside.URL, results[0].URL)
	}
}

func TestSQLiteStorage_TitleExclusions(t *testing.T) {
	store := newTestStorage(t)

	articles := []*models.Article{
		{URL: "https://example.com/a7", Title: "Unfall auf der A7", PublishedAt: datePtr(t, "2025-01-10T08:00:00Z"), Source: "Test"},
		{URL: "https://example.com/markt", Title: "Wochenmarkt wächst", PublishedAt: datePtr(t, "2025-01-11T08:00:00Z"), Source: "Test"},
	}
	for _, a := range articles {
		if err := store.UpsertArticle(a); err != nil {
			t.Fatalf("Failed to upsert article: %v", err)
		}
	}

	results, err := store.QueryArticles(&models.ArticleQuery{
		ExcludeTitleTerms: []string{"unfall", "polizei"},
		Limit:             10,
	})
	if err != nil {
		t.Fatalf("Failed to query articles: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 article after exclusion, got %d", len(results))
	}
	if results[0].Title != "Wochenmarkt wächst" {
		t.Errorf("Expected the market article, got %q", results[0].Title)
	}
}

func TestSQLiteStorage_OrderingAndLimit(t *testing.T) {
	store := newTestStorage(t)

	articles := []*models.Article{
		{URL: "https://example.com/old", Title: "Alt", PublishedAt: datePtr(t, "2025-01-01T08:00:00Z"), Source: "Test"},
		{URL: "https://example.com/new", Title: "Neu", PublishedAt: datePtr(t, "2025-03-01T08:00:00Z"), Source: "Test"},
		{URL: "https://example.com/undated", Title: "Ohne Datum", Source: "Test"},
		{URL: "https://example.com/tie-1", Title: "Gleichstand 1", PublishedAt: datePtr(t, "2025-02-01T08:00:00Z"), Source: "Test"},
		{URL: "https://example.com/tie-2", Title: "Gleichstand 2", PublishedAt: datePtr(t, "2025-02-01T08:00:00Z"), Source: "Test"},
	}
	for _, a := range articles {
		if err := store.UpsertArticle(a); err != nil {
			t.Fatalf("Failed to upsert article: %v", err)
		}
	}

	results, err := store.QueryArticles(&models.ArticleQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Failed to query articles: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("Expected 5 articles, got %d", len(results))
	}

	expectedOrder := []string{
		"https://example.com/new",
		"https://example.com/tie-2", // dated ties break by most recent insertion
		"https://example.com/tie-1",
		"https://example.com/old",
		"https://example.com/undated", // undated sorts last
	}
	for i, want := range expectedOrder {
		if results[i].URL != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, results[i].URL)
		}
	}

	limited, err := store.QueryArticles(&models.ArticleQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to query articles with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 articles with limit=2, got %d", len(limited))
	}
}

func TestSQLiteStorage_GetDatabaseStats(t *testing.T) {
	store := newTestStorage(t)

	articles := []*models.Article{
		{URL: "https://example.com/1", Title: "Eins", PublishedAt: datePtr(t, "2025-01-01T08:00:00Z"), Source: "Feed"},
		{URL: "https://example.com/2", Title: "Zwei", Source: "GT Archiv"},
	}
	for _, a := range articles {
		if err := store.UpsertArticle(a); err != nil {
			t.Fatalf("Failed to upsert article: %v", err)
		}
	}

	stats, err := store.GetDatabaseStats()
	if err != nil {
		t.Fatalf("Failed to get database stats: %v", err)
	}

	if stats["total_articles"] != 2 {
		t.Errorf("Expected 2 total articles, got %v", stats["total_articles"])
	}
	if stats["articles_without_date"] != 1 {
		t.Errorf("Expected 1 undated article, got %v", stats["articles_without_date"])
	}

	perSource, ok := stats["articles_per_source"].(map[string]int)
	if !ok {
		t.Fatalf("Expected per-source stats map, got %T", stats["articles_per_source"])
	}
	if perSource["GT Archiv"] != 1 {
		t.Errorf("Expected 1 archive article, got %d", perSource["GT Archiv"])
	}
}
