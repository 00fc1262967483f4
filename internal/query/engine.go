package query

import (
	"fmt"
	"strings"
	"time"

	"lokalarchiv/internal/models"
	"lokalarchiv/internal/normalizer"
	"lokalarchiv/internal/storage"
)

const (
	dateLayout = "2006-01-02"

	// DefaultLimit caps result lists when the caller gives no limit
	DefaultLimit = 20

	// Candidate window: stale enough to be worth resurfacing, not ancient
	candidateMinAgeDays = 180
	candidateMaxAgeDays = 3 * 365
)

// excludedTitleTerms marks topical categories that are never worth
// republishing: accidents, fires, police and court reporting, weather
// warnings and routine sports coverage. An article whose title contains any
// of these substrings is excluded from candidate lists.
var excludedTitleTerms = []string{
	"unfall",
	"feuer",
	"brand",
	"polizei",
	"gericht",
	"prozess",
	"festnahme",
	"unwetter",
	"sturm",
	"fußball",
	"fussball",
	"sport",
}

// Engine builds filtered, ordered queries over the article store
type Engine struct {
	store storage.Storage
	now   func() time.Time
}

func New(store storage.Storage) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// Search expands the term into its orthographic variants and returns
// matching article summaries, newest first. The term is required; the date
// window is optional and inclusive on both ends.
func (e *Engine) Search(term string, limit int, fromStr, toStr string) ([]models.ArticleSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, models.NewValidationError("search term must not be empty")
	}

	from, to, err := parseDateWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}

	q := &models.ArticleQuery{
		Terms: normalizer.Variants(term),
		From:  from,
		To:    to,
		Limit: normalizeLimit(limit),
	}

	articles, err := e.store.QueryArticles(q)
	if err != nil {
		return nil, fmt.Errorf("search failed: %v", err)
	}

	return toSummaries(articles), nil
}

// Candidates returns republish candidates: articles matching the optional
// topic within the date window, minus the excluded topical categories. When
// the caller gives no window the default sliding window of articles between
// 180 days and 3 years old applies.
func (e *Engine) Candidates(topic string, limit int, fromStr, toStr string) ([]models.ArticleSummary, error) {
	from, to, err := parseDateWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}

	if from == nil && to == nil {
		now := e.now().UTC()
		windowFrom := now.AddDate(0, 0, -candidateMaxAgeDays)
		windowTo := now.AddDate(0, 0, -candidateMinAgeDays)
		from = &windowFrom
		to = &windowTo
	}

	q := &models.ArticleQuery{
		From:              from,
		To:                to,
		ExcludeTitleTerms: excludedTitleTerms,
		Limit:             normalizeLimit(limit),
	}

	if topic = strings.TrimSpace(topic); topic != "" {
		q.Terms = normalizer.Variants(topic)
	}

	articles, err := e.store.QueryArticles(q)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %v", err)
	}

	return toSummaries(articles), nil
}

// RenderDigest formats a candidate list as the text body sent to the chat
// webhook
func RenderDigest(candidates []models.ArticleSummary) string {
	if len(candidates) == 0 {
		return "Keine Republish-Kandidaten gefunden."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Republish-Kandidaten (%d):\n", len(candidates))
	for _, c := range candidates {
		date := "ohne Datum"
		if c.PublishedAt != nil {
			date = c.PublishedAt.Format(dateLayout)
		}
		fmt.Fprintf(&b, "\n- %s (%s)\n  %s\n", c.Title, date, c.URL)
	}
	return b.String()
}

// parseDateWindow turns optional YYYY-MM-DD strings into inclusive bounds:
// the from date at midnight, the to date at end of day.
func parseDateWindow(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if fromStr != "" {
		day, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return nil, nil, models.NewValidationError("from date must be in YYYY-MM-DD format")
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		from = &start
	}

	if toStr != "" {
		day, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return nil, nil, models.NewValidationError("to date must be in YYYY-MM-DD format")
		}
		end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC)
		to = &end
	}

	if from != nil && to != nil && from.After(*to) {
		return nil, nil, models.NewValidationError("from date must not be after to date")
	}

	return from, to, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func toSummaries(articles []models.Article) []models.ArticleSummary {
	summaries := make([]models.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, models.ArticleSummary{
			ID:          a.ID,
			URL:         a.URL,
			Title:       a.Title,
			Summary:     a.Summary,
			PublishedAt: a.PublishedAt,
			Source:      a.Source,
		})
	}
	return summaries
}
