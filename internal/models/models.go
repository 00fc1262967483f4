package models

import (
	"fmt"
	"time"
)

// Article represents a single archived news article. The URL is the natural
// key: writing an article whose URL already exists updates the stored record.
type Article struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Source      string     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ArticleSummary is the search result shape: everything except the full body.
type ArticleSummary struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Source      string     `json:"source"`
}

// ArticleQuery describes a filtered, ordered query over stored articles.
type ArticleQuery struct {
	// Terms are lowercase substring variants of a single search term.
	// Matches across variants are unioned: an article matches when any
	// variant is a substring of its title, summary or content.
	Terms []string `json:"terms"`
	// From and To bound published_at inclusively when set.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
	// ExcludeTitleTerms are substrings that must not appear in the title.
	ExcludeTitleTerms []string `json:"exclude_title_terms,omitempty"`
	Limit             int      `json:"limit"`
}

// IngestReport summarizes one ingestion run across all configured feeds.
type IngestReport struct {
	TotalArticles int            `json:"total_articles_processed"`
	PerFeed       map[string]int `json:"per_feed"`
}

// BackfillReport summarizes a single-day archive backfill.
type BackfillReport struct {
	Date          string `json:"date"`
	URLsFound     int    `json:"urls_found"`
	ArticlesSaved int    `json:"articles_saved"`
}

// BackfillRangeReport aggregates per-day backfill reports over a date range.
type BackfillRangeReport struct {
	StartDate     string           `json:"start_date"`
	EndDate       string           `json:"end_date"`
	Days          int              `json:"days"`
	URLsFound     int              `json:"urls_found"`
	ArticlesSaved int              `json:"articles_saved"`
	Reports       []BackfillReport `json:"reports"`
}

// ValidationError reports malformed caller input (dates, blank search terms).
// It is surfaced to the caller and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
