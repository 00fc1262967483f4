package ingest

import (
	"log"
	"net/http"
	"strings"
	"time"

	"lokalarchiv/internal/extractor"
	"lokalarchiv/internal/models"
	"lokalarchiv/internal/storage"

	"github.com/mmcdole/gofeed"
)

// Ingester pulls configured RSS feeds, resolves full article text through
// the extractor and upserts the results into the article store. Runs are
// idempotent: re-ingesting a feed updates existing records in place.
type Ingester struct {
	store     storage.Storage
	extractor *extractor.Extractor
	parser    *gofeed.Parser
	feedURLs  []string
}

func New(store storage.Storage, ex *extractor.Extractor, feedURLs []string, timeout time.Duration) *Ingester {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	return &Ingester{
		store:     store,
		extractor: ex,
		parser:    parser,
		feedURLs:  feedURLs,
	}
}

// Run ingests all configured feeds sequentially. A feed that fails to parse
// contributes zero and does not abort the remaining feeds.
func (i *Ingester) Run() *models.IngestReport {
	report := &models.IngestReport{
		PerFeed: make(map[string]int),
	}

	for _, feedURL := range i.feedURLs {
		count := i.ingestFeed(feedURL)
		report.PerFeed[feedURL] = count
		report.TotalArticles += count
	}

	log.Printf("Ingestion completed: %d articles across %d feeds", report.TotalArticles, len(i.feedURLs))
	return report
}

func (i *Ingester) ingestFeed(feedURL string) int {
	log.Printf("Ingesting feed: %s", feedURL)

	feed, err := i.parser.ParseURL(feedURL)
	if err != nil {
		log.Printf("Error parsing feed %s: %v", feedURL, err)
		return 0
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedURL
	}

	count := 0
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)

		// Entries without a link or title can neither be identified
		// nor displayed
		if link == "" || title == "" {
			continue
		}

		article := &models.Article{
			URL:         link,
			Title:       title,
			Summary:     strings.TrimSpace(item.Description),
			PublishedAt: resolvePublished(item),
			Source:      source,
		}

		// Resolve the full body from the article page itself; the feed
		// teaser stays in Summary untouched. A failed fetch just leaves
		// the content empty.
		if result, err := i.extractor.FetchArticle(link); err != nil {
			log.Printf("Warning: could not fetch article page %s: %v", link, err)
		} else {
			article.Content = result.Content
		}

		if err := i.store.UpsertArticle(article); err != nil {
			log.Printf("Error saving article %s: %v", link, err)
			continue
		}
		count++
	}

	log.Printf("Processed %d entries from %s", count, feedURL)
	return count
}

// resolvePublished prefers the entry's published timestamp, falls back to
// its updated timestamp, else leaves the date unset. Timestamps are
// normalized to UTC with second precision.
func resolvePublished(item *gofeed.Item) *time.Time {
	var raw *time.Time
	switch {
	case item.PublishedParsed != nil:
		raw = item.PublishedParsed
	case item.UpdatedParsed != nil:
		raw = item.UpdatedParsed
	default:
		return nil
	}

	normalized := raw.UTC().Truncate(time.Second)
	return &normalized
}
