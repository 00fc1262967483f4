package backfill

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"lokalarchiv/internal/config"
	"lokalarchiv/internal/extractor"
	"lokalarchiv/internal/models"
	"lokalarchiv/internal/storage"

	"github.com/PuerkitoBio/goquery"
)

const dateLayout = "2006-01-02"

// Scraper walks the per-day archive listing pages of the newspaper site and
// stores every local-section article it finds. Archive-sourced articles are
// dated at day precision and carry a fixed source label so they can be told
// apart from feed-sourced ones.
type Scraper struct {
	store         storage.Storage
	extractor     *extractor.Extractor
	client        *http.Client
	baseURL       string
	sectionPrefix string
	sourceLabel   string
}

func New(store storage.Storage, ex *extractor.Extractor, cfg *config.Config) *Scraper {
	return &Scraper{
		store:         store,
		extractor:     ex,
		client:        &http.Client{Timeout: cfg.FetchTimeout},
		baseURL:       strings.TrimSuffix(cfg.ArchiveBaseURL, "/"),
		sectionPrefix: cfg.SectionPathPrefix,
		sourceLabel:   cfg.ArchiveSourceLabel,
	}
}

// ArchiveURL builds the archive listing URL for a day,
// e.g. 2025-07-01 -> <base>/archiv/artikel-01-07-2025/
func (s *Scraper) ArchiveURL(day time.Time) string {
	return fmt.Sprintf("%s/archiv/artikel-%s/", s.baseURL, day.Format("02-01-2006"))
}

// BackfillDay reads every local-section article linked from the archive
// listing of the given day (YYYY-MM-DD) and saves it. Pages that fail to
// fetch are counted in urls_found but not in articles_saved.
func (s *Scraper) BackfillDay(dateStr string) (*models.BackfillReport, error) {
	day, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, models.NewValidationError("date must be in YYYY-MM-DD format, e.g. 2025-07-01")
	}
	return s.backfillDay(day)
}

func (s *Scraper) backfillDay(day time.Time) (*models.BackfillReport, error) {
	urls, err := s.collectArticleURLs(day)
	if err != nil {
		return nil, err
	}

	// The archive date is accurate at day precision, never the byline
	publishedAt := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	saved := 0
	for _, articleURL := range urls {
		result, err := s.extractor.FetchArticle(articleURL)
		if err != nil {
			log.Printf("Warning: could not load article: %s (%v)", articleURL, err)
			continue
		}

		article := &models.Article{
			URL:         articleURL,
			Title:       result.Title,
			Summary:     "",
			Content:     result.Content,
			PublishedAt: &publishedAt,
			Source:      s.sourceLabel,
		}

		if err := s.store.UpsertArticle(article); err != nil {
			log.Printf("Error saving article %s: %v", articleURL, err)
			continue
		}
		saved++
	}

	return &models.BackfillReport{
		Date:          day.Format(dateLayout),
		URLsFound:     len(urls),
		ArticlesSaved: saved,
	}, nil
}

// collectArticleURLs fetches the archive listing page for a day and returns
// the deduplicated, lexicographically sorted set of absolute local-section
// article URLs. Sorting keeps re-runs reproducible.
func (s *Scraper) collectArticleURLs(day time.Time) ([]string, error) {
	listingURL := s.ArchiveURL(day)
	log.Printf("Loading archive page: %s", listingURL)

	resp, err := s.client.Get(listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive page %s: %v", listingURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d fetching archive page %s", resp.StatusCode, listingURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse archive page %s: %v", listingURL, err)
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid archive base URL %s: %v", s.baseURL, err)
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		var full string
		switch {
		case strings.HasPrefix(href, "/"):
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			full = base.ResolveReference(ref).String()
		case strings.HasPrefix(href, "http"):
			full = href
		default:
			return
		}

		if strings.Contains(full, s.sectionPrefix) {
			seen[full] = true
		}
	})

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	log.Printf("Found %d local article links for %s", len(urls), day.Format(dateLayout))
	return urls, nil
}

// BackfillRange runs the single-day backfill for every calendar day from
// start to end inclusive. Both dates must parse and start must not be after
// end; validation fails before any network activity.
func (s *Scraper) BackfillRange(startStr, endStr string) (*models.BackfillRangeReport, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return nil, models.NewValidationError("start date must be in YYYY-MM-DD format, e.g. 2025-07-01")
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return nil, models.NewValidationError("end date must be in YYYY-MM-DD format, e.g. 2025-07-31")
	}
	if start.After(end) {
		return nil, models.NewValidationError("start date must not be after end date")
	}

	aggregate := &models.BackfillRangeReport{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		aggregate.Days++

		report, err := s.BackfillDay(day.Format(dateLayout))
		if err != nil {
			// A failing day degrades the totals but never aborts the run
			log.Printf("Error backfilling %s: %v", day.Format(dateLayout), err)
			aggregate.Reports = append(aggregate.Reports, models.BackfillReport{
				Date: day.Format(dateLayout),
			})
			continue
		}

		aggregate.URLsFound += report.URLsFound
		aggregate.ArticlesSaved += report.ArticlesSaved
		aggregate.Reports = append(aggregate.Reports, *report)
	}

	return aggregate, nil
}
