package extractor

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Result holds the title and body text extracted from an article page.
// Title is never empty: when the page has no level-1 heading the page URL
// is used verbatim. Content may be empty when no paragraphs were found.
type Result struct {
	Title   string
	Content string
}

// Extractor fetches article pages and pulls out title and body paragraphs
type Extractor struct {
	client *http.Client
}

func New(timeout time.Duration) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: timeout},
	}
}

// FetchArticle loads an article page and extracts its title and body text.
// A fetch-level failure (network error, timeout, non-2xx status) is returned
// as an error so the caller can skip the URL; a page without heading or
// paragraphs is not an error and falls back to URL-as-title.
func (e *Extractor) FetchArticle(pageURL string) (Result, error) {
	resp, err := e.client.Get(pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch %s: %v", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain the body so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Printf("Warning: failed to parse HTML from %s: %v", pageURL, err)
		return Result{Title: pageURL}, nil
	}

	return ExtractFromDocument(doc, pageURL), nil
}

// Extract parses an HTML document and extracts title and body text,
// using fallbackURL as the title when no level-1 heading exists.
func Extract(html string, fallbackURL string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Title: fallbackURL}
	}
	return ExtractFromDocument(doc, fallbackURL)
}

// ExtractFromDocument applies the extraction heuristic to a parsed document:
// the first h1 is the title; paragraphs inside the first article container
// are the body, falling back to every paragraph in the document. Paragraph
// texts are trimmed, empties discarded, and the rest joined by blank lines.
func ExtractFromDocument(doc *goquery.Document, fallbackURL string) Result {
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = fallbackURL
	}

	container := doc.Find("article").First()
	var paragraphs *goquery.Selection
	if container.Length() > 0 {
		paragraphs = container.Find("p")
	} else {
		paragraphs = doc.Find("p")
	}

	var texts []string
	paragraphs.Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			texts = append(texts, text)
		}
	})

	return Result{
		Title:   title,
		Content: strings.Join(texts, "\n\n"),
	}
}
