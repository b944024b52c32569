package scraper

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/metrics"
	"gigalert/discovery-service/internal/model"
)

const (
	// postingSelector matches the anchor inside each listing heading.
	postingSelector = `h1.title > a`
	userAgent       = "Mozilla/5.0 (compatible; gigalert-discovery/1.0)"
	maxErrBody      = 512

	// Page GETs inside a cycle run concurrently; space them out a little.
	fetchEvery = 250 * time.Millisecond
	fetchBurst = 2
)

// PageFetcher retrieves listing pages from the source site and extracts postings.
// It holds no state between calls beyond its HTTP client and limiter.
type PageFetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// NewPageFetcher constructs a fetcher for baseURL (e.g. "https://www.99freelas.com.br").
// Every request is bounded by timeout.
func NewPageFetcher(baseURL string, timeout time.Duration, log logger.Logger) *PageFetcher {
	return &PageFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(fetchEvery), fetchBurst),
		log:     log.With(logger.String("component", "fetcher")),
	}
}

// PageURL returns the listing URL for a 1-based page index.
func (f *PageFetcher) PageURL(page int) string {
	return fmt.Sprintf("%s/projects?page=%d", f.baseURL, page)
}

// FetchPage downloads one listing page and returns its postings in document order.
// Network, status and parse failures are logged and yield an empty sequence.
func (f *PageFetcher) FetchPage(ctx context.Context, page int) iter.Seq[model.Posting] {
	doc, err := f.fetchDocument(ctx, page)
	if err != nil {
		metrics.RecordPageFetch("error")
		f.log.Warn("Listing page fetch failed",
			logger.Int("page", page),
			logger.Error(err),
		)
		return func(func(model.Posting) bool) {}
	}
	metrics.RecordPageFetch("ok")
	return Postings(doc)
}

func (f *PageFetcher) fetchDocument(ctx context.Context, page int) (*goquery.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.PageURL(page), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, fmt.Errorf("listing source returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Postings lazily yields {title, link} pairs from a parsed listing page.
// Headings without text or href are skipped.
func Postings(doc *goquery.Document) iter.Seq[model.Posting] {
	return func(yield func(model.Posting) bool) {
		doc.Find(postingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title := strings.TrimSpace(s.Text())
			href, _ := s.Attr("href")
			href = strings.TrimSpace(href)
			if title == "" || href == "" {
				return true
			}
			return yield(model.Posting{Title: title, Link: href})
		})
	}
}
