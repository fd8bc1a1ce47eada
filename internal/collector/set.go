package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TwoDSentinel/internal/model"
)

// DefaultSETURL is the public SET market overview page.
const DefaultSETURL = "https://www.set.or.th/en/market/product/stock/overview"

// Positions of the quote cells on the overview page: the second table,
// whose 5th div holds the index level and 7th div the traded value.
const (
	overviewTable = 1
	setDiv        = 4
	valueDiv      = 6
)

// SETSource scrapes the index level and traded value from the SET overview page.
type SETSource struct {
	httpSource
	URL string
}

// NewSETSource creates a scraper for pageURL; snapshots are stamped in loc.
func NewSETSource(pageURL string, loc *time.Location, opts ...Option) *SETSource {
	if pageURL == "" {
		pageURL = DefaultSETURL
	}
	return &SETSource{httpSource: newHTTPSource(loc, opts), URL: pageURL}
}

func (s *SETSource) Name() string { return "set" }

func (s *SETSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	if err := s.wait(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: rate limit: %w", ErrQuote, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: build request: %w", ErrQuote, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: fetch overview: %w", ErrQuote, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Snapshot{}, fmt.Errorf("%w: overview status %d, body: %s", ErrQuote, resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: parse overview: %w", ErrQuote, err)
	}
	set, value, err := parseOverview(doc)
	if err != nil {
		return model.Snapshot{}, err
	}
	return s.stamp(set, value)
}

// parseOverview extracts the raw index and value texts from the overview document.
func parseOverview(doc *goquery.Document) (set, value string, err error) {
	table := doc.Find("table").Eq(overviewTable)
	if table.Length() == 0 {
		return "", "", fmt.Errorf("%w: overview table not found", ErrQuote)
	}
	divs := table.Find("div")
	if divs.Length() <= valueDiv {
		return "", "", fmt.Errorf("%w: overview table has %d cells", ErrQuote, divs.Length())
	}
	set = strings.TrimSpace(divs.Eq(setDiv).Text())
	value = strings.TrimSpace(divs.Eq(valueDiv).Text())
	return set, value, nil
}
