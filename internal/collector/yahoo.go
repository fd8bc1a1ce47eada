package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"TwoDSentinel/internal/model"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooSource reads the index level and volume from the Yahoo Finance chart API.
// It is a fallback for when the exchange page is unreachable; its value field is
// volume rather than exchange turnover, so codes can differ from the SET page.
type YahooSource struct {
	httpSource
	BaseURL   string
	Symbol    string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooSource creates a Yahoo chart source for symbol; snapshots are stamped in loc.
func NewYahooSource(baseURL, symbol string, loc *time.Location, opts ...Option) *YahooSource {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if symbol == "" {
		symbol = "SET"
	}
	return &YahooSource{
		httpSource: newHTTPSource(loc, opts),
		BaseURL:    strings.TrimRight(baseURL, "/") + "/",
		Symbol:     symbol,
		SymbolMap: map[string]string{
			"SET":   "^SET.BK",
			"SET50": "^SET50.BK",
		},
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol() string {
	if mapped, ok := f.SymbolMap[f.Symbol]; ok {
		return mapped
	}
	return f.Symbol
}

// yahooChart is the subset of the chart API response we read.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	if err := f.wait(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: rate limit: %w", ErrQuote, err)
	}
	u := fmt.Sprintf("%s%s?interval=1m&range=1d", f.BaseURL, url.PathEscape(f.yahooSymbol()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: build request: %w", ErrQuote, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo fetch: %w", ErrQuote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo read body: %w", ErrQuote, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo status %d", ErrQuote, resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo decode: %w", ErrQuote, err)
	}
	if chart.Chart.Error != nil {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo api error: %s", ErrQuote, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return model.Snapshot{}, fmt.Errorf("%w: yahoo returned no price", ErrQuote)
	}

	meta := chart.Chart.Result[0].Meta
	set := humanize.FormatFloat("#,###.##", meta.RegularMarketPrice)
	value := humanize.Comma(int64(meta.RegularMarketVolume))
	return f.stamp(set, value)
}
