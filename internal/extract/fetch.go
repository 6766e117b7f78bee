package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"
)

// MaxFetchChars caps how much text a single fetched page can contribute,
// bounding the embedding cost of one URL ingestion.
const MaxFetchChars = 20000

// Fetcher downloads web pages and extracts their main content. Fetches are
// rate-limited so bulk URL ingestion stays polite.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxChars int
}

// FetcherConfig tunes the fetcher; zero values pick the defaults.
type FetcherConfig struct {
	Timeout        time.Duration
	RequestsPerSec float64
	MaxChars       int
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxFetchChars
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		maxChars: maxChars,
	}
}

// FetchURL downloads the page and runs readability-style main-content
// extraction, truncated to the configured cap. Any failure is returned as an
// error; the ingest layer maps it to "no text extracted".
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract: invalid url %q: %w", rawURL, err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("extract: build request: %w", err)
	}
	// Some sites serve bots an empty shell; look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://www.google.com/")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("extract: fetch %s: %s", rawURL, resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extract: readability %s: %w", rawURL, err)
	}
	text := article.TextContent
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	return text, nil
}
