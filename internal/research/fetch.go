package research

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/htmlx"
)

// FetchResult is the normalized fetch contract shared by direct HTTP
// fetches and source adapters.
type FetchResult struct {
	Content string
	Title   string
	Links   []htmlx.Link
	Err     string // non-empty when the fetch failed
}

// Fetcher retrieves pages over HTTP and strips them to text + links.
type Fetcher struct {
	http      *http.Client
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// SanitizeURL removes escape artifacts models sometimes leave in URLs.
func SanitizeURL(url string) string {
	return strings.ReplaceAll(url, `\`, "")
}

// FetchAndParse retrieves url and reduces it to the fetch contract.
// Failures are reported in the result, never as a Go error, so tool
// executors can relay them to the model per-url.
func (f *Fetcher) FetchAndParse(url string) FetchResult {
	url = SanitizeURL(url)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Err: err.Error()}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return FetchResult{Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{Err: fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, url)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{Err: err.Error()}
	}

	text, links, err := htmlx.Strip(string(body))
	if err != nil {
		return FetchResult{Err: fmt.Sprintf("parse error: %v", err)}
	}

	return FetchResult{
		Content: text,
		Title:   pageTitle(text, url),
		Links:   links,
	}
}

// pageTitle is the first non-empty content line, capped at 200 chars,
// falling back to the url.
func pageTitle(content, url string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return url
}
