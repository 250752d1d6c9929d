package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// HTTPFetcher fetches target pages with plain GET requests. It suits public
// search-result pages that render server side.
type HTTPFetcher struct {
	client *http.Client
	opts   *Options
	pacer  *Pacer
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(opts *Options) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		pacer:  NewPacer(opts.Delay),
	}
}

// Fetch retrieves the target URL and, when Pages > 1, the following result pages.
// A later page that fails or comes back empty ends pagination without failing the target.
func (f *HTTPFetcher) Fetch(ctx context.Context, target types.Target) ([]Payload, error) {
	var payloads []Payload
	for page := 1; page <= f.opts.Pages; page++ {
		pageURL, err := PageURL(target.URL, page)
		if err != nil {
			return nil, &Error{Kind: KindNetwork, URL: target.URL, Message: "invalid URL", Cause: err}
		}

		if err := f.pacer.Wait(ctx); err != nil {
			return payloads, err
		}

		p, err := f.get(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("[FETCH] stopping pagination for %s at page %d: %v", target.Name, page, err)
			break
		}
		payloads = append(payloads, *p)
	}
	return payloads, nil
}

// Close is a no-op for the HTTP fetcher.
func (f *HTTPFetcher) Close() error {
	return nil
}

func (f *HTTPFetcher) get(ctx context.Context, urlStr string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: kindForStatus(resp.StatusCode), URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, &Error{Kind: KindEmpty, URL: urlStr, Message: "empty response body"}
	}

	return &Payload{URL: urlStr, HTML: string(body), FetchedAt: time.Now()}, nil
}

// PageURL returns the URL of the given 1-based result page. Page 1 is the URL itself.
func PageURL(raw string, page int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host in %q", raw)
	}
	if page <= 1 {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
