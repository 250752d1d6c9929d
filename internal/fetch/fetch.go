// Package fetch retrieves raw result pages for scrape targets, either with a headless
// browser or with plain HTTP requests.
package fetch

import (
	"context"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// DefaultTimeout is the default per-page timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests and the browser.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// Payload is one fetched page.
type Payload struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// Fetcher produces the raw payloads for a target.
type Fetcher interface {
	Fetch(ctx context.Context, target types.Target) ([]Payload, error)
	Close() error
}

// Credentials authenticate the browser session. Empty credentials skip the login step.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials were provided.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Options configures fetch behavior.
type Options struct {
	Delay       time.Duration // minimum spacing between successive requests
	Timeout     time.Duration // per page
	UserAgent   string
	Headers     map[string]string
	MaxScrolls  int // browser: scrolls to load more result cards
	ScrollWait  time.Duration
	Pages       int // http: result pages per target
	LoginURL    string
	PeopleTab   string // browser: selector of the company "People" tab
	ResultCard  string // browser: a page without this selector is an empty result set; empty disables the check
	Headless    bool
	DisableGPU  bool
	NoSandbox   bool
	DisableShm  bool // --disable-dev-shm-usage
	ExecPath    string
	LoginSettle time.Duration
}

// DefaultOptions returns the defaults used by the scraper.
func DefaultOptions() *Options {
	return &Options{
		Delay:       2 * time.Second,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxScrolls:  5,
		ScrollWait:  2 * time.Second,
		Pages:       1,
		LoginURL:    "https://www.linkedin.com/login",
		PeopleTab:   "a[data-control-name='page_member_main_nav_people_tab']",
		ResultCard:  ".reusable-search__result-container",
		Headless:    true,
		DisableGPU:  true,
		NoSandbox:   true,
		DisableShm:  true,
		LoginSettle: 5 * time.Second,
	}
}

// withDefaults fills zero values from DefaultOptions.
func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.Timeout <= 0 {
		out.Timeout = d.Timeout
	}
	if out.UserAgent == "" {
		out.UserAgent = d.UserAgent
	}
	if out.Pages <= 0 {
		out.Pages = 1
	}
	if out.MaxScrolls < 0 {
		out.MaxScrolls = 0
	}
	if out.LoginURL == "" {
		out.LoginURL = d.LoginURL
	}
	if out.PeopleTab == "" {
		out.PeopleTab = d.PeopleTab
	}
	return &out
}
