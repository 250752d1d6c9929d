package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/jonathan/job-change-tracker/internal/types"
)

// BrowserFetcher renders target pages in a headless Chrome. One browser is started
// lazily and shared by every target of a run; it logs in once when credentials are set.
type BrowserFetcher struct {
	opts  *Options
	creds Credentials
	pacer *Pacer

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	browserCtx    context.Context
	loggedIn      bool
}

// NewBrowserFetcher creates a browser fetcher. Chrome/Chromium must be installed.
func NewBrowserFetcher(opts *Options, creds Credentials) *BrowserFetcher {
	opts = opts.withDefaults()
	return &BrowserFetcher{
		opts:  opts,
		creds: creds,
		pacer: NewPacer(opts.Delay),
	}
}

// allocatorOptions builds the Chrome command line flags from the headless settings.
func allocatorOptions(o *Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", o.DisableGPU),
		chromedp.Flag("no-sandbox", o.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", o.DisableShm),
		chromedp.UserAgent(o.UserAgent),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

func (f *BrowserFetcher) start(ctx context.Context) error {
	if f.browserCtx != nil {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(f.opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return &Error{Kind: KindNetwork, URL: "about:blank", Message: "failed to start browser", Cause: err}
	}

	f.allocCancel = allocCancel
	f.browserCancel = browserCancel
	f.browserCtx = browserCtx
	log.Printf("[BROWSER] Chrome started (headless=%t)", f.opts.Headless)
	return nil
}

// login signs in and verifies that the session landed on the feed.
func (f *BrowserFetcher) login(ctx context.Context) error {
	if f.loggedIn || f.creds.IsZero() {
		return nil
	}
	if f.creds.Username == "" || f.creds.Password == "" {
		return &Error{Kind: KindAuth, URL: f.opts.LoginURL, Message: "incomplete credentials"}
	}

	if err := f.pacer.Wait(ctx); err != nil {
		return err
	}

	lctx, cancel := f.pageContext(ctx)
	defer cancel()

	var location string
	err := chromedp.Run(lctx,
		chromedp.Navigate(f.opts.LoginURL),
		chromedp.WaitVisible("#username", chromedp.ByQuery),
		chromedp.SendKeys("#username", f.creds.Username, chromedp.ByQuery),
		chromedp.SendKeys("#password", f.creds.Password, chromedp.ByQuery),
		chromedp.Click("button[type='submit']", chromedp.ByQuery),
		chromedp.Sleep(f.opts.LoginSettle),
		chromedp.Location(&location),
	)
	if err != nil {
		return &Error{Kind: KindAuth, URL: f.opts.LoginURL, Message: "login failed", Cause: err}
	}
	if !strings.Contains(location, "feed") {
		return &Error{Kind: KindAuth, URL: f.opts.LoginURL, Message: fmt.Sprintf("login redirected to unexpected page %s", location)}
	}

	f.loggedIn = true
	log.Printf("[BROWSER] logged in as %s", f.creds.Username)
	return nil
}

// pageContext derives a timeout-bound tab context that also ends when ctx is cancelled.
func (f *BrowserFetcher) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	pctx, cancel := context.WithTimeout(f.browserCtx, f.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return pctx, func() {
		stop()
		cancel()
	}
}

// Fetch opens the target page, switches to the People tab when present, scrolls to load
// more result cards and returns the rendered document as a single payload.
func (f *BrowserFetcher) Fetch(ctx context.Context, target types.Target) ([]Payload, error) {
	if err := f.start(ctx); err != nil {
		return nil, err
	}
	if err := f.login(ctx); err != nil {
		return nil, err
	}
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	pctx, cancel := f.pageContext(ctx)
	defer cancel()

	if err := chromedp.Run(pctx,
		chromedp.Navigate(target.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, &Error{Kind: KindNetwork, URL: target.URL, Message: "navigation failed", Cause: err}
	}

	var location string
	if err := chromedp.Run(pctx, chromedp.Location(&location)); err == nil && isAuthWall(location) {
		return nil, &Error{Kind: KindAuth, URL: target.URL, Message: fmt.Sprintf("redirected to %s", location)}
	}

	var clicked bool
	clickJS := fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (el) { el.click(); return true; } return false; })()`, f.opts.PeopleTab)
	if err := chromedp.Run(pctx, chromedp.Evaluate(clickJS, &clicked)); err != nil {
		log.Printf("[BROWSER] %s: people tab lookup failed: %v", target.Name, err)
	}
	if clicked {
		if err := chromedp.Run(pctx, chromedp.Sleep(f.opts.Delay)); err != nil {
			return nil, &Error{Kind: KindNetwork, URL: target.URL, Message: "interrupted", Cause: err}
		}
	}

	for i := 0; i < f.opts.MaxScrolls; i++ {
		var height int
		if err := chromedp.Run(pctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height),
			chromedp.Sleep(f.opts.ScrollWait),
		); err != nil {
			log.Printf("[BROWSER] %s: scroll %d failed: %v", target.Name, i+1, err)
			break
		}
	}

	var html string
	if err := chromedp.Run(pctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, &Error{Kind: KindNetwork, URL: target.URL, Message: "failed to read rendered HTML", Cause: err}
	}
	if err := checkRendered(target.URL, html, f.opts.ResultCard); err != nil {
		return nil, err
	}

	log.Printf("[BROWSER] %s: rendered %d bytes (people tab: %t)", target.Name, len(html), clicked)
	return []Payload{{URL: target.URL, HTML: html, FetchedAt: time.Now()}}, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	f.browserCtx = nil
	f.loggedIn = false
	return nil
}

// checkRendered reports a KindEmpty error for a blank page or, when cardSelector is set,
// a page that rendered no result cards.
func checkRendered(pageURL, html, cardSelector string) error {
	if strings.TrimSpace(html) == "" {
		return &Error{Kind: KindEmpty, URL: pageURL, Message: "rendered page is empty"}
	}
	if cardSelector == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &Error{Kind: KindEmpty, URL: pageURL, Message: "rendered page is not HTML", Cause: err}
	}
	if doc.Find(cardSelector).Length() == 0 {
		return &Error{Kind: KindEmpty, URL: pageURL, Message: fmt.Sprintf("no result cards rendered (selector %q)", cardSelector)}
	}
	return nil
}

func isAuthWall(location string) bool {
	return strings.Contains(location, "/login") ||
		strings.Contains(location, "/authwall") ||
		strings.Contains(location, "/checkpoint")
}
