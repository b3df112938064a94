package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"docnerd/internal/errs"
	"docnerd/internal/logging"
)

// BrowserConfig mirrors the subset of the teacher's browser Config this
// fetcher needs: a lazily-launched headless Chrome used for JS-heavy pages
// selected by the "playwright" scrape mode; other modes use it only when no
// plain fetcher can handle the URL.
type BrowserConfig struct {
	DebuggerURL         string
	Headless            bool
	ViewportWidth       int
	ViewportHeight      int
	NavigationTimeoutMs int
}

func (c BrowserConfig) navigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

func (c BrowserConfig) viewport() (int, int) {
	w, h := c.ViewportWidth, c.ViewportHeight
	if w == 0 {
		w = 1920
	}
	if h == 0 {
		h = 1080
	}
	return w, h
}

// BrowserFetcher renders a page with a headless Chrome instance and returns
// its final DOM as HTML, for sources a plain HTTP GET can't render (selected
// by scrape mode, not content negotiation). The browser is launched lazily
// on first Fetch and kept alive for reuse; callers must call Close on
// shutdown.
type BrowserFetcher struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
}

func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (f *BrowserFetcher) ensureStarted() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if _, err := f.browser.Version(); err == nil {
			return f.browser, nil
		}
		_ = f.browser.Close()
		f.browser = nil
	}

	controlURL := f.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(f.cfg.Headless).Launch()
		if err != nil {
			return nil, errs.NewFetcherError("launch headless browser", err, false)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, errs.NewFetcherError("connect to browser", err, false)
	}
	f.browser = browser
	return browser, nil
}

// Fetch navigates a fresh incognito page to source, waits for the page to
// settle, and returns its rendered HTML. Conditional requests (ETag) aren't
// meaningful for a rendered page, so opts are accepted but ignored beyond
// FollowRedirects, which rod always honors.
func (f *BrowserFetcher) Fetch(ctx context.Context, source string, opts Options) (RawContent, error) {
	timer := logging.StartTimer(logging.CategoryFetch, "BrowserFetch")
	defer timer.Stop()

	browser, err := f.ensureStarted()
	if err != nil {
		return RawContent{}, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return RawContent{}, errs.NewFetcherError("open incognito context", err, true)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return RawContent{}, errs.NewFetcherError("create page", err, true)
	}
	defer page.Close()

	w, h := f.cfg.viewport()
	_ = proto.EmulationSetDeviceMetricsOverride{
		Width: w, Height: h, DeviceScaleFactor: 1.0,
	}.Call(page)

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.navigationTimeout())
	defer cancel()

	navPage := page.Context(navCtx)
	if err := navPage.Navigate(source); err != nil {
		if ctx.Err() != nil {
			return RawContent{}, errs.NewCancellationError("browser fetch cancelled")
		}
		return RawContent{}, errs.NewFetcherError("navigate", err, true)
	}
	if err := navPage.WaitLoad(); err != nil {
		return RawContent{}, errs.NewFetcherError("wait for page load", err, true)
	}
	_ = navPage.WaitIdle(5 * time.Second)

	html, err := page.HTML()
	if err != nil {
		return RawContent{}, errs.NewFetcherError("extract rendered html", err, true)
	}

	info, err := page.Info()
	finalURL := source
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return RawContent{
		Content:  []byte(html),
		MimeType: "text/html",
		Source:   finalURL,
		Status:   StatusSuccess,
	}, nil
}

// Close releases the underlying browser process, if one was started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
