package job

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"docnerd/internal/content"
	"docnerd/internal/errs"
	"docnerd/internal/fetch"
	"docnerd/internal/split"
)

// CrawlStrategy is the default Strategy: a breadth-first crawl over a
// Fetcher set, normalizing each page through a content.Registry and
// splitting it through internal/split, bounded by MaxPages/MaxDepth and
// the scope/include/exclude rules in §6. Pages are fetched one at a time:
// each fetch holds a semaphore sized to ScraperOptions.MaxConcurrency and
// releases it before the next page is taken from the queue, so fetches
// within one job do not overlap.
type CrawlStrategy struct {
	fetchers []fetch.Fetcher
	registry *content.Registry
	limits   split.Limits
}

func NewCrawlStrategy(fetchers []fetch.Fetcher, registry *content.Registry, limits split.Limits) *CrawlStrategy {
	return &CrawlStrategy{fetchers: fetchers, registry: registry, limits: limits}
}

type frontierEntry struct {
	url    string
	depth  int
	pageID int64
	etag   string
}

func (s *CrawlStrategy) Scrape(ctx context.Context, opts ScraperOptions, report func(ProgressEvent), cancelled func() bool) error {
	opts = DefaultScraperOptions(opts)

	var queue []frontierEntry
	if len(opts.InitialQueue) > 0 {
		for _, e := range opts.InitialQueue {
			queue = append(queue, frontierEntry{url: e.URL, depth: e.Depth, pageID: e.PageID, etag: e.ETag})
		}
	} else {
		queue = append(queue, frontierEntry{url: opts.URL, depth: 0})
	}

	includeRe, excludeRe := compilePatterns(opts.IncludePatterns), compilePatterns(opts.ExcludePatterns)
	rootHost := hostOf(opts.URL)
	rootPath := pathOf(opts.URL)

	visited := map[string]bool{}
	totalDiscovered := len(queue)
	pagesScraped := 0

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrency))
	var mu sync.Mutex
	var firstErr error

	for len(queue) > 0 && pagesScraped < opts.MaxPages {
		if cancelled() {
			return errs.NewCancellationError("Job cancelled during scraping progress")
		}

		entry := queue[0]
		queue = queue[1:]
		if visited[entry.url] || entry.depth > opts.MaxDepth {
			continue
		}
		visited[entry.url] = true

		if err := sem.Acquire(ctx, 1); err != nil {
			return errs.NewCancellationError("Job cancelled during scraping progress")
		}

		discovered, err := s.scrapeOne(ctx, entry, opts, rootHost, rootPath, includeRe, excludeRe, report, cancelled)
		sem.Release(1)

		if cancelled() {
			return errs.NewCancellationError("Job cancelled during scraping progress")
		}
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			if !opts.IgnoreErrors {
				return err
			}
			continue
		}

		pagesScraped++
		for _, link := range discovered {
			if !visited[link] {
				queue = append(queue, frontierEntry{url: link, depth: entry.depth + 1})
				totalDiscovered++
			}
		}
	}

	return nil
}

// scrapeOne fetches, normalizes, and splits one page, reporting a
// ProgressEvent, and returns newly discovered in-scope links.
func (s *CrawlStrategy) scrapeOne(
	ctx context.Context,
	entry frontierEntry,
	opts ScraperOptions,
	rootHost, rootPath string,
	includeRe, excludeRe []pattern,
	report func(ProgressEvent),
	cancelled func() bool,
) ([]string, error) {
	if cancelled() {
		return nil, errs.NewCancellationError("Job cancelled during scraping progress")
	}

	fetcher := s.fetcherFor(entry.url, opts.ScrapeMode)
	if fetcher == nil {
		return nil, errs.NewFetcherError("no fetcher registered for source", nil, false)
	}

	raw, err := fetcher.Fetch(ctx, entry.url, fetch.Options{ETag: entry.etag, FollowRedirects: opts.FollowRedirects})
	if err != nil {
		return nil, err
	}

	switch raw.Status {
	case fetch.StatusNotFound:
		if entry.pageID != 0 {
			report(ProgressEvent{CurrentURL: entry.url, Depth: entry.depth, MaxDepth: opts.MaxDepth, Deleted: true, PageID: entry.pageID, HasPageID: true})
		}
		return nil, nil

	case fetch.StatusNotModified:
		report(ProgressEvent{CurrentURL: entry.url, Depth: entry.depth, MaxDepth: opts.MaxDepth, PageID: entry.pageID, HasPageID: entry.pageID != 0})
		return nil, nil
	}

	cctx, procErr := s.registry.Process(entry.url, raw.MimeType, raw.Charset, raw.Content)
	var procErrs []error
	if procErr != nil {
		procErrs = append(procErrs, procErr)
	}
	procErrs = append(procErrs, cctx.Errors...)

	chunks := s.splitterFor(cctx.ContentType, entry.url).splitOrFallback(cctx.Content)

	result := &ScrapeResult{
		URL:          entry.url,
		Title:        cctx.Title,
		ContentType:  cctx.ContentType,
		TextContent:  cctx.Content,
		Links:        cctx.Links,
		Errors:       procErrs,
		Chunks:       chunks,
		ETag:         raw.ETag,
		LastModified: raw.LastModified,
	}

	report(ProgressEvent{
		CurrentURL: entry.url,
		Depth:      entry.depth,
		MaxDepth:   opts.MaxDepth,
		Result:     result,
		PageID:     entry.pageID,
		HasPageID:  entry.pageID != 0,
	})

	return filterScope(cctx.Links, rootHost, rootPath, opts.Scope, includeRe, excludeRe), nil
}

// fetcherFor picks among the registered fetchers that can handle source,
// preferring a plain HTTP fetch unless scrapeMode asks for a browser
// render. "playwright" forces the browser fetcher when one is registered;
// "fetch" and "auto" both prefer the plain fetcher, falling back to the
// browser fetcher only if nothing else matches.
func (s *CrawlStrategy) fetcherFor(source, scrapeMode string) fetch.Fetcher {
	var plain, browser fetch.Fetcher
	for _, f := range s.fetchers {
		if !f.CanFetch(source) {
			continue
		}
		if _, ok := f.(*fetch.BrowserFetcher); ok {
			if browser == nil {
				browser = f
			}
			continue
		}
		if plain == nil {
			plain = f
		}
	}
	if scrapeMode == "playwright" && browser != nil {
		return browser
	}
	if plain != nil {
		return plain
	}
	return browser
}

type fallbackSplitter struct {
	split.Splitter
}

func (s *CrawlStrategy) splitterFor(contentType, source string) fallbackSplitter {
	switch {
	case strings.Contains(contentType, "text/markdown"):
		return fallbackSplitter{NewMarkdownThenOptimize(s.limits)}
	case strings.Contains(contentType, "application/json"):
		return fallbackSplitter{split.NewJSONSplitter(s.limits)}
	case strings.Contains(contentType, "text/x-source"):
		return fallbackSplitter{split.NewSourceSplitter(languageOf(source), s.limits)}
	default:
		return fallbackSplitter{split.NewTextSplitter(s.limits)}
	}
}

func (fs fallbackSplitter) splitOrFallback(content string) []ResultChunk {
	chunks, err := fs.Split(content)
	if err != nil || len(chunks) == 0 {
		chunks = []split.Chunk{{Types: []string{"text"}, Content: content}}
	}
	out := make([]ResultChunk, len(chunks))
	for i, c := range chunks {
		out[i] = ResultChunk{Types: c.Types, Content: c.Content, Level: c.Section.Level, Path: c.Section.Path, BoundaryType: c.BoundaryType}
	}
	return out
}

// markdownOptimized runs the markdown splitter then the greedy optimizer,
// since the optimizer applies to prose splitters only (§4.3).
type markdownOptimized struct {
	md  *split.MarkdownSplitter
	opt *split.Optimizer
}

func NewMarkdownThenOptimize(limits split.Limits) *markdownOptimized {
	return &markdownOptimized{md: split.NewMarkdownSplitter(), opt: split.NewOptimizer(limits)}
}

func (m *markdownOptimized) Split(content string) ([]split.Chunk, error) {
	chunks, err := m.md.Split(content)
	if err != nil {
		return nil, err
	}
	return m.opt.Optimize(chunks), nil
}

func languageOf(source string) string {
	ext := strings.ToLower(path.Ext(source))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".jsx":
		return "javascript"
	default:
		return ""
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// pathOf returns the directory prefix a "subpages" scope restricts
// discovered links to: the initial crawl URL's path up to its last slash,
// so https://x.test/docs/guide/ scopes to https://x.test/docs/guide/*.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if i := strings.LastIndex(u.Path, "/"); i >= 0 {
		return u.Path[:i+1]
	}
	return u.Path
}

// pattern is one include/exclude rule: patterns wrapped in /.../ are regex,
// everything else is a glob matched with path.Match, per spec §6.
type pattern struct {
	re   *regexp.Regexp
	glob string
}

func (p pattern) match(s string) bool {
	if p.re != nil {
		return p.re.MatchString(s)
	}
	ok, err := path.Match(p.glob, s)
	return err == nil && ok
}

func compilePatterns(patterns []string) []pattern {
	var out []pattern
	for _, p := range patterns {
		if strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") && len(p) > 1 {
			if re, err := regexp.Compile(p[1 : len(p)-1]); err == nil {
				out = append(out, pattern{re: re})
			}
			continue
		}
		out = append(out, pattern{glob: p})
	}
	return out
}

// filterScope narrows discovered links to scope: "hostname" keeps anything
// on rootHost, "subpages" additionally requires the link's path to fall
// under rootPath (the initial crawl URL's directory), and "domain" widens
// the host check to the whole registrable domain, per spec §6.
func filterScope(links []string, rootHost, rootPath, scope string, include, exclude []pattern) []string {
	var out []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if scope != "domain" && u.Host != rootHost {
			continue
		}
		if scope == "domain" && !sameDomain(u.Host, rootHost) {
			continue
		}
		if scope == "subpages" && !strings.HasPrefix(u.Path, rootPath) {
			continue
		}
		if exclude != nil && matchesAny(u.Path, exclude) {
			continue
		}
		if include != nil && !matchesAny(u.Path, include) {
			continue
		}
		out = append(out, link)
	}
	return out
}

func matchesAny(p string, patterns []pattern) bool {
	for _, pat := range patterns {
		if pat.match(p) {
			return true
		}
	}
	return false
}

func sameDomain(host, root string) bool {
	return host == root || strings.HasSuffix(host, "."+rootApex(root))
}

func rootApex(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
