package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docnerd/internal/content"
	"docnerd/internal/fetch"
	"docnerd/internal/split"
)

type fakePage struct {
	mimeType string
	body     string
	status   fetch.Status
	etag     string
}

type fakeFetcher struct {
	pages map[string]fakePage
}

func (f *fakeFetcher) CanFetch(source string) bool { return true }

func (f *fakeFetcher) Fetch(ctx context.Context, source string, opts fetch.Options) (fetch.RawContent, error) {
	p, ok := f.pages[source]
	if !ok {
		return fetch.RawContent{Source: source, Status: fetch.StatusNotFound}, nil
	}
	status := p.status
	if status == "" {
		status = fetch.StatusSuccess
	}
	return fetch.RawContent{
		Source:   source,
		Content:  []byte(p.body),
		MimeType: p.mimeType,
		Status:   status,
		ETag:     p.etag,
	}, nil
}

func newTestStrategy(pages map[string]fakePage) *CrawlStrategy {
	f := &fakeFetcher{pages: pages}
	return NewCrawlStrategy([]fetch.Fetcher{f}, content.NewRegistry(), split.DefaultLimits())
}

func TestCrawlStrategyDiscoversAndFollowsLinks(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/": {mimeType: "text/html", body: `<html><body><a href="https://x.test/a">a</a></body></html>`},
		"https://x.test/a": {mimeType: "text/html", body: `<html><body>leaf</body></html>`},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/", MaxPages: 10, MaxDepth: 3}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	require.Len(t, results, 2)
	urls := []string{results[0].CurrentURL, results[1].CurrentURL}
	assert.Contains(t, urls, "https://x.test/")
	assert.Contains(t, urls, "https://x.test/a")
}

func TestCrawlStrategyReportsDeletionOn404(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/gone", MaxPages: 10, MaxDepth: 3, IsRefresh: true,
		InitialQueue: []QueueEntry{{URL: "https://x.test/gone", PageID: 5}}}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Deleted)
	assert.Equal(t, int64(5), results[0].PageID)
}

func TestCrawlStrategyReportsNotModifiedWithoutResult(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/": {mimeType: "text/html", body: "<html></html>", status: fetch.StatusNotModified},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/", MaxPages: 10, MaxDepth: 3}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Result)
}

func TestCrawlStrategyStopsAtMaxPages(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/":  {mimeType: "text/html", body: `<a href="https://x.test/a">a</a><a href="https://x.test/b">b</a>`},
		"https://x.test/a": {mimeType: "text/html", body: `leaf`},
		"https://x.test/b": {mimeType: "text/html", body: `leaf`},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/", MaxPages: 1, MaxDepth: 3}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCrawlStrategyExcludesPatternedLinks(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/":         {mimeType: "text/html", body: `<a href="https://x.test/admin/x">a</a><a href="https://x.test/docs/y">b</a>`},
		"https://x.test/docs/y":   {mimeType: "text/html", body: `leaf`},
		"https://x.test/admin/x":  {mimeType: "text/html", body: `leaf`},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/", MaxPages: 10, MaxDepth: 3, ExcludePatterns: []string{"/admin/*"}}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	var urls []string
	for _, r := range results {
		urls = append(urls, r.CurrentURL)
	}
	assert.Contains(t, urls, "https://x.test/docs/y")
	assert.NotContains(t, urls, "https://x.test/admin/x")
}

func TestCrawlStrategyDefaultScopeStaysUnderInitialPath(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/docs/guide/": {mimeType: "text/html", body: `<a href="https://x.test/docs/guide/sub">sub</a><a href="https://x.test/blog/post">post</a>`},
		"https://x.test/docs/guide/sub": {mimeType: "text/html", body: `leaf`},
		"https://x.test/blog/post":      {mimeType: "text/html", body: `leaf`},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/docs/guide/", MaxPages: 10, MaxDepth: 3}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	var urls []string
	for _, r := range results {
		urls = append(urls, r.CurrentURL)
	}
	assert.Contains(t, urls, "https://x.test/docs/guide/sub")
	assert.NotContains(t, urls, "https://x.test/blog/post")
}

func TestCrawlStrategyHostnameScopeFollowsWholeHost(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/docs/guide/": {mimeType: "text/html", body: `<a href="https://x.test/blog/post">post</a>`},
		"https://x.test/blog/post":   {mimeType: "text/html", body: `leaf`},
	})

	var results []ProgressEvent
	opts := ScraperOptions{URL: "https://x.test/docs/guide/", MaxPages: 10, MaxDepth: 3, Scope: "hostname"}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) { results = append(results, e) }, func() bool { return false })

	require.NoError(t, err)
	var urls []string
	for _, r := range results {
		urls = append(urls, r.CurrentURL)
	}
	assert.Contains(t, urls, "https://x.test/blog/post")
}

func TestCrawlStrategyStopsOnCancellation(t *testing.T) {
	strategy := newTestStrategy(map[string]fakePage{
		"https://x.test/": {mimeType: "text/html", body: "leaf"},
	})

	opts := ScraperOptions{URL: "https://x.test/", MaxPages: 10, MaxDepth: 3}
	err := strategy.Scrape(context.Background(), opts, func(e ProgressEvent) {}, func() bool { return true })

	require.Error(t, err)
}
