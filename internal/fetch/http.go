package fetch

import (
	"context"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"docnerd/internal/errs"
	"docnerd/internal/logging"
)

// retryableStatus are the HTTP status codes the spec requires retrying with
// backoff; everything else either succeeds, is a terminal 3xx/4xx, or is
// surfaced without a retry.
var retryableStatus = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true, 525: true,
}

var nonRetryableStatus = map[int]bool{
	400: true, 401: true, 403: true, 405: true, 410: true,
}

const maxRetryAttempts = 6

// fingerprint is one rotation candidate for the outbound request identity.
type fingerprint struct {
	userAgent string
	accept    string
	language  string
}

var fingerprints = []fingerprint{
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		language:  "en-US,en;q=0.9",
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		language:  "en-US,en;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		language:  "en-US,en;q=0.9",
	},
}

func randomFingerprint() fingerprint {
	return fingerprints[rand.Intn(len(fingerprints))]
}

// HTTPFetcher retrieves http(s):// sources with conditional requests,
// bounded retry, and rate limiting. A single limiter is shared by all hosts;
// requests are not paced per host.
type HTTPFetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	maxAttempts int
}

// NewHTTPFetcher builds a fetcher rate-limited to requestsPerSecond (0
// disables limiting) with the given per-attempt timeout.
func NewHTTPFetcher(requestsPerSecond float64, timeout time.Duration) *HTTPFetcher {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &HTTPFetcher{
		client:      &http.Client{Timeout: timeout},
		limiter:     limiter,
		maxAttempts: maxRetryAttempts,
	}
}

func (f *HTTPFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch performs the request, following redirects only when
// opts.FollowRedirects is true (the zero value does not follow), retrying on transient status codes with exponential
// backoff (base 1s) up to maxRetryAttempts, and honoring conditional ETag.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string, opts Options) (RawContent, error) {
	timer := logging.StartTimer(logging.CategoryFetch, "HTTPFetch")
	defer timer.Stop()

	client := f.client
	if !opts.FollowRedirects {
		noRedirectClient := *f.client
		noRedirectClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &noRedirectClient
	}

	var result RawContent
	op := func() error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(errs.NewCancellationError("rate limiter wait cancelled"))
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return backoff.Permanent(errs.NewFetcherError("build request", err, false))
		}
		applyFingerprint(req)
		if opts.ETag != "" {
			req.Header.Set("If-None-Match", opts.ETag)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(errs.NewCancellationError("fetch cancelled"))
			}
			return errs.NewFetcherError("http request failed", err, true)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && !opts.FollowRedirects {
			target := resp.Header.Get("Location")
			return backoff.Permanent(errs.NewRedirectError(
				"redirect not followed: "+source+" -> "+target, nil))
		}
		if resp.StatusCode == http.StatusNotModified {
			result = RawContent{Source: source, Status: StatusNotModified}
			return nil
		}
		if resp.StatusCode == http.StatusNotFound {
			result = RawContent{Source: source, Status: StatusNotFound}
			return nil
		}
		if nonRetryableStatus[resp.StatusCode] {
			return backoff.Permanent(errs.NewFetcherError(
				httpStatusMessage(resp.StatusCode), nil, false))
		}
		if retryableStatus[resp.StatusCode] {
			return errs.NewFetcherError(httpStatusMessage(resp.StatusCode), nil, true)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(errs.NewFetcherError(httpStatusMessage(resp.StatusCode), nil, false))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.NewFetcherError("read body", err, true)
		}

		mimeType, charset := parseContentType(resp.Header.Get("Content-Type"))
		result = RawContent{
			Content:      body,
			MimeType:     mimeType,
			Charset:      charset,
			Encoding:     resp.Header.Get("Content-Encoding"),
			Source:       resp.Request.URL.String(),
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Status:       StatusSuccess,
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	policy := backoff.WithMaxRetries(exp, uint64(f.maxAttempts-1))
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return RawContent{}, err
	}
	return result, nil
}

func applyFingerprint(req *http.Request) {
	fp := randomFingerprint()
	req.Header.Set("User-Agent", fp.userAgent)
	req.Header.Set("Accept", fp.accept)
	req.Header.Set("Accept-Language", fp.language)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
}

func parseContentType(header string) (mimeType, charset string) {
	if header == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(header)
	if err != nil {
		return header, ""
	}
	return mt, params["charset"]
}

func httpStatusMessage(code int) string {
	return "http status " + strconv.Itoa(code) + " " + http.StatusText(code)
}
