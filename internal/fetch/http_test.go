package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherReturnsSuccessWithETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte("# Hello"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, `"abc"`, result.ETag)
	assert.Equal(t, "text/markdown", result.MimeType)
	assert.Equal(t, "utf-8", result.Charset)
}

func TestHTTPFetcherReturnsNotModifiedOn304(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, Options{ETag: `"abc"`, FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, StatusNotModified, result.Status)
}

func TestHTTPFetcherReturnsNotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestHTTPFetcherDoesNotRetryOn403(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestHTTPFetcherRetriesOn503(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestHTTPFetcherRaisesRedirectErrorWhenNotFollowing(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 5*time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, Options{FollowRedirects: false})
	require.Error(t, err)
}

func TestHTTPFetcherCanFetchOnlyHTTPScheme(t *testing.T) {
	f := NewHTTPFetcher(0, time.Second)
	assert.True(t, f.CanFetch("https://example.com"))
	assert.False(t, f.CanFetch("file:///a.md"))
}
