package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docnerd/internal/errs"
)

// FileFetcher retrieves file:// sources, computing a synthetic etag from
// mtime so conditional refresh works the same way it does over HTTP.
type FileFetcher struct{}

func NewFileFetcher() *FileFetcher { return &FileFetcher{} }

func (f *FileFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "file://")
}

func (f *FileFetcher) Fetch(ctx context.Context, source string, opts Options) (RawContent, error) {
	path, err := filePathFromURL(source)
	if err != nil {
		return RawContent{}, errs.NewFetcherError("invalid file url", err, false)
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return RawContent{Source: source, Status: StatusNotFound}, nil
	}
	if err != nil {
		return RawContent{}, errs.NewFetcherError("stat file", err, false)
	}

	etag := etagFromMtime(info.ModTime())
	if opts.ETag != "" && opts.ETag == etag {
		return RawContent{Source: source, Status: StatusNotModified, ETag: etag}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return RawContent{}, errs.NewFetcherError("read file", err, false)
	}

	return RawContent{
		Content:  content,
		MimeType: mimeFromPathOrContent(path, content),
		Source:   source,
		ETag:     etag,
		Status:   StatusSuccess,
	}, nil
}

func filePathFromURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", err
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", err
	}
	return path, nil
}

func etagFromMtime(mtime time.Time) string {
	sum := md5.Sum([]byte(mtime.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

// mimeFromPathOrContent derives MIME type from the file extension, falling
// back to binary detection via a null-byte scan of the content prefix.
func mimeFromPathOrContent(path string, content []byte) string {
	if ext := filepath.Ext(path); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return strings.SplitN(t, ";", 2)[0]
		}
	}
	probe := content
	if len(probe) > 512 {
		probe = probe[:512]
	}
	for _, b := range probe {
		if b == 0 {
			return "application/octet-stream"
		}
	}
	return "text/plain"
}
