// Package content normalizes heterogeneous fetched bytes (HTML, Markdown,
// JSON, source code, plain text) into canonical form for the splitters,
// via a per-MIME-type middleware chain.
package content

import (
	"strings"
)

// Context is threaded through a pipeline's middleware chain. Middlewares may
// mutate Content/Title/ContentType/Links and append non-fatal errors;
// a fatal error aborts the chain.
type Context struct {
	Content     string
	Source      string
	Title       string
	ContentType string
	Links       []string
	Errors      []error
	Options     map[string]any
}

// AddError records a non-fatal processing error without aborting the chain.
func (c *Context) AddError(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Middleware is one stage of a pipeline's processing chain.
type Middleware func(ctx *Context, next func() error) error

// runChain executes middlewares in order, each wrapping the next.
func runChain(ctx *Context, mws []Middleware) error {
	var run func(i int) error
	run = func(i int) error {
		if i >= len(mws) {
			return nil
		}
		return mws[i](ctx, func() error { return run(i + 1) })
	}
	return run(0)
}

// Pipeline selects by MIME type and normalizes content into ctx.Content.
type Pipeline interface {
	CanProcess(mimeType string) bool
	Process(ctx *Context) error
}

// decodeBytesUTF8 strips a UTF-8 BOM if present; callers needing another
// declared charset go through decodeCharset in decode.go.
func decodeBytesUTF8(b []byte) string {
	s := string(b)
	return strings.TrimPrefix(s, "﻿")
}
