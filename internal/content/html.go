package content

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"docnerd/internal/errs"
)

// HTMLPipeline decodes, parses, extracts metadata/links, sanitizes, and
// converts HTML to Markdown, per §4.2. Grounded on the antfly docsaf
// HTMLProcessor's goquery-based metadata/heading walk, generalized into this
// module's decode→parse→extract→sanitize→convert middleware chain shape.
type HTMLPipeline struct {
	sanitizer *bluemonday.Policy
}

func NewHTMLPipeline() *HTMLPipeline {
	return &HTMLPipeline{sanitizer: bluemonday.UGCPolicy()}
}

func (p *HTMLPipeline) CanProcess(mimeType string) bool {
	return strings.Contains(mimeType, "text/html") || strings.Contains(mimeType, "application/xhtml")
}

func (p *HTMLPipeline) Process(ctx *Context) error {
	charset, _ := ctx.Options["charset"].(string)
	raw, _ := ctx.Options["raw"].([]byte)
	if raw == nil {
		raw = []byte(ctx.Content)
	}

	mws := []Middleware{
		p.decodeMiddleware(charset, raw),
		p.parseAndExtractMiddleware(),
		p.sanitizeMiddleware(),
		p.convertToMarkdownMiddleware(),
	}
	return runChain(ctx, mws)
}

func (p *HTMLPipeline) decodeMiddleware(charset string, raw []byte) Middleware {
	return func(ctx *Context, next func() error) error {
		ctx.Content = decodeCharset(raw, charset)
		return next()
	}
}

func (p *HTMLPipeline) parseAndExtractMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(ctx.Content))
		if err != nil {
			ctx.AddError(errs.NewParseError("parse html", err))
			return next()
		}

		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			ctx.Title = title
		}
		if ctx.Title == "" {
			if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
				ctx.Title = strings.TrimSpace(desc)
			}
		}

		base, _ := url.Parse(ctx.Source)
		doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			resolved := resolveLink(base, href)
			if resolved != "" {
				ctx.Links = append(ctx.Links, resolved)
			}
		})

		html, err := doc.Html()
		if err != nil {
			ctx.AddError(errs.NewParseError("serialize html", err))
			return next()
		}
		ctx.Content = html
		return next()
	}
}

func (p *HTMLPipeline) sanitizeMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		ctx.Content = p.sanitizer.Sanitize(ctx.Content)
		return next()
	}
}

func (p *HTMLPipeline) convertToMarkdownMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		node, err := html.Parse(strings.NewReader(ctx.Content))
		if err != nil {
			ctx.AddError(errs.NewParseError("parse sanitized html for conversion", err))
			return next()
		}

		var opts []converter.Option
		if base, baseErr := url.Parse(ctx.Source); baseErr == nil && base.Host != "" {
			opts = append(opts, converter.WithDomain(base.String()))
		}

		md, err := htmltomarkdown.ConvertNode(node, opts...)
		if err != nil {
			ctx.AddError(errs.NewParseError("convert html to markdown", err))
			return next()
		}
		ctx.Content = string(md)
		ctx.ContentType = "text/markdown"
		return next()
	}
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
