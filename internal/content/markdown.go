package content

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownPipeline decodes, extracts YAML frontmatter metadata, and collects
// linked URLs. Content otherwise passes through unchanged, per §4.2.
type MarkdownPipeline struct{}

func NewMarkdownPipeline() *MarkdownPipeline { return &MarkdownPipeline{} }

func (p *MarkdownPipeline) CanProcess(mimeType string) bool {
	return strings.Contains(mimeType, "text/markdown") || strings.Contains(mimeType, "text/x-markdown")
}

func (p *MarkdownPipeline) Process(ctx *Context) error {
	charset, _ := ctx.Options["charset"].(string)
	raw, _ := ctx.Options["raw"].([]byte)
	if raw == nil {
		raw = []byte(ctx.Content)
	}

	mws := []Middleware{
		func(ctx *Context, next func() error) error {
			ctx.Content = decodeCharset(raw, charset)
			return next()
		},
		p.frontmatterMiddleware(),
		p.linkExtractionMiddleware(),
	}
	return runChain(ctx, mws)
}

var frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)

func (p *MarkdownPipeline) frontmatterMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		m := frontmatterPattern.FindStringSubmatch(ctx.Content)
		if m == nil {
			return next()
		}

		var meta map[string]any
		if err := yaml.Unmarshal([]byte(m[1]), &meta); err != nil {
			ctx.AddError(err)
			return next()
		}
		if title, ok := meta["title"].(string); ok {
			ctx.Title = title
		}
		ctx.Content = ctx.Content[len(m[0]):]
		return next()
	}
}

var (
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	markdownAutolink    = regexp.MustCompile(`<(https?://[^>\s]+)>`)
)

func (p *MarkdownPipeline) linkExtractionMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		for _, m := range markdownLinkPattern.FindAllStringSubmatch(ctx.Content, -1) {
			ctx.Links = append(ctx.Links, m[1])
		}
		for _, m := range markdownAutolink.FindAllStringSubmatch(ctx.Content, -1) {
			ctx.Links = append(ctx.Links, m[1])
		}
		return next()
	}
}
