package content

import (
	"strings"

	"github.com/tidwall/gjson"

	"docnerd/internal/errs"
)

var errJSONInvalid = errs.NewParseError("content is not valid json", nil)

// JSONPipeline decodes and extracts a best-effort title/description from
// common top-level fields. Invalid JSON falls through to the text pipeline's
// raw-pass-through behavior with a flagged parse error, per §4.2.
type JSONPipeline struct{}

func NewJSONPipeline() *JSONPipeline { return &JSONPipeline{} }

func (p *JSONPipeline) CanProcess(mimeType string) bool {
	return strings.Contains(mimeType, "application/json") || strings.Contains(mimeType, "+json")
}

var (
	jsonTitleFields = []string{"title", "name", "displayName", "label"}
	jsonDescFields  = []string{"description", "summary", "about", "info"}
)

func (p *JSONPipeline) Process(ctx *Context) error {
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
		p.extractMiddleware(),
	}
	return runChain(ctx, mws)
}

func (p *JSONPipeline) extractMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		if !gjson.Valid(ctx.Content) {
			ctx.AddError(errJSONInvalid)
			return next()
		}

		root := gjson.Parse(ctx.Content)
		for _, field := range jsonTitleFields {
			if v := root.Get(field); v.Exists() && v.String() != "" {
				ctx.Title = v.String()
				break
			}
		}

		for _, field := range jsonDescFields {
			if v := root.Get(field); v.Exists() && v.String() != "" {
				ctx.Options["description"] = v.String()
				break
			}
		}
		return next()
	}
}
