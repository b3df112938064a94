package content

import "strings"

// TextPipeline is the registry's fallback: it only decodes the declared
// charset and leaves content otherwise untouched.
type TextPipeline struct{}

func NewTextPipeline() *TextPipeline { return &TextPipeline{} }

func (p *TextPipeline) CanProcess(mimeType string) bool {
	return strings.Contains(mimeType, "text/plain") || mimeType == ""
}

func (p *TextPipeline) Process(ctx *Context) error {
	charset, _ := ctx.Options["charset"].(string)
	raw, _ := ctx.Options["raw"].([]byte)
	if raw == nil {
		raw = []byte(ctx.Content)
	}
	ctx.Content = decodeCharset(raw, charset)
	return nil
}
