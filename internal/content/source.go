package content

import (
	"path"
	"strings"
)

// SourcePipeline decodes source code and tags it with a detected language so
// the splitter can dispatch to the matching tree-sitter grammar. No markup
// conversion happens here; content passes through unchanged, per §4.2.
type SourcePipeline struct{}

func NewSourcePipeline() *SourcePipeline { return &SourcePipeline{} }

func (p *SourcePipeline) CanProcess(mimeType string) bool {
	return strings.Contains(mimeType, "text/x-source") || strings.Contains(mimeType, "text/x-script")
}

var extensionLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "bash",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".sql":  "sql",
}

func (p *SourcePipeline) Process(ctx *Context) error {
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
		p.detectLanguageMiddleware(),
	}
	return runChain(ctx, mws)
}

func (p *SourcePipeline) detectLanguageMiddleware() Middleware {
	return func(ctx *Context, next func() error) error {
		lang := languageFromPath(ctx.Source)
		if lang != "" {
			ctx.Options["language"] = lang
		}
		if ctx.Title == "" {
			ctx.Title = path.Base(ctx.Source)
		}
		return next()
	}
}

func languageFromPath(source string) string {
	ext := strings.ToLower(path.Ext(source))
	return extensionLanguages[ext]
}
