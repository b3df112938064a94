package content

// Registry selects a Pipeline by content type, falling back to plain text
// when nothing more specific matches. Grounded on the antfly docsaf
// registry's first-match-wins dispatch.
type Registry struct {
	pipelines []Pipeline
	fallback  Pipeline
}

// NewRegistry builds a registry with all built-in pipelines registered.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewTextPipeline()}
	r.Register(NewHTMLPipeline())
	r.Register(NewMarkdownPipeline())
	r.Register(NewJSONPipeline())
	r.Register(NewSourcePipeline())
	return r
}

// Register appends a pipeline; pipelines registered earlier are tried first.
func (r *Registry) Register(p Pipeline) {
	r.pipelines = append(r.pipelines, p)
}

// Get returns the first pipeline that can process mimeType, or the text
// fallback if none match.
func (r *Registry) Get(mimeType string) Pipeline {
	for _, p := range r.pipelines {
		if p.CanProcess(mimeType) {
			return p
		}
	}
	return r.fallback
}

// Process decodes raw bytes against the pipeline selected for mimeType.
func (r *Registry) Process(source, mimeType, charset string, raw []byte) (*Context, error) {
	ctx := &Context{
		Source:      source,
		ContentType: mimeType,
		Options: map[string]any{
			"charset": charset,
			"raw":     raw,
		},
	}
	if err := r.Get(mimeType).Process(ctx); err != nil {
		return ctx, err
	}
	return ctx, nil
}
