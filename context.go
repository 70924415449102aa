package agentlens

import "context"

type contextKey struct{}

// ContextWithSpan returns a context carrying the span, for threading the
// current span through call chains without explicit plumbing.
func ContextWithSpan(ctx context.Context, span *SpanHandle) context.Context {
	return context.WithValue(ctx, contextKey{}, span)
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *SpanHandle {
	span, _ := ctx.Value(contextKey{}).(*SpanHandle)
	return span
}

// StartSpanFromContext opens a child of the span carried by ctx, or a root
// span when ctx carries none, and returns a derived context carrying the
// new span.
func StartSpanFromContext(ctx context.Context, e *Exporter, kind SpanKind, name string) (context.Context, *SpanHandle, error) {
	var opts []StartOption
	if parent := SpanFromContext(ctx); parent != nil {
		opts = append(opts, WithParent(parent))
	}
	span, err := e.StartSpan(kind, name, opts...)
	if err != nil {
		return ctx, nil, err
	}
	return ContextWithSpan(ctx, span), span, nil
}
