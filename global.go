package agentlens

import (
	"context"
	"sync/atomic"
)

// globalExporter holds the process-wide exporter installed by SetGlobal.
var globalExporter atomic.Pointer[Exporter]

// SetGlobal installs e as the process-wide exporter used by the package
// level convenience functions. Returns the previous global, or nil.
func SetGlobal(e *Exporter) *Exporter {
	return globalExporter.Swap(e)
}

// Global returns the process-wide exporter, or nil if none is installed.
func Global() *Exporter {
	return globalExporter.Load()
}

// StartSpan opens a span on the global exporter. Returns ErrNoGlobal when
// no exporter is installed.
func StartSpan(kind SpanKind, name string, opts ...StartOption) (*SpanHandle, error) {
	e := globalExporter.Load()
	if e == nil {
		return nil, ErrNoGlobal
	}
	return e.StartSpan(kind, name, opts...)
}

// Flush flushes the global exporter. A missing global is a no-op.
func Flush(ctx context.Context) error {
	e := globalExporter.Load()
	if e == nil {
		return nil
	}
	return e.Flush(ctx)
}

// Shutdown shuts down the global exporter. A missing global drains nothing.
func Shutdown(ctx context.Context) ShutdownResult {
	e := globalExporter.Load()
	if e == nil {
		return ShutdownResult{}
	}
	return e.Shutdown(ctx)
}
