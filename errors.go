package agentlens

import (
	"errors"

	"github.com/agentlens/agentlens/internal/export"
	"github.com/agentlens/agentlens/internal/wire"
)

var (
	// ErrSpanEnded is returned by span mutators after End.
	ErrSpanEnded = errors.New("agentlens: span already ended")
	// ErrDoubleEnd is returned by a second End on the same span.
	ErrDoubleEnd = errors.New("agentlens: span ended twice")
	// ErrNoEndpoint is returned by New when no endpoint is configured.
	ErrNoEndpoint = errors.New("agentlens: endpoint is required")
	// ErrUnknownSpan is returned when a parent span identifier does not
	// name an open span.
	ErrUnknownSpan = errors.New("agentlens: unknown span id")
	// ErrNoGlobal is returned by the package-level span functions when no
	// global exporter is installed.
	ErrNoGlobal = errors.New("agentlens: no global exporter installed")
	// ErrExporterClosed is returned by operations on an exporter whose
	// shutdown has already begun.
	ErrExporterClosed = export.ErrClosed
)

// Delivery and encoding failure classifications, surfaced to Flush callers.
// Aliased so callers can match with errors.As without importing internal
// packages.
type (
	// AuthError reports HTTP 401/403; the batch is dropped without retry.
	AuthError = export.AuthError
	// MediaTypeError reports HTTP 415; the batch is dropped without retry.
	MediaTypeError = export.MediaTypeError
	// SchemaError reports HTTP 422; the rejected contents are logged and
	// the batch is dropped without retry.
	SchemaError = export.SchemaError
	// DeliveryError reports a batch dropped after exhausting retries.
	DeliveryError = export.DeliveryError
	// EncodingError reports a batch that could not be serialized.
	EncodingError = wire.EncodingError
)
