package export

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on an exporter whose shutdown has
// already begun.
var ErrClosed = errors.New("export: pipeline closed")

// AuthError reports a 401/403 from the backend. It is pipeline-fatal: no
// retry can succeed until the credentials are reconfigured, so the batch is
// dropped immediately and the error surfaces to the Flush caller. The
// pipeline keeps buffering subsequent spans so a credential fix does not
// lose what accumulated during the outage.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("export: authentication rejected (HTTP %d); check API key, project and stream configuration", e.StatusCode)
}

// MediaTypeError reports a 415: the backend refused the payload encoding.
// This indicates a programming error in the wire encoder, not a transient
// condition, so the batch is not retried.
type MediaTypeError struct{}

func (e *MediaTypeError) Error() string {
	return "export: backend rejected payload media type (HTTP 415)"
}

// SchemaError reports a 422: the payload failed the backend's schema
// validation. The batch contents are written to the drop log for diagnosis
// and the batch is dropped without retry.
type SchemaError struct {
	Body string
}

func (e *SchemaError) Error() string {
	if e.Body == "" {
		return "export: backend rejected payload schema (HTTP 422)"
	}
	return "export: backend rejected payload schema (HTTP 422): " + e.Body
}

// DeliveryError reports a batch dropped after exhausting its retry budget
// on transient failures.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("export: delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// statusError is a retryable non-2xx response. It never escapes the client;
// exhausted retries wrap the last one in a DeliveryError.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}
