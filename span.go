package agentlens

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentlens/agentlens/internal/model"
)

// SpanKind classifies the traced operation. The attribute mapper translates
// each kind into the backend's span-kind token.
type SpanKind string

const (
	// SpanKindAgent is a top-level agent invocation.
	SpanKindAgent SpanKind = "AGENT"
	// SpanKindWorkflowStep is one step of an orchestrated workflow.
	SpanKindWorkflowStep SpanKind = "WORKFLOW_STEP"
	// SpanKindToolCall is a tool dispatch.
	SpanKindToolCall SpanKind = "TOOL_CALL"
	// SpanKindModelInvocation is one LLM request/response cycle.
	SpanKindModelInvocation SpanKind = "MODEL_INVOCATION"
	// SpanKindTextChunk is a streamed slice of a model response.
	SpanKindTextChunk SpanKind = "TEXT_CHUNK"
	// SpanKindRetrieval is a document retrieval operation.
	SpanKindRetrieval SpanKind = "RETRIEVAL"
	// SpanKindEmbedding is an embedding computation.
	SpanKindEmbedding SpanKind = "EMBEDDING"
)

// StatusCode is the terminal outcome of a span.
type StatusCode uint8

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Status carries a span's outcome plus an optional error description.
type Status struct {
	Code        StatusCode
	Description string
}

// OK is the plain success status.
var OK = Status{Code: StatusOK}

// ErrorStatus builds an error status from err. A nil err produces a bare
// error status.
func ErrorStatus(err error) Status {
	s := Status{Code: StatusError}
	if err != nil {
		s.Description = err.Error()
	}
	return s
}

// SpanHandle is the mutable view of one open span. A span stays mutable
// until End, after which every mutator returns ErrSpanEnded and the
// captured data is immutable. All methods are safe for concurrent use.
type SpanHandle struct {
	tr *Tracer

	mu      sync.Mutex
	data    model.Span
	sampled bool
	ended   bool
}

// ID returns the span identifier (16 hex characters). Immutable.
func (h *SpanHandle) ID() string { return h.data.SpanID }

// TraceID returns the trace identifier shared by every span of one logical
// execution (32 hex characters). Immutable.
func (h *SpanHandle) TraceID() string { return h.data.TraceID }

// ParentID returns the parent span identifier, or "" for a root span.
func (h *SpanHandle) ParentID() string { return h.data.ParentID }

// Ended reports whether the span has been closed.
func (h *SpanHandle) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ended
}

// SetAttribute records an operation-specific value on the open span.
// Supported value types are string, integer, float, and boolean; anything
// else is stored via its string form. Setting the same key twice
// overwrites. Returns ErrSpanEnded once the span is closed.
func (h *SpanHandle) SetAttribute(key string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrSpanEnded
	}
	h.data.SetAttr(key, toValue(value))
	return nil
}

// SetInput attaches MIME-typed input content. An empty mimeType defaults to
// text/plain at mapping time.
func (h *SpanHandle) SetInput(value, mimeType string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrSpanEnded
	}
	h.data.Input = &model.Content{Value: value, MimeType: mimeType}
	return nil
}

// SetOutput attaches MIME-typed output content.
func (h *SpanHandle) SetOutput(value, mimeType string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrSpanEnded
	}
	h.data.Output = &model.Content{Value: value, MimeType: mimeType}
	return nil
}

// AddInputMessage appends one turn to the span's input conversation.
// Message order is preserved through export.
func (h *SpanHandle) AddInputMessage(role, content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrSpanEnded
	}
	h.data.InputMessages = append(h.data.InputMessages, model.Message{Role: role, Content: content})
	return nil
}

// AddOutputMessage appends one turn to the span's output conversation.
func (h *SpanHandle) AddOutputMessage(role, content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrSpanEnded
	}
	h.data.OutputMessages = append(h.data.OutputMessages, model.Message{Role: role, Content: content})
	return nil
}

// End closes the span with the given status and hands it to the attribute
// mapper synchronously, so the capture survives even if the process exits
// right after. A second End returns ErrDoubleEnd and changes nothing.
func (h *SpanHandle) End(status Status) error {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return ErrDoubleEnd
	}
	h.ended = true
	h.data.EndTime = time.Now()
	if h.data.EndTime.Before(h.data.StartTime) {
		h.data.EndTime = h.data.StartTime
	}
	h.data.Status = model.Status{
		Code:        model.StatusCode(status.Code),
		Description: status.Description,
	}
	snapshot := h.data
	h.mu.Unlock()

	h.tr.finish(h, &snapshot)
	return nil
}

func toValue(value any) model.Value {
	switch v := value.(type) {
	case string:
		return model.StringValue(v)
	case int:
		return model.Int64Value(int64(v))
	case int32:
		return model.Int64Value(int64(v))
	case int64:
		return model.Int64Value(v)
	case uint:
		return model.Int64Value(int64(v))
	case float32:
		return model.Float64Value(float64(v))
	case float64:
		return model.Float64Value(v)
	case bool:
		return model.BoolValue(v)
	case error:
		return model.StringValue(v.Error())
	default:
		return model.StringValue(fmt.Sprintf("%v", v))
	}
}
