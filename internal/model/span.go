// Package model holds the internal representation of captured spans.
//
// The public package mirrors these types where they appear in its API and
// converts at the boundary, so the pipeline packages (mapper, encoder,
// batcher) never depend on the public surface.
package model

import "time"

// Kind classifies the traced operation. Values match the public SpanKind
// constants one for one.
type Kind string

const (
	KindAgent           Kind = "AGENT"
	KindWorkflowStep    Kind = "WORKFLOW_STEP"
	KindToolCall        Kind = "TOOL_CALL"
	KindModelInvocation Kind = "MODEL_INVOCATION"
	KindTextChunk       Kind = "TEXT_CHUNK"
	KindRetrieval       Kind = "RETRIEVAL"
	KindEmbedding       Kind = "EMBEDDING"
)

// StatusCode is the terminal outcome of a span.
type StatusCode uint8

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Status carries the outcome plus an optional error description.
type Status struct {
	Code        StatusCode
	Description string
}

// Message is one turn of a multi-turn model conversation.
type Message struct {
	Role    string
	Content string
}

// Content is a MIME-typed input or output payload.
type Content struct {
	Value    string
	MimeType string
}

// Span is the closed, immutable snapshot handed to the attribute mapper.
// Identifiers are lowercase hex: 32 characters for the trace, 16 for spans.
// The parent reference is an identifier, never a pointer, so trace trees
// carry no ownership links between spans.
type Span struct {
	SpanID   string
	TraceID  string
	ParentID string

	Kind Kind
	Name string

	StartTime time.Time
	EndTime   time.Time
	Status    Status

	// Attrs preserves insertion order. Setting an existing key overwrites
	// the value in place.
	Attrs []Attr

	InputMessages  []Message
	OutputMessages []Message
	Input          *Content
	Output         *Content
}

// SetAttr sets key to v, overwriting a previous value for the same key.
func (s *Span) SetAttr(key string, v Value) {
	for i := range s.Attrs {
		if s.Attrs[i].Key == key {
			s.Attrs[i].Value = v
			return
		}
	}
	s.Attrs = append(s.Attrs, Attr{Key: key, Value: v})
}

// Attr returns the value for key and whether it was set.
func (s *Span) Attr(key string) (Value, bool) {
	for i := range s.Attrs {
		if s.Attrs[i].Key == key {
			return s.Attrs[i].Value, true
		}
	}
	return Value{}, false
}
