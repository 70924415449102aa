package agentlens

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentlens/agentlens/internal/model"
	"github.com/agentlens/agentlens/internal/openinference"
)

// Tracer creates spans and tracks the open ones in an arena keyed by span
// identifier. Parent relationships are recorded as identifiers, never
// pointers, so ending a parent before its children is harmless.
type Tracer struct {
	sampler sampler
	sink    func(*openinference.Record)

	mu   sync.Mutex
	open map[string]*SpanHandle
}

func newTracer(s sampler, sink func(*openinference.Record)) *Tracer {
	return &Tracer{
		sampler: s,
		sink:    sink,
		open:    make(map[string]*SpanHandle),
	}
}

// StartOption customizes span creation.
type StartOption func(*startOptions)

type startOptions struct {
	parent   *SpanHandle
	parentID string
	traceID  string
	start    time.Time
}

// WithParent makes the new span a child of parent, inheriting its trace and
// sampling decision.
func WithParent(parent *SpanHandle) StartOption {
	return func(o *startOptions) { o.parent = parent }
}

// WithParentID names the parent by identifier. The identifier must belong
// to an open span.
func WithParentID(id string) StartOption {
	return func(o *startOptions) { o.parentID = id }
}

// WithTraceID forces the trace identifier of a root span, joining a trace
// started elsewhere. Ignored when a parent is given.
func WithTraceID(id string) StartOption {
	return func(o *startOptions) { o.traceID = id }
}

// WithStartTime overrides the span start time, for callers that buffer
// events before tracing them.
func WithStartTime(t time.Time) StartOption {
	return func(o *startOptions) { o.start = t }
}

// StartSpan opens a span of the given kind and registers it in the arena.
// Root spans consult the sampler; children inherit the root's decision so a
// trace is always captured or skipped as a whole.
func (t *Tracer) StartSpan(kind SpanKind, name string, opts ...StartOption) (*SpanHandle, error) {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &SpanHandle{tr: t}
	h.data.Kind = model.Kind(kind)
	h.data.Name = name
	h.data.SpanID = newSpanID()
	if o.start.IsZero() {
		h.data.StartTime = time.Now()
	} else {
		h.data.StartTime = o.start
	}

	parent := o.parent
	if parent == nil && o.parentID != "" {
		t.mu.Lock()
		parent = t.open[o.parentID]
		t.mu.Unlock()
		if parent == nil {
			return nil, ErrUnknownSpan
		}
	}

	if parent != nil {
		h.data.TraceID = parent.data.TraceID
		h.data.ParentID = parent.data.SpanID
		h.sampled = parent.sampled
	} else {
		if o.traceID != "" {
			h.data.TraceID = o.traceID
		} else {
			h.data.TraceID = newTraceID()
		}
		h.sampled = t.sampler.sample(h.data.TraceID)
	}

	t.mu.Lock()
	t.open[h.data.SpanID] = h
	t.mu.Unlock()
	return h, nil
}

// Lookup returns the open span with the given identifier, or nil.
func (t *Tracer) Lookup(id string) *SpanHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open[id]
}

// OpenSpans reports how many spans are currently open.
func (t *Tracer) OpenSpans() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// finish removes the span from the arena and, if sampled, maps it onto the
// export schema and hands the record to the buffer. Runs synchronously
// inside End.
func (t *Tracer) finish(h *SpanHandle, s *model.Span) {
	t.mu.Lock()
	delete(t.open, s.SpanID)
	t.mu.Unlock()

	if !h.sampled {
		return
	}
	t.sink(openinference.Map(s))
}

// newTraceID returns 32 lowercase hex characters derived from a random
// UUID.
func newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// newSpanID returns 16 lowercase hex characters.
func newSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// sampler decides per trace whether spans are captured. The decision is
// made once at the root and inherited by descendants.
type sampler interface {
	sample(traceID string) bool
}

type alwaysSampler struct{}

func (alwaysSampler) sample(string) bool { return true }

type neverSampler struct{}

func (neverSampler) sample(string) bool { return false }

// ratioSampler keeps roughly the configured fraction of traces. The
// decision is a pure function of the trace identifier, so every process
// observing the same trace agrees.
type ratioSampler struct {
	bound uint64
}

func (r ratioSampler) sample(traceID string) bool {
	raw, err := hex.DecodeString(traceID)
	if err != nil || len(raw) < 8 {
		return true
	}
	return binary.BigEndian.Uint64(raw[:8]) < r.bound
}

// parseSampler resolves a sampler spec: "always", "never", or
// "ratio:<0..1>". Empty means always.
func parseSampler(spec string) (sampler, error) {
	switch {
	case spec == "" || spec == "always":
		return alwaysSampler{}, nil
	case spec == "never":
		return neverSampler{}, nil
	case strings.HasPrefix(spec, "ratio:"):
		p, err := strconv.ParseFloat(strings.TrimPrefix(spec, "ratio:"), 64)
		if err != nil || p < 0 || p > 1 {
			return nil, fmt.Errorf("invalid sampler ratio %q", spec)
		}
		switch p {
		case 0:
			return neverSampler{}, nil
		case 1:
			return alwaysSampler{}, nil
		}
		return ratioSampler{bound: uint64(p * float64(^uint64(0)))}, nil
	default:
		return nil, fmt.Errorf("unknown sampler %q", spec)
	}
}
