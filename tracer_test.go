package agentlens

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/agentlens/agentlens/internal/model"
	"github.com/agentlens/agentlens/internal/openinference"
)

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// collectTracer returns a tracer whose records land in the returned slice
// pointer instead of a live pipeline.
func collectTracer(s sampler) (*Tracer, *[]*openinference.Record) {
	var recs []*openinference.Record
	tr := newTracer(s, func(rec *openinference.Record) {
		recs = append(recs, rec)
	})
	return tr, &recs
}

func TestStartSpanIdentifiers(t *testing.T) {
	tr, _ := collectTracer(alwaysSampler{})

	span, err := tr.StartSpan(SpanKindAgent, "root op")
	if err != nil {
		t.Fatalf("StartSpan: %v", err)
	}
	if !traceIDPattern.MatchString(span.TraceID()) {
		t.Errorf("trace id %q is not 32 lowercase hex chars", span.TraceID())
	}
	if !spanIDPattern.MatchString(span.ID()) {
		t.Errorf("span id %q is not 16 lowercase hex chars", span.ID())
	}
	if span.ParentID() != "" {
		t.Errorf("root span has parent %q", span.ParentID())
	}

	other, _ := tr.StartSpan(SpanKindAgent, "other")
	if other.ID() == span.ID() {
		t.Error("span ids collide")
	}
	if other.TraceID() == span.TraceID() {
		t.Error("separate roots share a trace id")
	}
}

func TestStartSpanParentage(t *testing.T) {
	tr, _ := collectTracer(alwaysSampler{})

	root, _ := tr.StartSpan(SpanKindAgent, "root")
	child, err := tr.StartSpan(SpanKindToolCall, "child", WithParent(root))
	if err != nil {
		t.Fatalf("StartSpan child: %v", err)
	}

	if child.TraceID() != root.TraceID() {
		t.Error("child does not inherit the trace id")
	}
	if child.ParentID() != root.ID() {
		t.Errorf("child parent = %q, want %q", child.ParentID(), root.ID())
	}
}

func TestStartSpanParentByID(t *testing.T) {
	tr, _ := collectTracer(alwaysSampler{})

	root, _ := tr.StartSpan(SpanKindAgent, "root")
	child, err := tr.StartSpan(SpanKindToolCall, "child", WithParentID(root.ID()))
	if err != nil {
		t.Fatalf("StartSpan by parent id: %v", err)
	}
	if child.ParentID() != root.ID() {
		t.Errorf("parent = %q, want %q", child.ParentID(), root.ID())
	}

	if _, err := tr.StartSpan(SpanKindToolCall, "orphan", WithParentID("ffffffffffffffff")); !errors.Is(err, ErrUnknownSpan) {
		t.Errorf("unknown parent id: err = %v, want ErrUnknownSpan", err)
	}
}

func TestEndParentBeforeChild(t *testing.T) {
	tr, recs := collectTracer(alwaysSampler{})

	root, _ := tr.StartSpan(SpanKindAgent, "root")
	child, _ := tr.StartSpan(SpanKindToolCall, "child", WithParent(root))

	if err := root.End(OK); err != nil {
		t.Fatalf("End root: %v", err)
	}
	if err := child.End(OK); err != nil {
		t.Fatalf("End child after parent: %v", err)
	}

	if len(*recs) != 2 {
		t.Fatalf("records = %d, want 2", len(*recs))
	}
	if (*recs)[1].ParentSpanID != root.ID() {
		t.Errorf("child record parent = %q, want %q", (*recs)[1].ParentSpanID, root.ID())
	}
}

func TestEndRemovesFromArena(t *testing.T) {
	tr, _ := collectTracer(alwaysSampler{})

	span, _ := tr.StartSpan(SpanKindAgent, "op")
	if tr.Lookup(span.ID()) != span {
		t.Fatal("open span not in arena")
	}
	if tr.OpenSpans() != 1 {
		t.Fatalf("OpenSpans = %d, want 1", tr.OpenSpans())
	}

	_ = span.End(OK)
	if tr.Lookup(span.ID()) != nil {
		t.Error("ended span still in arena")
	}
	if tr.OpenSpans() != 0 {
		t.Errorf("OpenSpans = %d, want 0", tr.OpenSpans())
	}
}

func TestMutatorsAfterEnd(t *testing.T) {
	tr, _ := collectTracer(alwaysSampler{})
	span, _ := tr.StartSpan(SpanKindModelInvocation, "op")
	_ = span.End(OK)

	tests := []struct {
		name string
		call func() error
	}{
		{"SetAttribute", func() error { return span.SetAttribute(AttrModelName, "gpt-4o") }},
		{"SetInput", func() error { return span.SetInput("in", MimeTypeText) }},
		{"SetOutput", func() error { return span.SetOutput("out", MimeTypeText) }},
		{"AddInputMessage", func() error { return span.AddInputMessage("user", "hi") }},
		{"AddOutputMessage", func() error { return span.AddOutputMessage("assistant", "yo") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrSpanEnded) {
				t.Errorf("err = %v, want ErrSpanEnded", err)
			}
		})
	}

	if err := span.End(OK); !errors.Is(err, ErrDoubleEnd) {
		t.Errorf("second End = %v, want ErrDoubleEnd", err)
	}
}

func TestDoubleEndEmitsOnce(t *testing.T) {
	tr, recs := collectTracer(alwaysSampler{})
	span, _ := tr.StartSpan(SpanKindAgent, "op")

	_ = span.End(OK)
	_ = span.End(ErrorStatus(errors.New("boom")))

	if len(*recs) != 1 {
		t.Fatalf("records = %d, want 1", len(*recs))
	}
	if (*recs)[0].StatusCode != model.StatusOK {
		t.Error("second End overwrote the recorded status")
	}
}

func TestEndTimestamps(t *testing.T) {
	tr, recs := collectTracer(alwaysSampler{})

	// A start time in the future must not yield end < start.
	future := time.Now().Add(time.Hour)
	span, _ := tr.StartSpan(SpanKindAgent, "op", WithStartTime(future))
	_ = span.End(OK)

	rec := (*recs)[0]
	if rec.EndTime.Before(rec.StartTime) {
		t.Errorf("end %v before start %v", rec.EndTime, rec.StartTime)
	}
}

func TestSetAttributeOverwrites(t *testing.T) {
	tr, recs := collectTracer(alwaysSampler{})
	span, _ := tr.StartSpan(SpanKindModelInvocation, "op")

	_ = span.SetAttribute(AttrModelName, "gpt-4o-mini")
	_ = span.SetAttribute(AttrModelName, "gpt-4o")
	_ = span.End(OK)

	count := 0
	for _, a := range (*recs)[0].Attrs {
		if a.Key == "llm.model_name" {
			count++
			if a.Value.StringVal != "gpt-4o" {
				t.Errorf("value = %q, want the last write", a.Value.StringVal)
			}
		}
	}
	if count != 1 {
		t.Errorf("key mapped %d times, want 1", count)
	}
}

func TestNeverSamplerSuppressesTrace(t *testing.T) {
	tr, recs := collectTracer(neverSampler{})

	root, _ := tr.StartSpan(SpanKindAgent, "root")
	child, _ := tr.StartSpan(SpanKindToolCall, "child", WithParent(root))
	_ = child.End(OK)
	_ = root.End(OK)

	if len(*recs) != 0 {
		t.Errorf("records = %d, want 0 with the never sampler", len(*recs))
	}
}

func TestRatioSamplerIsDeterministic(t *testing.T) {
	s, err := parseSampler("ratio:0.5")
	if err != nil {
		t.Fatalf("parseSampler: %v", err)
	}

	id := newTraceID()
	first := s.sample(id)
	for i := 0; i < 10; i++ {
		if s.sample(id) != first {
			t.Fatal("sampling decision not deterministic for a fixed trace id")
		}
	}

	// Extremes decided purely by the bound.
	low := "0000000000000000" + id[16:]
	high := "ffffffffffffffff" + id[16:]
	if !s.sample(low) {
		t.Error("minimal trace id not sampled at ratio 0.5")
	}
	if s.sample(high) {
		t.Error("maximal trace id sampled at ratio 0.5")
	}
}

func TestParseSampler(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"", false},
		{"always", false},
		{"never", false},
		{"ratio:0.25", false},
		{"ratio:0", false},
		{"ratio:1", false},
		{"ratio:1.5", true},
		{"ratio:-0.1", true},
		{"ratio:abc", true},
		{"sometimes", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := parseSampler(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSampler(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestChildInheritsSamplingDecision(t *testing.T) {
	s, _ := parseSampler("ratio:0.5")
	tr, recs := collectTracer(s)

	// Find a root that is not sampled, then verify its child is suppressed
	// too even though the child's own id might have sampled.
	for i := 0; i < 256; i++ {
		root, _ := tr.StartSpan(SpanKindAgent, "root")
		child, _ := tr.StartSpan(SpanKindToolCall, "child", WithParent(root))
		rootSampled := root.sampled
		_ = child.End(OK)
		_ = root.End(OK)
		if !rootSampled {
			if len(*recs) != 0 {
				t.Fatal("child of an unsampled root was exported")
			}
			return
		}
		*recs = (*recs)[:0]
	}
	t.Skip("no unsampled root in 256 tries")
}
