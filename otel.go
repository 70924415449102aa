package agentlens

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agentlens/agentlens/internal/model"
	"github.com/agentlens/agentlens/internal/openinference"
)

// KindAttributeKey marks an OpenTelemetry span with its agentlens span
// kind. Spans without it export as workflow steps.
const KindAttributeKey = "agentlens.span.kind"

// SpanExporter adapts the pipeline to the OpenTelemetry SDK, so code
// already instrumented with the OTel API can export through agentlens by
// registering it on a TracerProvider:
//
//	sdktrace.NewTracerProvider(sdktrace.WithBatcher(lens.OTelExporter()))
//
// Attribute keys pass through the same mapping as native spans; only the
// canonical keys reach the backend.
type SpanExporter struct {
	e *Exporter
}

// OTelExporter returns an OpenTelemetry SDK exporter backed by e's
// pipeline.
func (e *Exporter) OTelExporter() *SpanExporter {
	return &SpanExporter{e: e}
}

var _ sdktrace.SpanExporter = (*SpanExporter)(nil)

// ExportSpans converts each finished SDK span into a pipeline record and
// enqueues it. It never blocks on the backend; a full intake queue drops
// and counts, same as native spans.
func (se *SpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, ro := range spans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		se.e.batcher.Enqueue(openinference.Map(convertReadOnly(ro)))
	}
	return nil
}

// Shutdown drains the pipeline. The SDK calls this once from its own
// shutdown path; repeats are safe.
func (se *SpanExporter) Shutdown(ctx context.Context) error {
	se.e.Shutdown(ctx)
	return ctx.Err()
}

func convertReadOnly(ro sdktrace.ReadOnlySpan) *model.Span {
	sc := ro.SpanContext()
	s := &model.Span{
		SpanID:    sc.SpanID().String(),
		TraceID:   sc.TraceID().String(),
		Kind:      model.KindWorkflowStep,
		Name:      ro.Name(),
		StartTime: ro.StartTime(),
		EndTime:   ro.EndTime(),
	}
	if parent := ro.Parent(); parent.HasSpanID() {
		s.ParentID = parent.SpanID().String()
	}

	switch ro.Status().Code {
	case codes.Ok:
		s.Status.Code = model.StatusOK
	case codes.Error:
		s.Status.Code = model.StatusError
		s.Status.Description = ro.Status().Description
	}

	for _, kv := range ro.Attributes() {
		if string(kv.Key) == KindAttributeKey {
			s.Kind = model.Kind(kv.Value.AsString())
			continue
		}
		s.SetAttr(string(kv.Key), convertOTelValue(kv.Value))
	}
	return s
}

func convertOTelValue(v attribute.Value) model.Value {
	switch v.Type() {
	case attribute.BOOL:
		return model.BoolValue(v.AsBool())
	case attribute.INT64:
		return model.Int64Value(v.AsInt64())
	case attribute.FLOAT64:
		return model.Float64Value(v.AsFloat64())
	case attribute.STRING:
		return model.StringValue(v.AsString())
	default:
		return model.StringValue(v.Emit())
	}
}
