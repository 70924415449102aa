// Package wire serializes sealed batches into the OTLP trace envelope the
// backend ingests: resource attributes, one instrumentation scope, and the
// batch's spans nested beneath it. Encoding is deterministic and side-effect
// free; a batch that fails to encode is dropped by the caller, never
// retried, because re-encoding cannot change the outcome.
package wire

import (
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/proto"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agentlens/agentlens/internal/model"
	"github.com/agentlens/agentlens/internal/openinference"
)

const (
	traceIDHexLen = 32
	spanIDHexLen  = 16
)

// EncodingError reports a batch that could not be serialized. It is a
// per-batch fatal error: the batch is dropped and the pipeline continues.
type EncodingError struct {
	SpanID string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.SpanID == "" {
		return "wire: " + e.Reason
	}
	return fmt.Sprintf("wire: span %s: %s", e.SpanID, e.Reason)
}

// Resource identifies the emitting service in the envelope.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	ScopeName      string
	ScopeVersion   string
}

// Encode builds the OTLP export request for a sealed batch. Record order is
// preserved inside the envelope.
func Encode(res Resource, recs []*openinference.Record) (*coltracepb.ExportTraceServiceRequest, error) {
	spans := make([]*tracepb.Span, 0, len(recs))
	for _, rec := range recs {
		s, err := encodeSpan(rec)
		if err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}

	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{
					stringKV("service.name", res.ServiceName),
					stringKV("service.version", res.ServiceVersion),
				},
			},
			ScopeSpans: []*tracepb.ScopeSpans{{
				Scope: &commonpb.InstrumentationScope{
					Name:    res.ScopeName,
					Version: res.ScopeVersion,
				},
				Spans: spans,
			}},
		}},
	}, nil
}

// Marshal serializes the request to the protobuf payload the HTTP transport
// posts. Kept separate from Encode so the gRPC transport can send the
// message directly.
func Marshal(req *coltracepb.ExportTraceServiceRequest) ([]byte, error) {
	payload, err := proto.Marshal(req)
	if err != nil {
		return nil, &EncodingError{Reason: err.Error()}
	}
	return payload, nil
}

func encodeSpan(rec *openinference.Record) (*tracepb.Span, error) {
	traceID, err := decodeID(rec.TraceID, traceIDHexLen)
	if err != nil {
		return nil, &EncodingError{SpanID: rec.SpanID, Reason: "trace id: " + err.Error()}
	}
	spanID, err := decodeID(rec.SpanID, spanIDHexLen)
	if err != nil {
		return nil, &EncodingError{SpanID: rec.SpanID, Reason: "span id: " + err.Error()}
	}
	var parentID []byte
	if rec.ParentSpanID != "" {
		parentID, err = decodeID(rec.ParentSpanID, spanIDHexLen)
		if err != nil {
			return nil, &EncodingError{SpanID: rec.SpanID, Reason: "parent span id: " + err.Error()}
		}
	}

	start := rec.StartTime.UnixNano()
	end := rec.EndTime.UnixNano()
	if start < 0 || end < start {
		return nil, &EncodingError{SpanID: rec.SpanID, Reason: "timestamps out of range"}
	}

	attrs := make([]*commonpb.KeyValue, 0, len(rec.Attrs))
	for _, a := range rec.Attrs {
		attrs = append(attrs, &commonpb.KeyValue{Key: a.Key, Value: anyValue(a.Value)})
	}

	return &tracepb.Span{
		TraceId:           traceID,
		SpanId:            spanID,
		ParentSpanId:      parentID,
		Name:              rec.Name,
		Kind:              tracepb.Span_SPAN_KIND_INTERNAL,
		StartTimeUnixNano: uint64(start),
		EndTimeUnixNano:   uint64(end),
		Attributes:        attrs,
		Status:            encodeStatus(rec),
	}, nil
}

// decodeID turns a fixed-length lowercase hex identifier into its binary
// form. The wire format carries IDs as bytes; the fixed-length text form is
// what the rest of the pipeline passes around.
func decodeID(id string, hexLen int) ([]byte, error) {
	if len(id) != hexLen {
		return nil, fmt.Errorf("want %d hex chars, got %d", hexLen, len(id))
	}
	b, err := hex.DecodeString(id)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func encodeStatus(rec *openinference.Record) *tracepb.Status {
	st := &tracepb.Status{}
	switch rec.StatusCode {
	case model.StatusOK:
		st.Code = tracepb.Status_STATUS_CODE_OK
	case model.StatusError:
		st.Code = tracepb.Status_STATUS_CODE_ERROR
		st.Message = rec.StatusMessage
	default:
		st.Code = tracepb.Status_STATUS_CODE_UNSET
	}
	return st
}

func anyValue(v model.Value) *commonpb.AnyValue {
	switch v.Type {
	case model.StringType:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.StringVal}}
	case model.Int64Type:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.Integer}}
	case model.Float64Type:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.Float}}
	case model.BoolType:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.Bool()}}
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.String()}}
	}
}

func stringKV(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}
