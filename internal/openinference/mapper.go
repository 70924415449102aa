package openinference

import (
	"fmt"
	"time"

	"github.com/agentlens/agentlens/internal/model"
)

// Record is the backend-schema representation of one closed span. It is
// immutable once produced; the batch buffer takes ownership of it and the
// originating span can be discarded.
type Record struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	Kind         model.Kind

	StartTime time.Time
	EndTime   time.Time

	StatusCode    model.StatusCode
	StatusMessage string

	// Attrs holds the mapped semantic-convention attributes in a fixed
	// order: span kind first, then mapped keys, content, and messages.
	Attrs []model.Attr

	// DroppedAttrs counts runtime attributes that had no schema mapping.
	DroppedAttrs int
}

// kindTokens maps span kinds to their schema tokens. A text chunk is a
// streamed slice of a model response, so it shares the LLM token.
var kindTokens = map[model.Kind]string{
	model.KindAgent:           KindTokenAgent,
	model.KindWorkflowStep:    KindTokenChain,
	model.KindToolCall:        KindTokenTool,
	model.KindModelInvocation: KindTokenLLM,
	model.KindTextChunk:       KindTokenLLM,
	model.KindRetrieval:       KindTokenRetriever,
	model.KindEmbedding:       KindTokenEmbedding,
}

// mapping translates one canonical runtime key into a schema key, optionally
// coercing the value. A nil coerce keeps the value as-is.
type mapping struct {
	key    string
	coerce func(model.Value) (model.Value, bool)
}

// asInt accepts integer and float token counts; everything else is dropped
// because the backend validates count fields as integers.
func asInt(v model.Value) (model.Value, bool) {
	switch v.Type {
	case model.Int64Type:
		return v, true
	case model.Float64Type:
		return model.Int64Value(int64(v.Float)), true
	default:
		return model.Value{}, false
	}
}

var attrMappings = map[string]mapping{
	model.AttrModelName:        {key: LLMModelNameKey},
	model.AttrModelProvider:    {key: LLMProviderKey},
	model.AttrInvocationParams: {key: LLMInvocationParametersKey},
	model.AttrTemperature:      {key: LLMInvocationParametersKey + ".temperature"},
	model.AttrTokensPrompt:     {key: LLMTokenCountPromptKey, coerce: asInt},
	model.AttrTokensCompletion: {key: LLMTokenCountCompletionKey, coerce: asInt},
	model.AttrTokensTotal:      {key: LLMTokenCountTotalKey, coerce: asInt},
	model.AttrToolName:         {key: ToolNameKey},
	model.AttrToolDescription:  {key: ToolDescriptionKey},
	model.AttrToolArguments:    {key: ToolParametersKey},
	model.AttrEmbeddingModel:   {key: EmbeddingModelNameKey},
	model.AttrSessionID:        {key: SessionIDKey},
	model.AttrUserID:           {key: UserIDKey},
	model.AttrMetadata:         {key: MetadataKey},
}

// KindToken returns the schema token for a span kind. Unknown kinds fall
// back to the chain token rather than failing the span: partial telemetry
// beats lost telemetry.
func KindToken(k model.Kind) string {
	if tok, ok := kindTokens[k]; ok {
		return tok
	}
	return KindTokenChain
}

// Map converts one closed span into its exported record. It is a pure
// function with no I/O and runs inline on the span-close path; unsupported
// attribute keys are dropped silently so a single bad key never discards
// the span.
func Map(s *model.Span) *Record {
	rec := &Record{
		TraceID:       s.TraceID,
		SpanID:        s.SpanID,
		ParentSpanID:  s.ParentID,
		Name:          s.Name,
		Kind:          s.Kind,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		StatusCode:    s.Status.Code,
		StatusMessage: s.Status.Description,
	}

	attrs := make([]model.Attr, 0, len(s.Attrs)+8)
	attrs = append(attrs, model.Attr{
		Key:   SpanKindKey,
		Value: model.StringValue(KindToken(s.Kind)),
	})

	for _, a := range s.Attrs {
		m, ok := attrMappings[a.Key]
		if !ok {
			rec.DroppedAttrs++
			continue
		}
		v := a.Value
		if m.coerce != nil {
			if v, ok = m.coerce(v); !ok {
				rec.DroppedAttrs++
				continue
			}
		}
		attrs = append(attrs, model.Attr{Key: m.key, Value: v})
	}

	attrs = appendContent(attrs, InputValueKey, InputMimeTypeKey, s.Input)
	attrs = appendContent(attrs, OutputValueKey, OutputMimeTypeKey, s.Output)
	attrs = appendMessages(attrs, LLMInputMessagesKey, s.InputMessages)
	attrs = appendMessages(attrs, LLMOutputMessagesKey, s.OutputMessages)

	rec.Attrs = attrs
	return rec
}

func appendContent(attrs []model.Attr, valueKey, mimeKey string, c *model.Content) []model.Attr {
	if c == nil {
		return attrs
	}
	mime := c.MimeType
	if mime == "" {
		mime = MimeTypeText
	}
	attrs = append(attrs,
		model.Attr{Key: valueKey, Value: model.StringValue(c.Value)},
		model.Attr{Key: mimeKey, Value: model.StringValue(mime)},
	)
	return attrs
}

func appendMessages(attrs []model.Attr, prefix string, msgs []model.Message) []model.Attr {
	for i, m := range msgs {
		attrs = append(attrs,
			model.Attr{
				Key:   fmt.Sprintf("%s.%d.%s", prefix, i, MessageRoleKey),
				Value: model.StringValue(m.Role),
			},
			model.Attr{
				Key:   fmt.Sprintf("%s.%d.%s", prefix, i, MessageContentKey),
				Value: model.StringValue(m.Content),
			},
		)
	}
	return attrs
}
