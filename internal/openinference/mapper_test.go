package openinference

import (
	"testing"
	"time"

	"github.com/agentlens/agentlens/internal/model"
)

func TestKindToken(t *testing.T) {
	tests := []struct {
		name string
		kind model.Kind
		want string
	}{
		{"agent", model.KindAgent, KindTokenAgent},
		{"workflow step", model.KindWorkflowStep, KindTokenChain},
		{"tool call", model.KindToolCall, KindTokenTool},
		{"model invocation", model.KindModelInvocation, KindTokenLLM},
		{"text chunk", model.KindTextChunk, KindTokenLLM},
		{"retrieval", model.KindRetrieval, KindTokenRetriever},
		{"embedding", model.KindEmbedding, KindTokenEmbedding},
		{"unknown falls back to chain", model.Kind("SOMETHING_NEW"), KindTokenChain},
		{"empty falls back to chain", model.Kind(""), KindTokenChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindToken(tt.kind); got != tt.want {
				t.Errorf("KindToken(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestMapIdentityFields(t *testing.T) {
	start := time.Now()
	end := start.Add(120 * time.Millisecond)
	s := &model.Span{
		SpanID:    "00f067aa0ba902b7",
		TraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
		ParentID:  "53995c3f42cd8ad8",
		Kind:      model.KindModelInvocation,
		Name:      "chat completion",
		StartTime: start,
		EndTime:   end,
		Status:    model.Status{Code: model.StatusError, Description: "context deadline exceeded"},
	}

	rec := Map(s)

	if rec.TraceID != s.TraceID || rec.SpanID != s.SpanID || rec.ParentSpanID != s.ParentID {
		t.Errorf("identity fields not carried: %+v", rec)
	}
	if rec.Name != "chat completion" || rec.Kind != model.KindModelInvocation {
		t.Errorf("name/kind not carried: %+v", rec)
	}
	if !rec.StartTime.Equal(start) || !rec.EndTime.Equal(end) {
		t.Errorf("timestamps not carried")
	}
	if rec.StatusCode != model.StatusError || rec.StatusMessage != "context deadline exceeded" {
		t.Errorf("status not carried: %+v", rec)
	}
}

func TestMapSpanKindFirst(t *testing.T) {
	s := &model.Span{Kind: model.KindToolCall}
	s.SetAttr(model.AttrToolName, model.StringValue("search"))

	rec := Map(s)
	if len(rec.Attrs) == 0 {
		t.Fatal("no attributes mapped")
	}
	if rec.Attrs[0].Key != SpanKindKey {
		t.Errorf("first attr = %q, want %q", rec.Attrs[0].Key, SpanKindKey)
	}
	if got := rec.Attrs[0].Value.StringVal; got != KindTokenTool {
		t.Errorf("span kind token = %q, want %q", got, KindTokenTool)
	}
}

func TestMapAttributeTranslation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   model.Value
		wantKey string
		want    model.Value
	}{
		{"model name", model.AttrModelName, model.StringValue("gpt-4o"), LLMModelNameKey, model.StringValue("gpt-4o")},
		{"provider", model.AttrModelProvider, model.StringValue("openai"), LLMProviderKey, model.StringValue("openai")},
		{"tool name", model.AttrToolName, model.StringValue("search"), ToolNameKey, model.StringValue("search")},
		{"tool arguments", model.AttrToolArguments, model.StringValue(`{"q":"go"}`), ToolParametersKey, model.StringValue(`{"q":"go"}`)},
		{"session id", model.AttrSessionID, model.StringValue("sess-1"), SessionIDKey, model.StringValue("sess-1")},
		{"int token count kept", model.AttrTokensPrompt, model.Int64Value(128), LLMTokenCountPromptKey, model.Int64Value(128)},
		{"float token count coerced", model.AttrTokensTotal, model.Float64Value(640.0), LLMTokenCountTotalKey, model.Int64Value(640)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &model.Span{Kind: model.KindModelInvocation}
			s.SetAttr(tt.key, tt.value)

			rec := Map(s)
			var got model.Value
			found := false
			for _, a := range rec.Attrs {
				if a.Key == tt.wantKey {
					got, found = a.Value, true
				}
			}
			if !found {
				t.Fatalf("key %q not mapped to %q; attrs: %+v", tt.key, tt.wantKey, rec.Attrs)
			}
			if got != tt.want {
				t.Errorf("value = %+v, want %+v", got, tt.want)
			}
			if rec.DroppedAttrs != 0 {
				t.Errorf("DroppedAttrs = %d, want 0", rec.DroppedAttrs)
			}
		})
	}
}

func TestMapDropsUnknownKeys(t *testing.T) {
	s := &model.Span{Kind: model.KindAgent}
	s.SetAttr("internal.debug", model.StringValue("noise"))
	s.SetAttr(model.AttrModelName, model.StringValue("gpt-4o"))
	s.SetAttr("another.unknown", model.Int64Value(7))

	rec := Map(s)
	if rec.DroppedAttrs != 2 {
		t.Errorf("DroppedAttrs = %d, want 2", rec.DroppedAttrs)
	}
	for _, a := range rec.Attrs {
		if a.Key == "internal.debug" || a.Key == "another.unknown" {
			t.Errorf("unknown key %q leaked into record", a.Key)
		}
	}
}

func TestMapDropsNonNumericTokenCount(t *testing.T) {
	s := &model.Span{Kind: model.KindModelInvocation}
	s.SetAttr(model.AttrTokensPrompt, model.StringValue("lots"))

	rec := Map(s)
	if rec.DroppedAttrs != 1 {
		t.Errorf("DroppedAttrs = %d, want 1", rec.DroppedAttrs)
	}
	for _, a := range rec.Attrs {
		if a.Key == LLMTokenCountPromptKey {
			t.Errorf("non-numeric token count leaked: %+v", a)
		}
	}
}

func TestMapContent(t *testing.T) {
	s := &model.Span{
		Kind:   model.KindModelInvocation,
		Input:  &model.Content{Value: "what is go", MimeType: ""},
		Output: &model.Content{Value: `{"answer":42}`, MimeType: MimeTypeJSON},
	}

	rec := Map(s)
	got := attrMap(rec)
	if got[InputValueKey] != "what is go" {
		t.Errorf("input value = %q", got[InputValueKey])
	}
	if got[InputMimeTypeKey] != MimeTypeText {
		t.Errorf("empty mime type should default to %q, got %q", MimeTypeText, got[InputMimeTypeKey])
	}
	if got[OutputMimeTypeKey] != MimeTypeJSON {
		t.Errorf("output mime type = %q", got[OutputMimeTypeKey])
	}
}

func TestMapMessageOrder(t *testing.T) {
	s := &model.Span{
		Kind: model.KindModelInvocation,
		InputMessages: []model.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hello"},
		},
		OutputMessages: []model.Message{
			{Role: "assistant", Content: "hi"},
		},
	}

	rec := Map(s)
	got := attrMap(rec)

	want := map[string]string{
		"llm.input_messages.0.message.role":     "system",
		"llm.input_messages.0.message.content":  "be terse",
		"llm.input_messages.1.message.role":     "user",
		"llm.input_messages.1.message.content":  "hello",
		"llm.output_messages.0.message.role":    "assistant",
		"llm.output_messages.0.message.content": "hi",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	// Indexed keys must appear in conversation order.
	wantOrder := []string{
		"llm.input_messages.0.message.role",
		"llm.input_messages.0.message.content",
		"llm.input_messages.1.message.role",
		"llm.input_messages.1.message.content",
		"llm.output_messages.0.message.role",
		"llm.output_messages.0.message.content",
	}
	last := -1
	for _, wantKey := range wantOrder {
		pos := -1
		for i, a := range rec.Attrs {
			if a.Key == wantKey {
				pos = i
				break
			}
		}
		if pos < 0 {
			t.Fatalf("key %q missing from record", wantKey)
		}
		if pos <= last {
			t.Errorf("key %q out of order at position %d", wantKey, pos)
		}
		last = pos
	}
}

func attrMap(rec *Record) map[string]string {
	m := make(map[string]string, len(rec.Attrs))
	for _, a := range rec.Attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}

func BenchmarkMap(b *testing.B) {
	s := &model.Span{
		SpanID:  "00f067aa0ba902b7",
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		Kind:    model.KindModelInvocation,
		Name:    "chat completion",
	}
	s.SetAttr(model.AttrModelName, model.StringValue("gpt-4o"))
	s.SetAttr(model.AttrTokensPrompt, model.Int64Value(128))
	s.SetAttr(model.AttrTokensCompletion, model.Int64Value(512))
	s.InputMessages = []model.Message{{Role: "user", Content: "hello"}}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Map(s)
	}
}
