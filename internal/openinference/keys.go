// Package openinference maps captured spans onto the OpenInference semantic
// conventions, the attribute vocabulary the tracing backend validates
// against. The mapping is a pure table lookup plus a handful of typed
// encoders; new span kinds or attributes are added by extending the tables.
package openinference

// Span kind tokens. The backend rejects values outside this set.
const (
	SpanKindKey = "openinference.span.kind"

	KindTokenAgent     = "AGENT"
	KindTokenChain     = "CHAIN"
	KindTokenTool      = "TOOL"
	KindTokenLLM       = "LLM"
	KindTokenRetriever = "RETRIEVER"
	KindTokenEmbedding = "EMBEDDING"
)

// Flat attribute keys.
const (
	InputValueKey     = "input.value"
	InputMimeTypeKey  = "input.mime_type"
	OutputValueKey    = "output.value"
	OutputMimeTypeKey = "output.mime_type"

	LLMModelNameKey            = "llm.model_name"
	LLMProviderKey             = "llm.provider"
	LLMInvocationParametersKey = "llm.invocation_parameters"
	LLMTokenCountPromptKey     = "llm.token_count.prompt"
	LLMTokenCountCompletionKey = "llm.token_count.completion"
	LLMTokenCountTotalKey      = "llm.token_count.total"

	ToolNameKey        = "tool.name"
	ToolDescriptionKey = "tool.description"
	ToolParametersKey  = "tool.parameters"

	EmbeddingModelNameKey = "embedding.model_name"
	SessionIDKey          = "session.id"
	UserIDKey             = "user.id"
	MetadataKey           = "metadata"
)

// Message attributes are flattened into indexed keys, preserving input
// order: llm.input_messages.0.message.role, .0.message.content, and so on.
const (
	LLMInputMessagesKey  = "llm.input_messages"
	LLMOutputMessagesKey = "llm.output_messages"
	MessageRoleKey       = "message.role"
	MessageContentKey    = "message.content"
)

// MIME types for input/output content.
const (
	MimeTypeText = "text/plain"
	MimeTypeJSON = "application/json"
)
