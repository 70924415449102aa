package model

// Canonical attribute keys the runtime may set on spans. The attribute
// mapper translates exactly these keys into the backend schema; anything
// else is dropped at mapping time.
const (
	AttrModelName        = "model.name"
	AttrModelProvider    = "model.provider"
	AttrTemperature      = "model.temperature"
	AttrInvocationParams = "model.invocation_parameters"

	AttrTokensPrompt     = "tokens.prompt"
	AttrTokensCompletion = "tokens.completion"
	AttrTokensTotal      = "tokens.total"

	AttrToolName        = "tool.name"
	AttrToolDescription = "tool.description"
	AttrToolArguments   = "tool.arguments"

	AttrEmbeddingModel = "embedding.model"
	AttrSessionID      = "session.id"
	AttrUserID         = "user.id"
	AttrMetadata       = "metadata"
)
