package agentlens

import "github.com/agentlens/agentlens/internal/model"

// Canonical attribute keys recognized by the attribute mapper. Values set
// under other keys are dropped at export; set them here to have them reach
// the backend.
const (
	// AttrModelName names the invoked model, e.g. "gpt-4o".
	AttrModelName = model.AttrModelName
	// AttrModelProvider names the model vendor.
	AttrModelProvider = model.AttrModelProvider
	// AttrTemperature is the sampling temperature of a model invocation.
	AttrTemperature = model.AttrTemperature
	// AttrInvocationParams is the JSON-encoded invocation parameter set.
	AttrInvocationParams = model.AttrInvocationParams

	// Token usage counters. Non-integer values are coerced at export.
	AttrTokensPrompt     = model.AttrTokensPrompt
	AttrTokensCompletion = model.AttrTokensCompletion
	AttrTokensTotal      = model.AttrTokensTotal

	// Tool call details.
	AttrToolName        = model.AttrToolName
	AttrToolDescription = model.AttrToolDescription
	AttrToolArguments   = model.AttrToolArguments

	// AttrEmbeddingModel names the embedding model.
	AttrEmbeddingModel = model.AttrEmbeddingModel

	// Session correlation.
	AttrSessionID = model.AttrSessionID
	AttrUserID    = model.AttrUserID

	// AttrMetadata is a JSON-encoded free-form metadata object.
	AttrMetadata = model.AttrMetadata
)

// MIME types accepted by SetInput and SetOutput.
const (
	MimeTypeText = "text/plain"
	MimeTypeJSON = "application/json"
)
