package models

// DescribeRequest is the payload for POST /api/v1/describe.
// It asks a vision model to caption stored crops from a finished run.
// The model client is configured independently of capture; this is the
// only operation that touches it.
type DescribeRequest struct {
	// Namespace identifies the stored run. Required.
	Namespace string `json:"namespace" binding:"required"`

	// Index selects a single crop by its 1-based number. Zero means
	// every crop in the run.
	Index int `json:"index,omitempty" binding:"omitempty,min=1"`

	// Prompt overrides the default captioning instruction.
	Prompt string `json:"prompt,omitempty"`

	// LLMAPIKey optionally overrides the server-configured key (BYOK).
	LLMAPIKey string `json:"llm_api_key,omitempty"`

	// LLMModel overrides the configured model.
	LLMModel string `json:"llm_model,omitempty"`

	// LLMBaseURL overrides the configured base URL. Supports any
	// OpenAI-compatible API (DeepSeek, Groq, Azure, etc.).
	LLMBaseURL string `json:"llm_base_url,omitempty"`
}

// SectionDescription is one generated caption.
type SectionDescription struct {
	Index       int    `json:"index"`
	File        string `json:"file"`
	Description string `json:"description"`
}

// DescribeResponse is the response for POST /api/v1/describe.
type DescribeResponse struct {
	Success      bool                 `json:"success"`
	Namespace    string               `json:"namespace"`
	Descriptions []SectionDescription `json:"descriptions,omitempty"`
	LLMUsage     *LLMUsage            `json:"llm_usage,omitempty"`
	Error        *ErrorDetail         `json:"error,omitempty"`
}

// LLMUsage reports token consumption from the LLM calls.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
