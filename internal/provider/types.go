package provider

import (
	"context"
)

// Type represents the LLM provider type
type Type string

const (
	TypeVLLM     Type = "vllm"
	TypeOllama   Type = "ollama"
	TypeLlamaCpp Type = "llama.cpp"
	TypeOpenAI   Type = "openai"
	TypeUnknown  Type = "unknown"
)

// String returns the string representation of the provider type
func (t Type) String() string {
	return string(t)
}

// DisplayName returns a human-readable name for the provider type
func (t Type) DisplayName() string {
	switch t {
	case TypeVLLM:
		return "vLLM"
	case TypeOllama:
		return "Ollama"
	case TypeLlamaCpp:
		return "llama.cpp"
	case TypeOpenAI:
		return "OpenAI-compatible"
	default:
		return "Unknown"
	}
}

// Info holds provider metadata
type Info struct {
	Type          Type     // Provider type (vllm, ollama, llama.cpp, openai)
	Name          string   // Configured name, used as the circuit breaker id
	Host          string   // Base URL
	Model         string   // Selected model
	Models        []string // Available models
	APIPath       string   // API path prefix (e.g., "/v1")
	ContextWindow int      // Input token window of the selected model, 0 if unknown
}

// GenerateRequest is a single-turn text generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a generated completion.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Provider interface for LLM operations
type Provider interface {
	// Info returns provider metadata
	Info() *Info

	// DetectModels queries available models from the server
	DetectModels(ctx context.Context) ([]string, error)

	// DetectContextWindow asks the server for the selected model's
	// input window
	DetectContextWindow(ctx context.Context) (int, error)

	// Generate runs one chat completion against the selected model
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)

	// SetModel sets the active model
	SetModel(model string)
}
