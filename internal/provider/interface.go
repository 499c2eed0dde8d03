// Package provider selects and constructs LLM backend implementations at
// runtime. Supported backends: Mistral, OpenAI, Azure OpenAI, Ollama,
// Google Gemini, Volcano Engine Ark.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendMistral selects the Mistral API (OpenAI-compatible endpoint).
	BackendMistral Backend = "mistral"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcano Engine Ark.
	BackendArk Backend = "ark"
)

// ProviderMistral holds Mistral connection settings.
type ProviderMistral struct {
	// APIKey is the Mistral API key.
	APIKey string
	// Model is the model name (e.g. "codestral-latest").
	Model string
	// BaseURL is the API endpoint (default: https://api.mistral.ai/v1).
	BaseURL string
}

// ProviderOpenAI holds OpenAI connection settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model name (e.g. "gpt-4o").
	Model string
	// BaseURL overrides the default endpoint (for compatible gateways).
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI Service connection settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI API key.
	APIKey string
	// Endpoint is the resource endpoint (https://<name>.openai.azure.com).
	Endpoint string
	// Deployment is the deployment name.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderOllama holds Ollama connection settings.
type ProviderOllama struct {
	// Host is the Ollama API endpoint.
	Host string
	// Model is the local model name (e.g. "llama3").
	Model string
}

// ProviderGemini holds Google Gemini connection settings.
type ProviderGemini struct {
	// APIKey is the Google API key.
	APIKey string
	// Model is the model name (e.g. "gemini-1.5-pro").
	Model string
}

// ProviderArk holds Volcano Engine Ark connection settings.
type ProviderArk struct {
	// APIKey is the Ark API key.
	APIKey string
	// Model is the Ark endpoint/model identifier.
	Model string
	// BaseURL overrides the default endpoint.
	BaseURL string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Mistral holds Mistral settings (mistral backend only).
	Mistral ProviderMistral

	// OpenAI holds OpenAI settings (openai backend only).
	OpenAI ProviderOpenAI

	// AzureOpenAI holds Azure settings (azure backend only).
	AzureOpenAI ProviderAzureOpenAI

	// Ollama holds Ollama settings (ollama backend only).
	Ollama ProviderOllama

	// Gemini holds Gemini settings (gemini backend only).
	Gemini ProviderGemini

	// Ark holds Ark settings (ark backend only).
	Ark ProviderArk

	// Tuning holds shared generation parameters.
	Tuning SharedTuning
}
