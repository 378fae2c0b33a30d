package providers

import (
	"context"

	"github.com/pl-listing/lister/internal/models"
)

// Config represents the configuration for one vision request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []models.NormalizedImage
}

// Provider defines the interface for a vision LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// Names of the supported providers.
const (
	OpenAI = "openai"
	Gemini = "gemini"
	Ollama = "ollama"
)
