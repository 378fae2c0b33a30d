package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pl-listing/lister/internal/providers"
)

// DefaultURL is used when no Ollama host is configured.
const DefaultURL = "http://localhost:11434"

// Ollama is a provider for Ollama
type Ollama struct {
	baseURL string
	client  *http.Client
}

// New returns a new Ollama provider. A nil client selects http.DefaultClient.
func New(baseURL string, client *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

// ExtractText calls /api/generate with base64 images attached
func (o *Ollama) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	body := generateRequest{
		Model:  config.Model,
		Prompt: config.Prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": config.Temperature,
		},
	}
	for _, img := range config.Images {
		body.Images = append(body.Images, base64.StdEncoding.EncodeToString(img.Data))
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
