package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama transcribes receipts with a vision model served by a local Ollama.
// Models that read receipts reasonably well: qwen2-vl:7b, llava:1.6, minicpm-v.
type Ollama struct {
	generateURL string
	model       string
	client      *http.Client
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		generateURL: strings.TrimRight(baseURL, "/") + "/api/generate",
		model:       modelName,
		// vision models are slow on CPU
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// ReadLines transcribes the receipt into lines
func (o *Ollama) ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	pngData, err := NormalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		System:  systemInstruction,
		Prompt:  transcribePrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding ollama response: %v", ErrUpstreamUnavailable, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: ollama: %s", ErrUpstreamUnavailable, out.Error)
	}

	return parseTranscript(out.Response)
}

// Close is a no-op
func (o *Ollama) Close() error {
	return nil
}
