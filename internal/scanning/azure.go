package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const azureReadPath = "vision/v3.2/read/analyze"

// Polling defaults for AzureConfig
const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
	DefaultTimeout      = 60 * time.Second
)

// Azure Read operation statuses
const (
	azureStatusNotStarted = "notStarted"
	azureStatusRunning    = "running"
	azureStatusSucceeded  = "succeeded"
	azureStatusFailed     = "failed"
)

// AzureConfig configures the Azure Computer Vision Read client
type AzureConfig struct {
	Endpoint string
	Key      string
	// PollInterval is the wait between operation status checks
	PollInterval time.Duration
	// MaxAttempts caps the number of status checks
	MaxAttempts int
	// Timeout bounds the whole submit-and-poll cycle
	Timeout time.Duration
	// HTTPClient is used for all requests; a default client is used when nil
	HTTPClient *http.Client
}

// AzureRead implements the Scanner interface using the Azure Read API
type AzureRead struct {
	analyzeURL   string
	key          string
	pollInterval time.Duration
	maxAttempts  int
	timeout      time.Duration
	client       *http.Client
}

// NewAzureRead creates a new AzureRead Scanner instance
func NewAzureRead(cfg AzureConfig) (*AzureRead, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("azure key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	endpoint := cfg.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	return &AzureRead{
		analyzeURL:   endpoint + azureReadPath,
		key:          cfg.Key,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		timeout:      cfg.Timeout,
		client:       cfg.HTTPClient,
	}, nil
}

type azureReadResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// ReadLines submits the image and polls the operation until it completes
func (a *AzureRead) ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	finalImageData, err := NormalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	operationURL, err := a.submit(ctx, finalImageData)
	if err != nil {
		return nil, err
	}

	result, err := a.poll(ctx, operationURL)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for _, page := range result.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			lines = append(lines, line.Text)
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// submit starts a read operation and returns its Operation-Location
func (a *AzureRead) submit(ctx context.Context, imageData []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.analyzeURL, bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submitting image: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("Azure read request rejected", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("%w: azure read error (status %d)", ErrUpstreamUnavailable, resp.StatusCode)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("%w: azure response missing Operation-Location", ErrUpstreamUnavailable)
	}
	return operationURL, nil
}

// poll checks the operation until it succeeds, fails, or the attempt cap or
// context deadline is reached
func (a *AzureRead) poll(ctx context.Context, operationURL string) (*azureReadResponse, error) {
	var lastStatus string
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		result, err := a.status(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		lastStatus = result.Status
		switch result.Status {
		case azureStatusSucceeded:
			return result, nil
		case azureStatusFailed:
			return nil, fmt.Errorf("%w: azure read operation failed", ErrUpstreamUnavailable)
		case azureStatusNotStarted, azureStatusRunning:
		default:
			slog.Warn("Unexpected azure read status", "status", result.Status, "attempt", attempt)
		}
		if attempt == a.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for azure read: %v", ErrUpstreamUnavailable, ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
	return nil, fmt.Errorf("%w: azure read still %q after %d attempts", ErrUpstreamUnavailable, lastStatus, a.maxAttempts)
}

func (a *AzureRead) status(ctx context.Context, operationURL string) (*azureReadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: polling operation: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: azure operation status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var result azureReadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding operation: %v", ErrUpstreamUnavailable, err)
	}
	return &result, nil
}

// Close is a no-op for the HTTP client
func (a *AzureRead) Close() error {
	return nil
}
