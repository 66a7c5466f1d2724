// Package vision is the vision enhancement client. It never talks to the
// vision provider directly: every analysis goes through the trusted
// intermediary, which holds the provider credential.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelcraft/internal/cache"
	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/metrics"
)

const providerName = "vision-intermediary"

type Options struct {
	// IntermediaryURL is the full URL of the analyze endpoint.
	IntermediaryURL string
	Timeout         time.Duration
	HTTPClient      *http.Client
	Cache           cache.ResponseCache
	Fingerprint     cache.Fingerprint
	Logger          *infra.Logger
	Metrics         *metrics.Collector
}

type Client struct {
	endpoint    string
	client      *http.Client
	cache       cache.ResponseCache
	fingerprint cache.Fingerprint
	logger      *infra.Logger
	metrics     *metrics.Collector
}

// AnalyzeRequest is the body sent to the intermediary.
type AnalyzeRequest struct {
	Prompt    string `json:"prompt"`
	ImageData string `json:"imageData"`
	MimeType  string `json:"mimeType"`
}

// AnalyzeResponse is the intermediary's reply for both outcomes.
type AnalyzeResponse struct {
	Success        bool   `json:"success"`
	EnhancedPrompt string `json:"enhancedPrompt,omitempty"`
	AISource       string `json:"aiSource,omitempty"`
	Error          string `json:"error,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.IntermediaryURL)
	if endpoint == "" {
		return nil, errors.New("vision intermediary url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 35 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	responses := opts.Cache
	if responses == nil {
		responses = cache.NewMemory("vision", opts.Metrics)
	}
	fp := opts.Fingerprint
	if fp == nil {
		fp = cache.PrefixFingerprint
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		endpoint:    endpoint,
		client:      client,
		cache:       responses,
		fingerprint: fp,
		logger:      logger,
		metrics:     opts.Metrics,
	}, nil
}

// Analyze returns a scene description for image steered by prompt. Every
// failure is returned to the caller; the orchestrator owns fallback policy.
func (c *Client) Analyze(ctx context.Context, image domain.ImagePayload, prompt string) (string, error) {
	if strings.TrimSpace(string(image)) == "" || strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: image and prompt are required", domain.ErrInvalidInput)
	}
	key := cache.VisionKey(prompt, string(image), c.fingerprint)
	if text, ok := c.cache.Get(key); ok {
		return text, nil
	}

	data, mimeType, err := SplitDataURL(string(image))
	if err != nil {
		return "", err
	}
	text, err := c.call(ctx, AnalyzeRequest{Prompt: prompt, ImageData: data, MimeType: mimeType})
	if err != nil {
		c.logger.Warn().Err(err).Str("mime_type", mimeType).Msg("vision: analysis failed")
		return "", err
	}
	c.cache.Put(key, text)
	return text, nil
}

func (c *Client) call(ctx context.Context, payload AnalyzeRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("vision: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Upstream(providerName, "error", time.Since(start))
		return "", &domain.UpstreamError{Provider: providerName, Message: "intermediary unreachable", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.metrics.Upstream(providerName, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	var out AnalyzeResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: "malformed response", Err: decodeErr}
	}
	if !out.Success || out.Fallback {
		msg := out.Error
		if msg == "" {
			msg = "vision analysis unavailable"
		}
		return "", &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: msg}
	}
	text := strings.TrimSpace(out.EnhancedPrompt)
	if text == "" {
		return "", &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: "empty enhanced prompt"}
	}
	return text, nil
}
