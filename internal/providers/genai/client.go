// Package genai is the Gemini vision client used by the trusted intermediary.
// It is the only code that ever holds the vision provider credential.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
)

const providerName = "gemini"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// SceneRequest carries one image and the user's prompt.
type SceneRequest struct {
	Prompt    string
	ImageData string // base64 without a data URL prefix
	MimeType  string
	RequestID string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	CandidateCount  int     `json:"candidateCount,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. A nil HTTP client
// is replaced with one that enforces the configured timeout.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Available reports whether a credential is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// DescribeScene asks the vision model for a cinematic scene description of
// the image, steered by the user's prompt.
func (c *Client) DescribeScene(ctx context.Context, req SceneRequest) (string, error) {
	if c.apiKey == "" {
		return "", &domain.ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is not set"}
	}
	if strings.TrimSpace(req.ImageData) == "" || strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: image and prompt are required", domain.ErrInvalidInput)
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: BuildSceneInstruction(req.Prompt)},
				{InlineData: &geminiInlineData{MimeType: req.MimeType, Data: req.ImageData}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.6,
			CandidateCount:  1,
			MaxOutputTokens: 400,
		},
	}

	var response geminiGenerateContentResponse
	start := time.Now()
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		c.logger.Warn().
			Err(err).
			Str("request_id", req.RequestID).
			Str("model", c.model).
			Msg("genai: scene description failed")
		return "", err
	}

	text := firstText(response)
	if text == "" {
		return "", &domain.UpstreamError{Provider: providerName, Message: "no text content returned"}
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Dur("took", time.Since(start)).
		Msg("genai: scene described")
	return text, nil
}

// BuildSceneInstruction renders the fixed instruction template.
func BuildSceneInstruction(prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this image together with the request %q and write a cinematic video generation prompt. ", strings.TrimSpace(prompt))
	b.WriteString("Describe: 1) the scene environment, 2) the subject's appearance, 3) the camera angle, ")
	b.WriteString("4) the lighting and mood, 5) the motion that should happen in the clip. ")
	b.WriteString("Respond with one paragraph of prompt text only.")
	return b.String()
}

func firstText(resp geminiGenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr geminiErrorResponse
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Provider: providerName, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// IsUnavailable reports whether err means the vision provider cannot be used
// at all (no credential) rather than a failed call.
func IsUnavailable(err error) bool {
	var cfgErr *domain.ConfigurationError
	return errors.As(err, &cfgErr)
}
