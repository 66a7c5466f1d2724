// Package prompt implements the text enhancement client: an OpenAI-compatible
// chat completion call with a local heuristic degrade on any upstream failure.
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"reelcraft/internal/cache"
	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/metrics"
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	HTTPClient   *http.Client
	Cache        cache.ResponseCache
	Logger       *infra.Logger
	Metrics      *metrics.Collector
	// Pick returns an index in [0, n); defaults to math/rand/v2.
	Pick       func(n int) int
	OnFallback func(reason string, err error)
	OnWarning  func(reason, detail string)
}

// OpenAIEnhancer is the text enhancement client.
type OpenAIEnhancer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	maxTokens    int
	temperature  float64
	client       *http.Client
	timeout      time.Duration
	cache        cache.ResponseCache
	logger       *infra.Logger
	metrics      *metrics.Collector
	pick         func(n int) int
	onFallback   func(reason string, err error)
	group        singleflight.Group
}

const (
	openAIDefaultTimeout   = 15 * time.Second
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAIMaxTokens = 300
)

var openAIModelCanonical = map[string]string{
	"gpt-3.5-turbo": "gpt-3.5-turbo",
	"gpt-4o-mini":   "gpt-4o-mini",
	"gpt-4o":        "gpt-4o",
}

var openAIModelAliases = map[string]string{
	"gpt-3.5":                "gpt-3.5-turbo",
	"gpt3.5":                 "gpt-3.5-turbo",
	"gpt-35-turbo":           "gpt-3.5-turbo",
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4o":                  "gpt-4o",
	"gpt-4o-2024-08-06":      "gpt-4o",
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// failure tags an upstream error with a short machine-readable reason used
// in logs, metrics and the OnFallback hook.
type failure struct {
	reason string
	err    error
}

func (f *failure) Error() string { return f.reason + ": " + f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

func NewOpenAIEnhancer(opts OpenAIOptions) *OpenAIEnhancer {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelInput := strings.TrimSpace(opts.Model)
	model, normalizationReason := normalizeOpenAIModel(modelInput)
	if normalizationReason != "" && opts.OnWarning != nil {
		detail := fmt.Sprintf("requested=%s resolved=%s", coalesce(modelInput, defaultOpenAIModel), model)
		opts.OnWarning("model_"+normalizationReason, detail)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = openAIDefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}
	responses := opts.Cache
	if responses == nil {
		responses = cache.NewMemory("text", opts.Metrics)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	pick := opts.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return &OpenAIEnhancer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		maxTokens:    maxTokens,
		temperature:  opts.Temperature,
		client:       client,
		timeout:      timeout,
		cache:        responses,
		logger:       logger,
		metrics:      opts.Metrics,
		pick:         pick,
		onFallback:   opts.OnFallback,
	}
}

// Model returns the resolved model identifier.
func (o *OpenAIEnhancer) Model() string {
	return o.model
}

// Enhance turns prompt into a cinematic description. The caller guarantees a
// non-empty, trimmed prompt. A missing credential is the only error returned
// for upstream reasons; every request, transport or payload failure degrades
// to Heuristic instead. Only upstream answers are cached.
func (o *OpenAIEnhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", &domain.ConfigurationError{Setting: "OPENAI_API_KEY", Reason: "is not set"}
	}
	key := cache.TextKey(prompt)
	if text, ok := o.cache.Get(key); ok {
		return text, nil
	}
	// The shared call outlives any single caller, so it runs detached with its
	// own deadline.
	ch := o.group.DoChan(key, func() (any, error) {
		if text, ok := o.cache.Get(key); ok {
			return text, nil
		}
		flight, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		text, err := o.complete(flight, prompt)
		if err != nil {
			return nil, err
		}
		o.cache.Put(key, text)
		return text, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return o.degrade(prompt, res.Err), nil
		}
		return res.Val.(string), nil
	}
}

// Heuristic appends one cinematic phrase to prompt. It never touches the
// network or the cache.
func (o *OpenAIEnhancer) Heuristic(prompt string) string {
	return prompt + ", " + cinematicPhrases[o.pick(len(cinematicPhrases))]
}

func (o *OpenAIEnhancer) degrade(prompt string, err error) string {
	reason := "upstream"
	var f *failure
	if errors.As(err, &f) {
		reason = f.reason
	}
	o.logger.Warn().
		Err(err).
		Str("reason", reason).
		Str("model", o.model).
		Msg("prompt: text enhancement failed; using local heuristic")
	o.metrics.Fallback("local_degrade", reason)
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
	return o.Heuristic(prompt)
}

func (o *OpenAIEnhancer) complete(ctx context.Context, prompt string) (string, error) {
	payload := openAIChatRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildUserMessage(prompt)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", o.fail("encode_request", 0, err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", o.fail("build_request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		o.metrics.Upstream(openAIProviderName, statusClass(0), time.Since(start))
		return "", o.fail("http_request", 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	o.metrics.Upstream(openAIProviderName, statusClass(resp.StatusCode), time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr openAIErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, &apiErr)
		msg := coalesce(apiErr.Error.Message, http.StatusText(resp.StatusCode))
		return "", o.fail(fmt.Sprintf("http_%d", resp.StatusCode), resp.StatusCode, errors.New(msg))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", o.fail("decode_response", resp.StatusCode, err)
	}
	if len(out.Choices) == 0 {
		return "", o.fail("empty_choices", resp.StatusCode, errors.New("no choices"))
	}
	text := cleanCompletion(out.Choices[0].Message.Content)
	if text == "" {
		return "", o.fail("empty_response", resp.StatusCode, errors.New("empty response"))
	}
	return text, nil
}

func (o *OpenAIEnhancer) fail(reason string, status int, err error) error {
	return &failure{
		reason: reason,
		err: &domain.UpstreamError{
			Provider: openAIProviderName,
			Status:   status,
			Message:  err.Error(),
			Err:      err,
		},
	}
}

func normalizeOpenAIModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultOpenAIModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := openAIModelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := openAIModelAliases[normalized]; ok {
		return alias, "alias"
	}
	return defaultOpenAIModel, "defaulted"
}
