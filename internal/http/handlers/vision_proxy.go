package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/middleware"
	"reelcraft/internal/providers/genai"
	"reelcraft/internal/providers/vision"
)

// SceneDescriber is the server-side vision provider.
type SceneDescriber interface {
	DescribeScene(ctx context.Context, req genai.SceneRequest) (string, error)
}

// VisionProxy serves the trusted intermediary endpoint. It is the only
// process that holds the vision provider credential.
type VisionProxy struct {
	Describer SceneDescriber
	Logger    *infra.Logger
	app       App
}

func NewVisionProxy(describer SceneDescriber, logger *infra.Logger) *VisionProxy {
	return &VisionProxy{Describer: describer, Logger: logger, app: App{Logger: logger}}
}

func (p *VisionProxy) Analyze(w http.ResponseWriter, r *http.Request) {
	var req vision.AnalyzeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.reject(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.ImageData) == "" {
		p.reject(w, http.StatusBadRequest, "prompt and imageData are required")
		return
	}
	if req.MimeType == "" {
		req.MimeType = "image/jpeg"
	}

	text, err := p.Describer.DescribeScene(r.Context(), genai.SceneRequest{
		Prompt:    req.Prompt,
		ImageData: req.ImageData,
		MimeType:  req.MimeType,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		l := p.app.logger(r)
		switch {
		case genai.IsUnavailable(err):
			l.Error().Err(err).Msg("vision provider not configured")
			p.reject(w, http.StatusServiceUnavailable, "vision analysis is not configured")
		case errors.Is(err, domain.ErrInvalidInput):
			p.reject(w, http.StatusBadRequest, err.Error())
		default:
			l.Warn().Err(err).Str("mime_type", req.MimeType).Msg("vision analysis failed")
			p.reject(w, http.StatusBadGateway, "vision analysis failed: "+upstreamMessage(err))
		}
		return
	}
	p.app.json(w, http.StatusOK, vision.AnalyzeResponse{
		Success:        true,
		EnhancedPrompt: text,
		AISource:       string(domain.SourceImageVision),
	})
}

func (p *VisionProxy) Health(w http.ResponseWriter, r *http.Request) {
	p.app.Health(w, r)
}

func (p *VisionProxy) reject(w http.ResponseWriter, status int, message string) {
	p.app.json(w, status, vision.AnalyzeResponse{Success: false, Error: message, Fallback: true})
}

func upstreamMessage(err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) && upstream.Message != "" {
		return upstream.Message
	}
	return "upstream error"
}
