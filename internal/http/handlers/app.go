package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/session"
)

// Generator is the orchestration surface the API needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, images []domain.ImagePayload) (*domain.JobOutcome, error)
	GenerateDirect(ctx context.Context, prompt string) (*domain.JobOutcome, error)
	Processing() bool
	CurrentJob() (string, bool)
	Cancel() bool
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type App struct {
	Generator  Generator
	Sessions   session.Store
	SessionTTL time.Duration
	// ResultsRedirect is where the results endpoint sends callers that have
	// no pending result.
	ResultsRedirect string
	Logger          *infra.Logger
	Checks          map[string]ReadinessCheck
}

const maxRequestBody = 64 << 20

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a generation error onto the HTTP error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var exhausted *domain.FallbackExhaustedError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrCancelled):
		a.error(w, http.StatusConflict, "cancelled", "generation was cancelled")
	case errors.As(err, &exhausted):
		a.logger(r).Error().Err(err).Msg("enhancement fallback exhausted")
		a.error(w, http.StatusBadGateway, "enhancement_failed", "prompt enhancement failed; please try again")
	case errors.Is(err, domain.ErrMissingCredential):
		a.logger(r).Error().Err(err).Msg("generation misconfigured")
		a.error(w, http.StatusServiceUnavailable, "not_configured", "prompt enhancement is not configured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.logger(r).Warn().Err(err).Msg("generation aborted by client")
		a.error(w, http.StatusRequestTimeout, "aborted", "request aborted")
	default:
		a.logger(r).Error().Err(err).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "generation failed")
	}
}

// logger prefers the request-scoped logger installed by middleware.Logger.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger != nil {
		return a.Logger
	}
	return infra.NopLogger()
}
