package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"reelcraft/internal/domain"
	"reelcraft/internal/domain/jsoncfg"
	"reelcraft/internal/session"
)

type statusResponse struct {
	Processing bool   `json:"processing"`
	JobID      string `json:"job_id,omitempty"`
}

func (a *App) decodeGeneration(w http.ResponseWriter, r *http.Request) (jsoncfg.GenerationJSON, bool) {
	var req jsoncfg.GenerationJSON
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return req, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return req, false
	}
	return req, true
}

// Generate enhances the prompt, runs the simulated job and stores the outcome
// for the results endpoint. Simulated failures are returned with status 200
// and success=false so the client can offer retry or cancel.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeGeneration(w, r)
	if !ok {
		return
	}
	sessionID := session.Ensure(w, r, a.SessionTTL)
	enhancement := req.Request()
	outcome, err := a.Generator.Generate(r.Context(), enhancement.RawPrompt, enhancement.Images)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.deliver(w, r, sessionID, outcome)
}

// GenerateDirect runs the legacy path: no enhancement, higher failure rate.
func (a *App) GenerateDirect(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeGeneration(w, r)
	if !ok {
		return
	}
	sessionID := session.Ensure(w, r, a.SessionTTL)
	outcome, err := a.Generator.GenerateDirect(r.Context(), req.Prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.deliver(w, r, sessionID, outcome)
}

func (a *App) deliver(w http.ResponseWriter, r *http.Request, sessionID string, outcome *domain.JobOutcome) {
	if a.Sessions != nil {
		if err := a.Sessions.Put(r.Context(), sessionID, outcome); err != nil {
			a.logger(r).Warn().Err(err).Str("job_id", outcome.JobID).Msg("failed to store result for session")
		}
	}
	a.json(w, http.StatusOK, outcome)
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	jobID, _ := a.Generator.CurrentJob()
	a.json(w, http.StatusOK, statusResponse{Processing: a.Generator.Processing(), JobID: jobID})
}

func (a *App) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	cancelled := a.Generator.Cancel()
	a.json(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Result returns the session's pending outcome exactly once. Without one the
// caller is sent back to the input view.
func (a *App) Result(w http.ResponseWriter, r *http.Request) {
	if a.Sessions == nil {
		http.Redirect(w, r, a.redirectPath(), http.StatusSeeOther)
		return
	}
	outcome, err := a.Sessions.Take(r.Context(), session.ID(r))
	if errors.Is(err, session.ErrNotFound) {
		http.Redirect(w, r, a.redirectPath(), http.StatusSeeOther)
		return
	}
	if err != nil {
		a.logger(r).Error().Err(err).Msg("failed to load session result")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load result")
		return
	}
	a.json(w, http.StatusOK, outcome)
}

func (a *App) redirectPath() string {
	if a.ResultsRedirect == "" {
		return "/"
	}
	return a.ResultsRedirect
}
