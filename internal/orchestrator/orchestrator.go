// Package orchestrator routes a generation request to the vision or text
// enhancement path, applies the single cross-provider fallback hop and hands
// the enhanced prompt to the job simulator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/metrics"
)

type TextEnhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

type VisionAnalyzer interface {
	Analyze(ctx context.Context, image domain.ImagePayload, prompt string) (string, error)
}

type JobRunner interface {
	Run(ctx context.Context, record domain.GenerationRecord) (*domain.JobOutcome, error)
}

// errVisionUnavailable stands in for a vision failure when no vision client
// is configured, so image requests still take the fallback hop.
var errVisionUnavailable = errors.New("vision client not configured")

type Options struct {
	Text   TextEnhancer
	Vision VisionAnalyzer
	// Simulator runs jobs for enhanced generations.
	Simulator JobRunner
	// Legacy runs jobs for the direct path; defaults to Simulator.
	Legacy  JobRunner
	Clock   func() time.Time
	NewID   func() string
	Logger  *infra.Logger
	Metrics *metrics.Collector
}

type Orchestrator struct {
	text      TextEnhancer
	vision    VisionAnalyzer
	simulator JobRunner
	legacy    JobRunner
	clock     func() time.Time
	newID     func() string
	logger    *infra.Logger
	metrics   *metrics.Collector

	processing atomic.Bool
	mu         sync.Mutex
	current    *job
}

type job struct {
	id        string
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Text == nil {
		return nil, errors.New("orchestrator: text enhancer is required")
	}
	if opts.Simulator == nil {
		return nil, errors.New("orchestrator: simulator is required")
	}
	legacy := opts.Legacy
	if legacy == nil {
		legacy = opts.Simulator
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Orchestrator{
		text:      opts.Text,
		vision:    opts.Vision,
		simulator: opts.Simulator,
		legacy:    legacy,
		clock:     clock,
		newID:     newID,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// Processing reports whether the most recently started generation is still
// in flight. Concurrent generations are not serialized.
func (o *Orchestrator) Processing() bool {
	return o.processing.Load()
}

// CurrentJob returns the id of the generation the flag refers to.
func (o *Orchestrator) CurrentJob() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return "", false
	}
	return o.current.id, true
}

// Cancel stops the current generation: its context is cancelled, which stops
// any pending upstream call or simulator timer, and its result is dropped.
// It reports whether there was a job to cancel.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	current := o.current
	o.current = nil
	o.mu.Unlock()

	o.processing.Store(false)
	if current == nil {
		return false
	}
	current.cancelled.Store(true)
	current.cancel()
	o.logger.Info().Str("job_id", current.id).Msg("orchestrator: generation cancelled")
	return true
}

// Enhance picks the enhancement path for prompt and images. Only the first
// image is analysed. A vision failure falls back exactly once to the text
// client with the original prompt.
func (o *Orchestrator) Enhance(ctx context.Context, prompt string, images []domain.ImagePayload) (domain.EnhancementResult, error) {
	if len(images) == 0 {
		text, err := o.text.Enhance(ctx, prompt)
		if err != nil {
			return domain.EnhancementResult{}, fmt.Errorf("orchestrator: text enhancement: %w", err)
		}
		o.metrics.Enhancement(string(domain.SourceTextOnly))
		return domain.EnhancementResult{EnhancedText: text, Source: domain.SourceTextOnly}, nil
	}

	visionErr := errVisionUnavailable
	if o.vision != nil {
		text, err := o.vision.Analyze(ctx, images[0], prompt)
		if err == nil {
			o.metrics.Enhancement(string(domain.SourceImageVision))
			return domain.EnhancementResult{EnhancedText: text, Source: domain.SourceImageVision}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.EnhancementResult{}, ctxErr
		}
		visionErr = err
	}

	reason := "vision_error"
	if errors.Is(visionErr, errVisionUnavailable) {
		reason = "vision_unavailable"
	}
	o.logger.Warn().Err(visionErr).Str("reason", reason).Msg("orchestrator: vision enhancement failed; falling back to text")
	o.metrics.Fallback("cross_provider", reason)

	text, err := o.text.Enhance(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.EnhancementResult{}, ctxErr
		}
		return domain.EnhancementResult{}, &domain.FallbackExhaustedError{Vision: visionErr, Text: err}
	}
	o.metrics.Enhancement(string(domain.SourceTextOnlyFallback))
	return domain.EnhancementResult{EnhancedText: text, Source: domain.SourceTextOnlyFallback}, nil
}

// Generate enhances prompt and runs the simulated generation job. A
// simulated failure is a JobOutcome with Success=false, not an error.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, images []domain.ImagePayload) (*domain.JobOutcome, error) {
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	j, jobCtx := o.start(ctx)
	defer o.finish(j)

	result, err := o.Enhance(jobCtx, prompt, images)
	if err != nil {
		return nil, o.jobError(ctx, j, err)
	}
	record := domain.GenerationRecord{
		OriginalPrompt: prompt,
		EnhancedPrompt: result.EnhancedText,
		Images:         images,
		Source:         result.Source,
		Timestamp:      o.clock().UTC(),
	}
	return o.run(ctx, jobCtx, j, o.simulator, record)
}

// GenerateDirect runs a job for the raw prompt without enhancement, using
// the legacy runner.
func (o *Orchestrator) GenerateDirect(ctx context.Context, prompt string) (*domain.JobOutcome, error) {
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	j, jobCtx := o.start(ctx)
	defer o.finish(j)

	record := domain.GenerationRecord{
		OriginalPrompt: prompt,
		EnhancedPrompt: prompt,
		Source:         domain.SourceTextOnly,
		Timestamp:      o.clock().UTC(),
	}
	return o.run(ctx, jobCtx, j, o.legacy, record)
}

func (o *Orchestrator) run(ctx, jobCtx context.Context, j *job, runner JobRunner, record domain.GenerationRecord) (*domain.JobOutcome, error) {
	outcome, err := runner.Run(jobCtx, record)
	if err != nil {
		return nil, o.jobError(ctx, j, err)
	}
	if j.cancelled.Load() {
		return nil, domain.ErrCancelled
	}
	outcome.JobID = j.id
	outcome.PromptData.Source = record.Source
	outcome.PromptData.EnhancedPrompt = record.EnhancedPrompt

	event := o.logger.Info()
	if !outcome.Success {
		event = o.logger.Warn()
	}
	event.Str("job_id", j.id).
		Str("source", string(record.Source)).
		Bool("success", outcome.Success).
		Int64("processing_time_ms", outcome.PromptData.ProcessingTimeMs).
		Msg("orchestrator: generation finished")
	return outcome, nil
}

func (o *Orchestrator) start(ctx context.Context) (*job, context.Context) {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{id: o.newID(), cancel: cancel}
	o.mu.Lock()
	o.current = j
	o.mu.Unlock()
	o.processing.Store(true)
	return j, jobCtx
}

func (o *Orchestrator) finish(j *job) {
	j.cancel()
	o.mu.Lock()
	if o.current == j {
		o.current = nil
	}
	o.mu.Unlock()
	o.processing.Store(false)
}

// jobError maps errors caused by Cancel to ErrCancelled and leaves the
// caller's own cancellation untouched.
func (o *Orchestrator) jobError(ctx context.Context, j *job, err error) error {
	if j.cancelled.Load() && ctx.Err() == nil {
		return domain.ErrCancelled
	}
	return err
}

func validatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	return prompt, nil
}
