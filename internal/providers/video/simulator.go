// Package video simulates the video generation job that follows prompt
// enhancement. No video is produced: the simulator waits a random interval,
// injects failures at a configured rate and returns mock metadata.
package video

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelcraft/internal/domain"
	"reelcraft/internal/infra"
	"reelcraft/internal/metrics"
)

const (
	DefaultMinDelay = 3 * time.Second
	DefaultMaxDelay = 6 * time.Second

	// EnhancedFailureRate applies to jobs created by the orchestrator.
	EnhancedFailureRate = 0.05
	// LegacyFailureRate applies to the direct path that skips enhancement.
	LegacyFailureRate = 0.10

	mockDuration   = "5s"
	mockResolution = "1920x1080"
	mockFormat     = "MP4"
	mockSizeBytes  = 12_400_000
	providerLabel  = "mock"
)

type Options struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
	// Float returns a value in [0, 1). Defaults to math/rand/v2.Float64.
	Float func() float64
	// Wait blocks for d or until ctx is done. Defaults to a timer.
	Wait   func(ctx context.Context, d time.Duration) error
	Clock  func() time.Time
	Logger *infra.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
}

type Simulator struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	float       func() float64
	wait        func(ctx context.Context, d time.Duration) error
	clock       func() time.Time
	logger      *infra.Logger
	metrics     *metrics.Collector
}

func NewSimulator(opts Options) *Simulator {
	minDelay := opts.MinDelay
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = max(minDelay, DefaultMaxDelay)
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	rate := opts.FailureRate
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	float := opts.Float
	if float == nil {
		float = rand.Float64
	}
	wait := opts.Wait
	if wait == nil {
		wait = timerWait
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Simulator{
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		failureRate: rate,
		float:       float,
		wait:        wait,
		clock:       clock,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// FailureRate reports the configured failure probability.
func (s *Simulator) FailureRate() float64 {
	return s.failureRate
}

// Delay picks a duration uniformly in [minDelay, maxDelay].
func (s *Simulator) Delay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.float()*float64(span+time.Millisecond)).Truncate(time.Millisecond)
}

// Run simulates one generation job for record. A simulated failure is a
// normal outcome with Success=false; the only error is ctx's.
func (s *Simulator) Run(ctx context.Context, record domain.GenerationRecord) (*domain.JobOutcome, error) {
	delay := s.Delay()
	if delay > s.maxDelay {
		delay = s.maxDelay
	}
	if err := s.wait(ctx, delay); err != nil {
		s.logger.Debug().Err(err).Dur("delay", delay).Msg("video: job interrupted")
		return nil, err
	}

	outcome := &domain.JobOutcome{
		PromptData: domain.PromptData{
			OriginalPrompt:   record.OriginalPrompt,
			EnhancedPrompt:   record.EnhancedPrompt,
			ImageCount:       len(record.Images),
			Source:           record.Source,
			Timestamp:        record.Timestamp,
			ProcessingTimeMs: delay.Milliseconds(),
			Model:            s.modelLabel(record.Source),
			Provider:         providerLabel,
		},
	}
	if s.float() < s.failureRate {
		outcome.ErrorMessage = domain.SimulatedTransientMessage
		s.logger.Info().Str("source", string(record.Source)).Dur("delay", delay).Msg("video: simulated failure")
	} else {
		outcome.Success = true
		outcome.VideoMetadata = &domain.VideoMetadata{
			Duration:   mockDuration,
			Resolution: mockResolution,
			Format:     mockFormat,
			Size:       humanize.SIWithDigits(mockSizeBytes, 1, "B"),
			SizeBytes:  mockSizeBytes,
			CreatedAt:  s.clock().UTC(),
		}
	}
	s.metrics.Job(outcome.Success, delay)
	return outcome, nil
}

func (s *Simulator) modelLabel(source domain.Source) string {
	if source == "" {
		return "Mock Video"
	}
	// Casers carry state and are not shared between goroutines.
	return "Mock Video (" + cases.Title(language.English).String(string(source)) + ")"
}

func timerWait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
