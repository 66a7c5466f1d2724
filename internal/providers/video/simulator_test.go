package video

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"reelcraft/internal/domain"
)

func instantWait(record *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		if record != nil {
			*record = append(*record, d)
		}
		return ctx.Err()
	}
}

func sampleRecord() domain.GenerationRecord {
	return domain.GenerationRecord{
		OriginalPrompt: "A dog running",
		EnhancedPrompt: "A dog running, cinematic lighting",
		Source:         domain.SourceTextOnly,
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRunDurationWithinBounds(t *testing.T) {
	var waits []time.Duration
	rng := rand.New(rand.NewPCG(7, 11))
	sim := NewSimulator(Options{
		FailureRate: EnhancedFailureRate,
		Float:       rng.Float64,
		Wait:        instantWait(&waits),
	})
	for i := 0; i < 2000; i++ {
		if _, err := sim.Run(context.Background(), sampleRecord()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	for _, d := range waits {
		if d < 3*time.Second || d > 6*time.Second {
			t.Fatalf("delay %s outside [3s, 6s]", d)
		}
	}
}

func TestRunFailureRate(t *testing.T) {
	cases := []struct {
		name string
		rate float64
	}{
		{name: "enhanced", rate: EnhancedFailureRate},
		{name: "legacy", rate: LegacyFailureRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(42, 1024))
			sim := NewSimulator(Options{FailureRate: tc.rate, Float: rng.Float64, Wait: instantWait(nil)})
			const runs = 10000
			failures := 0
			for i := 0; i < runs; i++ {
				out, err := sim.Run(context.Background(), sampleRecord())
				if err != nil {
					t.Fatalf("Run: %v", err)
				}
				if !out.Success {
					failures++
					if out.ErrorMessage != domain.SimulatedTransientMessage {
						t.Fatalf("error message = %q", out.ErrorMessage)
					}
					if out.VideoMetadata != nil {
						t.Fatal("failed outcome must not carry metadata")
					}
				}
			}
			got := float64(failures) / runs
			if got < tc.rate-0.01 || got > tc.rate+0.01 {
				t.Fatalf("failure rate = %.4f, want %.2f ± 0.01", got, tc.rate)
			}
		})
	}
}

func TestRunSuccessMetadata(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	sim := NewSimulator(Options{
		FailureRate: 0,
		Float:       func() float64 { return 0.5 },
		Wait:        instantWait(nil),
		Clock:       func() time.Time { return now },
	})
	record := sampleRecord()
	record.Images = []domain.ImagePayload{"AAAA"}
	record.Source = domain.SourceImageVision

	out, err := sim.Run(context.Background(), record)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Success || out.VideoMetadata == nil {
		t.Fatalf("outcome = %+v, want success", out)
	}
	meta := out.VideoMetadata
	if meta.Duration != "5s" || meta.Resolution != "1920x1080" || meta.Format != "MP4" {
		t.Fatalf("metadata = %+v", meta)
	}
	if meta.Size != "12.4 MB" {
		t.Fatalf("size = %q, want 12.4 MB", meta.Size)
	}
	if !meta.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %s", meta.CreatedAt)
	}
	pd := out.PromptData
	if pd.Source != domain.SourceImageVision || pd.ImageCount != 1 || pd.EnhancedPrompt != record.EnhancedPrompt {
		t.Fatalf("prompt data = %+v", pd)
	}
	if pd.Model != "Mock Video (Image-Vision)" || pd.Provider != "mock" {
		t.Fatalf("labels = %q / %q", pd.Model, pd.Provider)
	}
	if pd.ProcessingTimeMs != 4500 {
		t.Fatalf("processing time = %d, want 4500", pd.ProcessingTimeMs)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	sim := NewSimulator(Options{MinDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(ctx, sampleRecord())
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestNewSimulatorDefaults(t *testing.T) {
	sim := NewSimulator(Options{FailureRate: 3})
	if sim.minDelay != DefaultMinDelay || sim.maxDelay != DefaultMaxDelay {
		t.Fatalf("delays = %s..%s", sim.minDelay, sim.maxDelay)
	}
	if sim.FailureRate() != 1 {
		t.Fatalf("failure rate = %v, want clamped to 1", sim.FailureRate())
	}
}
