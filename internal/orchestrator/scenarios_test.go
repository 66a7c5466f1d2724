package orchestrator_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"reelcraft/internal/domain"
	"reelcraft/internal/orchestrator"
	"reelcraft/internal/providers/prompt"
	"reelcraft/internal/providers/video"
	"reelcraft/internal/providers/vision"
)

func completionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func instantSimulator() *video.Simulator {
	return video.NewSimulator(video.Options{
		FailureRate: 0,
		Wait:        func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	})
}

func build(t *testing.T, openAIURL, intermediaryURL string) *orchestrator.Orchestrator {
	t.Helper()
	text := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{APIKey: "sk-test", BaseURL: openAIURL})
	opts := orchestrator.Options{Text: text, Simulator: instantSimulator()}
	if intermediaryURL != "" {
		v, err := vision.NewClient(vision.Options{IntermediaryURL: intermediaryURL})
		if err != nil {
			t.Fatalf("vision.NewClient: %v", err)
		}
		opts.Vision = v
	}
	o, err := orchestrator.New(opts)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return o
}

func TestScenarioTextOnly(t *testing.T) {
	openAI := completionServer(t, http.StatusOK, completion("A golden retriever bounds across wet sand at sunrise."))
	o := build(t, openAI.URL, "")

	out, err := o.Generate(context.Background(), "A dog runs on a beach", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.PromptData.Source != domain.SourceTextOnly {
		t.Fatalf("source = %q, want text-only", out.PromptData.Source)
	}
	if out.VideoMetadata == nil || out.VideoMetadata.Format != "MP4" {
		t.Fatalf("metadata = %+v, want MP4", out.VideoMetadata)
	}
}

func TestScenarioVisionFailureFallsBack(t *testing.T) {
	openAI := completionServer(t, http.StatusOK, completion("A sunlit porch with drifting dust."))
	intermediary := completionServer(t, http.StatusInternalServerError, `{"success":false,"error":"vision provider failed","fallback":true}`)
	o := build(t, openAI.URL, intermediary.URL)

	out, err := o.Generate(context.Background(), "Enhance this", []domain.ImagePayload{"data:image/png;base64,iVBORw0KGgo="})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.PromptData.Source != domain.SourceTextOnlyFallback {
		t.Fatalf("source = %q, want text-only-fallback", out.PromptData.Source)
	}
	if out.PromptData.EnhancedPrompt != "A sunlit porch with drifting dust." {
		t.Fatalf("enhanced = %q", out.PromptData.EnhancedPrompt)
	}
}

func TestScenarioUnauthorizedDegradesToHeuristic(t *testing.T) {
	openAI := completionServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`)
	o := build(t, openAI.URL, "")

	const original = "A dog runs on a beach"
	out, err := o.Generate(context.Background(), original, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.PromptData.Source != domain.SourceTextOnly {
		t.Fatalf("source = %q, want text-only", out.PromptData.Source)
	}
	suffix, ok := strings.CutPrefix(out.PromptData.EnhancedPrompt, original+", ")
	if !ok {
		t.Fatalf("enhanced = %q, want heuristic with original prefix", out.PromptData.EnhancedPrompt)
	}
	if !slices.Contains(prompt.Phrases(), suffix) {
		t.Fatalf("suffix %q is not a heuristic phrase", suffix)
	}
}
