package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reelcraft/internal/cache"
	"reelcraft/internal/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newIntermediary(t *testing.T, hits *atomic.Int32, status int, body AnalyzeResponse, captured *AnalyzeRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeSuccessAndCache(t *testing.T) {
	var hits atomic.Int32
	var captured AnalyzeRequest
	srv := newIntermediary(t, &hits, http.StatusOK, AnalyzeResponse{Success: true, EnhancedPrompt: "A porch at dusk", AISource: "image-vision"}, &captured)
	responses := cache.NewMemory("vision", nil)
	client, err := NewClient(Options{IntermediaryURL: srv.URL, Cache: responses})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	image := domain.ImagePayload("data:image/png;base64,iVBORw0KGgoAAAA")
	got, err := client.Analyze(context.Background(), image, "Enhance this")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "A porch at dusk" {
		t.Fatalf("Analyze = %q", got)
	}
	if captured.ImageData != "iVBORw0KGgoAAAA" || captured.MimeType != "image/png" || captured.Prompt != "Enhance this" {
		t.Fatalf("request = %+v", captured)
	}

	if _, err := client.Analyze(context.Background(), image, " enhance THIS "); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("intermediary hits = %d, want 1", hits.Load())
	}
}

func TestAnalyzeSurfacesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   AnalyzeResponse
		want   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: AnalyzeResponse{Success: false, Error: "vision provider failed", Fallback: true}, want: "vision provider failed"},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: AnalyzeResponse{Success: false, Error: "vision unavailable", Fallback: true}, want: "vision unavailable"},
		{name: "success false with 200", status: http.StatusOK, body: AnalyzeResponse{Success: false, Fallback: true}, want: "vision analysis unavailable"},
		{name: "empty prompt", status: http.StatusOK, body: AnalyzeResponse{Success: true}, want: "empty enhanced prompt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newIntermediary(t, &hits, tc.status, tc.body, nil)
			responses := cache.NewMemory("vision", nil)
			client, err := NewClient(Options{IntermediaryURL: srv.URL, Cache: responses})
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.Analyze(context.Background(), "data:image/jpeg;base64,/9j/4AAQ", "prompt")
			var upstream *domain.UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("err = %v, want UpstreamError", err)
			}
			if upstream.Message != tc.want {
				t.Fatalf("message = %q, want %q", upstream.Message, tc.want)
			}
			if responses.Len() != 0 {
				t.Fatal("failures must not be cached")
			}
		})
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(Options{IntermediaryURL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Analyze(context.Background(), "AAAA", "prompt")
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.Err == nil {
		t.Fatalf("err = %v, want transport UpstreamError", err)
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>gateway</html>")
	}))
	defer srv.Close()
	client, _ := NewClient(Options{IntermediaryURL: srv.URL})
	if _, err := client.Analyze(context.Background(), "AAAA", "prompt"); err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestAnalyzeRequiresInputs(t *testing.T) {
	client, _ := NewClient(Options{IntermediaryURL: "http://127.0.0.1:1"})
	if _, err := client.Analyze(context.Background(), "", "prompt"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing image: err = %v", err)
	}
	if _, err := client.Analyze(context.Background(), "AAAA", "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing prompt: err = %v", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("expected error without intermediary url")
	}
}

func TestSplitDataURL(t *testing.T) {
	bare := base64.StdEncoding.EncodeToString(pngHeader)
	cases := []struct {
		name     string
		in       string
		data     string
		mimeType string
		wantErr  bool
	}{
		{name: "data url", in: "data:image/webp;base64,UklGRg==", data: "UklGRg==", mimeType: "image/webp"},
		{name: "data url with params", in: "data:image/PNG;charset=binary;base64,AAAA", data: "AAAA", mimeType: "image/png"},
		{name: "bare png sniffed", in: bare, data: bare, mimeType: "image/png"},
		{name: "bare unknown defaults", in: "AAAAAAAA", data: "AAAAAAAA", mimeType: "image/jpeg"},
		{name: "not base64 defaults", in: "!!!!", data: "!!!!", mimeType: "image/jpeg"},
		{name: "missing comma", in: "data:image/png;base64", wantErr: true},
		{name: "not base64 data url", in: "data:text/plain,hello", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, mimeType, err := SplitDataURL(tc.in)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if data != tc.data || mimeType != tc.mimeType {
				t.Fatalf("SplitDataURL = (%q, %q), want (%q, %q)", data, mimeType, tc.data, tc.mimeType)
			}
		})
	}
}
