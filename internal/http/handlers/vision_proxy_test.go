package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelcraft/internal/domain"
	"reelcraft/internal/providers/genai"
	"reelcraft/internal/providers/vision"
)

type describerFunc func(ctx context.Context, req genai.SceneRequest) (string, error)

func (f describerFunc) DescribeScene(ctx context.Context, req genai.SceneRequest) (string, error) {
	return f(ctx, req)
}

func callProxy(t *testing.T, proxy *VisionProxy, body string) (*httptest.ResponseRecorder, vision.AnalyzeResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	proxy.Analyze(rec, httptest.NewRequest(http.MethodPost, "/v1/vision/analyze", strings.NewReader(body)))
	var out vision.AnalyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec, out
}

func TestVisionProxySuccess(t *testing.T) {
	var got genai.SceneRequest
	proxy := NewVisionProxy(describerFunc(func(ctx context.Context, req genai.SceneRequest) (string, error) {
		got = req
		return "A weathered porch at dusk", nil
	}), nil)

	rec, out := callProxy(t, proxy, `{"prompt":"Enhance this","imageData":"iVBORw0KGgo=","mimeType":"image/png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !out.Success || out.EnhancedPrompt != "A weathered porch at dusk" || out.AISource != "image-vision" || out.Fallback {
		t.Fatalf("response = %+v", out)
	}
	if got.MimeType != "image/png" || got.ImageData != "iVBORw0KGgo=" || got.Prompt != "Enhance this" {
		t.Fatalf("request = %+v", got)
	}
}

func TestVisionProxyFailures(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "missing image", body: `{"prompt":"x"}`, status: http.StatusBadRequest},
		{name: "not configured", body: `{"prompt":"x","imageData":"AAAA"}`, err: &domain.ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is not set"}, status: http.StatusServiceUnavailable},
		{name: "upstream", body: `{"prompt":"x","imageData":"AAAA"}`, err: &domain.UpstreamError{Provider: "gemini", Status: 500, Message: "internal"}, status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proxy := NewVisionProxy(describerFunc(func(context.Context, genai.SceneRequest) (string, error) {
				if tc.err == nil {
					t.Fatal("describer must not be called")
				}
				return "", tc.err
			}), nil)
			rec, out := callProxy(t, proxy, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if out.Success || !out.Fallback || out.Error == "" {
				t.Fatalf("response = %+v", out)
			}
		})
	}
}

func TestVisionProxyDefaultsMimeType(t *testing.T) {
	var got genai.SceneRequest
	proxy := NewVisionProxy(describerFunc(func(ctx context.Context, req genai.SceneRequest) (string, error) {
		got = req
		return "scene", nil
	}), nil)
	callProxy(t, proxy, `{"prompt":"x","imageData":"AAAA"}`)
	if got.MimeType != "image/jpeg" {
		t.Fatalf("mime type = %q", got.MimeType)
	}
}
