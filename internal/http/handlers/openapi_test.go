package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAPIJSONIsValidDocument(t *testing.T) {
	rec := httptest.NewRecorder()
	(&App{}).OpenAPIJSON(rec, httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Fatal("openapi version missing")
	}
	if _, ok := doc.Paths["/v1/generations"]; !ok {
		t.Fatalf("paths = %v, want /v1/generations", doc.Paths)
	}
}

func TestOpenAPIDocsEscapesDocumentURL(t *testing.T) {
	handler := (&App{}).OpenAPIDocs(`/docs/openapi.json?v="2"`)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/v1/docs", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `spec-url="/docs/openapi.json?v=%222%22"`) && !strings.Contains(body, `spec-url="/docs/openapi.json?v=&#34;2&#34;"`) {
		t.Fatalf("document URL not escaped into page:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
}
