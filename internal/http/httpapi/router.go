package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"reelcraft/internal/http/handlers"
	"reelcraft/internal/infra"
	"reelcraft/internal/middleware"
)

type Options struct {
	Logger             infra.Logger
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// openAPIPath is where the embedded document is served; the docs page points at it.
const openAPIPath = "/v1/openapi.json"

// baseRouter installs the shared chain plus extra, then mounts /metrics. chi
// rejects Use after the first route, so every middleware goes in here.
func baseRouter(opts Options, extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
	)
	r.Use(extra...)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

// NewRouter builds the public API.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := baseRouter(opts, middleware.CORS(opts.CORSAllowedOrigins))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Get(openAPIPath, app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs(openAPIPath))

	r.Route("/v1/generations", func(r chi.Router) {
		r.Get("/status", app.GenerationStatus)
		r.Delete("/current", app.CancelGeneration)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMinute))
			r.Post("/", app.Generate)
			r.Post("/direct", app.GenerateDirect)
		})
	})
	r.Get("/v1/results", app.Result)

	return r
}

// NewIntermediaryRouter builds the vision intermediary. It is meant to be
// reachable only by the API process.
func NewIntermediaryRouter(proxy *handlers.VisionProxy, opts Options) http.Handler {
	r := baseRouter(opts)
	r.Get("/v1/healthz", proxy.Health)
	r.Post("/v1/vision/analyze", proxy.Analyze)
	return r
}
