/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers, only when TrustProxyHeaders
                is set (rate limiting keys on it)
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /healthz              Health check
  /api/pay-matrix/*     Pay matrix (read-only)
  /api/rates            Rate table (read-only)
  /api/calculate/*      Calculations
  /api/scenarios/*      Presets
  /api/export/*         PDF and XLSX downloads
  /api/feedback         Contact form, rate limited
  /ws/calculate         Live recalculation
  /*                    Static files (frontend)

STATIC FILE SERVING:
  When FrontendDir is set, serves the built app from it and falls back to
  index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/paycalc/ratelimit"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	AllowedOrigins  []string
	FrontendDir     string
	FeedbackLimiter ratelimit.Limiter // nil disables rate limiting
	RequestLogging  bool

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	if cfg.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reference data
		r.Route("/pay-matrix", func(r chi.Router) {
			r.Get("/", h.ListPayMatrix)
			r.Get("/{level}", h.GetPayLevel)
		})
		r.Get("/rates", h.GetRates)

		// Calculation routes
		r.Route("/calculate", func(r chi.Router) {
			r.Get("/", h.CalculatePermalink)
			r.Post("/7th", h.Calculate7th)
			r.Post("/8th", h.Calculate8th)
			r.Post("/compare", h.CalculateCompare)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/{id}", h.GetScenario)
		})

		// Export routes
		r.Route("/export", func(r chi.Router) {
			r.Post("/pdf", h.ExportPDF)
			r.Post("/xlsx", h.ExportXLSX)
		})

		// Feedback
		r.Group(func(r chi.Router) {
			if cfg.FeedbackLimiter != nil {
				r.Use(ratelimit.Middleware(cfg.FeedbackLimiter, h.logger))
			}
			r.Post("/feedback", h.SubmitFeedback)
		})
	})

	r.Get("/ws/calculate", h.Live(cfg.AllowedOrigins))

	if cfg.FrontendDir != "" {
		if info, err := os.Stat(cfg.FrontendDir); err == nil && info.IsDir() {
			r.Get("/*", spaHandler(cfg.FrontendDir))
		} else {
			h.logger.Warn("frontend directory not found, static serving disabled", "dir", cfg.FrontendDir)
		}
	}

	return r
}

// spaHandler serves files from dir and falls back to index.html for
// client-side routes.
func spaHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		fullPath := filepath.Join(dir, filepath.FromSlash(path))

		// Check if file exists
		if info, err := os.Stat(fullPath); err != nil || info.IsDir() && path != "/" {
			// SPA routing: serve index.html
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}
