/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from X-Forwarded-For / X-Real-IP
  3. Logger:     Structured request log (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the front end
  6. Rate limit: POST routes only, token bucket per client IP

ROUTE GROUPS:
  /api/acoes-vagas/*       Ledger submissions
  /api/estabelecimentos/*  Balances and action log
  /api/admin/*             Ceiling administration
  /api/scenarios/*         Demo datasets

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/vagas-engine/logger"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// CORSOrigins defaults to local front-end dev servers when empty.
	CORSOrigins []string
	// Limiter guards POST routes. nil disables rate limiting.
	Limiter *RateLimiter
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAny(origins),
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/acoes-vagas", func(r chi.Router) {
			r.With(opts.Limiter.Middleware).Post("/", h.SubmitAction)
			r.With(opts.Limiter.Middleware).Post("/mudanca-curso", h.SubmitCourseChange)
		})

		r.Route("/estabelecimentos", func(r chi.Router) {
			r.Get("/cursos", h.ListCourseBalances)
			r.Get("/{id}/cursos", h.GetCourseBalances)
			r.Get("/{id}/acoes", h.ListActions)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Put("/cursos/{id}/vagas", h.SetCourseCeiling)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(opts.Limiter.Middleware).Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	return r
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"remote", r.RemoteAddr,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
