package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/api/auth"
	"github.com/marmos91/dittosmb/pkg/api/handlers"
	apimw "github.com/marmos91/dittosmb/pkg/api/middleware"
	"github.com/marmos91/dittosmb/pkg/metrics"
)

// Dependencies are the data sources behind the API. Any of them may be nil;
// the matching routes are then not mounted (or report not ready).
type Dependencies struct {
	// Ready reports whether the SMB listener is accepting connections.
	Ready func() error

	Connections handlers.ConnectionSource
	History     handlers.HistoryStore

	// JWT, when set, protects /api/v1 with bearer tokens.
	JWT *auth.JWTService
}

// NewRouter creates the chi router with middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus exposition (404 while metrics are disabled)
//   - GET /api/v1/connections[/{id}] - Live connections
//   - GET /api/v1/history[/{id}] - Closed connections
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Ready)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if deps.JWT != nil {
			r.Use(apimw.JWTAuth(deps.JWT))
		}

		if deps.Connections != nil {
			h := handlers.NewConnectionsHandler(deps.Connections)
			r.Get("/connections", h.List)
			r.Get("/connections/{id}", h.Get)
		}
		if deps.History != nil {
			h := handlers.NewHistoryHandler(deps.History)
			r.Get("/history", h.List)
			r.Get("/history/{id}", h.Get)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}
