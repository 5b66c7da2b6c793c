package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	appanalysis "github.com/verifai/verifai/internal/application/analysis"
	appaudit "github.com/verifai/verifai/internal/application/audit"
	appdocs "github.com/verifai/verifai/internal/application/documents"
	appmetrics "github.com/verifai/verifai/internal/application/metrics"
	appreports "github.com/verifai/verifai/internal/application/reports"
	analysisdomain "github.com/verifai/verifai/internal/domain/analysis"
	docsdomain "github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
	"github.com/verifai/verifai/internal/infra/ratelimit"
	"github.com/verifai/verifai/internal/middleware"
	"github.com/verifai/verifai/internal/security"
)

// Router holds the services behind the HTTP surface.
type Router struct {
	documents *appdocs.Service
	analysis  *appanalysis.Service
	reports   *appreports.Service
	metrics   *appmetrics.Service
	audit     *appaudit.Service
	docRepo   docsdomain.Repository
	store     docsdomain.ObjectStore
	signer    *security.Signer
	clock     application.Clock
	log       *zap.Logger
}

// Limits carries the per-route admission ceilings for one window.
type Limits struct {
	Window      time.Duration
	Default     int
	Upload      int
	RunAnalysis int
}

type Deps struct {
	Documents *appdocs.Service
	Analysis  *appanalysis.Service
	Reports   *appreports.Service
	Metrics   *appmetrics.Service
	Audit     *appaudit.Service
	Clock     application.Clock
	DocRepo   docsdomain.Repository
	Store     docsdomain.ObjectStore
	Signer    *security.Signer
	Limiter   *ratelimit.Limiter
	Limits    Limits
	APIKeys   map[string]string
	Users     users.Repository
	Health    map[string]middleware.HealthChecker
	Log       *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		documents: d.Documents,
		analysis:  d.Analysis,
		reports:   d.Reports,
		metrics:   d.Metrics,
		audit:     d.Audit,
		docRepo:   d.DocRepo,
		store:     d.Store,
		signer:    d.Signer,
		clock:     d.Clock,
		log:       d.Log,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(d.Log))
	mux.Use(middleware.Metrics)
	mux.Use(middleware.APIKeyAuth(d.APIKeys, d.Users, d.Log))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics/runtime", middleware.RuntimeMetricsHandler)

	limit := func(max int) func(http.Handler) http.Handler {
		return middleware.RateLimit(d.Limiter, max, d.Limits.Window)
	}

	mux.Group(func(g chi.Router) {
		g.Use(limit(d.Limits.Upload))
		g.Post("/api/documents", r.wrap(r.handleUpload))
	})
	mux.Group(func(g chi.Router) {
		g.Use(limit(d.Limits.RunAnalysis))
		g.Post("/api/analysis", r.wrap(r.handleRunAnalysis))
	})
	mux.Group(func(g chi.Router) {
		g.Use(limit(d.Limits.Default))
		g.Get("/api/analysis/{id}", r.wrap(r.handleGetAnalysis))
		g.Get("/api/reports/{id}", r.wrap(r.handleReport))
		g.Get("/api/metrics", r.wrap(r.handleMetrics))
		g.Get("/api/files/{id}", r.wrap(r.handleFile))
	})

	return mux
}

// apiError pins a handler-chosen status and code onto an error.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap translates service errors into the JSON error envelope.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var apiErr *apiError
		var validationErr *appanalysis.ValidationError
		var entitlementErr *appanalysis.EntitlementError
		var sizeErr *appdocs.SizeError
		var virusErr *appdocs.VirusError
		var exportErr *appreports.ExportError

		switch {
		case errors.As(err, &apiErr):
			writeError(w, apiErr.Status, apiErr.Code, apiErr.Message)
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Msg)
		case errors.As(err, &entitlementErr):
			writeError(w, http.StatusForbidden, "entitlement_exceeded", entitlementErr.Reason)
		case errors.As(err, &sizeErr):
			writeError(w, http.StatusRequestEntityTooLarge, "file_size_exceeded", sizeErr.Reason)
		case errors.As(err, &virusErr):
			writeError(w, http.StatusBadRequest, "virus_detected", "File failed security scan")
		case errors.As(err, &exportErr):
			writeError(w, http.StatusForbidden, "export_not_allowed", exportErr.Reason)
		case errors.Is(err, appdocs.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, "unsupported_type",
				"Supported types: PDF, plain text, Word documents")
		case errors.Is(err, appdocs.ErrNoOrganization):
			writeError(w, http.StatusBadRequest, "no_organization", "No organization found")
		case errors.Is(err, docsdomain.ErrNotFound):
			writeError(w, http.StatusNotFound, "document_not_found", "Document not found")
		case errors.Is(err, analysisdomain.ErrNotFound):
			writeError(w, http.StatusNotFound, "analysis_not_found", "Analysis not found")
		default:
			r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
