package api

import (
	"net/http"

	"healthassist/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type routeSettings struct {
	otelService string
	general     func(http.Handler) http.Handler
	analysis    func(http.Handler) http.Handler
	hospital    func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.otelService = serviceName
	}
}

// WithRateLimiter throttles every matched route.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.general = middleware
	}
}

// WithAnalysisRateLimiter adds a stricter limit on the two analysis routes,
// applied after the general one.
func WithAnalysisRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.analysis = middleware
	}
}

// WithHospitalRateLimiter adds a limit on the location routes, applied after
// the general one.
func WithHospitalRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.hospital = middleware
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var settings routeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	router := mux.NewRouter()

	if settings.otelService != "" {
		router.Use(otelmux.Middleware(settings.otelService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.Method != http.MethodOptions
			}),
		))
	}

	// mux only runs router.Use middleware on matched routes, so the same
	// chain is also wrapped around the fallback handlers below.
	chain := []mux.MiddlewareFunc{requestIDMiddleware, loggingMiddleware, recoveryMiddleware}
	if config.Server.CORS.Enabled {
		chain = append(chain, corsMiddleware(config.Server.CORS))
	}
	if settings.general != nil {
		chain = append(chain, settings.general)
	}
	router.Use(chain...)

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	analysisRoutes := router.NewRoute().Subrouter()
	if settings.analysis != nil {
		analysisRoutes.Use(settings.analysis)
	}
	analysisRoutes.HandleFunc("/analyze", handlers.Analyze).Methods(http.MethodPost)
	analysisRoutes.HandleFunc("/analyze-file", handlers.AnalyzeFile).Methods(http.MethodPost)

	hospitalRoutes := router.NewRoute().Subrouter()
	if settings.hospital != nil {
		hospitalRoutes.Use(settings.hospital)
	}
	hospitalRoutes.HandleFunc("/get-address", handlers.GetAddress).Methods(http.MethodPost)
	hospitalRoutes.HandleFunc("/nearby-hospitals", handlers.NearbyHospitals).Methods(http.MethodPost)

	// The admin surface only exists when a token is configured.
	if config.Security.AdminToken != "" {
		admin := router.PathPrefix("/api/v1/admin").Subrouter()
		admin.Use(adminAuthMiddleware(config.Security.AdminToken))
		admin.HandleFunc("/keys", handlers.KeyStats).Methods(http.MethodGet)
		admin.HandleFunc("/keys/reset", handlers.ResetKeys).Methods(http.MethodPost)
	}

	// Preflight for any path; corsMiddleware answers it before this runs. A
	// MatcherFunc rather than Methods keeps other verbs on unknown paths at 404.
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// A known path with the wrong method gets the same 404 body as an
	// unknown path; the frontend only understands that shape.
	fallback := wrap(http.HandlerFunc(handlers.NotFound), chain)
	router.NotFoundHandler = fallback
	router.MethodNotAllowedHandler = fallback

	return router
}

// wrap applies middleware so that chain[0] is the outermost handler, the
// same order router.Use gives.
func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
