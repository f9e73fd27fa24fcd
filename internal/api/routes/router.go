package routes

import (
	"net/http"

	"github.com/shopstream/recommendation-service/internal/api/handlers"
	"github.com/shopstream/recommendation-service/internal/api/middleware"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	recommendationHandler *handlers.RecommendationHandler
	healthHandler         *handlers.HealthHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	recommendationHandler *handlers.RecommendationHandler,
	healthHandler *handlers.HealthHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                   http.NewServeMux(),
		recommendationHandler: recommendationHandler,
		healthHandler:         healthHandler,
		metrics:               metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Recommendation endpoints
	r.mux.HandleFunc("GET /recommend/{userID}", r.recommendationHandler.GetRecommendation)
	r.mux.HandleFunc("POST /invalidate-cache/{userID}", r.recommendationHandler.InvalidateCache)
	r.mux.HandleFunc("GET /batch-recommend", r.recommendationHandler.BatchRecommend)
	r.mux.HandleFunc("POST /warm-cache", r.recommendationHandler.WarmCache)

	// Operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	r.mux.HandleFunc("GET /stats", r.healthHandler.Stats)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
