package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/pkg/config"
)

// Pinger reports backing-store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service, feed store and cache status
type HealthHandler struct {
	db    Pinger
	cache *cache.TieredCache
	cfg   *config.Config
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, tiered *cache.TieredCache, cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		db:    db,
		cache: tiered,
		cfg:   cfg,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err == nil {
			dbStatus = "connected"
		}
	}

	redisStatus := "not_available"
	if h.cache.RemoteConfigured() {
		redisStatus = "connected"
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  dbStatus,
		"redis":     redisStatus,
		"pool_size": h.cfg.Database.MaxOpenConns,
	})
}

// Stats handles GET /stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"local_cache": map[string]int{
			"size":     h.cache.LocalLen(),
			"capacity": h.cache.LocalCapacity(),
		},
		"pipeline": map[string]interface{}{
			"gate_capacity":    h.cfg.Pipeline.GateCapacity,
			"scoring_workers":  h.cfg.Pipeline.ScoringWorkers,
			"max_batch_size":   h.cfg.Pipeline.MaxBatchSize,
			"batch_chunk_size": h.cfg.Pipeline.BatchChunkSize,
			"max_warm_size":    h.cfg.Pipeline.MaxWarmSize,
			"warm_chunk_size":  h.cfg.Pipeline.WarmChunkSize,
		},
	})
}
