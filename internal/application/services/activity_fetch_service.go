package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/domain/entities"
	"github.com/shopstream/recommendation-service/internal/domain/repositories"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
)

// FetchStatus classifies the outcome of a feed fetch
type FetchStatus string

const (
	// FetchOK means records were retrieved (possibly zero of them)
	FetchOK FetchStatus = "ok"

	// FetchTimeout means the fetch deadline expired before the feed answered
	FetchTimeout FetchStatus = "timeout"

	// FetchUnavailable means the feed store is unreachable or the breaker is open
	FetchUnavailable FetchStatus = "unavailable"
)

// FetchOutcome carries feed records together with how the fetch ended.
// Slow or unreachable feeds are status variants, not errors; callers decide
// how much degradation they can tolerate.
type FetchOutcome struct {
	Records []entities.ActivityRecord
	Status  FetchStatus
}

// ActivityFetchConfig holds tuning for the fetch path
type ActivityFetchConfig struct {
	GateCapacity int64
	FetchTimeout time.Duration
	FeedTTL      time.Duration
}

// ActivityFetchService retrieves per-user activity feeds through the tiered
// cache, an admission gate and a circuit breaker
type ActivityFetchService struct {
	repo    repositories.ActivityRepository
	cache   *cache.TieredCache
	gate    *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker[[]entities.ActivityRecord]
	metrics *observability.Metrics
	cfg     ActivityFetchConfig
}

// NewActivityFetchService creates a new activity fetch service
func NewActivityFetchService(
	repo repositories.ActivityRepository,
	tiered *cache.TieredCache,
	metrics *observability.Metrics,
	cfg ActivityFetchConfig,
) *ActivityFetchService {
	if cfg.GateCapacity <= 0 {
		cfg.GateCapacity = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.FeedTTL <= 0 {
		cfg.FeedTTL = time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker[[]entities.ActivityRecord](gobreaker.Settings{
		Name:    "feed-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &ActivityFetchService{
		repo:    repo,
		cache:   tiered,
		gate:    semaphore.NewWeighted(cfg.GateCapacity),
		breaker: breaker,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Fetch retrieves one feed for a user. The whole call, queueing for an
// admission slot included, runs under the configured fetch deadline.
func (s *ActivityFetchService) Fetch(ctx context.Context, userID int64, kind entities.FeedKind) FetchOutcome {
	key := feedKey(userID, kind)

	if data, ok := s.cache.Get(ctx, key); ok {
		var records []entities.ActivityRecord
		if err := json.Unmarshal(data, &records); err == nil {
			return FetchOutcome{Records: records, Status: FetchOK}
		}
		// Corrupt entry; drop it and fall through to the feed store.
		s.cache.Invalidate(ctx, key)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if err := s.gate.Acquire(fetchCtx, 1); err != nil {
		return s.degraded(ctx, userID, kind, err)
	}

	records, err := func() ([]entities.ActivityRecord, error) {
		// Release covers the breaker short-circuiting without running the query.
		defer s.gate.Release(1)
		return s.breaker.Execute(func() ([]entities.ActivityRecord, error) {
			switch kind {
			case entities.FeedPurchase:
				return s.repo.FetchPurchaseActivity(fetchCtx, userID)
			default:
				return s.repo.FetchSearchActivity(fetchCtx, userID)
			}
		})
	}()
	if err != nil {
		// A driver error after the deadline fired is still a timeout.
		if fetchCtx.Err() != nil {
			err = fetchCtx.Err()
		}
		return s.degraded(ctx, userID, kind, err)
	}

	if data, err := json.Marshal(records); err == nil {
		s.cache.Set(ctx, key, data, s.cfg.FeedTTL)
	}

	return FetchOutcome{Records: records, Status: FetchOK}
}

// degraded maps a fetch failure to its outcome variant
func (s *ActivityFetchService) degraded(ctx context.Context, userID int64, kind entities.FeedKind, err error) FetchOutcome {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn().
			Int64("user_id", userID).
			Str("feed", string(kind)).
			Msg("feed fetch timed out")
		observability.RecordFeedTimeout(ctx, s.metrics, string(kind))
		return FetchOutcome{Status: FetchTimeout}
	}

	log.Warn().
		Err(err).
		Int64("user_id", userID).
		Str("feed", string(kind)).
		Msg("feed store unavailable")
	return FetchOutcome{Status: FetchUnavailable}
}

func feedKey(userID int64, kind entities.FeedKind) string {
	if kind == entities.FeedPurchase {
		return cache.PurchaseKey(userID)
	}
	return cache.SearchKey(userID)
}
