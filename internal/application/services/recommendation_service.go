package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/domain/entities"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
	apperrors "github.com/shopstream/recommendation-service/pkg/errors"
)

const (
	maxRecommendedCategories = 10
	maxExploreCategories     = 5
)

// RecommendationConfig holds tuning for the orchestration path
type RecommendationConfig struct {
	RequestTimeout time.Duration
	ResultTTL      time.Duration
	NoDataTTL      time.Duration
}

// RecommendationService orchestrates the full per-user pipeline: cached
// result lookup, twin feed fetch, offloaded scoring and result assembly
type RecommendationService struct {
	fetcher  *ActivityFetchService
	executor *ScoringExecutor
	cache    *cache.TieredCache
	metrics  *observability.Metrics
	cfg      RecommendationConfig
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	fetcher *ActivityFetchService,
	executor *ScoringExecutor,
	tiered *cache.TieredCache,
	metrics *observability.Metrics,
	cfg RecommendationConfig,
) *RecommendationService {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.NoDataTTL <= 0 {
		cfg.NoDataTTL = 5 * time.Minute
	}
	return &RecommendationService{
		fetcher:  fetcher,
		executor: executor,
		cache:    tiered,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Recommend computes (or serves from cache) the recommendation result for a
// user. The bool reports whether the result came from cache.
func (s *RecommendationService) Recommend(ctx context.Context, userID int64) (result *entities.RecommendationResult, cacheHit bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "recommendation.recommend")
	defer span.End()

	key := cache.RecommendationKey(userID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached entities.RecommendationResult
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return &cached, true, nil
		}
		s.cache.Invalidate(ctx, key)
	}

	defer func() {
		// Assembly works on upstream data; a malformed shape must degrade to
		// a 500, not kill the process.
		if r := recover(); r != nil {
			observability.LoggerFromContext(ctx).Error().Interface("panic", r).Int64("user_id", userID).Msg("recommendation assembly panicked")
			result, cacheHit = nil, false
			err = apperrors.NewInternalError("recommendation assembly failed", nil)
		}
	}()

	var searchOutcome, purchaseOutcome FetchOutcome
	g, fetchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		searchOutcome = s.fetcher.Fetch(fetchCtx, userID, entities.FeedSearch)
		return nil
	})
	g.Go(func() error {
		purchaseOutcome = s.fetcher.Fetch(fetchCtx, userID, entities.FeedPurchase)
		return nil
	})
	_ = g.Wait() // fetches report degradation via status, never an error

	if searchOutcome.Status == FetchUnavailable && purchaseOutcome.Status == FetchUnavailable {
		return nil, false, apperrors.NewUnavailableError("feed store unreachable", nil)
	}

	set := entities.ActivitySet{
		UserID:          userID,
		SearchRecords:   searchOutcome.Records,
		PurchaseRecords: purchaseOutcome.Records,
	}

	if set.Empty() {
		noData := entities.NewNoDataResult(userID)
		s.cacheResult(ctx, key, noData, s.cfg.NoDataTTL)
		return noData, false, nil
	}

	weightage, err := s.executor.Submit(ctx, set)
	if err != nil {
		if errors.Is(err, ErrScoringTimeout) {
			// Deliberately not cached: the next request should retry.
			return entities.NewTimeoutResult(userID), false, apperrors.NewTimeoutError("scoring deadline exceeded")
		}
		return nil, false, apperrors.NewInternalError("failed to score activity", err)
	}

	result = assembleResult(userID, weightage)
	s.cacheResult(ctx, key, result, s.cfg.ResultTTL)
	return result, false, nil
}

// InvalidateUser removes the cached recommendation and both feed snapshots
// for a user
func (s *RecommendationService) InvalidateUser(ctx context.Context, userID int64) {
	s.cache.Invalidate(ctx, cache.UserKeys(userID)...)
}

func (s *RecommendationService) cacheResult(ctx context.Context, key string, result *entities.RecommendationResult, ttl time.Duration) {
	data, err := json.Marshal(result)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to marshal recommendation for caching")
		return
	}
	s.cache.Set(ctx, key, data, ttl)
}

// assembleResult turns a weightage into the response shape: duplicate
// categories (repeat interest) drive recommendations, unique ones drive
// exploration
func assembleResult(userID int64, w entities.WeightageResult) *entities.RecommendationResult {
	recommended := dedupFirstSeen(append(append([]string{}, w.SearchDuplicates...), w.PurchaseDuplicates...), maxRecommendedCategories)
	explore := dedupFirstSeen(append(append([]string{}, w.SearchUnique...), w.PurchaseUnique...), maxExploreCategories)

	return &entities.RecommendationResult{
		UserID: userID,
		Recommendations: &entities.RecommendationSummary{
			Weightage:             w.OverallWeight,
			SearchWeight:          w.WeightageSearch,
			PurchaseWeight:        w.WeightagePurchase,
			RecommendedCategories: recommended,
			ExploreCategories:     explore,
			TopCategories:         w.TopCategories,
		},
		Metadata: &entities.ResultMetadata{
			SearchCount:       w.SearchCount,
			PurchaseCount:     w.PurchaseCount,
			TotalInteractions: w.TotalInteractions,
			Profile:           w.Profile,
		},
	}
}

// dedupFirstSeen keeps the first occurrence of each value, capped at limit
func dedupFirstSeen(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
