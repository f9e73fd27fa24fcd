package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/application/services"
	"github.com/shopstream/recommendation-service/internal/domain/entities"
	apperrors "github.com/shopstream/recommendation-service/pkg/errors"
)

type recommendationFixture struct {
	repo    *stubActivityRepository
	tiered  *cache.TieredCache
	service *services.RecommendationService
}

func newRecommendationFixture(t *testing.T) *recommendationFixture {
	t.Helper()
	repo := newStubActivityRepository()
	tiered := newTestTieredCache(t)
	fetcher := services.NewActivityFetchService(repo, tiered, nil, services.ActivityFetchConfig{})
	executor := services.NewScoringExecutor(2, time.Second, nil)
	t.Cleanup(executor.Close)

	return &recommendationFixture{
		repo:   repo,
		tiered: tiered,
		service: services.NewRecommendationService(fetcher, executor, tiered, nil, services.RecommendationConfig{
			RequestTimeout: 5 * time.Second,
		}),
	}
}

func purchaseRecord(userID int64, category string) entities.ActivityRecord {
	return entities.ActivityRecord{
		UserID:     userID,
		Kind:       entities.FeedPurchase,
		Label:      category + " item",
		Category:   category,
		OccurredAt: time.Now(),
	}
}

func TestRecommendationService_Recommend(t *testing.T) {
	f := newRecommendationFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{
		searchRecord(42, "shoes"),
		searchRecord(42, "shoes"),
		searchRecord(42, "bags"),
	}
	f.repo.purchases[42] = []entities.ActivityRecord{
		purchaseRecord(42, "watches"),
		purchaseRecord(42, "watches"),
		purchaseRecord(42, "belts"),
	}

	result, cacheHit, err := f.service.Recommend(context.Background(), 42)

	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.NotNil(t, result.Recommendations)
	// Repeat interest (duplicates) drives recommendations, one-offs exploration.
	assert.Equal(t, []string{"shoes", "watches"}, result.Recommendations.RecommendedCategories)
	// Unique lists keep the first occurrence of every category, so explore
	// overlaps recommended for categories seen more than once.
	assert.Equal(t, []string{"shoes", "bags", "watches", "belts"}, result.Recommendations.ExploreCategories)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, 3, result.Metadata.SearchCount)
	assert.Equal(t, 3, result.Metadata.PurchaseCount)
	assert.Equal(t, 6, result.Metadata.TotalInteractions)
}

func TestRecommendationService_SecondCallIsCacheHit(t *testing.T) {
	f := newRecommendationFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{searchRecord(42, "shoes")}

	first, cacheHit, err := f.service.Recommend(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, cacheHit)

	second, cacheHit, err := f.service.Recommend(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestRecommendationService_NoActivityReturnsPlaceholder(t *testing.T) {
	f := newRecommendationFixture(t)

	result, cacheHit, err := f.service.Recommend(context.Background(), 99)

	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, entities.NoDataMessage, result.Message)
	assert.Nil(t, result.Recommendations)

	// The placeholder is cached too, just with a shorter TTL.
	_, cacheHit, err = f.service.Recommend(context.Background(), 99)
	require.NoError(t, err)
	assert.True(t, cacheHit)
}

func TestRecommendationService_BothFeedsUnavailable(t *testing.T) {
	f := newRecommendationFixture(t)
	f.repo.searchErr = errors.New("connection refused")
	f.repo.purchaseErr = errors.New("connection refused")

	result, _, err := f.service.Recommend(context.Background(), 42)

	assert.Nil(t, result)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeUnavailable, appErr.Type)
}

func TestRecommendationService_PartialFeedFailureDegrades(t *testing.T) {
	f := newRecommendationFixture(t)
	f.repo.searchErr = errors.New("connection refused")
	f.repo.purchases[42] = []entities.ActivityRecord{
		purchaseRecord(42, "watches"),
		purchaseRecord(42, "watches"),
	}

	result, _, err := f.service.Recommend(context.Background(), 42)

	require.NoError(t, err)
	require.NotNil(t, result.Recommendations)
	assert.Equal(t, []string{"watches"}, result.Recommendations.RecommendedCategories)
	assert.Equal(t, 0, result.Metadata.SearchCount)
	assert.Equal(t, 2, result.Metadata.PurchaseCount)
}

func TestRecommendationService_InvalidateUserForcesRecompute(t *testing.T) {
	f := newRecommendationFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{searchRecord(42, "shoes")}

	_, _, err := f.service.Recommend(context.Background(), 42)
	require.NoError(t, err)

	callsBefore := atomic.LoadInt32(&f.repo.calls)
	f.service.InvalidateUser(context.Background(), 42)

	_, cacheHit, err := f.service.Recommend(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Greater(t, atomic.LoadInt32(&f.repo.calls), callsBefore)
}
