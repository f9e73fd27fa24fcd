package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/api/handlers"
	"github.com/shopstream/recommendation-service/internal/application/services"
	"github.com/shopstream/recommendation-service/internal/domain/entities"
)

type stubFeedRepository struct {
	searches    map[int64][]entities.ActivityRecord
	purchases   map[int64][]entities.ActivityRecord
	unavailable bool
}

func newStubFeedRepository() *stubFeedRepository {
	return &stubFeedRepository{
		searches:  make(map[int64][]entities.ActivityRecord),
		purchases: make(map[int64][]entities.ActivityRecord),
	}
}

func (r *stubFeedRepository) FetchSearchActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error) {
	if r.unavailable {
		return nil, errors.New("connection refused")
	}
	return r.searches[userID], nil
}

func (r *stubFeedRepository) FetchPurchaseActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error) {
	if r.unavailable {
		return nil, errors.New("connection refused")
	}
	return r.purchases[userID], nil
}

type handlerFixture struct {
	repo    *stubFeedRepository
	tiered  *cache.TieredCache
	handler *handlers.RecommendationHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	repo := newStubFeedRepository()
	local := cache.NewLocalCache(100, time.Minute)
	t.Cleanup(local.Close)
	tiered := cache.NewTieredCache(local, nil, nil, cache.TieredCacheConfig{})

	fetcher := services.NewActivityFetchService(repo, tiered, nil, services.ActivityFetchConfig{})
	executor := services.NewScoringExecutor(2, time.Second, nil)
	t.Cleanup(executor.Close)
	recommender := services.NewRecommendationService(fetcher, executor, tiered, nil, services.RecommendationConfig{
		RequestTimeout: 5 * time.Second,
	})
	batch := services.NewBatchService(recommender, tiered, services.BatchConfig{MaxBatchSize: 10, MaxWarmSize: 10})

	return &handlerFixture{
		repo:    repo,
		tiered:  tiered,
		handler: handlers.NewRecommendationHandler(recommender, batch),
	}
}

func searchActivity(userID int64, category string) entities.ActivityRecord {
	return entities.ActivityRecord{
		UserID:     userID,
		Kind:       entities.FeedSearch,
		Label:      category + " query",
		Category:   category,
		OccurredAt: time.Now(),
	}
}

func getRecommendation(f *handlerFixture, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/recommend/"+userID, nil)
	req.SetPathValue("userID", userID)
	w := httptest.NewRecorder()
	f.handler.GetRecommendation(w, req)
	return w
}

func TestGetRecommendation_Success(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{
		searchActivity(42, "shoes"),
		searchActivity(42, "shoes"),
	}

	w := getRecommendation(f, "42")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(42), response["user_id"])
	assert.Contains(t, response, "recommendations")
}

func TestGetRecommendation_CacheHitHeader(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{searchActivity(42, "shoes")}

	first := getRecommendation(f, "42")
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := getRecommendation(f, "42")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestGetRecommendation_NoData(t *testing.T) {
	f := newHandlerFixture(t)

	w := getRecommendation(f, "7")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "No data found", response["message"])
	assert.Equal(t, []interface{}{}, response["recommendations"])
}

func TestGetRecommendation_InvalidUserID(t *testing.T) {
	f := newHandlerFixture(t)

	w := getRecommendation(f, "abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecommendation_FeedStoreUnavailable(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.unavailable = true

	w := getRecommendation(f, "42")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInvalidateCache(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.searches[42] = []entities.ActivityRecord{searchActivity(42, "shoes")}

	require.Equal(t, "MISS", getRecommendation(f, "42").Header().Get("X-Cache"))
	require.Equal(t, "HIT", getRecommendation(f, "42").Header().Get("X-Cache"))

	req := httptest.NewRequest("POST", "/invalidate-cache/42", nil)
	req.SetPathValue("userID", "42")
	w := httptest.NewRecorder()
	f.handler.InvalidateCache(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "MISS", getRecommendation(f, "42").Header().Get("X-Cache"))
}

func TestBatchRecommend(t *testing.T) {
	f := newHandlerFixture(t)
	for _, id := range []int64{1, 2} {
		f.repo.searches[id] = []entities.ActivityRecord{searchActivity(id, "shoes")}
	}

	req := httptest.NewRequest("GET", "/batch-recommend?user_ids=1,2", nil)
	w := httptest.NewRecorder()
	f.handler.BatchRecommend(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result entities.BatchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, 2, result.TotalRequested)
	assert.Equal(t, 2, result.Successful)
}

func TestBatchRecommend_MalformedIDs(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest("GET", "/batch-recommend?user_ids=1,x,3", nil)
	w := httptest.NewRecorder()
	f.handler.BatchRecommend(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchRecommend_OverBound(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest("GET", "/batch-recommend?user_ids=1,2,3,4,5,6,7,8,9,10,11", nil)
	w := httptest.NewRecorder()
	f.handler.BatchRecommend(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWarmCache(t *testing.T) {
	f := newHandlerFixture(t)
	f.repo.searches[1] = []entities.ActivityRecord{searchActivity(1, "shoes")}

	req := httptest.NewRequest("POST", "/warm-cache?user_ids=1,2", nil)
	w := httptest.NewRecorder()
	f.handler.WarmCache(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var ack entities.WarmingAck
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ack))
	assert.Equal(t, "processing", ack.Status)
	assert.NotEmpty(t, ack.JobID)
	assert.Equal(t, 2, ack.UserCount)
}

func TestWarmCache_EmptyIDs(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest("POST", "/warm-cache", nil)
	w := httptest.NewRecorder()
	f.handler.WarmCache(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
