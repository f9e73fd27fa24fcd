package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopstream/recommendation-service/internal/adapters/cache"
	"github.com/shopstream/recommendation-service/internal/domain/entities"
	apperrors "github.com/shopstream/recommendation-service/pkg/errors"
)

// BatchConfig holds tuning for batch and warming runs
type BatchConfig struct {
	MaxBatchSize   int
	BatchChunkSize int
	MaxWarmSize    int
	WarmChunkSize  int
	WarmPause      time.Duration
	WarmResultTTL  time.Duration
}

// BatchService fans lists of user IDs through the recommendation pipeline
// in bounded chunks
type BatchService struct {
	recommender *RecommendationService
	cache       *cache.TieredCache
	cfg         BatchConfig
}

// NewBatchService creates a new batch service
func NewBatchService(recommender *RecommendationService, tiered *cache.TieredCache, cfg BatchConfig) *BatchService {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.BatchChunkSize <= 0 {
		cfg.BatchChunkSize = 15
	}
	if cfg.MaxWarmSize <= 0 {
		cfg.MaxWarmSize = 500
	}
	if cfg.WarmChunkSize <= 0 {
		cfg.WarmChunkSize = 20
	}
	if cfg.WarmPause <= 0 {
		cfg.WarmPause = 250 * time.Millisecond
	}
	if cfg.WarmResultTTL <= 0 {
		cfg.WarmResultTTL = time.Hour
	}
	return &BatchService{
		recommender: recommender,
		cache:       tiered,
		cfg:         cfg,
	}
}

// RecommendBatch resolves recommendations for a list of users: cached results
// pass through untouched, the rest run through the orchestrator in chunks.
// A failing ID never aborts its siblings.
func (s *BatchService) RecommendBatch(ctx context.Context, userIDs []int64) (*entities.BatchResult, error) {
	if len(userIDs) > s.cfg.MaxBatchSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("batch size %d exceeds maximum of %d users", len(userIDs), s.cfg.MaxBatchSize))
	}

	result := &entities.BatchResult{
		TotalRequested: len(userIDs),
		Results:        make([]json.RawMessage, 0, len(userIDs)),
	}
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cache.RecommendationKey(id)
	}
	cached := s.cache.GetMulti(ctx, keys)

	misses := make([]int64, 0, len(userIDs))
	for i, id := range userIDs {
		if payload, ok := cached[keys[i]]; ok {
			result.Results = append(result.Results, json.RawMessage(payload))
			result.CacheHits++
			result.Successful++
			continue
		}
		misses = append(misses, id)
	}
	result.CacheMisses = len(misses)

	for start := 0; start < len(misses); start += s.cfg.BatchChunkSize {
		end := start + s.cfg.BatchChunkSize
		if end > len(misses) {
			end = len(misses)
		}
		s.processChunk(ctx, misses[start:end], result)

		if ctx.Err() != nil {
			// Deadline hit mid-batch: everything not yet attempted is failed.
			result.Failed += len(misses[end:])
			break
		}
	}

	return result, nil
}

// processChunk runs the orchestrator concurrently for one chunk of IDs and
// folds the outcomes into the aggregate
func (s *BatchService) processChunk(ctx context.Context, chunk []int64, result *entities.BatchResult) {
	type outcome struct {
		payload json.RawMessage
		ok      bool
	}

	outcomes := make([]outcome, len(chunk))
	var wg sync.WaitGroup
	for i, id := range chunk {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			rec, _, err := s.recommender.Recommend(ctx, id)
			if err != nil {
				log.Warn().Err(err).Int64("user_id", id).Msg("batch recommendation failed")
				return
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				log.Warn().Err(err).Int64("user_id", id).Msg("failed to marshal batch recommendation")
				return
			}
			outcomes[i] = outcome{payload: payload, ok: true}
		}(i, id)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.ok {
			result.Results = append(result.Results, o.payload)
			result.Successful++
		} else {
			result.Failed++
		}
	}
}

// WarmBatch kicks off background cache warming for a list of users and
// returns immediately
func (s *BatchService) WarmBatch(userIDs []int64) (*entities.WarmingAck, error) {
	if len(userIDs) > s.cfg.MaxWarmSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("warming size %d exceeds maximum of %d users", len(userIDs), s.cfg.MaxWarmSize))
	}

	jobID := uuid.New().String()
	ids := make([]int64, len(userIDs))
	copy(ids, userIDs)

	go s.warm(jobID, ids)

	return &entities.WarmingAck{
		Status:    "processing",
		JobID:     jobID,
		UserCount: len(ids),
	}, nil
}

// warm processes IDs in small chunks with a pause in between to smooth load
// on the feed store
func (s *BatchService) warm(jobID string, ids []int64) {
	log.Info().Str("job_id", jobID).Int("user_count", len(ids)).Msg("cache warming started")

	var warmed, failed int64
	for start := 0; start < len(ids); start += s.cfg.WarmChunkSize {
		end := start + s.cfg.WarmChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		chunk := ids[start:end]
		fresh := make([]json.RawMessage, len(chunk))
		var wg sync.WaitGroup
		for i, id := range chunk {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				rec, cacheHit, err := s.recommender.Recommend(context.Background(), id)
				if err != nil {
					log.Warn().Err(err).Str("job_id", jobID).Int64("user_id", id).Msg("cache warming failed for user")
					atomic.AddInt64(&failed, 1)
					return
				}
				atomic.AddInt64(&warmed, 1)
				// No-data placeholders keep their short TTL.
				if cacheHit || rec.Message != "" {
					return
				}
				if payload, err := json.Marshal(rec); err == nil {
					fresh[i] = payload
				}
			}(i, id)
		}
		wg.Wait()

		// Re-assert the chunk's freshly computed results against the
		// distributed tier in one pipelined write.
		items := make(map[string][]byte, len(chunk))
		for i, id := range chunk {
			if fresh[i] != nil {
				items[cache.RecommendationKey(id)] = fresh[i]
			}
		}
		if len(items) > 0 {
			s.cache.SetMulti(context.Background(), items, s.cfg.WarmResultTTL)
		}

		if end < len(ids) {
			time.Sleep(s.cfg.WarmPause)
		}
	}

	log.Info().Str("job_id", jobID).Int64("warmed", atomic.LoadInt64(&warmed)).Int64("failed", atomic.LoadInt64(&failed)).Msg("cache warming completed")
}
