package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopstream/recommendation-service/internal/domain/entities"
	"github.com/shopstream/recommendation-service/internal/domain/scoring"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
)

// ErrScoringTimeout is returned when scoring does not finish within its deadline
var ErrScoringTimeout = errors.New("scoring deadline exceeded")

// ErrExecutorClosed is returned when the executor has been shut down
var ErrExecutorClosed = errors.New("scoring executor closed")

type scoringJob struct {
	set    entities.ActivitySet
	result chan scoringResult
}

type scoringResult struct {
	weightage entities.WeightageResult
	err       error
}

// ScoringExecutor runs the scoring engine on a fixed-size worker pool so
// CPU-bound work cannot monopolize the request-serving goroutines
type ScoringExecutor struct {
	jobs    chan scoringJob
	workers int
	timeout time.Duration
	metrics *observability.Metrics
	scoreFn func(entities.ActivitySet) entities.WeightageResult

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewScoringExecutor starts the worker pool. Workers defaults to the number
// of CPUs, timeout to 10 seconds.
func NewScoringExecutor(workers int, timeout time.Duration, metrics *observability.Metrics) *ScoringExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	e := &ScoringExecutor{
		jobs:    make(chan scoringJob),
		workers: workers,
		timeout: timeout,
		metrics: metrics,
		scoreFn: scoring.Score,
		done:    make(chan struct{}),
	}

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}

	return e
}

// Submit schedules a scoring run and waits for its result. If the deadline
// expires first the caller gets ErrScoringTimeout and any in-flight result
// is discarded.
func (e *ScoringExecutor) Submit(ctx context.Context, set entities.ActivitySet) (entities.WeightageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Buffered so a worker finishing after the deadline never blocks.
	job := scoringJob{set: set, result: make(chan scoringResult, 1)}

	select {
	case e.jobs <- job:
	case <-e.done:
		return entities.WeightageResult{}, ErrExecutorClosed
	case <-ctx.Done():
		return entities.WeightageResult{}, ErrScoringTimeout
	}

	select {
	case res := <-job.result:
		return res.weightage, res.err
	case <-ctx.Done():
		return entities.WeightageResult{}, ErrScoringTimeout
	}
}

// Close stops the workers. In-flight jobs complete; pending Submits fail.
func (e *ScoringExecutor) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}

func (e *ScoringExecutor) worker() {
	defer e.wg.Done()
	for {
		select {
		case job := <-e.jobs:
			job.result <- e.score(job.set)
		case <-e.done:
			return
		}
	}
}

// score runs the engine with panic isolation so one bad input cannot take
// down the pool
func (e *ScoringExecutor) score(set entities.ActivitySet) (res scoringResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int64("user_id", set.UserID).
				Msg("scoring worker panicked")
			res = scoringResult{err: fmt.Errorf("scoring panicked: %v", r)}
		}
		observability.RecordScoringMetric(context.Background(), e.metrics, time.Since(start))
	}()

	return scoringResult{weightage: e.scoreFn(set)}
}
