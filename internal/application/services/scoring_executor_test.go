package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/recommendation-service/internal/domain/entities"
)

func activitySet(userID int64, searchCats, purchaseCats []string) entities.ActivitySet {
	set := entities.ActivitySet{UserID: userID}
	for _, c := range searchCats {
		set.SearchRecords = append(set.SearchRecords, entities.ActivityRecord{
			UserID: userID, Kind: entities.FeedSearch, Category: c,
		})
	}
	for _, c := range purchaseCats {
		set.PurchaseRecords = append(set.PurchaseRecords, entities.ActivityRecord{
			UserID: userID, Kind: entities.FeedPurchase, Category: c,
		})
	}
	return set
}

func TestScoringExecutor_Submit(t *testing.T) {
	executor := NewScoringExecutor(2, time.Second, nil)
	defer executor.Close()

	set := activitySet(42, []string{"shoes", "shoes", "bags"}, []string{"shoes"})

	result, err := executor.Submit(context.Background(), set)

	require.NoError(t, err)
	assert.Equal(t, int64(42), result.UserID)
	assert.Equal(t, 3, result.SearchCount)
	assert.Equal(t, 1, result.PurchaseCount)
}

func TestScoringExecutor_DeadlineReturnsTimeout(t *testing.T) {
	executor := NewScoringExecutor(1, 20*time.Millisecond, nil)
	defer executor.Close()

	release := make(chan struct{})
	executor.scoreFn = func(set entities.ActivitySet) entities.WeightageResult {
		<-release
		return entities.WeightageResult{UserID: set.UserID}
	}
	defer close(release)

	_, err := executor.Submit(context.Background(), activitySet(1, []string{"a"}, nil))

	assert.ErrorIs(t, err, ErrScoringTimeout)
}

func TestScoringExecutor_SaturatedPoolTimesOutWaitingSubmits(t *testing.T) {
	executor := NewScoringExecutor(1, 20*time.Millisecond, nil)
	defer executor.Close()

	release := make(chan struct{})
	executor.scoreFn = func(set entities.ActivitySet) entities.WeightageResult {
		<-release
		return entities.WeightageResult{UserID: set.UserID}
	}
	defer close(release)

	// Occupy the single worker, then a second submit cannot even dispatch.
	go executor.Submit(context.Background(), activitySet(1, nil, nil)) //nolint:errcheck
	time.Sleep(5 * time.Millisecond)

	_, err := executor.Submit(context.Background(), activitySet(2, nil, nil))

	assert.ErrorIs(t, err, ErrScoringTimeout)
}

func TestScoringExecutor_PanicIsRecovered(t *testing.T) {
	executor := NewScoringExecutor(1, time.Second, nil)
	defer executor.Close()

	executor.scoreFn = func(entities.ActivitySet) entities.WeightageResult {
		panic("bad input")
	}

	_, err := executor.Submit(context.Background(), activitySet(1, nil, nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrScoringTimeout)

	// The worker survives the panic and serves subsequent jobs.
	executor.scoreFn = func(set entities.ActivitySet) entities.WeightageResult {
		return entities.WeightageResult{UserID: set.UserID}
	}
	result, err := executor.Submit(context.Background(), activitySet(7, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.UserID)
}

func TestScoringExecutor_SubmitAfterClose(t *testing.T) {
	executor := NewScoringExecutor(1, time.Second, nil)
	executor.Close()

	_, err := executor.Submit(context.Background(), activitySet(1, nil, nil))

	assert.ErrorIs(t, err, ErrExecutorClosed)
}
