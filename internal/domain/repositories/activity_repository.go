package repositories

import (
	"context"

	"github.com/shopstream/recommendation-service/internal/domain/entities"
)

// ActivityRepository defines the interface to the upstream feed store. Each
// call returns at most the configured number of most-recent records for the
// user and may fail with a connectivity or timeout error.
type ActivityRepository interface {
	// FetchSearchActivity returns the user's recent search history
	FetchSearchActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error)

	// FetchPurchaseActivity returns the user's recent purchase history
	FetchPurchaseActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error)
}
