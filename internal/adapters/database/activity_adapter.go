package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/shopstream/recommendation-service/internal/domain/entities"
	"github.com/shopstream/recommendation-service/internal/domain/repositories"
	"github.com/shopstream/recommendation-service/internal/infrastructure/clients/postgres"
	"github.com/shopstream/recommendation-service/internal/infrastructure/observability"
	apperrors "github.com/shopstream/recommendation-service/pkg/errors"
)

// ActivityAdapter implements ActivityRepository against the feed store
type ActivityAdapter struct {
	db          *sql.DB
	builder     *goqu.Database
	recordLimit uint
	metrics     *observability.Metrics // nil = no recording
}

// NewActivityAdapter creates a new activity adapter
func NewActivityAdapter(client *postgres.Client, recordLimit int, metrics *observability.Metrics) repositories.ActivityRepository {
	return NewActivityAdapterWithDB(client.DB(), recordLimit, metrics)
}

// NewActivityAdapterWithDB creates an adapter over an existing connection pool
func NewActivityAdapterWithDB(db *sql.DB, recordLimit int, metrics *observability.Metrics) repositories.ActivityRepository {
	if recordLimit <= 0 {
		recordLimit = 100
	}
	return &ActivityAdapter{
		db:          db,
		builder:     goqu.New("postgres", db),
		recordLimit: uint(recordLimit),
		metrics:     metrics,
	}
}

// FetchSearchActivity retrieves the most recent search records for a user
func (a *ActivityAdapter) FetchSearchActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error) {
	query, args, err := a.builder.Select("user_id", "search_term", "category", "searched_at").
		From("searches").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("searched_at").Desc()).
		Limit(a.recordLimit).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build search activity query", err)
	}

	return a.queryRecords(ctx, query, args, entities.FeedSearch)
}

// FetchPurchaseActivity retrieves the most recent purchase records for a user
func (a *ActivityAdapter) FetchPurchaseActivity(ctx context.Context, userID int64) ([]entities.ActivityRecord, error) {
	query, args, err := a.builder.Select("user_id", "product_name", "product_category", "purchased_at").
		From("purchases").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("purchased_at").Desc()).
		Limit(a.recordLimit).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build purchase activity query", err)
	}

	return a.queryRecords(ctx, query, args, entities.FeedPurchase)
}

func (a *ActivityAdapter) queryRecords(ctx context.Context, query string, args []interface{}, kind entities.FeedKind) ([]entities.ActivityRecord, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query, args...)
	if a.metrics != nil {
		observability.RecordDBMetric(ctx, a.metrics, string(kind), time.Since(start))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query activity records", err)
	}
	defer rows.Close()

	records := make([]entities.ActivityRecord, 0, a.recordLimit)
	for rows.Next() {
		var (
			record   entities.ActivityRecord
			category sql.NullString
		)
		if err := rows.Scan(&record.UserID, &record.Label, &category, &record.OccurredAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan activity record", err)
		}
		record.Kind = kind
		record.Category = category.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate activity records", err)
	}

	return records, nil
}
