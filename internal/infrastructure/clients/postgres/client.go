package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/shopstream/recommendation-service/pkg/config"
	"github.com/shopstream/recommendation-service/pkg/retry"
)

// Client represents a PostgreSQL client for the feed store. The pool is
// deliberately small; the admission gate upstream keeps concurrent queries
// within it.
type Client struct {
	db *sql.DB
}

// NewClient opens a connection pool and verifies connectivity with
// exponential backoff
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	retryConfig := retry.DefaultConfig()
	err = retry.Do(context.Background(), retryConfig, func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if pingErr := db.PingContext(pingCtx); pingErr != nil {
			log.Warn().Err(pingErr).Msg("PostgreSQL not reachable yet, retrying")
			return pingErr
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to PostgreSQL")
	return &Client{db: db}, nil
}

// DB returns the underlying database connection pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection pool
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
