// Package store provides storage backends for DriverDesk.
//
// This file implements the PostgreSQL-backed request store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/treelogistics/driverdesk/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveRequest(ctx context.Context, req *models.DriverRequest) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO requests (row_id, created_at, first_name, last_name, phone, station, category, priority, body, status, feedback)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING row_number`,
		req.RowID, req.CreatedAt, req.FirstName, req.LastName, req.Phone,
		req.Station, req.Category, req.Priority, req.Body, req.Status, req.Feedback,
	).Scan(&req.RowNumber)
	if err != nil {
		slog.Error("PostgresStore SaveRequest failed", "error", err, "rowID", req.RowID)
		return fmt.Errorf("failed to insert request %s: %w", req.RowID, err)
	}
	slog.Debug("PostgresStore SaveRequest succeeded", "rowID", req.RowID, "category", req.Category)
	return nil
}

func (s *PostgresStore) RequestsByPhone(ctx context.Context, phone string, limit int) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE phone = $1 ORDER BY row_number DESC LIMIT $2`,
		phone, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests for %s: %w", phone, err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status = $1 ORDER BY row_number ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by status %s: %w", status, err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) AllRequests(ctx context.Context) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY row_number DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query all requests: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) MarkDone(ctx context.Context, rowID string) (*models.DriverRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE requests SET status = $1 WHERE row_id = $2 RETURNING `+requestColumns,
		models.StatusDone, rowID,
	)
	req, err := scanRequestRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRequestMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark request %s done: %w", rowID, err)
	}
	slog.Debug("PostgresStore MarkDone succeeded", "rowID", rowID)
	return &req, nil
}

func (s *PostgresStore) MarkNotified(ctx context.Context, rowID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = $1 WHERE row_id = $2 AND status = $3`,
		models.StatusNotified, rowID, models.StatusDone,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request %s notified: %w", rowID, err)
	}
	return nil
}

func (s *PostgresStore) SetLatestFeedback(ctx context.Context, phone, feedback string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE requests SET feedback = $1
		 WHERE row_number = (
		     SELECT row_number FROM requests
		     WHERE phone = $2 AND feedback = ''
		     ORDER BY row_number DESC LIMIT 1
		 )`,
		feedback, phone,
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback for %s: %w", phone, err)
	}
	slog.Debug("PostgresStore SetLatestFeedback succeeded", "phone", phone)
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
