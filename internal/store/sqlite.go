// Package store provides storage backends for DriverDesk.
//
// This file implements the SQLite-backed request store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/treelogistics/driverdesk/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRequest(ctx context.Context, req *models.DriverRequest) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (row_id, created_at, first_name, last_name, phone, station, category, priority, body, status, feedback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.RowID, req.CreatedAt, req.FirstName, req.LastName, req.Phone,
		req.Station, req.Category, req.Priority, req.Body, req.Status, req.Feedback,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveRequest failed", "error", err, "rowID", req.RowID)
		return fmt.Errorf("failed to insert request %s: %w", req.RowID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		req.RowNumber = id
	}
	slog.Debug("SQLiteStore SaveRequest succeeded", "rowID", req.RowID, "category", req.Category)
	return nil
}

func (s *SQLiteStore) RequestsByPhone(ctx context.Context, phone string, limit int) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE phone = ? ORDER BY row_number DESC LIMIT ?`,
		phone, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests for %s: %w", phone, err)
	}
	return collectRequests(rows)
}

func (s *SQLiteStore) RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY row_number ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by status %s: %w", status, err)
	}
	return collectRequests(rows)
}

func (s *SQLiteStore) AllRequests(ctx context.Context) ([]models.DriverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY row_number DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query all requests: %w", err)
	}
	return collectRequests(rows)
}

func (s *SQLiteStore) MarkDone(ctx context.Context, rowID string) (*models.DriverRequest, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE row_id = ?`, models.StatusDone, rowID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark request %s done: %w", rowID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.ErrRequestMissing
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE row_id = ?`, rowID,
	)
	req, err := scanRequestRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRequestMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", rowID, err)
	}
	slog.Debug("SQLiteStore MarkDone succeeded", "rowID", rowID)
	return &req, nil
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, rowID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE row_id = ? AND status = ?`,
		models.StatusNotified, rowID, models.StatusDone,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request %s notified: %w", rowID, err)
	}
	return nil
}

func (s *SQLiteStore) SetLatestFeedback(ctx context.Context, phone, feedback string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE requests SET feedback = ?
		 WHERE row_number = (
		     SELECT row_number FROM requests
		     WHERE phone = ? AND feedback = ''
		     ORDER BY row_number DESC LIMIT 1
		 )`,
		feedback, phone,
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore SetLatestFeedback succeeded", "phone", phone)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
