// Package store provides storage backends for DriverDesk.
//
// Driver requests are persisted to SQLite for single-host deployments
// or PostgreSQL when an external database is available. Both backends
// apply their schema migrations at startup.
package store

import (
	"context"
	"strings"

	"github.com/treelogistics/driverdesk/internal/models"
)

// Store persists driver support requests.
type Store interface {
	// SaveRequest inserts a new request and fills in its RowNumber.
	SaveRequest(ctx context.Context, req *models.DriverRequest) error

	// RequestsByPhone returns the newest requests for a phone number,
	// most recent first, at most limit entries.
	RequestsByPhone(ctx context.Context, phone string, limit int) ([]models.DriverRequest, error)

	// RequestsByStatus returns all requests with the given status,
	// oldest first.
	RequestsByStatus(ctx context.Context, status models.RequestStatus) ([]models.DriverRequest, error)

	// AllRequests returns every request, newest first.
	AllRequests(ctx context.Context) ([]models.DriverRequest, error)

	// MarkDone transitions a request to done and returns it.
	// Returns models.ErrRequestMissing when no such row exists.
	MarkDone(ctx context.Context, rowID string) (*models.DriverRequest, error)

	// MarkNotified records that the driver was told about completion.
	MarkNotified(ctx context.Context, rowID string) error

	// SetLatestFeedback attaches a satisfaction rating to the driver's
	// most recent request without feedback. A driver with no such
	// request is a no-op.
	SetLatestFeedback(ctx context.Context, phone, feedback string) error

	// Close releases the underlying database handle.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports which backend a DSN belongs to: "postgres" for
// URL or key=value style connection strings, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
