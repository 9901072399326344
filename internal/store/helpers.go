package store

import (
	"database/sql"
	"fmt"

	"github.com/treelogistics/driverdesk/internal/models"
)

const requestColumns = "row_number, row_id, created_at, first_name, last_name, phone, station, category, priority, body, status, feedback"

// scanRequest scans a DriverRequest from sql.Rows.
func scanRequest(rows *sql.Rows) (models.DriverRequest, error) {
	var r models.DriverRequest
	err := rows.Scan(
		&r.RowNumber, &r.RowID, &r.CreatedAt, &r.FirstName, &r.LastName,
		&r.Phone, &r.Station, &r.Category, &r.Priority, &r.Body, &r.Status, &r.Feedback,
	)
	if err != nil {
		return r, fmt.Errorf("scan request failed: %w", err)
	}
	return r, nil
}

// scanRequestRow scans a DriverRequest from a single sql.Row.
func scanRequestRow(row *sql.Row) (models.DriverRequest, error) {
	var r models.DriverRequest
	err := row.Scan(
		&r.RowNumber, &r.RowID, &r.CreatedAt, &r.FirstName, &r.LastName,
		&r.Phone, &r.Station, &r.Category, &r.Priority, &r.Body, &r.Status, &r.Feedback,
	)
	if err != nil {
		return r, err
	}
	return r, nil
}

func collectRequests(rows *sql.Rows) ([]models.DriverRequest, error) {
	defer rows.Close()
	var out []models.DriverRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
