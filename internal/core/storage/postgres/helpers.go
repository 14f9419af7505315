package postgres

import (
	"encoding/json"
	"fmt"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event struct.
// Handles JSON unmarshalling for the properties column.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var propertiesJSON []byte

	err := row.Scan(
		&evt.LogPosition,
		&evt.ID,
		&evt.Name,
		&propertiesJSON,
		&evt.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if err := json.Unmarshal(propertiesJSON, &evt.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}

	return &evt, nil
}
