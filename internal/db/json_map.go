package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// JSONMap stores raw extractor info dictionaries in a JSONB column.
type JSONMap map[string]any

// Scan implements sql.Scanner for reading from the database.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("db.JSONMap.Scan: expected []byte or string, got %T", value)
	}
}

// Value implements driver.Valuer for writing to the database. A nil map is stored as NULL.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(m))
}

// ScanText implements the pgtype.TextScanner interface for pgx v5.
func (m *JSONMap) ScanText(v pgtype.Text) error {
	if !v.Valid {
		*m = nil
		return nil
	}
	return json.Unmarshal([]byte(v.String), m)
}

// TextValue implements the pgtype.TextValuer interface for pgx v5.
func (m JSONMap) TextValue() (pgtype.Text, error) {
	if m == nil {
		return pgtype.Text{}, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return pgtype.Text{}, err
	}
	return pgtype.Text{String: string(b), Valid: true}, nil
}
