package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable SQL types

// FromNullTime converts sql.NullTime to a Go time pointer
func FromNullTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}

// FromNullRawMessage converts a nullable JSON column to raw JSON, using "null" when absent
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return json.RawMessage("null")
	}
	return val.RawMessage
}
