package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/arbiter/internal/audit"
	"github.com/hpungsan/arbiter/internal/errors"
)

// InsertEvent stores an audit entry.
func InsertEvent(db *sql.DB, entry audit.Entry) error {
	var detailJSON sql.NullString
	if len(entry.Detail) > 0 {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return errors.NewInternal(err)
		}
		detailJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO audit_events (id, kind, timestamp, detail_json)
		VALUES (?, ?, ?, ?)
	`
	_, err := db.Exec(query, entry.ID, string(entry.Kind), entry.Timestamp.UnixMilli(), detailJSON)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListEvents returns audit entries newest first, optionally filtered by
// kind, with limit/offset pagination.
func ListEvents(db *sql.DB, kind string, limit, offset int) ([]audit.Entry, error) {
	query := `
		SELECT id, kind, timestamp, detail_json
		FROM audit_events
	`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			entry      audit.Entry
			kindStr    string
			tsMilli    int64
			detailJSON sql.NullString
		)
		if err := rows.Scan(&entry.ID, &kindStr, &tsMilli, &detailJSON); err != nil {
			return nil, errors.NewInternal(err)
		}
		entry.Kind = audit.EventKind(kindStr)
		entry.Timestamp = time.UnixMilli(tsMilli).UTC()
		if detailJSON.Valid {
			if err := json.Unmarshal([]byte(detailJSON.String), &entry.Detail); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// CountEvents returns the total number of audit entries, optionally
// filtered by kind.
func CountEvents(db *sql.DB, kind string) (int, error) {
	query := "SELECT COUNT(*) FROM audit_events"
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}
