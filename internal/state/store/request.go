package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/libreassistant/libreassistant/internal/state"
)

// RequestStore archives finished request outcomes.
type RequestStore struct {
	db *DB
}

func NewRequestStore(db *DB) *RequestStore {
	return &RequestStore{db: db}
}

// Save inserts one finished request. CreatedAt defaults to now.
func (s *RequestStore) Save(ctx context.Context, rec *state.RequestRecord) error {
	if rec.RequestID == "" {
		return fmt.Errorf("request archive: request_id is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pluginsJSON, err := json.Marshal(rec.PluginsUsed)
	if err != nil {
		return fmt.Errorf("request archive: %w", err)
	}
	_, err = s.db.db.ExecContext(ctx, s.db.rebind(
		`INSERT INTO requests (request_id, session_id, success, response, terminal_reason,
		 plugin_count, plugins_used, iteration_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.RequestID, rec.SessionID, boolToInt(rec.Success), rec.Response, rec.TerminalReason,
		rec.PluginCount, string(pluginsJSON), rec.IterationCount,
		created.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("request archive: %w", err)
	}
	return nil
}

// Get loads one archived request by id.
func (s *RequestStore) Get(ctx context.Context, requestID string) (*state.RequestRecord, error) {
	row := s.db.db.QueryRowContext(ctx, s.db.rebind(
		`SELECT request_id, session_id, success, response, terminal_reason,
		 plugin_count, plugins_used, iteration_count, created_at
		 FROM requests WHERE request_id = ?`), requestID)
	rec, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %q not found", requestID)
	}
	return rec, err
}

// Recent returns the n most recently archived requests, newest first.
func (s *RequestStore) Recent(ctx context.Context, n int) ([]*state.RequestRecord, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(
		`SELECT request_id, session_id, success, response, terminal_reason,
		 plugin_count, plugins_used, iteration_count, created_at
		 FROM requests ORDER BY created_at DESC, request_id LIMIT ?`), n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var recs []*state.RequestRecord
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*state.RequestRecord, error) {
	var rec state.RequestRecord
	var success int
	var pluginsJSON, createdAt string
	err := row.Scan(&rec.RequestID, &rec.SessionID, &success, &rec.Response,
		&rec.TerminalReason, &rec.PluginCount, &pluginsJSON, &rec.IterationCount, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Success = success != 0
	_ = json.Unmarshal([]byte(pluginsJSON), &rec.PluginsUsed)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
