package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/libreassistant/libreassistant/internal/provider"
	"github.com/libreassistant/libreassistant/internal/state"
)

// SessionStore persists conversations. maxMessages caps messages kept
// per session (0 = no cap); maxIdleDays enables pruning (0 = off).
type SessionStore struct {
	db          *DB
	maxMessages int
	maxIdleDays int
}

func NewSessionStore(db *DB, maxMessages, maxIdleDays int) *SessionStore {
	return &SessionStore{db: db, maxMessages: maxMessages, maxIdleDays: maxIdleDays}
}

// Get loads a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*state.Session, error) {
	var messagesJSON, createdAt, updatedAt string
	err := s.db.db.QueryRowContext(ctx,
		s.db.rebind(`SELECT messages, created_at, updated_at FROM sessions WHERE id = ?`),
		id,
	).Scan(&messagesJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("session load: %w", err)
	}
	var messages []provider.Message
	if messagesJSON != "" {
		_ = json.Unmarshal([]byte(messagesJSON), &messages)
	}
	ca, _ := time.Parse(time.RFC3339, createdAt)
	ua, _ := time.Parse(time.RFC3339, updatedAt)
	return &state.Session{ID: id, Messages: messages, CreatedAt: ca, UpdatedAt: ua}, nil
}

// GetOrCreate returns the session with id, inserting an empty one if
// it does not exist yet.
func (s *SessionStore) GetOrCreate(ctx context.Context, id string) (*state.Session, error) {
	if sess, err := s.Get(ctx, id); err == nil {
		return sess, nil
	}
	now := time.Now().UTC()
	_, err := s.db.db.ExecContext(ctx,
		s.db.rebind(`INSERT INTO sessions (id, messages, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		id, "[]", now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		// Lost an insert race; the row exists now.
		if sess, gerr := s.Get(ctx, id); gerr == nil {
			return sess, nil
		}
		return nil, fmt.Errorf("session create: %w", err)
	}
	return &state.Session{ID: id, Messages: []provider.Message{}, CreatedAt: now, UpdatedAt: now}, nil
}

// Append adds messages to the session and persists, trimming to the
// configured cap from the front.
func (s *SessionStore) Append(ctx context.Context, id string, msgs ...provider.Message) error {
	sess, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msgs...)
	if s.maxMessages > 0 && len(sess.Messages) > s.maxMessages {
		sess.Messages = sess.Messages[len(sess.Messages)-s.maxMessages:]
	}
	messagesJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("session persist: %w", err)
	}
	_, err = s.db.db.ExecContext(ctx,
		s.db.rebind(`UPDATE sessions SET messages = ?, updated_at = ? WHERE id = ?`),
		string(messagesJSON), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("session persist: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

// PruneIdle deletes sessions not updated in the last maxIdleDays days.
// No-op when pruning is off.
func (s *SessionStore) PruneIdle(ctx context.Context) error {
	if s.maxIdleDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.maxIdleDays).UTC().Format(time.RFC3339)
	_, err := s.db.db.ExecContext(ctx, s.db.rebind(`DELETE FROM sessions WHERE updated_at < ?`), cutoff)
	return err
}
