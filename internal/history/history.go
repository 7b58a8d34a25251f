// Package history provides SQLite-based persistence for per-session
// conversation turns, including the compaction that replaces old messages
// with a synthesized summary.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fincoach/fincoach-go/internal/logger"
)

// retainRaw is how many raw messages survive a compaction. Keeping the last
// two exchanges preserves exact recent wording while bounding context growth.
const retainRaw = 4

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL REFERENCES sessions(session_id),
	seq        INTEGER NOT NULL,
	role       TEXT    NOT NULL CHECK(role IN ('user', 'assistant', 'summary')),
	content    TEXT    NOT NULL,
	responder  TEXT,
	created_at DATETIME NOT NULL,
	UNIQUE(session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// Store persists conversation history in SQLite. Every public method runs in
// its own transaction; concurrent callers coordinate only through the
// database.
type Store struct {
	db *sql.DB
}

// New creates the history tables if needed and returns a Store.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureSession creates the session row if it does not exist.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)`,
		sessionID, time.Now().UTC(),
	)
	return err
}

// SaveTurn persists a user/assistant exchange as two message rows sharing one
// timestamp and responder tag. The session is created if absent.
func (s *Store) SaveTurn(ctx context.Context, sessionID, userText, assistantText, responder string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)`,
		sessionID, time.Now().UTC(),
	); err != nil {
		return err
	}

	seq, err := nextSeq(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, responder, created_at) VALUES (?,?,?,?,?,?)`,
		sessionID, seq, RoleUser, userText, responder, now,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, responder, created_at) VALUES (?,?,?,?,?,?)`,
		sessionID, seq+1, RoleAssistant, assistantText, responder, now,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetHistory returns up to lastN most recent messages in chronological order,
// ready for direct use as dialogue context.
func (s *Store) GetHistory(ctx context.Context, sessionID string, lastN int) ([]Message, error) {
	if lastN <= 0 {
		lastN = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, COALESCE(responder, ''), created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY seq DESC LIMIT ?`,
		sessionID, lastN,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var seq int64
		if err := rows.Scan(&m.ID, &m.SessionID, &seq, &m.Role, &m.Content, &m.Responder, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; reverse for chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetTurnCount returns the number of user messages in the session, which is
// the number of completed turns.
func (s *Store) GetTurnCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ? AND role = ?`,
		sessionID, RoleUser,
	).Scan(&n)
	return n, err
}

// SaveSummary atomically replaces older history with a single summary row:
// all non-summary messages except the most recent 4 are deleted, any prior
// summary is removed, and the new summary is inserted with a seq below every
// retained row so plain seq ordering keeps it logically first.
func (s *Store) SaveSummary(ctx context.Context, sessionID, summary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)`,
		sessionID, time.Now().UTC(),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages
		 WHERE session_id = ?
		   AND role != 'summary'
		   AND id NOT IN (
		       SELECT id FROM messages
		       WHERE session_id = ? AND role != 'summary'
		       ORDER BY seq DESC LIMIT ?
		   )`,
		sessionID, sessionID, retainRaw,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ? AND role = 'summary'`,
		sessionID,
	); err != nil {
		return err
	}

	var minSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MIN(seq) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&minSeq); err != nil {
		return err
	}
	summarySeq := int64(1)
	if minSeq.Valid {
		summarySeq = minSeq.Int64 - 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, responder, created_at) VALUES (?,?,?,?,?,?)`,
		sessionID, summarySeq, RoleSummary, summary, "memory_synthesizer", time.Now().UTC(),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L.Debug("history compacted", "session_id", sessionID, "retained", retainRaw)
	return nil
}

// ListSessions returns all known session IDs, most recently created first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions ORDER BY created_at DESC, session_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nextSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var max sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&max); err != nil {
		return 0, err
	}
	if max.Valid {
		return max.Int64 + 1, nil
	}
	return 1, nil
}
