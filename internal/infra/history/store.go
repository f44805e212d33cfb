package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type Session struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID        int64
	SessionID int64
	Role      string
	Content   string
	Favorite  bool
	CreatedAt time.Time
}

// migrations apply in order; PRAGMA user_version records how many have run.
var migrations = []string{
	`CREATE TABLE sessions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		title      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		favorite   INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_messages_session ON messages(session_id, id);`,
}

// Store persists conversation turns in a local SQLite database. One session
// is opened lazily per process run; Append writes into it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	session int64
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// The sqlite driver serializes writes poorly across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("recording schema version %d: %w", i+1, err)
		}
		s.logger.Info("history schema migrated", "version", i+1)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts an empty conversation session.
func (s *Store) CreateSession(title string) (int64, error) {
	res, err := s.db.Exec("INSERT INTO sessions (title) VALUES (?)", title)
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// Append writes one turn into the current session, creating the session on
// first use. The session title is seeded from the first user message.
func (s *Store) Append(role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == 0 {
		title := ""
		if role == "user" {
			title = truncateTitle(content)
		}
		id, err := s.CreateSession(title)
		if err != nil {
			return err
		}
		s.session = id
	}
	return s.appendTo(s.session, role, content)
}

// AppendTo writes one turn into a specific session.
func (s *Store) AppendTo(sessionID int64, role, content string) error {
	return s.appendTo(sessionID, role, content)
}

func (s *Store) appendTo(sessionID int64, role, content string) error {
	_, err := s.db.Exec(
		"INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)",
		sessionID, role, content,
	)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	_, err = s.db.Exec(
		"UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Sessions lists sessions most recently updated first.
func (s *Store) Sessions(limit, offset int) ([]Session, error) {
	rows, err := s.db.Query(
		"SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Messages lists one session's messages in insertion order.
func (s *Store) Messages(sessionID int64, limit, offset int) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, role, content, favorite, created_at FROM messages WHERE session_id = ? ORDER BY id LIMIT ? OFFSET ?",
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Favorite, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ToggleFavorite flips a message's favorite flag and returns the new value.
func (s *Store) ToggleFavorite(messageID int64) (bool, error) {
	res, err := s.db.Exec("UPDATE messages SET favorite = NOT favorite WHERE id = ?", messageID)
	if err != nil {
		return false, fmt.Errorf("toggling favorite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, fmt.Errorf("message %d not found", messageID)
	}

	var favorite bool
	if err := s.db.QueryRow("SELECT favorite FROM messages WHERE id = ?", messageID).Scan(&favorite); err != nil {
		return false, fmt.Errorf("reading favorite: %w", err)
	}
	return favorite, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(sessionID int64) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) > 40 {
		return string(runes[:40])
	}
	return content
}
