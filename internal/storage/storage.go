// Package storage keeps draftling's local state: the offline feedback
// spool (learn/remember calls queued while the reply service is down) and
// the history of committed insertions.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"draftling/internal/types"
)

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS feedback_queue (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL,
    interaction_type TEXT NOT NULL DEFAULT '',
    suggestion       TEXT NOT NULL DEFAULT '',
    suggestion_index INTEGER NOT NULL DEFAULT 0,
    original_email   TEXT NOT NULL DEFAULT '',
    feedback         TEXT NOT NULL DEFAULT '',
    context_blob     TEXT NOT NULL DEFAULT '',
    created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS insert_history (
    id          INTEGER PRIMARY KEY,
    host        TEXT NOT NULL,
    kind        INTEGER NOT NULL,
    delivery    INTEGER NOT NULL,
    text        TEXT NOT NULL,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	},
}

// DefaultDir returns draftling's data directory, also used for the log
// file and context blobs.
func DefaultDir() (string, error) {
	if dir := os.Getenv("DRAFTLING_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "draftling"), nil
}

// DefaultDBPath returns the default database file path.
func DefaultDBPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "draftling.db"), nil
}

// OpenDB opens (creating if needed) the database at path and brings its
// schema up to date.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// QueueFeedback stores a feedback event for a later flush.
func QueueFeedback(db *sql.DB, ev types.FeedbackEvent) error {
	_, err := db.Exec(`INSERT INTO feedback_queue
		(id, kind, interaction_type, suggestion, suggestion_index, original_email, feedback, context_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.InteractionType, ev.Suggestion, ev.SuggestionIndex,
		ev.OriginalEmail, ev.Feedback, ev.ContextBlob)
	if err != nil {
		return fmt.Errorf("queue feedback: %w", err)
	}
	return nil
}

// PendingFeedback returns up to limit queued events, oldest first.
func PendingFeedback(db *sql.DB, limit int) ([]types.FeedbackEvent, error) {
	rows, err := db.Query(`SELECT id, kind, interaction_type, suggestion, suggestion_index,
		original_email, feedback, context_blob, created_at
		FROM feedback_queue ORDER BY created_at, rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var events []types.FeedbackEvent
	for rows.Next() {
		var ev types.FeedbackEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.InteractionType, &ev.Suggestion,
			&ev.SuggestionIndex, &ev.OriginalEmail, &ev.Feedback, &ev.ContextBlob,
			&ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteFeedback removes one flushed event and its context blob file,
// if any.
func DeleteFeedback(db *sql.DB, id string) error {
	var blob string
	if err := db.QueryRow("SELECT context_blob FROM feedback_queue WHERE id = ?", id).Scan(&blob); err == nil && blob != "" {
		os.Remove(blob)
	}
	if _, err := db.Exec("DELETE FROM feedback_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete feedback %s: %w", id, err)
	}
	return nil
}

// RecordInsertion appends one committed insertion to the history.
func RecordInsertion(db *sql.DB, ins types.Insertion) error {
	_, err := db.Exec(`INSERT INTO insert_history (host, kind, delivery, text)
		VALUES (?, ?, ?, ?)`,
		ins.Host, int(ins.Kind), int(ins.Delivery), ins.Text)
	if err != nil {
		return fmt.Errorf("record insertion: %w", err)
	}
	return nil
}

// History returns the most recent insertions, newest first.
func History(db *sql.DB, limit int) ([]types.Insertion, error) {
	rows, err := db.Query(`SELECT id, host, kind, delivery, text, created_at
		FROM insert_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var items []types.Insertion
	for rows.Next() {
		var ins types.Insertion
		var kind, delivery int
		var created time.Time
		if err := rows.Scan(&ins.ID, &ins.Host, &kind, &delivery, &ins.Text, &created); err != nil {
			return nil, fmt.Errorf("scan insertion: %w", err)
		}
		ins.Kind = types.SurfaceKind(kind)
		ins.Delivery = types.Delivery(delivery)
		ins.CreatedAt = created
		items = append(items, ins)
	}
	return items, rows.Err()
}
