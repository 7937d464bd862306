package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/ashureev/notechat/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements NoteRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed note repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS notes (
		note_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		assistant_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetNote retrieves a note by its id.
func (s *SQLiteStore) GetNote(ctx context.Context, noteID string) (*domain.Note, error) {
	query := `
		SELECT note_id, user_id, title, transcript, assistant_id
		FROM notes WHERE note_id = ?`

	var note domain.Note
	var assistantID sql.NullString
	err := s.db.QueryRowContext(ctx, query, noteID).Scan(
		&note.ID, &note.UserID, &note.Title, &note.Transcript, &assistantID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan note row: %w", err)
	}
	note.AssistantID = assistantID.String

	return &note, nil
}

// UpsertNote creates or updates a note record. An existing assistant id is
// preserved unless the incoming note carries one.
func (s *SQLiteStore) UpsertNote(ctx context.Context, note *domain.Note) error {
	query := `
	INSERT INTO notes (note_id, user_id, title, transcript, assistant_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(note_id) DO UPDATE SET
		user_id = excluded.user_id,
		title = excluded.title,
		transcript = excluded.transcript,
		assistant_id = COALESCE(excluded.assistant_id, notes.assistant_id),
		updated_at = excluded.updated_at`

	var assistantID interface{}
	if note.AssistantID != "" {
		assistantID = note.AssistantID
	}

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, query,
		note.ID, note.UserID, note.Title, note.Transcript, assistantID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

// SetAssistantID stores the assistant reference with compare-and-set semantics.
// SQLITE_BUSY and "database is locked" errors are retried with exponential backoff.
func (s *SQLiteStore) SetAssistantID(ctx context.Context, noteID, assistantID, expectedID string) error {
	var err error
	for i := 0; i < busyRetries; i++ {
		err = s.setAssistantIDOnce(ctx, noteID, assistantID, expectedID)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < busyRetries-1 {
			delay := busyBaseDelay * time.Duration(1<<i) // 50ms, 100ms
			slog.Debug("SetAssistantID hit a locked database, retrying",
				"note_id", noteID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("set assistant id for %s after %d attempts: %w", noteID, busyRetries, err)
}

func (s *SQLiteStore) setAssistantIDOnce(ctx context.Context, noteID, assistantID, expectedID string) error {
	query := `UPDATE notes SET assistant_id = ?, updated_at = ?
		WHERE note_id = ? AND COALESCE(assistant_id, '') = ?`

	var value interface{}
	if assistantID != "" {
		value = assistantID
	}

	result, err := s.db.ExecContext(ctx, query, value, time.Now().Unix(), noteID, expectedID)
	if err != nil {
		return fmt.Errorf("update assistant_id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	note, err := s.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil {
		return ErrNotFound
	}
	slog.Warn("SetAssistantID lost the compare-and-set", "note_id", noteID, "expected_id", expectedID, "current_id", note.AssistantID)
	return ErrConflict
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var (
	_ NoteRepository = (*SQLiteStore)(nil)
	_ NoteWriter     = (*SQLiteStore)(nil)
)
