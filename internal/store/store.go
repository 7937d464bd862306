// Package store provides access to the note records chat sessions are grounded on.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/notechat/internal/domain"
)

var (
	// ErrConflict is returned by SetAssistantID when the stored assistant id
	// no longer matches the expected one (optimistic locking).
	ErrConflict = errors.New("optimistic lock failed: assistant_id does not match expected value")

	// ErrNotFound is returned by writes that target a missing note.
	ErrNotFound = errors.New("note not found")
)

// NoteRepository defines the interface for reading and updating note records.
type NoteRepository interface {
	// GetNote retrieves a note by its id. Returns nil, nil if no note matches.
	GetNote(ctx context.Context, noteID string) (*domain.Note, error)

	// SetAssistantID stores the assistant reference on a note.
	// The update only happens if the current assistant id equals expectedID
	// (empty means "not provisioned yet"); otherwise ErrConflict is returned.
	SetAssistantID(ctx context.Context, noteID, assistantID, expectedID string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NoteWriter is implemented by repositories that own their note records
// and can therefore create them (used for local development seeding).
type NoteWriter interface {
	UpsertNote(ctx context.Context, note *domain.Note) error
}
