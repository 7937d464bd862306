package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/supabase-community/postgrest-go"
)

const noteColumns = "noteId,userId,title,transcript,assistantId"

// PostgRESTStore implements NoteRepository on top of the Supabase REST API.
// The postgrest client carries no context; ctx is only checked before each call.
type PostgRESTStore struct {
	client *postgrest.Client
	table  string
}

// NewPostgREST creates a repository for the notes table of a Supabase project.
func NewPostgREST(supabaseURL, apiKey, table string) (*PostgRESTStore, error) {
	if supabaseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if table == "" {
		table = "notes"
	}

	restURL := strings.TrimRight(supabaseURL, "/") + "/rest/v1"
	client := postgrest.NewClient(restURL, "public", map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("create postgrest client: %w", client.ClientError)
	}

	return &PostgRESTStore{client: client, table: table}, nil
}

// GetNote retrieves a note by its id.
func (s *PostgRESTStore) GetNote(ctx context.Context, noteID string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var notes []domain.Note
	_, err := s.client.From(s.table).
		Select(noteColumns, "", false).
		Eq("noteId", noteID).
		ExecuteTo(&notes)
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

// SetAssistantID stores the assistant reference, filtering the update on the
// expected current value so a concurrent provisioning is detected. A write that
// matched no row while the stored value still equals expectedID is reported as a
// plain error, not ErrConflict.
func (s *PostgRESTStore) SetAssistantID(ctx context.Context, noteID, assistantID, expectedID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var value interface{}
	if assistantID != "" {
		value = assistantID
	}

	query := s.client.From(s.table).
		Update(map[string]interface{}{"assistantId": value}, "representation", "").
		Eq("noteId", noteID)
	if expectedID == "" {
		query = query.Or("assistantId.is.null,assistantId.eq.", "")
	} else {
		query = query.Eq("assistantId", expectedID)
	}

	var updated []domain.Note
	if _, err := query.ExecuteTo(&updated); err != nil {
		return fmt.Errorf("update note assistant: %w", err)
	}
	if len(updated) > 0 {
		return nil
	}

	// An empty result is also what row-level security returns for a filtered
	// write, so only a changed value counts as a lost compare-and-set.
	note, err := s.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil {
		return ErrNotFound
	}
	if note.AssistantID != expectedID {
		return ErrConflict
	}
	return fmt.Errorf("update note assistant %s: no row updated", noteID)
}

// Ping verifies the REST endpoint answers for the notes table.
func (s *PostgRESTStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(s.table).Select("noteId", "", false).Limit(1, "").Execute(); err != nil {
		return fmt.Errorf("ping notes table: %w", err)
	}
	return nil
}

// Close is a no-op; the REST client holds no persistent connection.
func (s *PostgRESTStore) Close() error {
	return nil
}

var _ NoteRepository = (*PostgRESTStore)(nil)
