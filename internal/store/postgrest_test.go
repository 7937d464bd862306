package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST serves the notes table the way PostgREST does for the
// filters the store sends: noteId=eq.X plus either or=(...) or assistantId=eq.Y.
type fakePostgREST struct {
	mu    sync.Mutex
	rows  map[string]map[string]any
	rls   bool // PATCH matches nothing, like a write filtered by row-level security
	patch []patchRequest
}

type patchRequest struct {
	prefer string
	query  url.Values
}

func newFakePostgREST(t *testing.T, rows ...map[string]any) (*fakePostgREST, *PostgRESTStore) {
	t.Helper()
	f := &fakePostgREST{rows: make(map[string]map[string]any)}
	for _, r := range rows {
		f.rows[r["noteId"].(string)] = r
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := NewPostgREST(srv.URL, "service-key", "")
	require.NoError(t, err)
	return f, s
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rest/v1/notes" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
		return
	}
	if r.Header.Get("apikey") != "service-key" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"PGRST301","message":"no api key"}`))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	row, ok := f.rows[strings.TrimPrefix(q.Get("noteId"), "eq.")]
	out := []map[string]any{}

	switch r.Method {
	case http.MethodGet:
		if ok {
			out = append(out, row)
		}
	case http.MethodPatch:
		f.patch = append(f.patch, patchRequest{prefer: r.Header.Get("Prefer"), query: q})
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"PGRST102","message":"bad body"}`))
			return
		}
		if ok && !f.rls && matchesAssistantFilter(row, q) {
			row["assistantId"] = body["assistantId"]
			if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
				out = append(out, row)
			}
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"code":"405","message":"method not allowed"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func matchesAssistantFilter(row map[string]any, q url.Values) bool {
	current, _ := row["assistantId"].(string)
	if or := q["or"]; len(or) > 0 {
		return or[0] == "(assistantId.is.null,assistantId.eq.)" && current == ""
	}
	if eq := q["assistantId"]; len(eq) > 0 {
		return eq[0] == "eq."+current
	}
	return true
}

func (f *fakePostgREST) patches() []patchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchRequest(nil), f.patch...)
}

func (f *fakePostgREST) stored(noteID string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[noteID]["assistantId"]
}

func TestPostgRESTStore_GetNote(t *testing.T) {
	_, s := newFakePostgREST(t, map[string]any{
		"noteId": "n1", "userId": "u1", "title": "Standup",
		"transcript": nil, "assistantId": nil,
	})
	ctx := context.Background()

	note, err := s.GetNote(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "u1", note.UserID)
	assert.Equal(t, "Standup", note.Title)
	assert.Empty(t, note.Transcript)
	assert.False(t, note.HasAssistant())

	missing, err := s.GetNote(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgRESTStore_SetAssistantIDStoresWhenUnset(t *testing.T) {
	f, s := newFakePostgREST(t, map[string]any{"noteId": "n1", "userId": "u1", "assistantId": nil})

	require.NoError(t, s.SetAssistantID(context.Background(), "n1", "asst_1", ""))
	assert.Equal(t, "asst_1", f.stored("n1"))

	patches := f.patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "return=representation", patches[0].prefer)
	assert.Equal(t, "(assistantId.is.null,assistantId.eq.)", patches[0].query.Get("or"))
	assert.Equal(t, "eq.n1", patches[0].query.Get("noteId"))
}

func TestPostgRESTStore_SetAssistantIDReplacesExpected(t *testing.T) {
	f, s := newFakePostgREST(t, map[string]any{"noteId": "n1", "userId": "u1", "assistantId": "asst_old"})

	require.NoError(t, s.SetAssistantID(context.Background(), "n1", "asst_new", "asst_old"))
	assert.Equal(t, "asst_new", f.stored("n1"))
	assert.Equal(t, "eq.asst_old", f.patches()[0].query.Get("assistantId"))
}

func TestPostgRESTStore_SetAssistantIDConflict(t *testing.T) {
	f, s := newFakePostgREST(t, map[string]any{"noteId": "n1", "userId": "u1", "assistantId": "asst_winner"})

	err := s.SetAssistantID(context.Background(), "n1", "asst_loser", "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "asst_winner", f.stored("n1"))
}

func TestPostgRESTStore_SetAssistantIDMissingNote(t *testing.T) {
	_, s := newFakePostgREST(t)

	err := s.SetAssistantID(context.Background(), "ghost", "asst_1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgRESTStore_FilteredWriteIsNotAConflict(t *testing.T) {
	f, s := newFakePostgREST(t, map[string]any{"noteId": "n1", "userId": "u1", "assistantId": nil})
	f.rls = true

	err := s.SetAssistantID(context.Background(), "n1", "asst_1", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "no row updated")
	assert.Nil(t, f.stored("n1"))
}

func TestPostgRESTStore_ErrorResponse(t *testing.T) {
	_, s := newFakePostgREST(t)
	s.table = "missing"

	_, err := s.GetNote(context.Background(), "n1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
	assert.Error(t, s.Ping(context.Background()))
}

func TestPostgRESTStore_Ping(t *testing.T) {
	_, s := newFakePostgREST(t)
	assert.NoError(t, s.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}

func TestNewPostgRESTRequiresCredentials(t *testing.T) {
	_, err := NewPostgREST("", "key", "notes")
	assert.Error(t, err)
	_, err = NewPostgREST("http://localhost", "", "notes")
	assert.Error(t, err)
}

