//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "bad input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "bad input" {
		t.Errorf("Expected error message, got %v", got)
	}
}

type pingRepo struct{ err error }

func (p pingRepo) GetNote(context.Context, string) (*domain.Note, error) { return nil, nil }
func (p pingRepo) SetAssistantID(context.Context, string, string, string) error {
	return nil
}
func (p pingRepo) Ping(context.Context) error { return p.err }
func (p pingRepo) Close() error               { return nil }

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
		wantStore  string
	}{
		{name: "healthy", wantStatus: http.StatusOK, wantState: "healthy", wantStore: "ok"},
		{name: "store down", pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantState: "degraded", wantStore: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(pingRepo{err: tt.pingErr}, fixedCount(3)).RegisterHealth(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var got struct {
				Status   string            `json:"status"`
				Checks   map[string]string `json:"checks"`
				Sessions int               `json:"sessions"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Status != tt.wantState {
				t.Errorf("Expected status %q, got %q", tt.wantState, got.Status)
			}
			if got.Checks["note_store"] != tt.wantStore {
				t.Errorf("Expected note_store %q, got %q", tt.wantStore, got.Checks["note_store"])
			}
			if got.Sessions != 3 {
				t.Errorf("Expected 3 sessions, got %d", got.Sessions)
			}
		})
	}
}
