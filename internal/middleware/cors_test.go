package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		patterns        []string
		origin          string
		wantAllowOrigin string
		wantCredentials bool
	}{
		{name: "wildcard", patterns: []string{"*"}, origin: "https://app.example.com", wantAllowOrigin: "https://app.example.com"},
		{name: "exact origin", patterns: []string{"https://app.example.com"}, origin: "https://app.example.com", wantAllowOrigin: "https://app.example.com", wantCredentials: true},
		{name: "exact host", patterns: []string{"app.example.com"}, origin: "https://app.example.com", wantAllowOrigin: "https://app.example.com", wantCredentials: true},
		{name: "host pattern", patterns: []string{"*.example.org"}, origin: "https://notes.example.org", wantAllowOrigin: "https://notes.example.org"},
		{name: "not allowed", patterns: []string{"app.example.com"}, origin: "https://evil.example.net"},
		{name: "no origin header", patterns: []string{"*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.patterns)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("Expected handler to run, got status %d", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowOrigin {
				t.Errorf("Expected Allow-Origin %q, got %q", tt.wantAllowOrigin, got)
			}
			gotCreds := w.Header().Get("Access-Control-Allow-Credentials") == "true"
			if gotCreds != tt.wantCredentials {
				t.Errorf("Expected credentials %v, got %v", tt.wantCredentials, gotCreds)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/health/ready", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if called {
		t.Error("preflight must not reach the next handler")
	}
}
