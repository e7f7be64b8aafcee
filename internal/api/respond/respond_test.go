package respond

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestOKEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, "done", map[string]int{"count": 3})

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %s", ct)
	}

	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !env.Success {
		t.Error("expected success=true")
	}
	if env.Message != "done" {
		t.Errorf("expected message done, got %s", env.Message)
	}
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { BadRequest(w, "bad") }, 400},
		{"unauthorized", func(w *httptest.ResponseRecorder) { Unauthorized(w, "no token") }, 401},
		{"forbidden", func(w *httptest.ResponseRecorder) { Forbidden(w, "not yours") }, 403},
		{"not found", func(w *httptest.ResponseRecorder) { NotFound(w, "missing") }, 404},
		{"conflict", func(w *httptest.ResponseRecorder) { Conflict(w, "wrong state") }, 409},
		{"internal", func(w *httptest.ResponseRecorder) { Internal(w) }, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			var body ErrorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error == "" {
				t.Error("expected non-empty error field")
			}
		})
	}
}
