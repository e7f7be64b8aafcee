package reminders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
)

func cronRouter(w *Worker, secret string) http.Handler {
	r := chi.NewRouter()
	NewHandler(w, secret, nil).Routes(r)
	return r
}

func TestTriggerRequiresSecret(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	router := cronRouter(newWorker(repo, &recordingDispatcher{}), "topsecret")

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong secret", "nope", http.StatusUnauthorized},
		{"correct secret", "topsecret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cron/reminders", nil)
			if tt.secret != "" {
				req.Header.Set("X-Cron-Secret", tt.secret)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTriggerUnconfiguredSecretAlwaysDenied(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	router := cronRouter(newWorker(repo, &recordingDispatcher{}), "")

	req := httptest.NewRequest(http.MethodPost, "/cron/reminders", nil)
	req.Header.Set("X-Cron-Secret", "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTriggerReturnsReport(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	seedConfirmed(t, repo, "appt-1", 24*time.Hour)
	seedConfirmed(t, repo, "appt-2", time.Hour)
	router := cronRouter(newWorker(repo, &recordingDispatcher{}), "topsecret")

	req := httptest.NewRequest(http.MethodPost, "/cron/reminders", nil)
	req.Header.Set("X-Cron-Secret", "topsecret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Checked int  `json:"checked"`
		Sent24h int  `json:"sent24h"`
		Sent1h  int  `json:"sent1h"`
		Errors  int  `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Checked != 2 || body.Sent24h != 1 || body.Sent1h != 1 || body.Errors != 0 {
		t.Fatalf("body = %+v", body)
	}
}
