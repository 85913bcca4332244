package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/moodtracker/internal/database"
	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/otp"
	"github.com/dukerupert/moodtracker/internal/store"
)

type fakeSender struct {
	mu    sync.Mutex
	count int
}

func (f *fakeSender) Send(context.Context, string, string) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return nil
}

func setupServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Config{
		Region:    "US",
		BaseURL:   "http://example.com",
		SecretKey: "test-secret",
		Location:  time.UTC,
	}, otp.NewMemoryStore(), &fakeSender{}, nil, logger)
	return srv, srv.Router()
}

func TestHealth(t *testing.T) {
	_, h := setupServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStaticAssets(t *testing.T) {
	_, h := setupServer(t)

	for _, path := range []string{"/static/calendar.js", "/static/style.css"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestUnknownPath(t *testing.T) {
	_, h := setupServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	_, h := setupServer(t)

	tests := map[string]int{
		"/calendar":                  http.StatusSeeOther,
		"/api/mood_entry/2025-05-18": http.StatusUnauthorized,
		"/ws":                        http.StatusUnauthorized,
	}
	for path, want := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	_, h := setupServer(t)

	var last int
	for i := 0; i < loginRateLimit+1; i++ {
		req := httptest.NewRequest("POST", "/login", strings.NewReader(url.Values{"phone_number": {"+12015550123"}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
		if i < loginRateLimit && rec.Code != http.StatusSeeOther {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusSeeOther)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("request %d: status = %d, want %d", loginRateLimit+1, last, http.StatusTooManyRequests)
	}
}

func TestSMSWebhookWired(t *testing.T) {
	srv, h := setupServer(t)
	ctx := context.Background()

	ids := store.NewIdentityStore(srv.db)
	subs := store.NewSubscriberStore(srv.db)
	ident, err := ids.Create(ctx, "+12015550123")
	if err != nil {
		t.Fatal(err)
	}
	yes := true
	if _, err := subs.Upsert(ctx, ident.ID, ident.PhoneNumber, model.SubscriberFields{IsSubscribed: &yes}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/sms/receive", strings.NewReader(url.Values{"From": {"+12015550123"}, "Body": {"🎉 party"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	entries, err := store.NewMoodStore(srv.db).ListAll(ctx, ident.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Emoji != "🎉" {
		t.Errorf("entries = %+v", entries)
	}
}
