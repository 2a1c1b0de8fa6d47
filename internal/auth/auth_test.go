package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionCookie(t *testing.T, s *Sessions, uid uint) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	s.CreateSession(rec, uid)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("secret", nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, s, 42))

	uid, ok := s.ParseSession(req)
	if !ok || uid != 42 {
		t.Fatalf("expected uid 42, got %d %v", uid, ok)
	}
}

func TestSessionRejectsTamperingAndExpiry(t *testing.T) {
	s := NewSessions("secret", nil)
	c := sessionCookie(t, s, 42)

	other := NewSessions("another", nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if _, ok := other.ParseSession(req); ok {
		t.Fatal("cookie signed with another secret must be rejected")
	}

	forged := *c
	forged.Value = "1" + c.Value[2:]
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&forged)
	if _, ok := s.ParseSession(req); ok {
		t.Fatal("forged user id must be rejected")
	}

	s.now = func() time.Time { return time.Now().Add(15 * 24 * time.Hour) }
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if _, ok := s.ParseSession(req); ok {
		t.Fatal("expired cookie must be rejected")
	}
}

func TestRequireAuth(t *testing.T) {
	active := map[uint]bool{1: true}
	s := NewSessions("secret", func(_ context.Context, uid uint) bool { return active[uid] })
	h := s.Middleware(s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Actor(r.Context()) == nil {
			t.Error("actor missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name string
		uid  uint
		want int
	}{
		{"anonymous", 0, http.StatusUnauthorized},
		{"active user", 1, http.StatusNoContent},
		{"disabled user", 2, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
			if tt.uid != 0 {
				req.AddCookie(sessionCookie(t, s, tt.uid))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rec.Code)
			}
		})
	}
}
