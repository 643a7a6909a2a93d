package auth

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := New(bytes.Repeat([]byte{7}, 32), "test", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestIssueParse(t *testing.T) {
	a := newTestAuth(t)
	tok, err := a.Issue("alice", RolePlayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Subject != "alice" || c.Role != RolePlayer {
		t.Fatalf("claims=%+v", c)
	}
	if c.ExpiresAt.IsZero() {
		t.Fatalf("missing expiry")
	}
}

func TestParse_Rejects(t *testing.T) {
	a := newTestAuth(t)
	other, _ := New(bytes.Repeat([]byte{9}, 32), "test", time.Hour)
	foreign, _ := other.Issue("alice", RolePlayer)

	otherIssuer, _ := New(bytes.Repeat([]byte{7}, 32), "elsewhere", time.Hour)
	wrongIss, _ := otherIssuer.Issue("alice", RolePlayer)

	if _, err := a.Parse(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("empty: err=%v", err)
	}
	for name, tok := range map[string]string{"foreign key": foreign, "issuer": wrongIss, "garbage": "a.b.c"} {
		if _, err := a.Parse(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: err=%v want ErrInvalidToken", name, err)
		}
	}
}

func TestParse_Expired(t *testing.T) {
	a := newTestAuth(t)
	tok, _ := a.Issue("alice", RolePlayer)
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err=%v want ErrInvalidToken", err)
	}
}

func TestRequireRole(t *testing.T) {
	a := newTestAuth(t)
	player, _ := a.Issue("alice", RolePlayer)
	admin, _ := a.Issue("ops", RoleAdmin)

	h := a.RequireRole(RoleAdmin, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		if !ok {
			t.Errorf("claims missing from context")
		}
		_, _ = w.Write([]byte(c.Subject))
	}))

	cases := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"none", httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusUnauthorized},
		{"player", httptest.NewRequest(http.MethodGet, "/x?token="+player, nil), http.StatusForbidden},
		{"admin query", httptest.NewRequest(http.MethodGet, "/x?token="+admin, nil), http.StatusOK},
	}
	bearer := httptest.NewRequest(http.MethodGet, "/x", nil)
	bearer.Header.Set("Authorization", "Bearer "+admin)
	cases = append(cases, struct {
		name string
		req  *http.Request
		code int
	}{"admin bearer", bearer, http.StatusOK})

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, tc.req)
		if rr.Code != tc.code {
			t.Fatalf("%s: code=%d want %d", tc.name, rr.Code, tc.code)
		}
		if tc.code == http.StatusOK && rr.Body.String() != "ops" {
			t.Fatalf("%s: body=%q", tc.name, rr.Body.String())
		}
	}
}

func TestLogin(t *testing.T) {
	a := newTestAuth(t)
	if _, err := a.Login("ops", "anything"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("login without hash: err=%v", err)
	}
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("short password accepted")
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a.SetAdminPasswordHash(hash)
	if _, err := a.Login("ops", "wrong horse"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("wrong password: err=%v", err)
	}
	tok, err := a.Login("ops", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil || c.Role != RoleAdmin || c.Subject != "ops" {
		t.Fatalf("claims=%+v err=%v", c, err)
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", KeyFile)
	k1, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	k2, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(k1, k2) || len(k1) != minKeySize {
		t.Fatalf("key not persisted")
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("key mode=%v", st.Mode().Perm())
	}
}
