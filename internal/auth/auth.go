// Package auth issues and checks the HS256 tokens used by player
// connections and the admin API.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"

	KeyFile    = "jwt.key"
	minKeySize = 32
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrForbidden    = errors.New("auth: role not allowed")
	ErrBadPassword  = errors.New("auth: invalid credentials")
)

type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type Auth struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	adminHash []byte
}

func New(key []byte, issuer string, ttl time.Duration) (*Auth, error) {
	if len(key) < minKeySize {
		return nil, fmt.Errorf("auth: key must be at least %d bytes", minKeySize)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Open loads dataDir/jwt.key, creating it on first use.
func Open(dataDir, issuer string, ttl time.Duration) (*Auth, error) {
	key, err := LoadOrCreateKey(filepath.Join(dataDir, KeyFile))
	if err != nil {
		return nil, err
	}
	return New(key, issuer, ttl)
}

func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil && len(key) >= minKeySize {
		return key, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key: %w", err)
	}
	key = make([]byte, minKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	return key, nil
}

func (a *Auth) Issue(subject, role string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("auth: empty subject")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  a.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(a.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

func (a *Auth) Parse(tok string) (Claims, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Claims{}, ErrMissingToken
	}
	t, err := jwt.Parse(tok, func(*jwt.Token) (interface{}, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !t.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	c := Claims{Subject: sub}
	c.Role, _ = mc["role"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// TokenFromRequest reads a Bearer header, falling back to ?token=.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// Authorize parses the request token and checks its role. An empty role
// accepts any valid token.
func (a *Auth) Authorize(r *http.Request, role string) (Claims, error) {
	c, err := a.Parse(TokenFromRequest(r))
	if err != nil {
		return Claims{}, err
	}
	if role != "" && c.Role != role {
		return Claims{}, ErrForbidden
	}
	return c, nil
}

// RequireRole protects next; the parsed claims are stored in the request
// context.
func (a *Auth) RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := a.Authorize(r, role)
		switch {
		case errors.Is(err, ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		case err != nil:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// SetAdminPasswordHash enables Login. An empty hash disables it.
func (a *Auth) SetAdminPasswordHash(hash string) { a.adminHash = []byte(hash) }

// Login exchanges the admin password for an admin token.
func (a *Auth) Login(subject, password string) (string, error) {
	if len(a.adminHash) == 0 {
		return "", ErrBadPassword
	}
	if err := bcrypt.CompareHashAndPassword(a.adminHash, []byte(password)); err != nil {
		return "", ErrBadPassword
	}
	return a.Issue(subject, RoleAdmin)
}
