// Package admin serves the operator HTTP API. Every endpoint is restricted
// to loopback clients; all but login also require an admin token.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tilesync.ai/internal/auth"
	"tilesync.ai/internal/level"
	"tilesync.ai/internal/persistence/indexdb"
	"tilesync.ai/internal/tile"
	"tilesync.ai/internal/transport/ws"
)

type Server struct {
	level    *level.Level
	auth     *auth.Auth
	log      logrus.FieldLogger
	sessions func() ws.Stats
	index    *indexdb.SQLiteIndex

	timeout time.Duration
}

type Option func(*Server)

func WithSessions(fn func() ws.Stats) Option {
	return func(s *Server) { s.sessions = fn }
}

func WithIndex(idx *indexdb.SQLiteIndex) Option {
	return func(s *Server) { s.index = idx }
}

func NewServer(l *level.Level, a *auth.Auth, logger logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{level: l, auth: a, log: logger, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers the admin endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/admin/v1/login", s.loopback(http.HandlerFunc(s.handleLogin)))
	mux.Handle("/admin/v1/tiles", s.loopback(s.auth.RequireRole(auth.RoleAdmin, http.HandlerFunc(s.handleTiles))))
	mux.Handle("/admin/v1/stats", s.loopback(s.auth.RequireRole(auth.RoleAdmin, http.HandlerFunc(s.handleStats))))
	mux.Handle("/admin/v1/edits", s.loopback(s.auth.RequireRole(auth.RoleAdmin, http.HandlerFunc(s.handleEdits))))
}

func (s *Server) loopback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (s *Server) handleLogin(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(rw, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		req.Subject = "admin"
	}
	tok, err := s.auth.Login(req.Subject, req.Password)
	if err != nil {
		s.log.WithField("subject", req.Subject).Warn("admin login failed")
		http.Error(rw, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(rw, http.StatusOK, LoginResponse{Token: tok})
}

func (s *Server) handleTiles(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		tiles, err := s.level.RequestTiles(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, TilesResponse{Tick: s.level.CurrentTick(), Tiles: tiles})

	case http.MethodPost:
		var spec level.PlaceSpec
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 64*1024)).Decode(&spec); err != nil {
			http.Error(rw, "invalid json", http.StatusBadRequest)
			return
		}
		id, err := s.place(r.Context(), spec)
		switch {
		case errors.Is(err, level.ErrOccupied):
			http.Error(rw, err.Error(), http.StatusConflict)
		case errors.Is(err, tile.ErrUnknownKind):
			http.Error(rw, err.Error(), http.StatusBadRequest)
		case err != nil:
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		default:
			s.log.WithField("tile_id", id).WithField("kind", spec.Kind).Info("tile placed by admin")
			writeJSON(rw, http.StatusCreated, PlaceResponse{ID: id})
		}

	case http.MethodDelete:
		pos, err := posFromQuery(r)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		err = s.remove(r.Context(), pos)
		switch {
		case errors.Is(err, level.ErrNoTile):
			http.Error(rw, err.Error(), http.StatusNotFound)
		case err != nil:
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		default:
			rw.WriteHeader(http.StatusNoContent)
		}

	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStats(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := StatsResponse{Level: s.level.Metrics()}
	if s.sessions != nil {
		resp.Sessions = s.sessions()
	}
	if s.index != nil {
		st := s.index.Stats()
		resp.Index = &st
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleEdits(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.index == nil {
		http.Error(rw, "index disabled", http.StatusNotFound)
		return
	}
	q := indexdb.EditQuery{
		Player:   r.URL.Query().Get("player"),
		Rejected: r.URL.Query().Get("rejected") == "1",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	if r.URL.Query().Has("x") {
		p, err := posFromQuery(r)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		arr := p.ToArray()
		q.Pos = &arr
	}
	edits, err := s.index.QueryEdits(r.Context(), q)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	if edits == nil {
		edits = []level.EditAudit{}
	}
	writeJSON(rw, http.StatusOK, EditsResponse{Edits: edits})
}

func (s *Server) place(ctx context.Context, spec level.PlaceSpec) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp := make(chan level.PlaceResponse, 1)
	select {
	case s.level.Place() <- level.PlaceRequest{Spec: spec, Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.ID, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *Server) remove(ctx context.Context, pos tile.Pos) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp := make(chan error, 1)
	select {
	case s.level.Remove() <- level.RemoveRequest{Pos: pos, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func posFromQuery(r *http.Request) (tile.Pos, error) {
	var v [3]int32
	for i, key := range []string{"x", "y", "z"} {
		n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 32)
		if err != nil {
			return tile.Pos{}, errors.New("x, y and z query parameters are required")
		}
		v[i] = int32(n)
	}
	return tile.Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
