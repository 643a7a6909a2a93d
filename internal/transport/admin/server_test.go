package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tilesync.ai/internal/auth"
	"tilesync.ai/internal/level"
	"tilesync.ai/internal/logging"
	"tilesync.ai/internal/persistence/indexdb"
	"tilesync.ai/internal/transport/ws"
)

type harness struct {
	lvl   *level.Level
	auth  *auth.Auth
	idx   *indexdb.SQLiteIndex
	srv   *httptest.Server
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	a, err := auth.New(bytes.Repeat([]byte{7}, 32), "test", time.Hour)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	lvl := level.New(level.Config{TickRateHz: 100, ViewRadius: 1}, level.WithEditLogger(idx))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = lvl.Run(ctx) }()

	s := NewServer(lvl, a, logging.Discard(),
		WithIndex(idx),
		WithSessions(func() ws.Stats { return ws.Stats{Sessions: 2, SessionsTotal: 5} }),
	)
	mux := http.NewServeMux()
	s.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = idx.Close()
	})

	tok, err := a.Issue("ops", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return &harness{lvl: lvl, auth: a, idx: idx, srv: srv, token: tok}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", name))
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func decodeValidate(t *testing.T, resp *http.Response, schema string, out any) {
	t.Helper()
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var v any
	if err := json.Unmarshal(raw.Bytes(), &v); err != nil {
		t.Fatalf("body is not json: %v: %s", err, raw.String())
	}
	if err := compile(t, schema).Validate(v); err != nil {
		t.Fatalf("validate %s: %v\n%s", schema, err, raw.String())
	}
	if out != nil {
		if err := json.Unmarshal(raw.Bytes(), out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

func TestTiles_PlaceListRemove(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/admin/v1/tiles", level.PlaceSpec{
		Kind: "Sign", Pos: [3]int32{1, 64, 1}, Creator: "alice", Text: []string{"hi"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place status=%d", resp.StatusCode)
	}
	var placed PlaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
		t.Fatalf("decode place: %v", err)
	}
	if placed.ID != 1 {
		t.Fatalf("id=%d want 1", placed.ID)
	}

	resp = h.do(t, http.MethodPost, "/admin/v1/tiles", level.PlaceSpec{Kind: "Sign", Pos: [3]int32{1, 64, 1}})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("occupied status=%d want 409", resp.StatusCode)
	}
	resp = h.do(t, http.MethodPost, "/admin/v1/tiles", level.PlaceSpec{Kind: "Anvil", Pos: [3]int32{9, 64, 9}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown kind status=%d want 400", resp.StatusCode)
	}

	resp = h.do(t, http.MethodGet, "/admin/v1/tiles", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status=%d", resp.StatusCode)
	}
	var list TilesResponse
	decodeValidate(t, resp, "tiles.schema.json", &list)
	if len(list.Tiles) != 1 || list.Tiles[0].Kind != "Sign" || list.Tiles[0].Pos != [3]int{1, 64, 1} {
		t.Fatalf("tiles=%+v", list.Tiles)
	}
	if list.Tiles[0].Chunk != "0:0" {
		t.Fatalf("chunk=%q", list.Tiles[0].Chunk)
	}

	resp = h.do(t, http.MethodDelete, "/admin/v1/tiles?x=1&y=64&z=1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	resp = h.do(t, http.MethodDelete, "/admin/v1/tiles?x=1&y=64&z=1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status=%d want 404", resp.StatusCode)
	}
	resp = h.do(t, http.MethodDelete, "/admin/v1/tiles?x=1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("partial pos status=%d want 400", resp.StatusCode)
	}
}

func TestStats_Schema(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/admin/v1/tiles", level.PlaceSpec{Kind: "Furnace", Pos: [3]int32{0, 0, 0}})

	deadline := time.Now().Add(2 * time.Second)
	for h.lvl.Metrics().Tiles == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp := h.do(t, http.MethodGet, "/admin/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status=%d", resp.StatusCode)
	}
	var st StatsResponse
	decodeValidate(t, resp, "stats.schema.json", &st)
	if st.Level.Tiles != 1 {
		t.Fatalf("level tiles=%d want 1", st.Level.Tiles)
	}
	if st.Sessions.SessionsTotal != 5 {
		t.Fatalf("sessions=%+v", st.Sessions)
	}
	if st.Index == nil || st.Index.QueueCapacity == 0 {
		t.Fatalf("index stats missing: %+v", st.Index)
	}
}

func TestEdits_QueryIndex(t *testing.T) {
	h := newHarness(t)
	_ = h.idx.WriteEdit(level.EditAudit{Tick: 3, Player: "bob", TileID: 1, Kind: "Sign", Pos: [3]int{1, 2, 3}, Accepted: true})
	_ = h.idx.WriteEdit(level.EditAudit{Tick: 4, Player: "bob", TileID: 1, Kind: "Sign", Pos: [3]int{1, 2, 3}, Reason: level.ReasonRejected})
	_ = h.idx.WriteEdit(level.EditAudit{Tick: 5, Player: "eve", Pos: [3]int{9, 9, 9}, Reason: level.ReasonNoTile})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	resp := h.do(t, http.MethodGet, "/admin/v1/edits?player=bob", nil)
	var got EditsResponse
	decodeValidate(t, resp, "edits.schema.json", &got)
	if len(got.Edits) != 2 || got.Edits[0].Tick != 4 {
		t.Fatalf("bob edits=%+v", got.Edits)
	}

	resp = h.do(t, http.MethodGet, "/admin/v1/edits?rejected=1", nil)
	decodeValidate(t, resp, "edits.schema.json", &got)
	if len(got.Edits) != 2 || got.Edits[0].Player != "eve" {
		t.Fatalf("rejected edits=%+v", got.Edits)
	}

	resp = h.do(t, http.MethodGet, "/admin/v1/edits?x=9&y=9&z=9", nil)
	decodeValidate(t, resp, "edits.schema.json", &got)
	if len(got.Edits) != 1 || got.Edits[0].Reason != level.ReasonNoTile {
		t.Fatalf("pos edits=%+v", got.Edits)
	}

	resp = h.do(t, http.MethodGet, "/admin/v1/edits?player=nobody", nil)
	decodeValidate(t, resp, "edits.schema.json", &got)
	if len(got.Edits) != 0 {
		t.Fatalf("nobody edits=%+v", got.Edits)
	}
}

func TestAuth_RequiresAdmin(t *testing.T) {
	h := newHarness(t)

	h.token = ""
	if resp := h.do(t, http.MethodGet, "/admin/v1/tiles", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status=%d want 401", resp.StatusCode)
	}

	tok, err := h.auth.Issue("p1", auth.RolePlayer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	h.token = tok
	if resp := h.do(t, http.MethodGet, "/admin/v1/stats", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("player token status=%d want 403", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.token = ""

	if resp := h.do(t, http.MethodPost, "/admin/v1/login", LoginRequest{Password: "whatever1"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login without hash status=%d want 401", resp.StatusCode)
	}

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h.auth.SetAdminPasswordHash(hash)

	if resp := h.do(t, http.MethodPost, "/admin/v1/login", LoginRequest{Password: "wrong horse"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d want 401", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodGet, "/admin/v1/login", nil); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET login status=%d want 405", resp.StatusCode)
	}

	resp := h.do(t, http.MethodPost, "/admin/v1/login", LoginRequest{Password: "correct horse"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}
	var lr LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := h.auth.Parse(lr.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Role != auth.RoleAdmin || c.Subject != "admin" {
		t.Fatalf("claims=%+v", c)
	}

	h.token = lr.Token
	if resp := h.do(t, http.MethodGet, "/admin/v1/stats", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("stats with login token status=%d", resp.StatusCode)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"::1":            true,
		"10.0.0.4:1234":  false,
		"example.com:80": false,
		"":               false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}
