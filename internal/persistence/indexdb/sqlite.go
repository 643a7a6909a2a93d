package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tilesync.ai/internal/level"
)

// SQLiteIndex is a queryable read model of edit audits and tick stats. Writes
// are queued and never block the caller; the JSONL logs remain the source of
// truth when the queue overflows.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards sends on ch against Close; senders hold it shared.
	mu     sync.RWMutex
	closed atomic.Bool

	dropTick  atomic.Uint64
	dropEdit  atomic.Uint64
	writeFail atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEdit
	reqFlush
)

type req struct {
	kind reqKind

	tick level.TickStats
	edit level.EditAudit
	done chan struct{}
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropEditTotal  uint64 `json:"drop_edit_total"`
	WriteFailTotal uint64 `json:"write_fail_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			players INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			broadcasts INTEGER NOT NULL,
			packets INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			builds INTEGER NOT NULL,
			edits INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			step_ms REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS edits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			player TEXT NOT NULL,
			tile_id INTEGER,
			kind TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_player_tick ON edits(player, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_pos_tick ON edits(x, z, y, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry level.TickStats) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEdit(entry level.EditAudit) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEdit, edit: entry}:
	default:
		s.dropEdit.Add(1)
	}
	return nil
}

// Flush waits until every queued write is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil {
		return errors.New("index closed")
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return errors.New("index closed")
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropEditTotal:  s.dropEdit.Load(),
		WriteFailTotal: s.writeFail.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,players,tiles,broadcasts,packets,bytes,builds,edits,rejected,step_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertEdit, _ := s.db.Prepare(`INSERT OR REPLACE INTO edits(tick,seq,player,tile_id,kind,x,y,z,accepted,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertEdit != nil {
			_ = insertEdit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastEditTick uint64
		editSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFail.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			s.writeFail.Add(1)
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			if insertTick == nil {
				continue
			}
			if _, err := tx.Stmt(insertTick).Exec(
				int64(t.Tick), t.Players, t.Tiles, t.Broadcasts, t.Packets,
				t.Bytes, t.Builds, t.Edits, t.Rejected, t.StepMS,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqEdit:
			e := r.edit
			if e.Tick != lastEditTick {
				lastEditTick = e.Tick
				editSeq = 0
			}
			seq := editSeq
			editSeq++
			if insertEdit == nil {
				continue
			}
			raw, _ := json.Marshal(e)
			var tileID any
			if e.TileID != 0 {
				tileID = e.TileID
			}
			if _, err := tx.Stmt(insertEdit).Exec(
				int64(e.Tick), seq, e.Player, tileID, e.Kind,
				e.Pos[0], e.Pos[1], e.Pos[2],
				boolInt(e.Accepted), e.Reason, string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// EditQuery filters QueryEdits. Zero fields match everything.
type EditQuery struct {
	Player   string
	Pos      *[3]int
	Rejected bool
	Limit    int
}

// QueryEdits returns matching edits, newest first.
func (s *SQLiteIndex) QueryEdits(ctx context.Context, q EditQuery) ([]level.EditAudit, error) {
	var (
		where []string
		args  []any
	)
	if q.Player != "" {
		where = append(where, "player = ?")
		args = append(args, q.Player)
	}
	if q.Pos != nil {
		where = append(where, "x = ? AND y = ? AND z = ?")
		args = append(args, q.Pos[0], q.Pos[1], q.Pos[2])
	}
	if q.Rejected {
		where = append(where, "accepted = 0")
	}
	limit := q.Limit
	if limit <= 0 || limit > 10000 {
		limit = 100
	}
	query := `SELECT raw_json FROM edits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY tick DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []level.EditAudit
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e level.EditAudit
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("edits row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TickTotals sums tick stats over [from, to].
type TickTotals struct {
	Ticks      int     `json:"ticks"`
	Broadcasts int     `json:"broadcasts"`
	Packets    int     `json:"packets"`
	Bytes      int     `json:"bytes"`
	Builds     int     `json:"builds"`
	Edits      int     `json:"edits"`
	Rejected   int     `json:"rejected"`
	MaxStepMS  float64 `json:"max_step_ms"`
}

func (s *SQLiteIndex) SumTicks(ctx context.Context, from, to uint64) (TickTotals, error) {
	var t TickTotals
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(broadcasts),0), COALESCE(SUM(packets),0), COALESCE(SUM(bytes),0),
		COALESCE(SUM(builds),0), COALESCE(SUM(edits),0), COALESCE(SUM(rejected),0),
		COALESCE(MAX(step_ms),0)
		FROM ticks WHERE tick BETWEEN ? AND ?`, int64(from), int64(to))
	err := row.Scan(&t.Ticks, &t.Broadcasts, &t.Packets, &t.Bytes, &t.Builds, &t.Edits, &t.Rejected, &t.MaxStepMS)
	return t, err
}
