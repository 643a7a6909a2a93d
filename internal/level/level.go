package level

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/tile"
)

var (
	ErrDuplicatePlayer = errors.New("level: player already joined")
	ErrUnknownPlayer   = errors.New("level: unknown player")
	ErrOccupied        = errors.New("level: position already holds a tile")
	ErrNoTile          = errors.New("level: no tile at position")
	ErrStopped         = errors.New("level: stopped")
)

type Config struct {
	TickRateHz int
	// ViewRadius is the chunk radius a player observes around its own chunk.
	ViewRadius int
	// SpawnBudget caps first-observation spawns sent to one player per tick.
	// Tiles past the budget wait in the player's spawn queue.
	SpawnBudget int
}

func (c Config) withDefaults() Config {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.ViewRadius < 0 {
		c.ViewRadius = 0
	}
	if c.SpawnBudget <= 0 {
		c.SpawnBudget = 64
	}
	return c
}

// EditLogger receives one entry per client edit attempt. Implemented in
// internal/persistence/*.
type EditLogger interface {
	WriteEdit(entry EditAudit) error
}

// TickLogger receives per-tick broadcast stats.
type TickLogger interface {
	WriteTick(entry TickStats) error
}

type EditAudit struct {
	Tick     uint64 `json:"tick"`
	Player   string `json:"player"`
	TileID   int64  `json:"tile_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Pos      [3]int `json:"pos"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type TickStats struct {
	Tick       uint64  `json:"tick"`
	Players    int     `json:"players"`
	Tiles      int     `json:"tiles"`
	Ticked     int     `json:"ticked"`
	Broadcasts int     `json:"broadcasts"`
	Packets    int     `json:"packets"`
	Bytes      int     `json:"bytes"`
	Builds     int     `json:"builds"`
	Edits      int     `json:"edits"`
	Rejected   int     `json:"rejected"`
	StepMS     float64 `json:"step_ms"`
}

// Level is a single-threaded tile world. All tile and player state must be
// accessed only from the loop goroutine; other goroutines talk to it through
// the request channels.
type Level struct {
	cfg Config
	log logrus.FieldLogger
	enc *countingEncoder

	tick   atomic.Uint64
	nextID int64

	tiles   map[tile.Pos]*tile.Spawnable
	byID    map[int64]*tile.Spawnable
	chunks  map[ChunkKey]map[int64]*tile.Spawnable
	players map[string]*Player
	viewers map[ChunkKey]map[string]*Player
	updates map[int64]*tile.Spawnable

	join   chan JoinRequest
	leave  chan string
	move   chan MoveRequest
	edit   chan EditRequest
	place  chan PlaceRequest
	remove chan RemoveRequest
	snap   chan snapshotReq

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	editLogger EditLogger
	tickLogger TickLogger

	cur     TickStats
	totals  Totals
	metrics atomic.Value
}

type Option func(*Level)

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Level) { l.log = log }
}

func WithEditLogger(el EditLogger) Option {
	return func(l *Level) { l.editLogger = el }
}

func WithTickLogger(tl TickLogger) Option {
	return func(l *Level) { l.tickLogger = tl }
}

// WithEncoder replaces the record encoder handed to every placed tile.
func WithEncoder(enc nbt.Encoder) Option {
	return func(l *Level) { l.enc = &countingEncoder{inner: enc} }
}

func New(cfg Config, opts ...Option) *Level {
	l := &Level{
		cfg:     cfg.withDefaults(),
		enc:     &countingEncoder{inner: nbt.Shared()},
		tiles:   map[tile.Pos]*tile.Spawnable{},
		byID:    map[int64]*tile.Spawnable{},
		chunks:  map[ChunkKey]map[int64]*tile.Spawnable{},
		players: map[string]*Player{},
		viewers: map[ChunkKey]map[string]*Player{},
		updates: map[int64]*tile.Spawnable{},

		join:   make(chan JoinRequest, 64),
		leave:  make(chan string, 64),
		move:   make(chan MoveRequest, 1024),
		edit:   make(chan EditRequest, 1024),
		place:  make(chan PlaceRequest, 64),
		remove: make(chan RemoveRequest, 64),
		snap:   make(chan snapshotReq, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		l.log = discard
	}
	return l
}

func (l *Level) Config() Config      { return l.cfg }
func (l *Level) CurrentTick() uint64 { return l.tick.Load() }

func (l *Level) Join() chan<- JoinRequest     { return l.join }
func (l *Level) Leave() chan<- string         { return l.leave }
func (l *Level) Move() chan<- MoveRequest     { return l.move }
func (l *Level) Edit() chan<- EditRequest     { return l.edit }
func (l *Level) Place() chan<- PlaceRequest   { return l.place }
func (l *Level) Remove() chan<- RemoveRequest { return l.remove }

// Run drives the level until ctx is done or Stop is called. Requests are
// buffered between ticks and applied at the start of the next Step.
func (l *Level) Run(ctx context.Context) error {
	defer l.doneOnce.Do(func() { close(l.done) })
	interval := time.Second / time.Duration(l.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending requests
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case req := <-l.join:
			pending.joins = append(pending.joins, req)
		case id := <-l.leave:
			pending.leaves = append(pending.leaves, id)
		case req := <-l.move:
			pending.moves = append(pending.moves, req)
		case req := <-l.edit:
			pending.edits = append(pending.edits, req)
		case req := <-l.place:
			pending.places = append(pending.places, req)
		case req := <-l.remove:
			pending.removes = append(pending.removes, req)
		case req := <-l.snap:
			l.handleSnapshot(req)
		case <-ticker.C:
			l.step(&pending)
			pending.reset()
		}
	}
}

// Stop makes Run return. It is safe to call more than once.
func (l *Level) Stop() { l.stopOnce.Do(func() { close(l.stop) }) }

// Done is closed once Run has returned. Senders that must not drop a
// request select on it instead of timing out.
func (l *Level) Done() <-chan struct{} { return l.done }

// ScheduleUpdate implements tile.Scheduler.
func (l *Level) ScheduleUpdate(t *tile.Spawnable) {
	if t == nil || t.Closed() {
		return
	}
	if _, ok := l.byID[t.ID()]; !ok {
		return
	}
	l.updates[t.ID()] = t
}

// TileAt returns the open tile at p.
func (l *Level) TileAt(p tile.Pos) (*tile.Spawnable, bool) {
	t, ok := l.tiles[p]
	return t, ok
}

func (l *Level) TileByID(id int64) (*tile.Spawnable, bool) {
	t, ok := l.byID[id]
	return t, ok
}

func (l *Level) Player(id string) (*Player, bool) {
	p, ok := l.players[id]
	return p, ok
}

// Scheduled reports whether t is in the update set.
func (l *Level) Scheduled(t *tile.Spawnable) bool {
	_, ok := l.updates[t.ID()]
	return ok
}

// countingEncoder records how often records are built so stats show the
// cache hit rate.
type countingEncoder struct {
	inner  nbt.Encoder
	builds int
	bytes  int
}

func (e *countingEncoder) Encode(c *nbt.Compound) []byte {
	b := e.inner.Encode(c)
	e.builds++
	e.bytes += len(b)
	return b
}
