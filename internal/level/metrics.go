package level

import (
	"context"
	"sort"
)

// Totals accumulate over the level's lifetime.
type Totals struct {
	Ticks         uint64 `json:"ticks"`
	Broadcasts    uint64 `json:"broadcasts"`
	Packets       uint64 `json:"packets"`
	Bytes         uint64 `json:"bytes"`
	Builds        uint64 `json:"builds"`
	EditsAccepted uint64 `json:"edits_accepted"`
	EditsRejected uint64 `json:"edits_rejected"`
}

func (t *Totals) add(s TickStats) {
	t.Ticks++
	t.Broadcasts += uint64(s.Broadcasts)
	t.Packets += uint64(s.Packets)
	t.Bytes += uint64(s.Bytes)
	t.Builds += uint64(s.Builds)
}

type QueueDepths struct {
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Move   int `json:"move"`
	Edit   int `json:"edit"`
	Place  int `json:"place"`
	Remove int `json:"remove"`
}

// Metrics is a read-only view updated by the loop goroutine after every
// tick; safe to read from HTTP handlers.
type Metrics struct {
	Tick        uint64      `json:"tick"`
	Players     int         `json:"players"`
	Tiles       int         `json:"tiles"`
	Scheduled   int         `json:"scheduled"`
	LastTick    TickStats   `json:"last_tick"`
	Totals      Totals      `json:"totals"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

func (l *Level) publishMetrics(last TickStats) {
	l.metrics.Store(Metrics{
		Tick:      l.tick.Load(),
		Players:   len(l.players),
		Tiles:     len(l.byID),
		Scheduled: len(l.updates),
		LastTick:  last,
		Totals:    l.totals,
		QueueDepths: QueueDepths{
			Join:   len(l.join),
			Leave:  len(l.leave),
			Move:   len(l.move),
			Edit:   len(l.edit),
			Place:  len(l.place),
			Remove: len(l.remove),
		},
	})
}

func (l *Level) Metrics() Metrics {
	if l == nil {
		return Metrics{}
	}
	m, _ := l.metrics.Load().(Metrics)
	return m
}

// TileInfo describes one tile for admin listings.
type TileInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Pos         [3]int `json:"pos"`
	Chunk       string `json:"chunk"`
	Dirty       bool   `json:"dirty"`
	Scheduled   bool   `json:"scheduled"`
	CachedBytes int    `json:"cached_bytes"`
	Viewers     int    `json:"viewers"`
}

// Tiles lists every tile sorted by id. Loop goroutine only; other
// goroutines use RequestTiles.
func (l *Level) Tiles() []TileInfo {
	out := make([]TileInfo, 0, len(l.byID))
	for _, t := range l.byID {
		k := chunkOf(t.Pos())
		info := TileInfo{
			ID:        t.ID(),
			Kind:      t.Kind(),
			Pos:       t.Pos().ToArray(),
			Chunk:     k.String(),
			Dirty:     t.IsDirty(),
			Scheduled: l.Scheduled(t),
			Viewers:   len(l.viewers[k]),
		}
		// Reading the cache length must not build it.
		if t.HasCache() {
			info.CachedBytes = len(t.SerializedSpawnCompound())
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type snapshotReq struct {
	Resp chan []TileInfo
}

// RequestTiles asks the loop goroutine for a tile listing. Safe to call from
// other goroutines.
func (l *Level) RequestTiles(ctx context.Context) ([]TileInfo, error) {
	resp := make(chan []TileInfo, 1)
	select {
	case l.snap <- snapshotReq{Resp: resp}:
	case <-l.stop:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case tiles := <-resp:
		return tiles, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Level) handleSnapshot(req snapshotReq) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- l.Tiles():
	default:
	}
}
