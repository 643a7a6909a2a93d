package level

import (
	"sort"
	"time"

	"tilesync.ai/internal/tile"
)

// Step runs one tick with no queued requests. It is meant for tests and
// tools that drive the level without Run.
func (l *Level) Step() TickStats {
	return l.step(&requests{})
}

func (l *Level) step(reqs *requests) TickStats {
	start := time.Now()
	nowTick := l.tick.Load()
	l.cur = TickStats{Tick: nowTick}
	buildsBefore := l.enc.builds

	l.applyRequests(reqs)

	batch := l.drainUpdates()
	for _, t := range batch {
		if t.Closed() {
			continue
		}
		tk, ok := t.Variant().(tile.Ticker)
		if !ok {
			continue
		}
		l.cur.Ticked++
		if tk.OnUpdate() {
			l.updates[t.ID()] = t
		}
	}

	l.broadcastDirty(batch)
	l.refillSpawns()

	l.cur.Players = len(l.players)
	l.cur.Tiles = len(l.byID)
	l.cur.Builds = l.enc.builds - buildsBefore
	l.cur.StepMS = float64(time.Since(start).Microseconds()) / 1000.0

	stats := l.cur
	l.totals.add(stats)
	l.tick.Add(1)
	l.publishMetrics(stats)

	if l.tickLogger != nil && (stats.Broadcasts > 0 || stats.Edits > 0) {
		if err := l.tickLogger.WriteTick(stats); err != nil {
			l.log.WithError(err).WithField("tick", nowTick).Warn("tick log write failed")
		}
	}
	return stats
}

// applyRequests runs leaves before joins so a client that reconnects within
// one tick replaces its old session instead of colliding with it.
func (l *Level) applyRequests(reqs *requests) {
	for _, id := range reqs.leaves {
		l.leavePlayer(id)
	}
	for _, req := range reqs.joins {
		respondErr(req.Resp, l.joinPlayer(req))
	}
	for _, req := range reqs.moves {
		l.movePlayer(req)
	}
	for _, req := range reqs.places {
		id, err := l.PlaceTile(req.Spec)
		if req.Resp != nil {
			select {
			case req.Resp <- PlaceResponse{ID: id, Err: err}:
			default:
			}
		}
	}
	for _, req := range reqs.removes {
		respondErr(req.Resp, l.RemoveTile(req.Pos))
	}
	for _, req := range reqs.edits {
		l.ApplyEdit(req)
	}
}

// drainUpdates empties the update set and returns its tiles sorted by id.
func (l *Level) drainUpdates() []*tile.Spawnable {
	if len(l.updates) == 0 {
		return nil
	}
	out := make([]*tile.Spawnable, 0, len(l.updates))
	for _, t := range l.updates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	clear(l.updates)
	return out
}

// broadcastDirty sends every dirty tile to all players viewing its chunk and
// only then clears its dirty flag. A dirty tile without viewers is cleared
// too: players that later view the chunk receive it on first observation.
func (l *Level) broadcastDirty(batch []*tile.Spawnable) {
	seen := make(map[int64]struct{}, len(batch)+len(l.updates))
	candidates := make([]*tile.Spawnable, 0, len(batch)+len(l.updates))
	for _, t := range batch {
		seen[t.ID()] = struct{}{}
		candidates = append(candidates, t)
	}
	for _, t := range sortedTiles(l.updates) {
		if _, ok := seen[t.ID()]; ok {
			continue
		}
		candidates = append(candidates, t)
	}

	for _, t := range candidates {
		if t.Closed() || !t.IsDirty() {
			continue
		}
		viewers := l.viewersOf(chunkOf(t.Pos()))
		for _, p := range viewers {
			if _, ok := p.queued[t.ID()]; ok {
				// Its queued first spawn carries the current state.
				continue
			}
			if t.SpawnTo(p.obs) {
				l.cur.Packets++
				l.cur.Bytes += len(t.SerializedSpawnCompound())
			}
		}
		t.SetDirty(false)
		l.cur.Broadcasts++
	}
}
