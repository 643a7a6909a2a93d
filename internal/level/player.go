package level

import (
	"fmt"
	"math"
	"sort"

	"tilesync.ai/internal/tile"
)

// ChunkKey identifies a 16x16 column.
type ChunkKey struct {
	CX int32 `json:"cx"`
	CZ int32 `json:"cz"`
}

func (k ChunkKey) String() string { return fmt.Sprintf("%d:%d", k.CX, k.CZ) }

func chunkOf(p tile.Pos) ChunkKey { return ChunkKey{CX: p.ChunkX(), CZ: p.ChunkZ()} }

func chunkAt(pos [3]float32) ChunkKey {
	x := int32(math.Floor(float64(pos[0])))
	z := int32(math.Floor(float64(pos[2])))
	return ChunkKey{CX: x >> 4, CZ: z >> 4}
}

// Player is a joined observer with a position and the set of chunks it views.
type Player struct {
	obs tile.Observer

	pos   [3]float32
	chunk ChunkKey
	view  map[ChunkKey]struct{}

	// queue holds tiles of newly viewed chunks not yet spawned to the
	// player, in send order. budget is what is left of this tick's
	// SpawnBudget.
	queue  []int64
	queued map[int64]struct{}
	budget int
}

func (p *Player) ID() string              { return p.obs.ObserverID() }
func (p *Player) Observer() tile.Observer { return p.obs }
func (p *Player) Pos() [3]float32         { return p.pos }
func (p *Player) Chunk() ChunkKey         { return p.chunk }
func (p *Player) ViewSize() int           { return len(p.view) }
func (p *Player) PendingSpawns() int      { return len(p.queue) }

func (p *Player) Views(k ChunkKey) bool {
	_, ok := p.view[k]
	return ok
}

// CanSee reports whether the chunk holding t is in p's view.
func (p *Player) CanSee(t tile.Pos) bool { return p.Views(chunkOf(t)) }

func (l *Level) joinPlayer(req JoinRequest) error {
	if req.Observer == nil {
		return fmt.Errorf("%w: nil observer", ErrUnknownPlayer)
	}
	id := req.Observer.ObserverID()
	if _, ok := l.players[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}
	p := &Player{
		obs:    req.Observer,
		view:   map[ChunkKey]struct{}{},
		queued: map[int64]struct{}{},
		budget: l.cfg.SpawnBudget,
	}
	l.players[id] = p
	l.relocate(p, req.Pos, true)
	l.log.WithField("player", id).WithField("chunk", p.chunk.String()).Info("player joined")
	return nil
}

func (l *Level) leavePlayer(id string) {
	p, ok := l.players[id]
	if !ok {
		return
	}
	for k := range p.view {
		l.unview(p, k)
	}
	delete(l.players, id)
	l.log.WithField("player", id).Info("player left")
}

func (l *Level) movePlayer(req MoveRequest) {
	p, ok := l.players[req.PlayerID]
	if !ok {
		return
	}
	l.relocate(p, req.Pos, false)
}

// relocate updates p's position and view. Every tile in a chunk that enters
// the view is queued for p; the queue is flushed up to p's remaining budget
// right away and the rest goes out on later ticks.
func (l *Level) relocate(p *Player, pos [3]float32, force bool) {
	p.pos = pos
	next := chunkAt(pos)
	if !force && next == p.chunk {
		return
	}
	p.chunk = next

	r := int32(l.cfg.ViewRadius)
	want := make(map[ChunkKey]struct{}, (2*r+1)*(2*r+1))
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			want[ChunkKey{CX: next.CX + dx, CZ: next.CZ + dz}] = struct{}{}
		}
	}
	for k := range p.view {
		if _, ok := want[k]; !ok {
			l.unview(p, k)
		}
	}

	entered := make([]ChunkKey, 0, len(want))
	for k := range want {
		if _, ok := p.view[k]; !ok {
			entered = append(entered, k)
		}
	}
	sort.Slice(entered, func(i, j int) bool {
		if entered[i].CX != entered[j].CX {
			return entered[i].CX < entered[j].CX
		}
		return entered[i].CZ < entered[j].CZ
	})
	for _, k := range entered {
		p.view[k] = struct{}{}
		vs := l.viewers[k]
		if vs == nil {
			vs = map[string]*Player{}
			l.viewers[k] = vs
		}
		vs[p.ID()] = p
		for _, t := range sortedTiles(l.chunks[k]) {
			if _, ok := p.queued[t.ID()]; ok {
				continue
			}
			p.queued[t.ID()] = struct{}{}
			p.queue = append(p.queue, t.ID())
		}
	}
	l.flushSpawns(p)
}

// flushSpawns sends queued tiles to p until the queue or p's budget runs
// out. Tiles removed or scrolled out of view since they were queued are
// skipped without costing budget.
func (l *Level) flushSpawns(p *Player) {
	for len(p.queue) > 0 && p.budget > 0 {
		id := p.queue[0]
		p.queue = p.queue[1:]
		delete(p.queued, id)

		t, ok := l.byID[id]
		if !ok || t.Closed() || !p.CanSee(t.Pos()) {
			continue
		}
		p.budget--
		if t.SpawnTo(p.obs) {
			l.cur.Packets++
			l.cur.Bytes += len(t.SerializedSpawnCompound())
		}
	}
	if len(p.queue) == 0 {
		p.queue = nil
	}
}

// refillSpawns runs after the broadcast: it resets every player's budget and
// sends what fits of their queues. Players are visited in id order.
func (l *Level) refillSpawns() {
	ids := make([]string, 0, len(l.players))
	for id := range l.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := l.players[id]
		p.budget = l.cfg.SpawnBudget
		l.flushSpawns(p)
	}
}

func (l *Level) unview(p *Player, k ChunkKey) {
	delete(p.view, k)
	if vs := l.viewers[k]; vs != nil {
		delete(vs, p.ID())
		if len(vs) == 0 {
			delete(l.viewers, k)
		}
	}
}

// viewersOf returns the players viewing k, sorted by id.
func (l *Level) viewersOf(k ChunkKey) []*Player {
	vs := l.viewers[k]
	if len(vs) == 0 {
		return nil
	}
	out := make([]*Player, 0, len(vs))
	for _, p := range vs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func sortedTiles(m map[int64]*tile.Spawnable) []*tile.Spawnable {
	if len(m) == 0 {
		return nil
	}
	out := make([]*tile.Spawnable, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
