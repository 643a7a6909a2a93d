package level

import (
	"fmt"

	"tilesync.ai/internal/tile"
)

type nameable interface {
	SetName(name string)
}

// PlaceTile creates a tile from spec. The new tile is dirty and scheduled, so
// it reaches current viewers on the next broadcast.
func (l *Level) PlaceTile(spec PlaceSpec) (int64, error) {
	pos := tile.Pos{X: spec.Pos[0], Y: spec.Pos[1], Z: spec.Pos[2]}
	if _, ok := l.tiles[pos]; ok {
		return 0, fmt.Errorf("%w: %s", ErrOccupied, pos)
	}
	l.nextID++
	id := l.nextID
	t, err := tile.NewByKind(spec.Kind, id, pos, tile.WithEncoder(l.enc), tile.WithScheduler(l))
	if err != nil {
		l.nextID--
		return 0, err
	}

	switch v := t.Variant().(type) {
	case *tile.Sign:
		v.SetCreator(spec.Creator)
		v.SetText(spec.Text...)
	case nameable:
		if spec.Name != "" {
			v.SetName(spec.Name)
		}
	}

	l.tiles[pos] = t
	l.byID[id] = t
	k := chunkOf(pos)
	if l.chunks[k] == nil {
		l.chunks[k] = map[int64]*tile.Spawnable{}
	}
	l.chunks[k][id] = t
	l.updates[id] = t

	if c, ok := t.Variant().(*tile.Chest); ok {
		l.pairChest(c)
	}

	l.log.WithField("tile_id", id).WithField("kind", spec.Kind).WithField("pos", pos.String()).Debug("tile placed")
	return id, nil
}

// pairChest links a new chest with the first free horizontal neighbour.
func (l *Level) pairChest(c *tile.Chest) {
	p := c.Pos()
	for _, n := range []tile.Pos{
		{X: p.X + 1, Y: p.Y, Z: p.Z},
		{X: p.X - 1, Y: p.Y, Z: p.Z},
		{X: p.X, Y: p.Y, Z: p.Z + 1},
		{X: p.X, Y: p.Y, Z: p.Z - 1},
	} {
		t, ok := l.tiles[n]
		if !ok {
			continue
		}
		other, ok := t.Variant().(*tile.Chest)
		if !ok || other.IsPaired() {
			continue
		}
		if c.PairWith(other) {
			return
		}
	}
}

// RemoveTile closes and forgets the tile at p.
func (l *Level) RemoveTile(p tile.Pos) error {
	t, ok := l.tiles[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTile, p)
	}
	t.Close()
	delete(l.tiles, p)
	delete(l.byID, t.ID())
	delete(l.updates, t.ID())
	k := chunkOf(p)
	if m := l.chunks[k]; m != nil {
		delete(m, t.ID())
		if len(m) == 0 {
			delete(l.chunks, k)
		}
	}
	l.log.WithField("tile_id", t.ID()).WithField("pos", p.String()).Debug("tile removed")
	return nil
}

// Edit rejection reasons recorded in audits.
const (
	ReasonUnknownPlayer = "unknown_player"
	ReasonNoTile        = "no_tile"
	ReasonOutOfView     = "out_of_view"
	ReasonRejected      = "rejected"
)

// ApplyEdit runs a client edit through the tile's edit gate. A rejected edit
// re-spawns the authoritative state to the submitter so its local copy is
// corrected.
func (l *Level) ApplyEdit(req EditRequest) bool {
	audit := EditAudit{
		Tick:   l.tick.Load(),
		Player: req.PlayerID,
		Pos:    req.Pos.ToArray(),
	}
	l.cur.Edits++

	p, ok := l.players[req.PlayerID]
	if !ok {
		return l.rejectEdit(audit, ReasonUnknownPlayer)
	}
	t, ok := l.tiles[req.Pos]
	if !ok {
		l.log.WithField("player", req.PlayerID).WithField("pos", req.Pos.String()).Warn("edit for missing tile")
		return l.rejectEdit(audit, ReasonNoTile)
	}
	audit.TileID = t.ID()
	audit.Kind = t.Kind()
	if !p.CanSee(req.Pos) {
		return l.rejectEdit(audit, ReasonOutOfView)
	}
	if req.Record == nil || !t.UpdateCompoundTag(req.Record, p.obs) {
		if t.SpawnTo(p.obs) {
			l.cur.Packets++
			l.cur.Bytes += len(t.SerializedSpawnCompound())
		}
		return l.rejectEdit(audit, ReasonRejected)
	}

	audit.Accepted = true
	l.totals.EditsAccepted++
	l.writeEdit(audit)
	return true
}

func (l *Level) rejectEdit(audit EditAudit, reason string) bool {
	audit.Reason = reason
	l.cur.Rejected++
	l.totals.EditsRejected++
	l.writeEdit(audit)
	return false
}

func (l *Level) writeEdit(audit EditAudit) {
	if l.editLogger == nil {
		return
	}
	if err := l.editLogger.WriteEdit(audit); err != nil {
		l.log.WithError(err).WithField("player", audit.Player).Warn("edit log write failed")
	}
}
