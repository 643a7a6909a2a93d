package level

import (
	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/tile"
)

type JoinRequest struct {
	Observer tile.Observer
	// Pos is the initial position; the player's view is computed right away.
	Pos  [3]float32
	Resp chan error
}

type MoveRequest struct {
	PlayerID string
	Pos      [3]float32
}

// EditRequest carries a client-submitted record for the tile at Pos.
type EditRequest struct {
	PlayerID string
	Pos      tile.Pos
	Record   *nbt.Compound
}

// PlaceSpec describes a tile to create. Text applies to signs and Name to
// nameable containers; both are ignored for other kinds.
type PlaceSpec struct {
	Kind    string   `json:"kind"`
	Pos     [3]int32 `json:"pos"`
	Creator string   `json:"creator,omitempty"`
	Text    []string `json:"text,omitempty"`
	Name    string   `json:"name,omitempty"`
}

type PlaceRequest struct {
	Spec PlaceSpec
	Resp chan PlaceResponse
}

type PlaceResponse struct {
	ID  int64
	Err error
}

type RemoveRequest struct {
	Pos  tile.Pos
	Resp chan error
}

type requests struct {
	joins   []JoinRequest
	leaves  []string
	moves   []MoveRequest
	edits   []EditRequest
	places  []PlaceRequest
	removes []RemoveRequest
}

func (r *requests) reset() {
	r.joins = r.joins[:0]
	r.leaves = r.leaves[:0]
	r.moves = r.moves[:0]
	r.edits = r.edits[:0]
	r.places = r.places[:0]
	r.removes = r.removes[:0]
}

func respondErr(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
		// Caller gave up; never block the loop.
	}
}
