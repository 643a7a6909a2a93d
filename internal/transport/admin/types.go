package admin

import (
	"tilesync.ai/internal/level"
	"tilesync.ai/internal/persistence/indexdb"
	"tilesync.ai/internal/transport/ws"
)

// TilesResponse is served by GET /admin/v1/tiles.
type TilesResponse struct {
	Tick  uint64           `json:"tick"`
	Tiles []level.TileInfo `json:"tiles"`
}

// StatsResponse is served by GET /admin/v1/stats.
type StatsResponse struct {
	Level    level.Metrics  `json:"level"`
	Sessions ws.Stats       `json:"sessions"`
	Index    *indexdb.Stats `json:"index,omitempty"`
}

// EditsResponse is served by GET /admin/v1/edits.
type EditsResponse struct {
	Edits []level.EditAudit `json:"edits"`
}

type LoginRequest struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type PlaceResponse struct {
	ID int64 `json:"id"`
}
