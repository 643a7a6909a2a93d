package tile

import (
	"fmt"

	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/protocol"
)

// Canonical spawn record field names.
const (
	TagID = "id"
	TagX  = "x"
	TagY  = "y"
	TagZ  = "z"
)

// Pos is an integer block position.
type Pos struct {
	X, Y, Z int32
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// ChunkX/ChunkZ return the 16x16 column holding p.
func (p Pos) ChunkX() int32 { return p.X >> 4 }
func (p Pos) ChunkZ() int32 { return p.Z >> 4 }

func (p Pos) ToArray() [3]int { return [3]int{int(p.X), int(p.Y), int(p.Z)} }

// Base is the world-owned part of a tile: identity, position and removal.
type Base struct {
	id     int64
	pos    Pos
	closed bool
}

func (b *Base) ID() int64    { return b.id }
func (b *Base) Pos() Pos     { return b.pos }
func (b *Base) Closed() bool { return b.closed }

// SetPos moves the tile without invalidating its spawn cache. Callers that
// change a tile's position must also call OnChanged, or use Spawnable.Move.
func (b *Base) SetPos(p Pos) { b.pos = p }

// Variant is implemented by every concrete tile kind.
type Variant interface {
	// SaveID is written as the record's "id" field.
	SaveID() string
	// AppendSpawnData adds kind-specific fields after id/x/y/z.
	AppendSpawnData(c *nbt.Compound)
}

// ClientEditor is implemented by variants that accept client-submitted state.
// It returns true only when the edit was applied to authoritative state, in
// which case it must have called OnChanged.
type ClientEditor interface {
	UpdateFromClient(c *nbt.Compound, o Observer) bool
}

// Ticker is implemented by variants with per-tick behaviour. The scheduler
// keeps the tile scheduled while OnUpdate returns true.
type Ticker interface {
	OnUpdate() bool
}

// closer is implemented by variants that need to react to removal.
type closer interface {
	onClose()
}

// Scheduler receives "needs update" registrations from OnChanged.
type Scheduler interface {
	ScheduleUpdate(s *Spawnable)
}

// Observer is a remote client able to receive packets. SendDataPacket is a
// handoff to the transport and must not block.
type Observer interface {
	ObserverID() string
	SendDataPacket(pk protocol.Packet)
}
