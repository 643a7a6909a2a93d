package tile

import (
	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/protocol"
)

// syncState pairs the spawn cache with the dirty flag. Both are reset by one
// invalidation; they are repaired independently (the cache lazily on read,
// the flag by the broadcaster through SetDirty).
type syncState struct {
	cache []byte // nil = absent
	dirty bool
}

func (st *syncState) invalidate() {
	st.cache = nil
	st.dirty = true
}

// Spawnable is a tile whose state is pushed to clients as an encoded record.
//
// Not safe for concurrent use: all calls must come from the goroutine that
// owns the world.
type Spawnable struct {
	Base

	variant Variant
	enc     nbt.Encoder
	sched   Scheduler

	sync syncState
}

type Option func(*Spawnable)

// WithEncoder injects the record encoder. Tiles default to nbt.Shared().
func WithEncoder(enc nbt.Encoder) Option {
	return func(s *Spawnable) { s.enc = enc }
}

// WithScheduler injects the hook called by OnChanged.
func WithScheduler(sched Scheduler) Option {
	return func(s *Spawnable) { s.sched = sched }
}

// New wraps v. A new tile starts with no cache and dirty=true so it is
// broadcast on the first opportunity.
func New(id int64, pos Pos, v Variant, opts ...Option) *Spawnable {
	s := &Spawnable{
		Base:    Base{id: id, pos: pos},
		variant: v,
		sync:    syncState{dirty: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.enc == nil {
		s.enc = nbt.Shared()
	}
	return s
}

func (s *Spawnable) Variant() Variant { return s.variant }
func (s *Spawnable) Kind() string     { return s.variant.SaveID() }

// SetScheduler replaces the scheduler hook; the level calls it on placement.
func (s *Spawnable) SetScheduler(sched Scheduler) { s.sched = sched }

// OnChanged flags the tile as modified so the update is broadcast at the next
// opportunity. It MUST be called on every change players are able to see.
func (s *Spawnable) OnChanged() {
	s.sync.invalidate()
	s.ScheduleUpdate()
}

// ScheduleUpdate asks the scheduler to look at this tile on the next tick.
func (s *Spawnable) ScheduleUpdate() {
	if s.sched != nil {
		s.sched.ScheduleUpdate(s)
	}
}

// Mutate runs fn and then invalidates.
func (s *Spawnable) Mutate(fn func()) {
	fn()
	s.OnChanged()
}

// Move changes position and invalidates.
func (s *Spawnable) Move(p Pos) {
	s.SetPos(p)
	s.OnChanged()
}

// IsDirty reports whether the tile needs to be re-spawned to viewers.
func (s *Spawnable) IsDirty() bool { return s.sync.dirty }

// SetDirty is a raw setter for the broadcaster; it has no other effect.
func (s *Spawnable) SetDirty(dirty bool) { s.sync.dirty = dirty }

// HasCache reports whether encoded spawn bytes are currently memoized.
func (s *Spawnable) HasCache() bool { return s.sync.cache != nil }

// SpawnCompound builds a fresh record: id, x, y, z, then variant fields.
func (s *Spawnable) SpawnCompound() *nbt.Compound {
	c := nbt.NewCompound().
		SetString(TagID, s.variant.SaveID()).
		SetInt(TagX, s.pos.X).
		SetInt(TagY, s.pos.Y).
		SetInt(TagZ, s.pos.Z)
	s.variant.AppendSpawnData(c)
	return c
}

// SerializedSpawnCompound returns the encoded spawn record, building and
// encoding it only when the cache is absent. The returned slice is shared
// with every packet created until the next invalidation and must not be
// modified.
func (s *Spawnable) SerializedSpawnCompound() []byte {
	if s.sync.cache == nil {
		s.sync.cache = s.enc.Encode(s.SpawnCompound())
	}
	return s.sync.cache
}

// CreateSpawnPacket builds a packet from the current position and the cached
// record.
func (s *Spawnable) CreateSpawnPacket() *protocol.BlockEntityData {
	return &protocol.BlockEntityData{
		X:       s.pos.X,
		Y:       s.pos.Y,
		Z:       s.pos.Z,
		NBTData: s.SerializedSpawnCompound(),
	}
}

// SpawnTo sends the tile to o. It returns false without sending when the
// tile has been closed. The dirty flag is left alone.
func (s *Spawnable) SpawnTo(o Observer) bool {
	if s.closed {
		return false
	}
	o.SendDataPacket(s.CreateSpawnPacket())
	return true
}

// UpdateCompoundTag applies a client-submitted record. false means the edit
// was not applied and the caller should re-spawn the tile to o.
func (s *Spawnable) UpdateCompoundTag(c *nbt.Compound, o Observer) bool {
	if s.closed {
		return false
	}
	if ed, ok := s.variant.(ClientEditor); ok {
		return ed.UpdateFromClient(c, o)
	}
	return false
}

// Close marks the tile removed. Later SpawnTo calls fail.
func (s *Spawnable) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if c, ok := s.variant.(closer); ok {
		c.onClose()
	}
}
