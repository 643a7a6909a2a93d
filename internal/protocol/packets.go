package protocol

import mcproto "github.com/sandertv/gophertunnel/minecraft/protocol"

// BlockEntityData carries the encoded spawn record of one tile.
// Server -> client on spawn and re-spawn; client -> server for edits.
type BlockEntityData struct {
	X, Y, Z int32
	// NBTData is the network little-endian record, shared with the tile's
	// serialization cache. Treat it as read-only. It runs to the end of the
	// frame.
	NBTData []byte
}

// ID ...
func (*BlockEntityData) ID() uint32 { return IDBlockEntityData }

// Marshal ...
func (pk *BlockEntityData) Marshal(io mcproto.IO) {
	io.Varint32(&pk.X)
	io.Varint32(&pk.Y)
	io.Varint32(&pk.Z)
	io.Bytes(&pk.NBTData)
}

// MovePlayer reports the client's position; it drives chunk viewing.
type MovePlayer struct {
	X, Y, Z float32
}

// ID ...
func (*MovePlayer) ID() uint32 { return IDMovePlayer }

// Marshal ...
func (pk *MovePlayer) Marshal(io mcproto.IO) {
	io.Float32(&pk.X)
	io.Float32(&pk.Y)
	io.Float32(&pk.Z)
}

// Disconnect is sent before the server closes a session.
type Disconnect struct {
	Code    string
	Message string
}

// ID ...
func (*Disconnect) ID() uint32 { return IDDisconnect }

// Marshal ...
func (pk *Disconnect) Marshal(io mcproto.IO) {
	io.String(&pk.Code)
	io.String(&pk.Message)
}
