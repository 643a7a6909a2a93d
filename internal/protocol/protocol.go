package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	mcproto "github.com/sandertv/gophertunnel/minecraft/protocol"
)

// Version is checked during the websocket handshake.
const Version = "1.0"

// Packet ids.
const (
	IDDisconnect      uint32 = 0x05
	IDMovePlayer      uint32 = 0x13
	IDBlockEntityData uint32 = 0x38
)

var (
	ErrUnknownPacket = errors.New("protocol: unknown packet id")
	ErrShortRead     = errors.New("protocol: short read")
)

// Packet is one framed message. Marshal serves both directions: it is given
// a writer when encoding and a reader when decoding.
type Packet interface {
	ID() uint32
	Marshal(io mcproto.IO)
}

// New returns an empty packet for id.
func New(id uint32) (Packet, error) {
	switch id {
	case IDDisconnect:
		return &Disconnect{}, nil
	case IDMovePlayer:
		return &MovePlayer{}, nil
	case IDBlockEntityData:
		return &BlockEntityData{}, nil
	default:
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownPacket, id)
	}
}

// EncodeFrame writes uvarint(packet id) followed by the packet body.
func EncodeFrame(pk Packet) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 64))
	w := mcproto.NewWriter(buf, 0)
	id := pk.ID()
	w.Varuint32(&id)
	pk.Marshal(w)
	return buf.Bytes()
}

// DecodeFrame is the inverse of EncodeFrame. Ids that do not fit in 32 bits
// are unknown rather than truncated.
func DecodeFrame(b []byte) (pk Packet, err error) {
	buf := bytes.NewReader(b)
	r := mcproto.NewReader(buf, 0, false)
	// The reader panics on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			pk, err = nil, fmt.Errorf("%w: %v", ErrShortRead, rec)
		}
	}()

	var id uint64
	r.Varuint64(&id)
	if id > math.MaxUint32 {
		return nil, fmt.Errorf("%w 0x%x", ErrUnknownPacket, id)
	}
	pk, err = New(uint32(id))
	if err != nil {
		return nil, err
	}
	pk.Marshal(r)
	if buf.Len() != 0 {
		return nil, fmt.Errorf("decode 0x%02x: %d trailing bytes", id, buf.Len())
	}
	return pk, nil
}
