package ws

import (
	"sync"
	"sync/atomic"

	"tilesync.ai/internal/protocol"
)

// Conn is the level's view of one websocket session. SendDataPacket is
// called from the level goroutine and never blocks: when the outbound queue
// is full the session is kicked, since a dropped spawn would leave the
// client with stale tile state.
type Conn struct {
	id  string
	out chan []byte

	sent    atomic.Uint64
	dropped atomic.Uint64

	kickOnce sync.Once
	kicked   chan struct{}
}

func newConn(id string, maxQueue int) *Conn {
	if maxQueue <= 0 {
		maxQueue = 256
	}
	return &Conn{
		id:     id,
		out:    make(chan []byte, maxQueue),
		kicked: make(chan struct{}),
	}
}

func (c *Conn) ObserverID() string { return c.id }

func (c *Conn) SendDataPacket(pk protocol.Packet) {
	select {
	case <-c.kicked:
		c.dropped.Add(1)
		return
	default:
	}
	frame := protocol.EncodeFrame(pk)
	select {
	case c.out <- frame:
		c.sent.Add(1)
	default:
		c.dropped.Add(1)
		c.kick()
	}
}

func (c *Conn) kick() { c.kickOnce.Do(func() { close(c.kicked) }) }

// Kicked is closed when the session fell behind.
func (c *Conn) Kicked() <-chan struct{} { return c.kicked }

func (c *Conn) Sent() uint64    { return c.sent.Load() }
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// drain collects the frames queued right now, up to max.
func (c *Conn) drain(first []byte, max int) [][]byte {
	frames := [][]byte{first}
	for len(frames) < max {
		select {
		case f := <-c.out:
			frames = append(frames, f)
		default:
			return frames
		}
	}
	return frames
}
