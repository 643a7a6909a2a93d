package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tilesync.ai/internal/auth"
	"tilesync.ai/internal/level"
	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/protocol"
	"tilesync.ai/internal/tile"
)

type Config struct {
	MaxQueue         int
	CompressionLevel int
	// MaxFramesPerBatch caps how many queued packets go into one message.
	MaxFramesPerBatch int
}

type Stats struct {
	Sessions       int64  `json:"sessions"`
	SessionsTotal  uint64 `json:"sessions_total"`
	Kicked         uint64 `json:"kicked"`
	PacketsIn      uint64 `json:"packets_in"`
	BadPackets     uint64 `json:"bad_packets"`
	MessagesOut    uint64 `json:"messages_out"`
	BytesOut       uint64 `json:"bytes_out"`
	DroppedPackets uint64 `json:"dropped_packets"`
}

type Server struct {
	level *level.Level
	auth  *auth.Auth
	log   logrus.FieldLogger
	cfg   Config

	upgrader websocket.Upgrader

	sessions      atomic.Int64
	sessionsTotal atomic.Uint64
	kicked        atomic.Uint64
	packetsIn     atomic.Uint64
	badPackets    atomic.Uint64
	messagesOut   atomic.Uint64
	bytesOut      atomic.Uint64
	dropped       atomic.Uint64
}

func NewServer(l *level.Level, a *auth.Auth, logger logrus.FieldLogger, cfg Config) *Server {
	if cfg.MaxFramesPerBatch <= 0 {
		cfg.MaxFramesPerBatch = 256
	}
	return &Server{
		level: l,
		auth:  a,
		log:   logger,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions:       s.sessions.Load(),
		SessionsTotal:  s.sessionsTotal.Load(),
		Kicked:         s.kicked.Load(),
		PacketsIn:      s.packetsIn.Load(),
		BadPackets:     s.badPackets.Load(),
		MessagesOut:    s.messagesOut.Load(),
		BytesOut:       s.bytesOut.Load(),
		DroppedPackets: s.dropped.Load(),
	}
}

// Handler serves player sessions. The token (Bearer header or ?token=) must
// carry the player role; its subject becomes the player id. The optional
// x, y, z query parameters set the spawn position.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.Authorize(r, auth.RolePlayer)
		if err != nil {
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		log := s.log.WithField("player", claims.Subject)
		if v := r.URL.Query().Get("v"); v != "" && v != protocol.Version {
			s.disconnect(conn, protocol.ErrProtoVersion, "unsupported protocol version "+v)
			return
		}

		c := newConn(claims.Subject, s.cfg.MaxQueue)
		if err := s.join(r.Context(), c, spawnPos(r)); err != nil {
			code := protocol.ErrServerBusy
			if errors.Is(err, level.ErrDuplicatePlayer) {
				code = protocol.ErrAuth
			}
			log.WithError(err).Warn("join rejected")
			s.disconnect(conn, code, err.Error())
			return
		}
		s.sessions.Add(1)
		s.sessionsTotal.Add(1)
		log.Info("session started")
		defer func() {
			s.sessions.Add(-1)
			s.dropped.Add(c.Dropped())
			s.leave(c.id)
			log.WithField("sent", c.Sent()).WithField("dropped", c.Dropped()).Info("session ended")
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() { writeErr <- s.writeLoop(ctx, conn, c) }()

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			s.readLoop(ctx, conn, c)
		}()

		select {
		case <-readDone:
		case err := <-writeErr:
			if err != nil {
				log.WithError(err).Debug("write failed")
			}
		case <-c.Kicked():
			s.kicked.Add(1)
			log.Warn("session kicked: outbound queue full")
			cancel()
			<-writeErr
			s.disconnect(conn, protocol.ErrServerBusy, "too slow")
		}
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
		<-readDone
	}
}

func (s *Server) join(ctx context.Context, c *Conn, pos [3]float32) error {
	resp := make(chan error, 1)
	req := level.JoinRequest{Observer: c, Pos: pos, Resp: resp}
	timeout := time.After(5 * time.Second)
	select {
	case s.level.Join() <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return errors.New("join queue full")
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return errors.New("join timed out")
	}
}

// leave blocks until the level takes the request or stops running. Dropping
// it would leave a ghost player that blocks every later session of id.
func (s *Server) leave(id string) {
	select {
	case s.level.Leave() <- id:
	case <-s.level.Done():
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, c *Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case first := <-c.out:
			frames := c.drain(first, s.cfg.MaxFramesPerBatch)
			b, err := protocol.EncodeBatch(frames, s.cfg.CompressionLevel)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				return err
			}
			s.messagesOut.Add(1)
			s.bytesOut.Add(uint64(len(b)))
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, c *Conn) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		frames, err := protocol.DecodeBatch(msg, protocol.DefaultMaxBatchSize)
		if err != nil {
			s.badPackets.Add(1)
			continue
		}
		for _, f := range frames {
			pk, err := protocol.DecodeFrame(f)
			if err != nil {
				s.badPackets.Add(1)
				continue
			}
			s.packetsIn.Add(1)
			if !s.dispatch(ctx, c, pk) {
				return
			}
		}
	}
}

// dispatch forwards one client packet to the level. It returns false once
// the session is shutting down.
func (s *Server) dispatch(ctx context.Context, c *Conn, pk protocol.Packet) bool {
	switch pk := pk.(type) {
	case *protocol.MovePlayer:
		req := level.MoveRequest{PlayerID: c.id, Pos: [3]float32{pk.X, pk.Y, pk.Z}}
		select {
		case s.level.Move() <- req:
		case <-ctx.Done():
			return false
		}
	case *protocol.BlockEntityData:
		rec, err := nbt.Decode(pk.NBTData)
		if err != nil {
			s.badPackets.Add(1)
			return true
		}
		req := level.EditRequest{PlayerID: c.id, Pos: tile.Pos{X: pk.X, Y: pk.Y, Z: pk.Z}, Record: rec}
		select {
		case s.level.Edit() <- req:
		case <-ctx.Done():
			return false
		}
	case *protocol.Disconnect:
		return false
	}
	return true
}

func (s *Server) disconnect(conn *websocket.Conn, code, msg string) {
	frame := protocol.EncodeFrame(&protocol.Disconnect{Code: code, Message: msg})
	b, err := protocol.EncodeBatch([][]byte{frame}, s.cfg.CompressionLevel)
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.BinaryMessage, b)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func spawnPos(r *http.Request) [3]float32 {
	pos := [3]float32{0, 64, 0}
	for i, key := range []string{"x", "y", "z"} {
		if v := r.URL.Query().Get(key); v != "" {
			if f, err := strconv.ParseFloat(v, 32); err == nil {
				pos[i] = float32(f)
			}
		}
	}
	return pos
}
