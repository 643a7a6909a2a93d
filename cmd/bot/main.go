// Command bot is a scripted player: it joins, walks around, prints every
// tile it is sent and can rewrite one sign.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tilesync.ai/internal/logging"
	"tilesync.ai/internal/nbt"
	"tilesync.ai/internal/protocol"
	"tilesync.ai/internal/tile"
)

func main() {
	var (
		addr     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		token    = flag.String("token", os.Getenv("TS_TOKEN"), "player token (or set TS_TOKEN)")
		spawn    = flag.String("spawn", "0,64,0", "spawn position x,y,z")
		walk     = flag.Duration("walk", 5*time.Second, "interval between random moves (0 disables)")
		signAt   = flag.String("sign", "", "x,y,z of a sign to rewrite once joined")
		signText = flag.String("text", "", `new sign text; lines separated by "|"`)
	)
	flag.Parse()

	log := logging.New(logging.Options{Level: "info"}).WithField("component", "bot")

	pos, err := parseVec(*spawn)
	if err != nil {
		log.WithError(err).Fatal("bad -spawn")
	}
	u, err := url.Parse(*addr)
	if err != nil {
		log.WithError(err).Fatal("bad -url")
	}
	q := u.Query()
	q.Set("v", protocol.Version)
	q.Set("x", strconv.Itoa(pos[0]))
	q.Set("y", strconv.Itoa(pos[1]))
	q.Set("z", strconv.Itoa(pos[2]))
	u.RawQuery = q.Encode()

	hdr := map[string][]string{}
	if *token != "" {
		hdr["Authorization"] = []string{"Bearer " + *token}
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		if resp != nil {
			log = log.WithField("status", resp.StatusCode)
		}
		log.WithError(err).Fatal("dial")
	}
	defer conn.Close()

	if *signAt != "" {
		at, err := parseVec(*signAt)
		if err != nil {
			log.WithError(err).Fatal("bad -sign")
		}
		rec := nbt.NewCompound().
			SetString(tile.TagID, tile.KindSign).
			SetString(tile.TagText, strings.ReplaceAll(*signText, "|", "\n"))
		if err := send(conn, &protocol.BlockEntityData{
			X: int32(at[0]), Y: int32(at[1]), Z: int32(at[2]),
			NBTData: nbt.Shared().Encode(rec),
		}); err != nil {
			log.WithError(err).Fatal("send sign edit")
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		readLoop(conn, log)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var tick <-chan time.Time
	if *walk > 0 {
		t := time.NewTicker(*walk)
		defer t.Stop()
		tick = t.C
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	x, z := float32(pos[0]), float32(pos[2])
	for {
		select {
		case <-stop:
			_ = send(conn, &protocol.Disconnect{Message: "interrupted"})
			return
		case <-done:
			return
		case <-tick:
			x += float32(r.Intn(33) - 16)
			z += float32(r.Intn(33) - 16)
			if err := send(conn, &protocol.MovePlayer{X: x, Y: float32(pos[1]), Z: z}); err != nil {
				log.WithError(err).Warn("move")
				return
			}
			log.WithField("x", x).WithField("z", z).Debug("moved")
		}
	}
}

func readLoop(conn *websocket.Conn, log logrus.FieldLogger) {
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("connection closed")
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		frames, err := protocol.DecodeBatch(msg, protocol.DefaultMaxBatchSize)
		if err != nil {
			log.WithError(err).Warn("bad batch")
			continue
		}
		for _, f := range frames {
			pk, err := protocol.DecodeFrame(f)
			if err != nil {
				log.WithError(err).Warn("bad frame")
				continue
			}
			switch pk := pk.(type) {
			case *protocol.BlockEntityData:
				rec, err := nbt.Decode(pk.NBTData)
				if err != nil {
					log.WithError(err).Warn("bad tile record")
					continue
				}
				id, _ := rec.GetString(tile.TagID)
				log.WithField("pos", fmt.Sprintf("%d,%d,%d", pk.X, pk.Y, pk.Z)).
					WithField("kind", id).
					Info(rec.String())
			case *protocol.Disconnect:
				log.WithField("code", pk.Code).Warn(pk.Message)
				return
			}
		}
	}
}

func send(conn *websocket.Conn, pk protocol.Packet) error {
	b, err := protocol.EncodeBatch([][]byte{protocol.EncodeFrame(pk)}, 1)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.BinaryMessage, b)
}

func parseVec(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("want x,y,z: %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return v, fmt.Errorf("want x,y,z: %q", s)
		}
		v[i] = n
	}
	return v, nil
}
