package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tilesync.ai/internal/auth"
	"tilesync.ai/internal/config"
	"tilesync.ai/internal/level"
	"tilesync.ai/internal/logging"
	"tilesync.ai/internal/persistence/indexdb"
	persistlog "tilesync.ai/internal/persistence/log"
	"tilesync.ai/internal/transport/admin"
	"tilesync.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/server.yaml", "server config path")
		dataDir    = flag.String("data", "", "runtime data directory (overrides data_dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Defaults()
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *disableDB {
		cfg.Index.Enabled = false
	}

	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logger.WithField("component", "server")
	if os.IsNotExist(err) {
		log.WithField("path", *configPath).Warn("config not found; using defaults")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.WithError(err).Fatal("create data dir")
	}

	authn, err := auth.Open(cfg.DataDir, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("open auth")
	}
	hash := cfg.Auth.AdminPasswordHash
	if v := strings.TrimSpace(os.Getenv("TS_ADMIN_PASSWORD_HASH")); v != "" {
		hash = v
	}
	authn.SetAdminPasswordHash(hash)
	if hash == "" {
		log.Info("admin login disabled (no admin_password_hash)")
	}

	idx, err := openRuntimeIndex(cfg.DataDir, cfg.Index.Enabled)
	if err != nil {
		log.WithError(err).Fatal("open index backend")
	}
	if idx != nil {
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(cfg.DataDir)
	editLog := persistlog.NewEditLogger(cfg.DataDir)
	defer tickLog.Close()
	defer editLog.Close()

	tl := multiTickLogger{a: tickLog}
	el := multiEditLogger{a: editLog}
	if idx != nil {
		tl.b, el.b = idx, idx
	}

	lcfg := level.Config{TickRateHz: cfg.TickRateHz, ViewRadius: cfg.ViewRadius, SpawnBudget: cfg.SpawnBudget}
	lvl := level.New(lcfg,
		level.WithLogger(logger.WithField("component", "level")),
		level.WithTickLogger(tl),
		level.WithEditLogger(el),
	)
	seedTiles(lvl, cfg.SeedTiles, log)

	ctx, cancel := signalContext()
	defer cancel()

	levelDone := runLevel(ctx, lvl, log)

	wsSrv := ws.NewServer(lvl, authn, logger.WithField("component", "ws"), ws.Config{
		MaxQueue:         cfg.MaxQueue,
		CompressionLevel: cfg.BatchCompressionLevel,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		writeMetrics(rw, lvl.Metrics(), wsSrv.Stats(), idx)
	})

	if envBool("TS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		opts := []admin.Option{admin.WithSessions(wsSrv.Stats)}
		if idx != nil {
			opts = append(opts, admin.WithIndex(idx))
		}
		admin.NewServer(lvl, authn, logger.WithField("component", "admin"), opts...).Routes(mux)
	} else {
		log.Info("admin endpoints disabled (TS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.WithField("addr", *addr).WithField("tick_rate_hz", cfg.TickRateHz).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("ListenAndServe")
	}
	// The sinks are closed by the defers above; the level must not be
	// mid-step when that happens.
	cancel()
	<-levelDone
	log.Info("level stopped")
}

// runLevel starts the level loop and returns a channel closed once Run has
// returned.
func runLevel(ctx context.Context, lvl *level.Level, log logrus.FieldLogger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := lvl.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Warn("level stopped")
		}
	}()
	return done
}

// seedTiles places the configured tiles before the loop starts.
func seedTiles(lvl *level.Level, seeds []config.SeedTile, log logrus.FieldLogger) {
	for _, s := range seeds {
		id, err := lvl.PlaceTile(level.PlaceSpec{
			Kind:    s.Kind,
			Pos:     s.Pos,
			Creator: s.Creator,
			Text:    s.Text,
			Name:    s.Name,
		})
		if err != nil {
			log.WithError(err).WithField("kind", s.Kind).Warn("seed tile skipped")
			continue
		}
		log.WithField("tile_id", id).WithField("kind", s.Kind).Debug("seed tile placed")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(rw http.ResponseWriter, m level.Metrics, s ws.Stats, idx *indexdb.SQLiteIndex) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(rw, "# HELP tilesync_level_tick Current level tick.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_tick gauge\n")
	fmt.Fprintf(rw, "tilesync_level_tick %d\n", m.Tick)

	fmt.Fprintf(rw, "# HELP tilesync_level_players Joined players.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_players gauge\n")
	fmt.Fprintf(rw, "tilesync_level_players %d\n", m.Players)

	fmt.Fprintf(rw, "# HELP tilesync_level_tiles Placed tiles.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_tiles gauge\n")
	fmt.Fprintf(rw, "tilesync_level_tiles %d\n", m.Tiles)

	fmt.Fprintf(rw, "# HELP tilesync_level_scheduled Tiles scheduled for the next tick.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_scheduled gauge\n")
	fmt.Fprintf(rw, "tilesync_level_scheduled %d\n", m.Scheduled)

	fmt.Fprintf(rw, "# HELP tilesync_level_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_step_ms gauge\n")
	fmt.Fprintf(rw, "tilesync_level_step_ms %.3f\n", m.LastTick.StepMS)

	fmt.Fprintf(rw, "# HELP tilesync_level_queue_depth Request channel backlog.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_level_queue_depth gauge\n")
	for _, q := range []struct {
		name string
		n    int
	}{
		{"join", m.QueueDepths.Join},
		{"leave", m.QueueDepths.Leave},
		{"move", m.QueueDepths.Move},
		{"edit", m.QueueDepths.Edit},
		{"place", m.QueueDepths.Place},
		{"remove", m.QueueDepths.Remove},
	} {
		fmt.Fprintf(rw, "tilesync_level_queue_depth{queue=%q} %d\n", q.name, q.n)
	}

	fmt.Fprintf(rw, "# HELP tilesync_broadcasts_total Dirty tiles broadcast.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_broadcasts_total counter\n")
	fmt.Fprintf(rw, "tilesync_broadcasts_total %d\n", m.Totals.Broadcasts)

	fmt.Fprintf(rw, "# HELP tilesync_packets_total Tile data packets sent to observers.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_packets_total counter\n")
	fmt.Fprintf(rw, "tilesync_packets_total %d\n", m.Totals.Packets)

	fmt.Fprintf(rw, "# HELP tilesync_cache_builds_total Spawn compound serializations.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_cache_builds_total counter\n")
	fmt.Fprintf(rw, "tilesync_cache_builds_total %d\n", m.Totals.Builds)

	fmt.Fprintf(rw, "# HELP tilesync_edits_total Client edits by outcome.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_edits_total counter\n")
	fmt.Fprintf(rw, "tilesync_edits_total{outcome=%q} %d\n", "accepted", m.Totals.EditsAccepted)
	fmt.Fprintf(rw, "tilesync_edits_total{outcome=%q} %d\n", "rejected", m.Totals.EditsRejected)

	fmt.Fprintf(rw, "# HELP tilesync_sessions Open websocket sessions.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_sessions gauge\n")
	fmt.Fprintf(rw, "tilesync_sessions %d\n", s.Sessions)

	fmt.Fprintf(rw, "# HELP tilesync_sessions_kicked_total Sessions kicked for backpressure.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_sessions_kicked_total counter\n")
	fmt.Fprintf(rw, "tilesync_sessions_kicked_total %d\n", s.Kicked)

	fmt.Fprintf(rw, "# HELP tilesync_ws_bytes_out_total Compressed bytes written to websockets.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_ws_bytes_out_total counter\n")
	fmt.Fprintf(rw, "tilesync_ws_bytes_out_total %d\n", s.BytesOut)

	if idx == nil {
		return
	}
	st := idx.Stats()
	fmt.Fprintf(rw, "# HELP tilesync_index_queue_depth Index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "tilesync_index_queue_depth %d\n", st.QueueDepth)

	fmt.Fprintf(rw, "# HELP tilesync_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE tilesync_index_dropped_total counter\n")
	fmt.Fprintf(rw, "tilesync_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
	fmt.Fprintf(rw, "tilesync_index_dropped_total{kind=%q} %d\n", "edit", st.DropEditTotal)
}
