package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tilesync.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/tiles.sqlite)")
	limit := fs.Int("limit", 20, "result limit (edits)")
	player := fs.String("player", "", "player filter (edits)")
	rejected := fs.Bool("rejected", false, "only rejected edits (edits)")
	from := fs.Uint64("from", 0, "first tick (ticks)")
	to := fs.Uint64("to", 0, "last tick (ticks; 0 = latest)")
	_ = fs.Parse(args)

	q := "edits"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "tiles.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fatal("open", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fatal("open", err)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "edits":
		edits, err := idx.QueryEdits(ctx, indexdb.EditQuery{
			Player:   strings.TrimSpace(*player),
			Rejected: *rejected,
			Limit:    *limit,
		})
		if err != nil {
			fatal("query", err)
		}
		for _, e := range edits {
			_ = enc.Encode(e)
		}
	case "ticks":
		end := *to
		if end == 0 {
			end = 1<<63 - 1
		}
		totals, err := idx.SumTicks(ctx, *from, end)
		if err != nil {
			fatal("query", err)
		}
		_ = enc.Encode(totals)
	default:
		fmt.Fprintf(os.Stderr, "unknown db query %q (want edits or ticks)\n", q)
		os.Exit(2)
	}
}
