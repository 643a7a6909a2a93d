package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tilesync.ai/internal/auth"
	"tilesync.ai/internal/config"
	"tilesync.ai/internal/level"
	persistlog "tilesync.ai/internal/persistence/log"
)

const usage = `usage: admin <command> [flags]

local:
  token          issue a token signed with <data>/jwt.key
  hash-password  print a bcrypt hash for auth.admin_password_hash
  edits          scan the edit audit logs
  db             query the sqlite index (edits | ticks)

remote (admin HTTP API):
  login | tiles | stats | place | remove`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "token":
		tokenCmd(args)
	case "hash-password":
		hashPasswordCmd(args)
	case "edits":
		editsCmd(args)
	case "db":
		dbCmd(args)
	case "login":
		loginCmd(args)
	case "tiles":
		getCmd("tiles", "/admin/v1/tiles", args)
	case "stats":
		getCmd("stats", "/admin/v1/stats", args)
	case "place":
		placeCmd(args)
	case "remove":
		removeCmd(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func tokenCmd(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "./configs/server.yaml", "server config path")
	dataDir := fs.String("data", "", "runtime data directory (overrides data_dir)")
	subject := fs.String("sub", "", "token subject (player id)")
	role := fs.String("role", auth.RolePlayer, "player or admin")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal("load config", err)
	}
	if err != nil {
		cfg = config.Defaults()
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *ttl > 0 {
		cfg.Auth.TokenTTL = *ttl
	}
	if *role != auth.RolePlayer && *role != auth.RoleAdmin {
		fmt.Fprintln(os.Stderr, "-role must be player or admin")
		os.Exit(2)
	}

	a, err := auth.Open(cfg.DataDir, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		fatal("open auth", err)
	}
	tok, err := a.Issue(*subject, *role)
	if err != nil {
		fatal("issue", err)
	}
	fmt.Println(tok)
}

func hashPasswordCmd(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	_ = fs.Parse(args)

	pw := os.Getenv("TS_ADMIN_PASSWORD")
	if pw == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatal("read password", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	h, err := auth.HashPassword(pw)
	if err != nil {
		fatal("hash", err)
	}
	fmt.Println(h)
}

// editFilter selects audit entries by tick range, player, outcome and box.
type editFilter struct {
	sinceTick, toTick uint64
	player            string
	rejectedOnly      bool
	box               *[2][3]int
}

func (f editFilter) match(e level.EditAudit) bool {
	if e.Tick < f.sinceTick || (f.toTick > 0 && e.Tick > f.toTick) {
		return false
	}
	if f.player != "" && e.Player != f.player {
		return false
	}
	if f.rejectedOnly && e.Accepted {
		return false
	}
	if f.box != nil && !withinAABB(e.Pos, f.box[0], f.box[1]) {
		return false
	}
	return true
}

func editsCmd(args []string) {
	fs := flag.NewFlagSet("edits", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	since := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, 0 = no limit)")
	player := fs.String("player", "", "player filter")
	rejected := fs.Bool("rejected", false, "only rejected edits")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2")
	_ = fs.Parse(args)

	f := editFilter{sinceTick: *since, toTick: *to, player: strings.TrimSpace(*player), rejectedOnly: *rejected}
	if strings.TrimSpace(*aabb) != "" {
		min, max, err := parseAABB(*aabb)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -aabb:", err)
			os.Exit(2)
		}
		f.box = &[2][3]int{min, max}
	}

	n, err := scanEdits(filepath.Join(*dataDir, "edits"), f, func(e level.EditAudit) {
		b, _ := json.Marshal(e)
		fmt.Println(string(b))
	})
	if err != nil {
		fatal("read edits", err)
	}
	fmt.Fprintf(os.Stderr, "%d matching edits\n", n)
}

func scanEdits(dir string, f editFilter, emit func(level.EditAudit)) (int, error) {
	files, err := persistlog.ListFiles(dir, "edits")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(e level.EditAudit) error {
			if f.match(e) {
				n++
				emit(e)
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
