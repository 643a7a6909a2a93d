package main

import (
	"path/filepath"
	"testing"

	"tilesync.ai/internal/level"
	persistlog "tilesync.ai/internal/persistence/log"
)

func TestParseAABB_Normalizes(t *testing.T) {
	min, max, err := parseAABB("5,70,-3:-1,60,4")
	if err != nil {
		t.Fatalf("parseAABB: %v", err)
	}
	if min != [3]int{-1, 60, -3} || max != [3]int{5, 70, 4} {
		t.Fatalf("min=%v max=%v", min, max)
	}
	if _, _, err := parseAABB("1,2,3"); err == nil {
		t.Fatalf("expected error for missing second corner")
	}
	if _, _, err := parseAABB("1,2:3,4,5"); err == nil {
		t.Fatalf("expected error for short vector")
	}
}

func TestEditFilter(t *testing.T) {
	box := [2][3]int{{0, 0, 0}, {15, 255, 15}}
	f := editFilter{sinceTick: 10, toTick: 20, player: "alice", rejectedOnly: true, box: &box}

	cases := []struct {
		name string
		e    level.EditAudit
		want bool
	}{
		{"match", level.EditAudit{Tick: 12, Player: "alice", Pos: [3]int{1, 64, 1}}, true},
		{"accepted", level.EditAudit{Tick: 12, Player: "alice", Pos: [3]int{1, 64, 1}, Accepted: true}, false},
		{"early", level.EditAudit{Tick: 9, Player: "alice", Pos: [3]int{1, 64, 1}}, false},
		{"late", level.EditAudit{Tick: 21, Player: "alice", Pos: [3]int{1, 64, 1}}, false},
		{"other player", level.EditAudit{Tick: 12, Player: "bob", Pos: [3]int{1, 64, 1}}, false},
		{"outside box", level.EditAudit{Tick: 12, Player: "alice", Pos: [3]int{16, 64, 1}}, false},
	}
	for _, tc := range cases {
		if got := f.match(tc.e); got != tc.want {
			t.Fatalf("%s: match=%v want %v", tc.name, got, tc.want)
		}
	}

	if !(editFilter{}).match(level.EditAudit{Tick: 1 << 40, Accepted: true}) {
		t.Fatalf("zero filter should match everything")
	}
}

func TestScanEdits_ReadsRotatedLogs(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewEditLogger(dir)
	for i := 0; i < 5; i++ {
		if err := l.WriteEdit(level.EditAudit{Tick: uint64(i), Player: "p", Accepted: i%2 == 0}); err != nil {
			t.Fatalf("WriteEdit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var ticks []uint64
	n, err := scanEdits(filepath.Join(dir, "edits"), editFilter{rejectedOnly: true}, func(e level.EditAudit) {
		ticks = append(ticks, e.Tick)
	})
	if err != nil {
		t.Fatalf("scanEdits: %v", err)
	}
	if n != 2 || len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 3 {
		t.Fatalf("n=%d ticks=%v", n, ticks)
	}
}
