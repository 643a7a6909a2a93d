package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tilesync.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the optional read-model index. TS_INDEX_BACKEND
// overrides the config switch.
func openRuntimeIndex(dataDir string, enabled bool) (*indexdb.SQLiteIndex, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TS_INDEX_BACKEND")))
	if backend == "" {
		if !enabled {
			return nil, nil
		}
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "tiles.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported TS_INDEX_BACKEND: %s", backend)
	}
}
