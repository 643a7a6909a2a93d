// Command schemagen regenerates the admin API JSON schemas under schemas/
// from the Go response types.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"tilesync.ai/internal/level"
	"tilesync.ai/internal/transport/admin"
)

type target struct {
	file        string
	value       any
	title       string
	description string
}

var targets = []target{
	{"tiles.schema.json", new(admin.TilesResponse), "TilesResponse", "Tile listing served by GET /admin/v1/tiles."},
	{"stats.schema.json", new(admin.StatsResponse), "StatsResponse", "Level, session and index counters served by GET /admin/v1/stats."},
	{"edits.schema.json", new(admin.EditsResponse), "EditsResponse", "Indexed edit audits served by GET /admin/v1/edits."},
	{"place.schema.json", new(level.PlaceSpec), "PlaceSpec", "Body of POST /admin/v1/tiles."},
}

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "schemas", "directory to write the JSON schemas into")
	flag.Parse()

	for _, tg := range targets {
		schema := buildSchema(tg)
		if err := writeSchema(filepath.Join(outDir, tg.file), schema); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", tg.file, err)
			os.Exit(1)
		}
	}
}

func buildSchema(tg target) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(tg.value)
	schema.Title = tg.title
	schema.Description = tg.description
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	return os.Rename(tmpPath, outPath)
}
