// Package config loads the server configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	// ViewRadius is in chunks around the player's chunk.
	ViewRadius int `yaml:"view_radius"`
	// MaxQueue bounds each connection's outbound packet queue.
	MaxQueue int `yaml:"max_queue"`
	// SpawnBudget caps first-observation spawns per player per tick. It
	// must stay below MaxQueue or a join into a busy area overflows the
	// queue.
	SpawnBudget           int    `yaml:"spawn_budget"`
	BatchCompressionLevel int    `yaml:"batch_compression_level"`
	DataDir               string `yaml:"data_dir"`

	Log   Log   `yaml:"log"`
	Index Index `yaml:"index"`
	Auth  Auth  `yaml:"auth"`

	SeedTiles []SeedTile `yaml:"seed_tiles"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Index struct {
	Enabled bool `yaml:"enabled"`
}

type Auth struct {
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	// AdminPasswordHash is a bcrypt hash; empty disables admin login.
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// SeedTile is placed when the server starts.
type SeedTile struct {
	Kind    string   `yaml:"kind"`
	Pos     [3]int32 `yaml:"pos"`
	Text    []string `yaml:"text"`
	Creator string   `yaml:"creator"`
	Name    string   `yaml:"name"`
}

func Defaults() Config {
	return Config{
		TickRateHz:            20,
		ViewRadius:            4,
		MaxQueue:              256,
		SpawnBudget:           64,
		BatchCompressionLevel: 6,
		DataDir:               "./data",
		Log:                   Log{Level: "info", Format: "text"},
		Index:                 Index{Enabled: true},
		Auth:                  Auth{Issuer: "tilesync", TokenTTL: 24 * time.Hour},
	}
}

// Load overlays the file at path on Defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.TickRateHz < 1 || c.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz out of range: %d", c.TickRateHz))
	}
	if c.ViewRadius < 0 || c.ViewRadius > 32 {
		errs = append(errs, fmt.Errorf("view_radius out of range: %d", c.ViewRadius))
	}
	if c.MaxQueue < 1 {
		errs = append(errs, fmt.Errorf("max_queue must be positive: %d", c.MaxQueue))
	}
	if c.SpawnBudget < 1 || c.SpawnBudget >= c.MaxQueue {
		errs = append(errs, fmt.Errorf("spawn_budget must be in [1, max_queue): %d", c.SpawnBudget))
	}
	// -2 is flate.HuffmanOnly.
	if c.BatchCompressionLevel < -2 || c.BatchCompressionLevel > 9 {
		errs = append(errs, fmt.Errorf("batch_compression_level out of range: %d", c.BatchCompressionLevel))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json: %q", c.Log.Format))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be positive: %s", c.Auth.TokenTTL))
	}
	if h := c.Auth.AdminPasswordHash; h != "" && !strings.HasPrefix(h, "$2") {
		errs = append(errs, errors.New("auth.admin_password_hash is not a bcrypt hash"))
	}
	for i, s := range c.SeedTiles {
		if strings.TrimSpace(s.Kind) == "" {
			errs = append(errs, fmt.Errorf("seed_tiles[%d]: kind is required", i))
		}
	}
	return errors.Join(errs...)
}
