package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})
	// Empty LOG_LEVEL is set but unparsable: falls back to info.
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level=%s want info", log.GetLevel())
	}
	log.WithField("tile_id", 7).Info("placed")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not json: %q", buf.String())
	}
	if m["msg"] != "placed" || m["tile_id"] != float64(7) {
		t.Fatalf("entry=%v", m)
	}
}

func TestNew_OptionsWithoutEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	var buf bytes.Buffer
	log := New(Options{Level: "error", Format: "json", Output: &buf})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("env level ignored: %s", log.GetLevel())
	}
	log.Debug("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text output=%q", buf.String())
	}
}
