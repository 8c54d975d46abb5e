package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"challenge-hub-backend/pkg/config"

	"github.com/charmbracelet/log"
	"github.com/matryer/is"
)

func TestGoodNewLogger(t *testing.T) {
	for _, c := range []*config.Config{
		config.DefaultConfig(),
		{},
		{Log: config.LogConfig{Format: "logfmt", Level: "warn"}},
	} {
		if _, err := NewLogger(c); err != nil {
			t.Errorf("NewLogger(%v) => _, %v, want _, nil", c, err)
		}
	}
}

func TestBadNewLogger(t *testing.T) {
	for _, c := range []*config.Config{
		nil,
		{Log: config.LogConfig{Level: "loud"}},
	} {
		if _, err := NewLogger(c); err == nil {
			t.Errorf("NewLogger(%v) => _, nil, want error", c)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer

	l, err := New(&buf, &config.Config{Log: config.LogConfig{Format: "json", Level: "info"}})
	is.NoErr(err)

	l.Debug("hidden")
	l.WithPrefix("partners").Info("transition", "partner", "org1")

	var line map[string]interface{}
	is.NoErr(json.Unmarshal(buf.Bytes(), &line)) // exactly one json line
	is.Equal(line["msg"], "transition")
	is.Equal(line["partner"], "org1")
	is.Equal(line["prefix"], "partners")
}

func TestDebugMode(t *testing.T) {
	is := is.New(t)
	l, err := New(&bytes.Buffer{}, &config.Config{Debug: true, Log: config.LogConfig{Level: "error"}})
	is.NoErr(err)
	is.Equal(l.GetLevel(), log.DebugLevel)
}
