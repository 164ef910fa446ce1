package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	dir := t.TempDir()

	l, err := New(Options{Label: "unit", Dir: dir, Level: "debug", Console: &console})
	require.NoError(t, err)

	l.Info("replayed %d ticks", 42)
	l.Trade("closed %s", "005930")
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "backtest session started")
	assert.Contains(t, console.String(), "replayed 42 ticks")
	assert.Contains(t, console.String(), "closed 005930")

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(l.Path(), dir))
	assert.Contains(t, string(data), `"label":"unit"`)
	assert.Contains(t, string(data), `"kind":"trade"`)
}

func TestNew_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	l, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warning("shown %d", 1)
	require.NoError(t, l.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown 1")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("run_id", "abc")

	l.Infow("instrument done", "trades", 3)
	l.Error("failed: %v", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].ContextMap()["run_id"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["trades"])
	assert.Equal(t, "failed: boom", entries[1].Message)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.Debugw("nothing", "k", 1)
	assert.NoError(t, l.Close())
	assert.Empty(t, l.Path())
}
