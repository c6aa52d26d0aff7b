package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	slog.Handler
}

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink unavailable")
}

func TestMultiHandler_RespectsEachLevel(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	log := slog.New(h)

	log.Debug("searching", "bot.depth", 7)
	log.Warn("no move")

	assert.Contains(t, debug.String(), "searching")
	assert.Contains(t, debug.String(), "no move")
	assert.NotContains(t, warn.String(), "searching")
	assert.Contains(t, warn.String(), "no move")
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMultiHandler(slog.NewTextHandler(&buf, nil)))

	log.With("room.id", "r1").WithGroup("move").Info("played", "row", 2)

	assert.Contains(t, buf.String(), "room.id=r1")
	assert.Contains(t, buf.String(), "move.row=2")
}

func TestMultiHandler_KeepsGoingAfterError(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{text}, text)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	err := h.Handle(context.Background(), rec)

	require.Error(t, err)
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_FiltersConsoleByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Info("quiet")
	log.Error("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
