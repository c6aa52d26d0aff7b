package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"ctchen222/Four-In-A-Row/internal/api/models"
	"ctchen222/Four-In-A-Row/internal/events"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleEvent reacts to an event published by any instance.
func (h *Hub) handleEvent(ctx context.Context, event events.Event) {
	ctx, span := tracer.Start(ctx, "hub.handleEvent", trace.WithAttributes(
		attribute.String("event.type", event.Type),
	))
	defer span.End()

	switch event.Type {
	case events.TypeGameFinished:
		var payload events.GameFinishedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			slog.ErrorContext(ctx, "Could not unmarshal game_finished payload", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Could not unmarshal game_finished payload")
			return
		}
		h.handleGameFinished(ctx, &payload)

	case events.TypeRematchSuccessful:
		var payload events.RematchSuccessfulPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			span.RecordError(err)
			return
		}
		slog.DebugContext(ctx, "Rematch started", "room.id", payload.RoomID)

	case events.TypePlayerDisconnected:
		var payload events.PlayerDisconnectedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			span.RecordError(err)
			return
		}
		slog.DebugContext(ctx, "Player left", "room.id", payload.RoomID, "player.id", payload.PlayerID)

	default:
		slog.WarnContext(ctx, "Unknown event type", "event.type", event.Type)
	}
}

// handleGameFinished stores the finished game in the player's history.
func (h *Hub) handleGameFinished(ctx context.Context, payload *events.GameFinishedPayload) {
	if h.recorder == nil {
		return
	}

	record := &models.GameRecord{
		RoomID:     payload.RoomID,
		PlayerID:   payload.PlayerID,
		BotID:      payload.BotID,
		Difficulty: payload.Difficulty,
		PlayerMark: payload.PlayerMark,
		Winner:     payload.Winner,
		Moves:      payload.Moves,
		FinishedAt: payload.FinishedAt,
	}
	if err := h.recorder.Record(ctx, record); err != nil {
		slog.ErrorContext(ctx, "Failed to record finished game", "room.id", payload.RoomID, "player.id", payload.PlayerID, "error", err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record finished game")
		return
	}
	slog.InfoContext(ctx, "Finished game recorded", "room.id", payload.RoomID, "player.id", payload.PlayerID, "game.winner", payload.Winner)
}
