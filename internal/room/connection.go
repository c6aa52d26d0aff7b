package room

import (
	"context"
	"encoding/json"
	"log/slog"

	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Broadcast sends a message to all connected players in the room.
// Callers hold r.mu.
func (r *Room) Broadcast(ctx context.Context, message any) {
	ctx, span := tracer.Start(ctx, "room.Broadcast", trace.WithAttributes(
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling message")
		return
	}

	for _, p := range r.Players {
		if p.Status == player.StatusConnected {
			if err := p.Send(websocket.TextMessage, data); err != nil {
				slog.ErrorContext(ctx, "error writing message to player", "player.id", p.ID, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Error writing message to player")
			}
		}
	}
}

// sendTo writes a message to a single player.
func (r *Room) sendTo(ctx context.Context, p *player.Player, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "player.id", p.ID, "error", err)
		return
	}
	if err := p.Send(websocket.TextMessage, data); err != nil {
		slog.ErrorContext(ctx, "error writing message to player", "player.id", p.ID, "room.id", r.ID, "error", err)
	}
}

// ReadPump pumps messages from the websocket connection to the room's incomingMoves channel.
// When the connection fails the player is marked disconnected and handed to unregisterPlayer.
func (r *Room) ReadPump(p *player.Player, unregisterPlayer chan<- *player.Player) {
	ctx, span := tracer.Start(context.Background(), "room.ReadPump", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	defer func() {
		r.mu.Lock()
		p.Status = player.StatusDisconnected
		r.mu.Unlock()

		select {
		case unregisterPlayer <- p:
			slog.InfoContext(ctx, "Player disconnected.", "player.id", p.ID, "room.id", r.ID)
		case <-r.Done:
		}
	}()

	for {
		_, msg, err := p.Conn.ReadMessage()
		if err != nil {
			if !r.IsClosed() {
				slog.WarnContext(ctx, "Player connection error", "player.id", p.ID, "room.id", r.ID, "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "Player connection error")
			}
			return
		}

		select {
		case r.incomingMoves <- &types.PlayerMove{Player: p, Message: msg}:
		case <-r.Done:
			return
		}
	}
}
