package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ctchen222/Four-In-A-Row/internal/events"
	"ctchen222/Four-In-A-Row/internal/game"
	"ctchen222/Four-In-A-Row/internal/player"
	"ctchen222/Four-In-A-Row/internal/repository"
	"ctchen222/Four-In-A-Row/internal/validator"
	"ctchen222/Four-In-A-Row/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reasons sent back to a player whose message was rejected.
const (
	ReasonMalformed      = "malformed message"
	ReasonInvalidMessage = "invalid message"
	ReasonNotInRoom      = "not a player in this room"
	ReasonNotYourTurn    = "not your turn"
	ReasonCellOccupied   = "cell already taken"
	ReasonOutOfRange     = "position out of range"
	ReasonGameOver       = "game already finished"
	ReasonGameNotOver    = "game is not over"
	ReasonInternal       = "internal error, please retry"
)

// HandleMessage handles a message from a player. It acts as a dispatcher.
func (r *Room) HandleMessage(p *player.Player, rawMessage []byte) {
	ctx := context.Background()
	ctx, span := tracer.Start(ctx, "room.HandleMessage", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Status == player.StatusDisconnected {
		slog.WarnContext(ctx, "ignoring message from disconnected player", "player.id", p.ID)
		span.SetStatus(codes.Error, "Message from disconnected player")
		return
	}

	var message proto.ClientToServerMessage
	if err := json.Unmarshal(rawMessage, &message); err != nil {
		slog.WarnContext(ctx, "error unmarshalling message", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error unmarshalling message")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonMalformed))
		return
	}

	if err := validator.GetValidator().Struct(message); err != nil {
		slog.WarnContext(ctx, "invalid message from player", "player.id", p.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid message format")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonInvalidMessage))
		return
	}

	span.SetAttributes(attribute.String("message.type", message.Type))

	switch message.Type {
	case proto.TypeMove:
		r.handleMove(ctx, p, &message)
	case proto.TypeRematch:
		r.handleRematch(ctx, p)
	}
}

// handleMove processes a player's move.
func (r *Room) handleMove(ctx context.Context, p *player.Player, message *proto.ClientToServerMessage) {
	row, col := message.Position[0], message.Position[1]
	ctx, moveSpan := tracer.Start(ctx, "room.handleMove", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
		attribute.Int("move.row", row),
		attribute.Int("move.col", col),
	))
	defer moveSpan.End()

	gameState, err := r.gameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "handleMove could not find game state for room", "room.id", r.ID, "error", err)
		moveSpan.RecordError(err)
		moveSpan.SetStatus(codes.Error, "Could not find game state")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonInternal))
		return
	}

	playerMark := gameState.MarkOf(p.ID)
	if playerMark == game.Empty {
		slog.WarnContext(ctx, "player is not part of room", "player.id", p.ID, "room.id", r.ID)
		moveSpan.SetStatus(codes.Error, "Player not part of room")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonNotInRoom))
		return
	}

	updated, err := r.gameRepo.Update(ctx, r.ID, playerMark, row, col)
	if err != nil {
		slog.WarnContext(ctx, "invalid move from player", "player.id", p.ID, "row", row, "col", col, "error", err)
		moveSpan.SetAttributes(attribute.Bool("move.valid", false))
		moveSpan.RecordError(err)
		moveSpan.SetStatus(codes.Error, "Invalid move")
		r.sendTo(ctx, p, proto.NewErrorMessage(rejectionReason(err)))
		return
	}
	moveSpan.SetAttributes(attribute.Bool("move.valid", true))

	r.Broadcast(ctx, proto.NewUpdateMessage(updated))

	if updated.IsOver() {
		slog.InfoContext(ctx, "Game finished", "room.id", r.ID, "game.result", updated.Result(), "game.moves", updated.Moves)
		r.publishGameFinished(ctx, updated)
	}
}

// handleRematch restarts a finished game. The bot always accepts.
func (r *Room) handleRematch(ctx context.Context, p *player.Player) {
	ctx, span := tracer.Start(ctx, "room.handleRematch", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	gameState, err := r.gameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "could not get game state for rematch", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not get game state for rematch")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonInternal))
		return
	}

	if !gameState.IsOver() {
		slog.WarnContext(ctx, "Player requested rematch, but game is not over", "player.id", p.ID)
		span.SetStatus(codes.Error, "Rematch requested before game over")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonGameNotOver))
		return
	}

	first := game.RandomlyChooseFirstPlayer()
	if err := r.gameRepo.Create(ctx, r.ID, gameState.HumanID, gameState.BotID, gameState.Difficulty, first); err != nil {
		slog.ErrorContext(ctx, "failed to reset game for rematch", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to reset game for rematch")
		r.sendTo(ctx, p, proto.NewErrorMessage(ReasonInternal))
		return
	}
	slog.InfoContext(ctx, "Bot auto-accepts rematch. Game reset.", "room.id", r.ID, "game.first", first.String())

	if err := r.publisher.Publish(ctx, events.TypeRematchSuccessful, events.RematchSuccessfulPayload{RoomID: r.ID}); err != nil {
		slog.ErrorContext(ctx, "failed to publish rematch_successful event", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish rematch_successful event")
	}

	r.sendInitialState(ctx)
}

func (r *Room) publishGameFinished(ctx context.Context, state *game.State) {
	payload := events.GameFinishedPayload{
		RoomID:     r.ID,
		PlayerID:   state.HumanID,
		BotID:      state.BotID,
		Difficulty: state.Difficulty,
		PlayerMark: state.MarkOf(state.HumanID).String(),
		Winner:     state.Result(),
		Moves:      state.Moves,
		FinishedAt: time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, events.TypeGameFinished, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish game_finished event", "room.id", r.ID, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// SendInitialState sends every player its assignment followed by the current board.
func (r *Room) SendInitialState(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendInitialState(ctx)
}

func (r *Room) sendInitialState(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "room.sendInitialState", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.Int("players.count", len(r.Players)),
	))
	defer span.End()

	state, err := r.gameRepo.FindByID(ctx, r.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Could not get initial game state", "room.id", r.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not get initial game state")
		return
	}

	for _, p := range r.Players {
		mark := state.MarkOf(p.ID)
		if mark == game.Empty || p.Status != player.StatusConnected {
			continue
		}
		r.sendTo(ctx, p, &proto.PlayerAssignmentMessage{
			Type:       proto.TypeAssignment,
			PlayerID:   p.ID,
			RoomID:     r.ID,
			Mark:       mark,
			Difficulty: state.Difficulty,
		})
	}

	r.Broadcast(ctx, proto.NewUpdateMessage(state))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrNotPlayersTurn):
		return ReasonNotYourTurn
	case errors.Is(err, game.ErrCellOccupied):
		return ReasonCellOccupied
	case errors.Is(err, game.ErrOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, game.ErrGameOver):
		return ReasonGameOver
	}
	return ReasonInternal
}
