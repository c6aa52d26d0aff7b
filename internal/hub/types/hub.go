package types

import (
	"context"

	"ctchen222/Four-In-A-Row/internal/player"
)

// RegistrationRequest asks the hub to open a game for a freshly connected player.
type RegistrationRequest struct {
	Player     *player.Player
	PlayerID   string
	Difficulty string `validate:"required,difficulty"`
	Ctx        context.Context
}

// PlayerMove is a raw client message queued for a room.
type PlayerMove struct {
	Player  *player.Player
	Message []byte
}
