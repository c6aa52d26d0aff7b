package proto

import "ctchen222/Four-In-A-Row/internal/game"

// Message types.
const (
	TypeMove       = "move"
	TypeRematch    = "rematch"
	TypeUpdate     = "update"
	TypeAssignment = "assignment"
	TypeError      = "error"
)

// ClientToServerMessage represents a message from the client to the server.
type ClientToServerMessage struct {
	Type     string `json:"type" validate:"required,oneof=move rematch"`
	Position []int  `json:"position,omitempty" validate:"required_if=Type move,omitempty,len=2,dive,cell"`
}

// ServerToClientMessage represents a message from the server to the client.
// Board is a copy of the grid for the client to draw.
type ServerToClientMessage struct {
	Type     string         `json:"type" validate:"required"`
	Reason   string         `json:"reason,omitempty"`
	Board    *game.Board    `json:"board,omitempty"`
	Next     game.Cell      `json:"next,omitempty"`
	Winner   string         `json:"winner,omitempty"`
	LastMove *game.Position `json:"lastMove,omitempty"`
}

// PlayerAssignmentMessage informs a player of their assigned mark.
type PlayerAssignmentMessage struct {
	Type       string    `json:"type"`
	PlayerID   string    `json:"playerId,omitempty"`
	RoomID     string    `json:"roomId,omitempty"`
	Mark       game.Cell `json:"mark"`
	Difficulty string    `json:"difficulty,omitempty"`
}

// NewUpdateMessage renders a stored game as an "update" message.
func NewUpdateMessage(state *game.State) *ServerToClientMessage {
	board := state.Board.Clone()
	msg := &ServerToClientMessage{
		Type:     TypeUpdate,
		Board:    &board,
		Winner:   state.Result(),
		LastMove: state.LastMove,
	}
	if !state.IsOver() {
		msg.Next = state.CurrentTurn
	}
	return msg
}

// NewErrorMessage tells a single player why their message was rejected.
func NewErrorMessage(reason string) *ServerToClientMessage {
	return &ServerToClientMessage{Type: TypeError, Reason: reason}
}
