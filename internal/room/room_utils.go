package room

import (
	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"
)

// AddPlayer adds a player to the room.
func (r *Room) AddPlayer(p *player.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Players = append(r.Players, p)
}

// IncomingMoves returns the channel for incoming player moves.
func (r *Room) IncomingMoves() chan<- *types.PlayerMove {
	return r.incomingMoves
}
