package player

import (
	"sync"
	"time"
)

// PlayerStatus is the connection state of a player.
type PlayerStatus string

const (
	StatusConnected    PlayerStatus = "connected"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Player represents a participant in a room, human or bot.
type Player struct {
	ID       string
	Conn     Connection
	IsBot    bool
	Status   PlayerStatus
	LastSeen time.Time

	writeMu sync.Mutex
}

// NewPlayer creates a connected player.
func NewPlayer(id string, conn Connection) *Player {
	return &Player{
		ID:       id,
		Conn:     conn,
		Status:   StatusConnected,
		LastSeen: time.Now(),
	}
}

// Send writes one message to the player's connection. Writes are serialised
// because websocket connections allow a single concurrent writer.
func (p *Player) Send(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.Conn.WriteMessage(messageType, data)
}
