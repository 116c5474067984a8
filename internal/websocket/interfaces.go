package websocket

import (
	"time"
)

// Connection is the part of *websocket.Conn the client pumps use.
// Tests substitute an in-memory implementation.
type Connection interface {
	// WriteMessage writes a message with the given message type and payload
	WriteMessage(messageType int, data []byte) error

	// ReadMessage reads a message from the connection
	ReadMessage() (messageType int, p []byte, err error)

	Close() error

	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error

	// SetReadLimit sets the maximum size for a message read from the connection
	SetReadLimit(limit int64)

	// SetPongHandler sets the handler for pong messages
	SetPongHandler(h func(string) error)
}

// Broadcaster is implemented by Hub and consumed by the services that
// announce workbook changes.
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
	ClientCount() int
}
