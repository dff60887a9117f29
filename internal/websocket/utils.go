package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// WriteEvent sends an enveloped event over the WebSocket.
func WriteEvent(conn *websocket.Conn, event Event, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(EventEnvelope{Event: event, Data: data})
}

// WriteError sends a typed error event over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(EventEnvelope{Event: EventError, Error: errMsg})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}
