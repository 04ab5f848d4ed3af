// Package hub fans scan events out to websocket clients using a single
// goroutine that owns the client set.
package hub

import "encoding/json"

// Message is one JSON text frame broadcast to clients.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// EncodeJSON builds a JSON message from v.
func EncodeJSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
