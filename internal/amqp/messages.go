package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidMessage = errors.New("invalid change message")

// ChangeMessage announces that path/key was written. It carries no record
// data; receivers re-read the path from the shared store.
type ChangeMessage struct {
	Path      string    `json:"path"`
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(path, key, origin string) *ChangeMessage {
	return &ChangeMessage{
		Path:      path,
		Key:       key,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Path == "" || msg.Key == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
