package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ItemChangedMessage announces that a budget item was created, updated or
// deleted. Consumers fetch the current record from the store themselves.
type ItemChangedMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemChangedMessage creates a message stamped with the current time.
func NewItemChangedMessage(id int64, op, field string) *ItemChangedMessage {
	return &ItemChangedMessage{
		ID:        id,
		Op:        op,
		Field:     field,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ItemChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ItemChangedMessageFromJSON parses and validates a message body.
func ItemChangedMessageFromJSON(data []byte) (*ItemChangedMessage, error) {
	var msg ItemChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid item id %d", msg.ID)
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
