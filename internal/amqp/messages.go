package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Change operations carried by ChangeMessage.Op.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSet    = "set"
)

// ChangeMessage announces that one collection of one user changed. It holds
// no record data: consumers re-read the store.
type ChangeMessage struct {
	Scope      string    `json:"scope"`
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChangeMessage(scope, collection, op, id string) *ChangeMessage {
	return &ChangeMessage{
		Scope:      scope,
		Collection: collection,
		Op:         op,
		ID:         id,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Scope == "" || msg.Collection == "" {
		return nil, errors.New("change message missing scope or collection")
	}
	return &msg, nil
}
