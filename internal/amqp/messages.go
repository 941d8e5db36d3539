package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is also the routing key of the message.
type EventType string

const (
	InstanceCreated EventType = "instance.created"
	InstanceUpdated EventType = "instance.updated"
	InstanceDeleted EventType = "instance.deleted"
)

// EventTypes lists every routing key the queue is bound to.
var EventTypes = []EventType{InstanceCreated, InstanceUpdated, InstanceDeleted}

// InstanceEvent announces a change to a bill instance. Consumers reload
// the instance from storage; deleted events carry enough to find the
// exported row.
type InstanceEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id"`
	BillID     string    `json:"bill_id"`
	UserID     string    `json:"user_id"`
	Period     string    `json:"period"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInstanceEvent creates an event with a fresh message id.
func NewInstanceEvent(t EventType, instanceID, billID, userID, period string) *InstanceEvent {
	return &InstanceEvent{
		ID:         uuid.New().String(),
		Type:       t,
		InstanceID: instanceID,
		BillID:     billID,
		UserID:     userID,
		Period:     period,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InstanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InstanceEventFromJSON decodes and checks a message body.
func InstanceEventFromJSON(data []byte) (*InstanceEvent, error) {
	var msg InstanceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InstanceID == "" {
		return nil, fmt.Errorf("event %s has no instance id", msg.ID)
	}
	return &msg, nil
}
