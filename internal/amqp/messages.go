package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ActivityMessage describes one committed ledger mutation.
type ActivityMessage struct {
	MutationID string    `json:"mutation_id"`
	UID        string    `json:"uid"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary"`
	Amount     string    `json:"amount,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewActivityMessage stamps the message with the current time.
func NewActivityMessage(mutationID, uid, kind, summary, amount string) *ActivityMessage {
	return &ActivityMessage{
		MutationID: mutationID,
		UID:        uid,
		Kind:       kind,
		Summary:    summary,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
}

var errMissingMutationID = errors.New("activity message without mutation id")

// ToJSON converts the message to JSON bytes
func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and validates a message body.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.MutationID == "" {
		return nil, errMissingMutationID
	}
	return &msg, nil
}
