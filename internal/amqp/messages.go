package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RunCompletedMessage announces a stored pipeline run. It carries the run ID
// only; consumers load the rows from the run store.
type RunCompletedMessage struct {
	RunID       string    `json:"run_id"`
	RulesDigest string    `json:"rules_digest"`
	OutputRows  int       `json:"output_rows"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewRunCompletedMessage(runID, digest string, outputRows int) *RunCompletedMessage {
	return &RunCompletedMessage{
		RunID:       runID,
		RulesDigest: digest,
		OutputRows:  outputRows,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON decodes a message and rejects one without a run ID.
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, errors.New("run completed message without run_id")
	}
	return &msg, nil
}
