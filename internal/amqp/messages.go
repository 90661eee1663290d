package amqp

import (
	"encoding/json"
	"time"
)

// ReportJobMessage asks a worker to generate and send one spending report.
// It carries only identifiers; the worker loads everything else from the
// database so stale payloads cannot be replayed.
type ReportJobMessage struct {
	UserID    string    `json:"user_id"`
	Period    string    `json:"period"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportJobMessage creates a report job for one user and period.
func NewReportJobMessage(userID, period string) *ReportJobMessage {
	return &ReportJobMessage{
		UserID:    userID,
		Period:    period,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func ReportJobMessageFromJSON(data []byte) (*ReportJobMessage, error) {
	var msg ReportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
