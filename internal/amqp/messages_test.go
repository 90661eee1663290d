package amqp

import (
	"testing"
	"time"
)

func TestReportJobMessageRoundTrip(t *testing.T) {
	msg := NewReportJobMessage("user_1", "week")
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := ReportJobMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.UserID != "user_1" || decoded.Period != "week" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Timestamp.Truncate(time.Second).Equal(msg.Timestamp.Truncate(time.Second)) {
		t.Errorf("timestamp drift: %v vs %v", decoded.Timestamp, msg.Timestamp)
	}
}

func TestReportJobMessageFromInvalidJSON(t *testing.T) {
	if _, err := ReportJobMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
