package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWebhookJobMessageRoundTrip(t *testing.T) {
	received := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	msg := NewWebhookJobMessage("5511999999999", []byte(`{"type":"message"}`), received)
	if msg.JobID != JobIDWebhookIngest {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	job, err := DecodeWebhookJob(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Number != "5511999999999" || string(job.Body) != `{"type":"message"}` {
		t.Fatalf("unexpected job %#v", job)
	}
	if !job.ReceivedAt.Equal(received) {
		t.Fatalf("unexpected received_at %#v", job)
	}
}

func TestDecodeWebhookJob_SurvivesJSONTransport(t *testing.T) {
	msg := NewWebhookJobMessage("1", []byte(`{}`), time.Now())
	encoded, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded JobExecutionMessage
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	job, err := DecodeWebhookJob(&decoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Number != "1" || string(job.Body) != `{}` {
		t.Fatalf("unexpected job after transport %#v", job)
	}
}

func TestDecodeWebhookJob_RejectsForeignJobs(t *testing.T) {
	if _, err := DecodeWebhookJob(nil); ErrorKindOf(err) != ErrorKindValidation {
		t.Fatalf("expected bad input for nil message, got %v", err)
	}
	if _, err := DecodeWebhookJob(&JobExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected foreign job id to fail")
	}
}
