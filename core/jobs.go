package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	JobIDWebhookIngest = "inbox.webhook.ingest"

	JobParamNumber     = "number"
	JobParamBody       = "body"
	JobParamReceivedAt = "received_at"
)

// WebhookJob is the decoded payload of one queued webhook delivery.
type WebhookJob struct {
	Number     string
	Body       []byte
	ReceivedAt time.Time
}

// NewWebhookJobMessage builds the queue message for one webhook delivery.
// The body travels as a string so every queue backend can serialize it.
func NewWebhookJobMessage(number string, body []byte, receivedAt time.Time) *JobExecutionMessage {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &JobExecutionMessage{
		JobID:      JobIDWebhookIngest,
		ScriptPath: JobIDWebhookIngest,
		Parameters: map[string]any{
			JobParamNumber:     number,
			JobParamBody:       string(body),
			JobParamReceivedAt: receivedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// DecodeWebhookJob reads the webhook parameters from msg.
func DecodeWebhookJob(msg *JobExecutionMessage) (WebhookJob, error) {
	if msg == nil {
		return WebhookJob{}, NewBadInputError("core: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDWebhookIngest {
		return WebhookJob{}, NewBadInputError("core: unsupported job id " + strconv.Quote(msg.JobID))
	}
	out := WebhookJob{}
	if number, ok := msg.Parameters[JobParamNumber].(string); ok {
		out.Number = number
	}
	switch body := msg.Parameters[JobParamBody].(type) {
	case string:
		out.Body = []byte(body)
	case []byte:
		out.Body = append([]byte(nil), body...)
	case map[string]any:
		encoded, err := json.Marshal(body)
		if err != nil {
			return WebhookJob{}, NewBadInputError("core: job body is not serializable")
		}
		out.Body = encoded
	}
	if raw, ok := msg.Parameters[JobParamReceivedAt].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.ReceivedAt = parsed
		}
	}
	return out, nil
}
