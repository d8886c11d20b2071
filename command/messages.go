package command

import (
	"strings"
	"time"
)

const (
	TypeAcceptWebhook = "inbox.command.webhook.accept"
	TypeIngestWebhook = "inbox.command.webhook.ingest"
	TypeDeleteMessage = "inbox.command.message.delete"
)

// AcceptWebhookMessage hands one delivery to the queue for async ingestion.
type AcceptWebhookMessage struct {
	Number     string
	Body       []byte
	ReceivedAt time.Time
}

func (AcceptWebhookMessage) Type() string { return TypeAcceptWebhook }

func (m AcceptWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Number) == "" {
		return commandValidationError("number", "number is required")
	}
	return nil
}

// IngestWebhookMessage runs one event through the pipeline synchronously.
// Raw takes precedence over Body when both are set.
type IngestWebhookMessage struct {
	Number string
	Body   []byte
	Raw    map[string]any
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (m IngestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.Number) == "" {
		return commandValidationError("number", "number is required")
	}
	if m.Raw == nil && len(m.Body) == 0 {
		return commandValidationError("body", "payload is required")
	}
	return nil
}

type DeleteMessageMessage struct {
	ID string
}

func (DeleteMessageMessage) Type() string { return TypeDeleteMessage }

func (m DeleteMessageMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "id is required")
	}
	return nil
}
