package command

import (
	"context"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

// Ingester is satisfied by *ingest.Ingestor.
type Ingester interface {
	Ingest(ctx context.Context, number string, raw map[string]any) (core.Outcome, error)
	IngestJSON(ctx context.Context, number string, body []byte) (core.Outcome, error)
}

type MessageDeleter interface {
	SoftDelete(ctx context.Context, id string) error
}

type AcceptWebhookCommand struct {
	enqueuer core.JobEnqueuer
	now      func() time.Time
}

func NewAcceptWebhookCommand(enqueuer core.JobEnqueuer) *AcceptWebhookCommand {
	return &AcceptWebhookCommand{enqueuer: enqueuer, now: time.Now}
}

func (c *AcceptWebhookCommand) Execute(ctx context.Context, msg AcceptWebhookMessage) error {
	if c == nil || c.enqueuer == nil {
		return commandDependencyError("command: webhook enqueuer is required")
	}
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = c.now()
	}
	job := core.NewWebhookJobMessage(strings.TrimSpace(msg.Number), msg.Body, receivedAt)
	if err := c.enqueuer.Enqueue(ctx, job); err != nil {
		return err
	}
	storeResult(ctx, job)
	return nil
}

type IngestWebhookCommand struct {
	ingester Ingester
}

func NewIngestWebhookCommand(ingester Ingester) *IngestWebhookCommand {
	return &IngestWebhookCommand{ingester: ingester}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.ingester == nil {
		return commandDependencyError("command: ingester is required")
	}
	var (
		out core.Outcome
		err error
	)
	if msg.Raw != nil {
		out, err = c.ingester.Ingest(ctx, msg.Number, msg.Raw)
	} else {
		out, err = c.ingester.IngestJSON(ctx, msg.Number, msg.Body)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteMessageCommand struct {
	deleter MessageDeleter
}

func NewDeleteMessageCommand(deleter MessageDeleter) *DeleteMessageCommand {
	return &DeleteMessageCommand{deleter: deleter}
}

func (c *DeleteMessageCommand) Execute(ctx context.Context, msg DeleteMessageMessage) error {
	if c == nil || c.deleter == nil {
		return commandDependencyError("command: message deleter is required")
	}
	return c.deleter.SoftDelete(ctx, strings.TrimSpace(msg.ID))
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
