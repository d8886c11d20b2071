package worker

import (
	"context"
	"time"

	"github.com/goliatone/go-inbox/adapters/gojob"
	"github.com/goliatone/go-inbox/core"

	job "github.com/goliatone/go-job"
)

// webhookTask registers the webhook handler with the go-job worker. It has
// no script or engine; Execute decodes the queued delivery and runs the
// handler under the policy timeout.
type webhookTask struct {
	handler Handler
	timeout time.Duration
}

func (t *webhookTask) GetID() string { return core.JobIDWebhookIngest }

func (t *webhookTask) GetPath() string { return core.JobIDWebhookIngest }

func (t *webhookTask) GetHandler() func() error { return nil }

func (t *webhookTask) GetHandlerConfig() job.HandlerOptions { return job.HandlerOptions{} }

func (t *webhookTask) GetConfig() job.Config { return job.Config{} }

func (t *webhookTask) GetEngine() job.Engine { return nil }

func (t *webhookTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	webhook, err := core.DecodeWebhookJob(gojob.FromExecutionMessage(msg))
	if err != nil {
		return err
	}
	taskCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.handler.HandleWebhook(taskCtx, webhook)
}

var _ job.Task = (*webhookTask)(nil)
