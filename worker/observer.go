package worker

import (
	"context"
	"errors"

	"github.com/goliatone/go-inbox/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricJobsTotal    = "inbox.worker.jobs"
	MetricJobsDuration = "inbox.worker.duration_ms"

	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
	OutcomeRequeued   = "requeued"
)

// Observer records the outcome of every settled delivery and logs the ones
// that will not be retried.
type Observer struct {
	logger  core.Logger
	metrics core.MetricsRecorder
}

func NewObserver(logger core.Logger, metrics core.MetricsRecorder) *Observer {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &Observer{logger: glog.Ensure(logger), metrics: metrics}
}

func (o *Observer) OnStart(context.Context, core.JobWorkerEvent) {}

func (o *Observer) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	o.record(ctx, OutcomeSuccess, event)
}

func (o *Observer) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	if errors.Is(event.Err, context.Canceled) {
		o.record(ctx, OutcomeRequeued, event)
		return
	}
	o.record(ctx, OutcomeRetry, event)
	webhook, _ := core.DecodeWebhookJob(event.Message)
	core.LogFields(ctx, o.logger, "warn", "webhook job retry scheduled", map[string]any{
		"number":   webhook.Number,
		"attempt":  event.Attempt,
		"delay_ms": event.Delay.Milliseconds(),
		"error":    errorText(event.Err),
	})
}

func (o *Observer) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	webhook, _ := core.DecodeWebhookJob(event.Message)
	if event.Err != nil && (core.IsPermanent(event.Err) || !core.IsRetryable(event.Err)) {
		o.record(ctx, OutcomeRejected, event)
		core.LogFields(ctx, o.logger, "warn", "webhook job rejected", map[string]any{
			"number": webhook.Number,
			"error":  errorText(event.Err),
		})
		return
	}
	o.record(ctx, OutcomeDeadLetter, event)
	core.LogFields(ctx, o.logger, "error", "webhook job failed permanently", map[string]any{
		"number":   webhook.Number,
		"attempts": event.Attempt,
		"payload":  string(webhook.Body),
		"error":    errorText(event.Err),
	})
}

func (o *Observer) record(ctx context.Context, outcome string, event core.JobWorkerEvent) {
	tags := map[string]string{"outcome": outcome}
	core.RecordCounter(ctx, o.metrics, MetricJobsTotal, 1, tags)
	core.RecordHistogram(ctx, o.metrics, MetricJobsDuration, float64(event.Duration.Milliseconds()), tags)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ core.JobWorkerHook = (*Observer)(nil)
