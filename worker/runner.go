// Package worker consumes queued webhook deliveries, one task per event.
//
// Deliveries run on go-job's queue worker. A task that succeeds is acked and
// a classified permanent failure is dropped. Transient failures are retried
// with exponential backoff until the attempt limit, then dead-lettered.
package worker

import (
	"context"
	"time"

	"github.com/goliatone/go-inbox/adapters/gojob"
	"github.com/goliatone/go-inbox/adapters/gologger"
	"github.com/goliatone/go-inbox/core"

	"github.com/goliatone/go-job/queue"
	gojobworker "github.com/goliatone/go-job/queue/worker"
)

const DefaultIdleDelay = 100 * time.Millisecond

// Handler processes one decoded webhook job.
type Handler interface {
	HandleWebhook(ctx context.Context, job core.WebhookJob) error
}

type HandlerFunc func(ctx context.Context, job core.WebhookJob) error

func (f HandlerFunc) HandleWebhook(ctx context.Context, job core.WebhookJob) error {
	return f(ctx, job)
}

// Ingester is satisfied by *ingest.Ingestor.
type Ingester interface {
	IngestJSON(ctx context.Context, number string, body []byte) (core.Outcome, error)
}

// IngestHandler runs each job through ingester, discarding the outcome.
func IngestHandler(ingester Ingester) Handler {
	return HandlerFunc(func(ctx context.Context, job core.WebhookJob) error {
		_, err := ingester.IngestJSON(ctx, job.Number, job.Body)
		return err
	})
}

type Runner struct {
	worker         *gojobworker.Worker
	policy         Policy
	hooks          []core.JobWorkerHook
	logger         core.Logger
	loggerProvider core.LoggerProvider
	idleDelay      time.Duration
}

type Option func(*Runner)

func WithPolicy(policy Policy) Option {
	return func(r *Runner) {
		r.policy = policy
	}
}

func WithHooks(hooks ...core.JobWorkerHook) Option {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hooks...)
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(r *Runner) {
		r.loggerProvider = provider
	}
}

// WithIdleDelay sets the pause between polls of an empty queue.
func WithIdleDelay(delay time.Duration) Option {
	return func(r *Runner) {
		if delay >= 0 {
			r.idleDelay = delay
		}
	}
}

func NewRunner(dequeuer queue.Dequeuer, handler Handler, opts ...Option) (*Runner, error) {
	if dequeuer == nil {
		return nil, core.NewInternalError("worker: dequeuer is required")
	}
	if handler == nil {
		return nil, core.NewInternalError("worker: handler is required")
	}
	r := &Runner{
		policy:    DefaultPolicy(),
		idleDelay: DefaultIdleDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.policy = r.policy.normalized()

	r.worker = gojobworker.NewWorker(dequeuer,
		gojobworker.WithConcurrency(r.policy.Workers),
		gojobworker.WithIdleDelay(r.idleDelay),
		gojobworker.WithRetryPolicy(r.policy.RetryPolicy()),
		gojobworker.WithHooks(gojob.WorkerHooks(r.hooks...)...),
		gojobworker.WithLogger(gologger.JobLogger("inbox.worker", r.loggerProvider, r.logger)),
	)
	if err := r.worker.Register(&webhookTask{handler: handler, timeout: r.policy.Timeout}); err != nil {
		return nil, core.NewInternalError("worker: register webhook task: " + err.Error())
	}
	return r, nil
}

func (r *Runner) Policy() Policy {
	return r.policy
}

// Start launches the consumers and returns.
func (r *Runner) Start(ctx context.Context) error {
	return r.worker.Start(ctx)
}

// Stop cancels the consumers and waits for in-flight deliveries up to ctx.
func (r *Runner) Stop(ctx context.Context) error {
	return r.worker.Stop(ctx)
}

// Run consumes until ctx is done, then stops the consumers, waiting at most
// one task timeout for in-flight deliveries.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.policy.Timeout)
	defer cancel()
	return r.Stop(stopCtx)
}
