package worker

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-inbox/core"

	"github.com/goliatone/go-job/queue"
	gojobworker "github.com/goliatone/go-job/queue/worker"
)

const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second

	ReasonShutdown = "worker shutdown"
)

// DefaultBackoff doubles the retry delay from one second up to thirty.
func DefaultBackoff() gojobworker.BackoffConfig {
	return gojobworker.BackoffConfig{
		Strategy:    gojobworker.BackoffExponential,
		Interval:    time.Second,
		MaxInterval: 30 * time.Second,
	}
}

// Policy bounds how deliveries are consumed and retried.
type Policy struct {
	Workers     int
	MaxAttempts int
	Timeout     time.Duration
	Backoff     gojobworker.BackoffConfig
}

func DefaultPolicy() Policy {
	return Policy{
		Workers:     DefaultWorkers,
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
		Backoff:     DefaultBackoff(),
	}
}

// PolicyFromConfig maps queue config onto a policy. Zero values keep the
// defaults.
func PolicyFromConfig(cfg core.QueueConfig) Policy {
	policy := DefaultPolicy()
	if cfg.Workers > 0 {
		policy.Workers = cfg.Workers
	}
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Timeout() > 0 {
		policy.Timeout = cfg.Timeout()
	}
	if cfg.RetryInitial() > 0 {
		policy.Backoff.Interval = cfg.RetryInitial()
	}
	if cfg.RetryMax() > 0 {
		policy.Backoff.MaxInterval = cfg.RetryMax()
	}
	return policy
}

func (p Policy) normalized() Policy {
	out := p
	defaults := DefaultPolicy()
	if out.Workers <= 0 {
		out.Workers = defaults.Workers
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = defaults.MaxAttempts
	}
	if out.Timeout <= 0 {
		out.Timeout = defaults.Timeout
	}
	if out.Backoff.Strategy == "" {
		out.Backoff = defaults.Backoff
	}
	return out
}

// RetryPolicy settles failed deliveries. Classified permanent failures are
// dropped first, even when the worker is stopping. Shutdown cancellation is
// released for immediate redelivery. Storage failures follow go-job's
// default policy and dead-letter once the attempt limit is reached.
type RetryPolicy struct {
	Default gojobworker.DefaultRetryPolicy
}

func (p Policy) RetryPolicy() RetryPolicy {
	return RetryPolicy{Default: gojobworker.DefaultRetryPolicy{
		MaxAttempts: p.MaxAttempts,
		Backoff:     p.Backoff,
	}}
}

func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	switch {
	case core.IsPermanent(err):
		return queue.NackOptions{Disposition: queue.NackDispositionFailed, Reason: reason}
	case errors.Is(err, context.Canceled):
		return queue.NackOptions{Disposition: queue.NackDispositionRetry, Reason: ReasonShutdown}
	case !core.IsRetryable(err):
		return queue.NackOptions{Disposition: queue.NackDispositionFailed, Reason: reason}
	default:
		return p.Default.Decide(attempt, err)
	}
}

var _ gojobworker.RetryPolicy = RetryPolicy{}
