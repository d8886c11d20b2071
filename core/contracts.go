package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// MessageStore persists message records keyed by provider id.
type MessageStore interface {
	// CreateOrMerge atomically creates the live record for fields.ProviderID
	// or overwrites the provided fields of the existing one.
	CreateOrMerge(ctx context.Context, fields MessageFields) (Message, error)
	// FindByProviderID reports absence with found=false and a nil error.
	FindByProviderID(ctx context.Context, providerID string) (Message, bool, error)
	Get(ctx context.Context, id string) (Message, error)
	// Update reports false when no live record matched id.
	Update(ctx context.Context, id string, update MessageUpdate) (bool, error)
	List(ctx context.Context, filter MessageFilter) (MessagePage, error)
	SoftDelete(ctx context.Context, id string) error
}

type MessageReader interface {
	Get(ctx context.Context, id string) (Message, error)
	FindByProviderID(ctx context.Context, providerID string) (Message, bool, error)
	List(ctx context.Context, filter MessageFilter) (MessagePage, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event MessageEvent) error
}

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, MessageEvent) error { return nil }

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

// JobWorkerHook observes queue deliveries as the worker settles them.
type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

var (
	_ EventPublisher  = NopEventPublisher{}
	_ MessageReader   = MessageStore(nil)
	_ MetricsRecorder = NopMetricsRecorder{}
)
