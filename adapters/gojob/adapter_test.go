package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-inbox/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := &core.JobExecutionMessage{
		JobID:          JobIDWebhookIngest,
		ScriptPath:     "inbox.webhook.ingest",
		Parameters:     map[string]any{"number": "5511999999999"},
		IdempotencyKey: "idem-1",
		DedupPolicy:    "drop",
	}

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != original.JobID {
		t.Fatalf("expected job id %q, got %q", original.JobID, roundTrip.JobID)
	}
	if roundTrip.ScriptPath != original.ScriptPath {
		t.Fatalf("expected script path %q, got %q", original.ScriptPath, roundTrip.ScriptPath)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != original.DedupPolicy {
		t.Fatalf("expected dedup policy %q, got %q", original.DedupPolicy, roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["number"] != "5511999999999" {
		t.Fatalf("expected parameters to survive mapping")
	}
}

func TestEnqueuerAdapterMapsMessage(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	adapter := NewEnqueuerAdapter(enqueuer)

	msg := core.NewWebhookJobMessage("5511999999999", []byte(`{"type":"message"}`), time.Now())
	if err := adapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDWebhookIngest {
		t.Fatalf("expected mapped go-job message")
	}
	if enqueuer.last.Parameters[core.JobParamNumber] != "5511999999999" {
		t.Fatalf("expected parameters to be copied, got %#v", enqueuer.last.Parameters)
	}

	if err := adapter.Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected nil message to fail")
	}
	if err := NewEnqueuerAdapter(nil).Enqueue(ctx, msg); err == nil {
		t.Fatalf("expected missing enqueuer to fail")
	}
	enqueuer.err = errors.New("backend down")
	if err := adapter.Enqueue(ctx, msg); err == nil {
		t.Fatalf("expected backend error to surface")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          JobIDWebhookIngest,
			ScriptPath:     "inbox.webhook.ingest",
			IdempotencyKey: "idem-hook",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Message == nil {
		t.Fatalf("expected worker message mapping")
	}
	if coreHook.last.Message.JobID != JobIDWebhookIngest {
		t.Fatalf("expected job id mapping, got %q", coreHook.last.Message.JobID)
	}
	if coreHook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", coreHook.last.Attempt)
	}
	if coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", coreHook.last.Delay)
	}
	if coreHook.last.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration mapping")
	}
	if coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected started_at mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

func TestWorkerHooksSkipsNil(t *testing.T) {
	hook := &capturingHook{}
	hooks := WorkerHooks(nil, hook, nil)
	if len(hooks) != 1 {
		t.Fatalf("expected one adapted hook, got %d", len(hooks))
	}
	hooks[0].OnRetry(context.Background(), worker.Event{
		Delivery: &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookIngest}},
	})
	if hook.last.Message == nil || hook.last.Message.JobID != JobIDWebhookIngest {
		t.Fatalf("expected delivery message fallback, got %#v", hook.last)
	}

	var empty *WorkerHookAdapter
	empty.OnStart(context.Background(), worker.Event{})
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
	err  error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if s.err != nil {
		return queue.EnqueueReceipt{}, s.err
	}
	s.last = msg
	return queue.EnqueueReceipt{DispatchID: "dispatch-1", EnqueuedAt: time.Now()}, nil
}

type stubQueueDelivery struct {
	msg *job.ExecutionMessage
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	return nil
}

func (s *stubQueueDelivery) Nack(context.Context, queue.NackOptions) error {
	return nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}
