package gojob

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inbox/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	sqlqueue "github.com/goliatone/go-job/queue/adapters/postgres"
)

func TestTablesForSanitizesQueueName(t *testing.T) {
	tables := TablesFor("inbox:webhooks")
	if tables.Messages != "inbox_webhooks" {
		t.Fatalf("expected inbox_webhooks, got %q", tables.Messages)
	}
	if tables.DeadLetters != "inbox_webhooks_dlq" || tables.Status != "inbox_webhooks_status" {
		t.Fatalf("unexpected derived tables %#v", tables)
	}
	if got := TablesFor("  ").Messages; got != DefaultQueueName {
		t.Fatalf("expected default queue name, got %q", got)
	}
}

func TestMemoryQueueAckRemovesMessage(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	receipt, err := q.Enqueue(ctx, webhookMessage("5511999999999"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if pending := mustPending(t, q); pending != 1 {
		t.Fatalf("expected one pending message, got %d", pending)
	}

	delivery := mustDequeue(t, q)
	if delivery.Message().Parameters[core.JobParamNumber] != "5511999999999" {
		t.Fatalf("expected number parameter, got %#v", delivery.Message().Parameters)
	}
	if attempts := deliveryAttempts(delivery); attempts != 1 {
		t.Fatalf("expected first attempt, got %d", attempts)
	}
	if next, err := q.Dequeue(ctx); err != nil || next != nil {
		t.Fatalf("expected leased message to stay hidden, got %v, %v", next, err)
	}

	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if pending := mustPending(t, q); pending != 0 {
		t.Fatalf("expected empty queue after ack, got %d", pending)
	}
	status, err := q.GetDispatchStatus(ctx, receipt.DispatchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != queue.DispatchStateSucceeded {
		t.Fatalf("expected succeeded state, got %q", status.State)
	}
}

func TestMemoryQueueRetryHonorsDelay(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := newTestQueue(t, sqlqueue.WithClock(clock.Now))

	if _, err := q.Enqueue(ctx, webhookMessage("5511999999999")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	first := mustDequeue(t, q)
	if err := first.Nack(ctx, queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       5 * time.Second,
		Reason:      "store down",
	}); err != nil {
		t.Fatalf("nack: %v", err)
	}

	if next, err := q.Dequeue(ctx); err != nil || next != nil {
		t.Fatalf("expected delayed message to stay hidden, got %v, %v", next, err)
	}
	clock.Advance(6 * time.Second)

	second := mustDequeue(t, q)
	if attempts := deliveryAttempts(second); attempts != 2 {
		t.Fatalf("expected second attempt, got %d", attempts)
	}
}

func TestMemoryQueueDeadLetterKeepsPayload(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if _, err := q.Enqueue(ctx, webhookMessage("5511888888888")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	delivery := mustDequeue(t, q)
	if err := delivery.Nack(ctx, queue.NackOptions{
		Disposition: queue.NackDispositionDeadLetter,
		Reason:      "max attempts exceeded",
	}); err != nil {
		t.Fatalf("nack: %v", err)
	}

	if pending := mustPending(t, q); pending != 0 {
		t.Fatalf("expected message to leave the queue, got %d pending", pending)
	}
	letters, err := q.DeadLetters(ctx)
	if err != nil {
		t.Fatalf("dead letters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(letters))
	}
	if letters[0].Reason != "max attempts exceeded" || letters[0].Attempts != 1 {
		t.Fatalf("unexpected dead letter %#v", letters[0])
	}
	if letters[0].Message.Parameters[core.JobParamNumber] != "5511888888888" {
		t.Fatalf("expected payload to be kept, got %#v", letters[0].Message.Parameters)
	}
}

func TestNewSQLQueueRequiresDatabase(t *testing.T) {
	if _, err := NewSQLQueue(context.Background(), nil, sqlqueue.DialectSQLite, "inbox"); err == nil {
		t.Fatalf("expected missing database to fail")
	}
}

func newTestQueue(t *testing.T, opts ...sqlqueue.Option) *Queue {
	t.Helper()
	q, err := NewMemoryQueue(context.Background(), "inbox:webhooks", opts...)
	if err != nil {
		t.Fatalf("memory queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func webhookMessage(number string) *job.ExecutionMessage {
	return ToExecutionMessage(core.NewWebhookJobMessage(number, []byte(`{"object":"whatsapp_business_account"}`), time.Now()))
}

func mustDequeue(t *testing.T, q *Queue) queue.Delivery {
	t.Helper()
	delivery, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if delivery == nil {
		t.Fatalf("expected a delivery")
	}
	return delivery
}

func mustPending(t *testing.T, q *Queue) int {
	t.Helper()
	pending, err := q.Pending(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return pending
}

func deliveryAttempts(delivery queue.Delivery) int {
	if counted, ok := delivery.(interface{ Attempts() int }); ok {
		return counted.Attempts()
	}
	return 0
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
