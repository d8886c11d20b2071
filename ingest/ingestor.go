package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-inbox/content"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/envelope"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	MetricIngestTotal    = "inbox.ingest.total"
	MetricIngestDuration = "inbox.ingest.duration_ms"
)

// Ingestor validates, classifies and applies one webhook event at a time. It
// holds no per-event state and is safe for concurrent use.
type Ingestor struct {
	store               core.MessageStore
	validator           *envelope.Validator
	normalizer          *content.Normalizer
	publisher           core.EventPublisher
	logger              core.Logger
	loggerProvider      core.LoggerProvider
	metrics             core.MetricsRecorder
	policy              core.StatusPolicy
	defaultOutboundType string
	now                 func() time.Time
	handlers            map[core.EventKind]handlerFunc
}

type handlerFunc func(ctx context.Context, number string, env core.Envelope) (applied, error)

// applied is the committed result of one handler.
type applied struct {
	message       core.Message
	statusApplied bool
	readAt        any
}

func New(store core.MessageStore, opts ...Option) (*Ingestor, error) {
	if store == nil {
		return nil, core.NewInternalError("ingest: message store is required")
	}
	i := &Ingestor{
		store:               store,
		validator:           envelope.New(),
		normalizer:          content.NewNormalizer(),
		publisher:           core.NopEventPublisher{},
		metrics:             core.NopMetricsRecorder{},
		policy:              core.StatusPolicyMonotonic,
		defaultOutboundType: core.DefaultOutboundType,
		now:                 time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(i)
	}
	if _, err := core.ParseStatusPolicy(string(i.policy)); err != nil {
		return nil, core.NewBadInputError(err.Error())
	}
	provider, logger := glog.Resolve("inbox.ingest", i.loggerProvider, i.logger)
	i.loggerProvider = provider
	i.logger = glog.Ensure(logger)

	i.handlers = map[core.EventKind]handlerFunc{
		core.EventKindInboundMessage: i.handleInbound,
		core.EventKindEnqueued:       i.handleEnqueued,
		core.EventKindRead:           i.handleRead,
		core.EventKindFailed:         i.handleFailed,
	}
	return i, nil
}

// Ingest applies a decoded webhook envelope received on the channel number.
func (i *Ingestor) Ingest(ctx context.Context, number string, raw map[string]any) (core.Outcome, error) {
	return i.run(ctx, number, raw, func() (core.Envelope, error) {
		return i.validator.Validate(raw)
	})
}

// IngestJSON decodes body before applying it. Malformed JSON is a validation
// failure.
func (i *Ingestor) IngestJSON(ctx context.Context, number string, body []byte) (core.Outcome, error) {
	return i.run(ctx, number, string(body), func() (core.Envelope, error) {
		return i.validator.Decode(body)
	})
}

func (i *Ingestor) run(
	ctx context.Context,
	number string,
	payload any,
	decode func() (core.Envelope, error),
) (core.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := i.now()

	if err := envelope.ValidateNumber(number); err != nil {
		return core.Outcome{}, i.fail(ctx, startedAt, "", number, payload, err)
	}
	env, err := decode()
	if err != nil {
		return core.Outcome{}, i.fail(ctx, startedAt, "", number, payload, err)
	}
	payload = env.Raw
	kind, err := Classify(env)
	if err != nil {
		return core.Outcome{}, i.fail(ctx, startedAt, "", number, payload, err)
	}
	result, err := i.handlers[kind](ctx, number, env)
	if err != nil {
		return core.Outcome{}, i.fail(ctx, startedAt, kind, number, payload, err)
	}

	outcome := core.Outcome{
		Type:      env.Type,
		EventType: env.Payload.Type,
		Data: core.OutcomeData{
			Action:        actionFor(kind),
			DatabaseID:    result.message.ID,
			ProviderID:    result.message.ProviderID,
			GsID:          env.Payload.GsID,
			Status:        result.message.Status,
			StatusApplied: result.statusApplied,
			ReadAt:        result.readAt,
		},
	}
	if kind == core.EventKindFailed {
		outcome.Data.ErrorCode = result.message.ErrorCode
		outcome.Data.ErrorReason = result.message.ErrorReason
	}

	i.publish(ctx, kind, outcome.Data.Action, result.message)

	fields := map[string]any{
		"number":         number,
		"kind":           string(kind),
		"action":         outcome.Data.Action,
		"database_id":    result.message.ID,
		"provider_id":    result.message.ProviderID,
		"status":         string(result.message.Status),
		"status_applied": result.statusApplied,
	}
	core.LogFields(ctx, i.logger, "info", "webhook event ingested", fields)
	i.record(ctx, startedAt, kind, "success")
	return outcome, nil
}

func (i *Ingestor) handleInbound(ctx context.Context, number string, env core.Envelope) (applied, error) {
	body := map[string]any{
		"content":   i.normalizer.Normalize(env.Payload.Type, env.Payload.Payload),
		"sender":    optionalObject(env.Payload.Sender),
		"timestamp": env.Timestamp,
		"app":       optionalString(env.App),
		"raw":       optionalObject(env.Payload.Payload),
	}
	return i.createOrMerge(ctx, core.MessageFields{
		ProviderID: env.Payload.ID,
		Direction:  core.DirectionInbound,
		From:       stringPtr(env.Payload.Source),
		To:         stringPtr(number),
		Type:       stringPtr(env.Payload.Type),
		Body:       body,
	}, core.StatusReceived)
}

func (i *Ingestor) handleEnqueued(ctx context.Context, number string, env core.Envelope) (applied, error) {
	inner := env.Payload.Payload
	messageType := strings.TrimSpace(coerceString(inner["type"]))
	if messageType == "" {
		messageType = i.defaultOutboundType
	}
	body := map[string]any{
		"whatsapp_message_id": inner["whatsappMessageId"],
		"timestamp":           env.Timestamp,
		"app":                 optionalString(env.App),
	}
	return i.createOrMerge(ctx, core.MessageFields{
		ProviderID: env.Payload.ID,
		Direction:  core.DirectionOutbound,
		From:       stringPtr(number),
		To:         stringPtr(env.Payload.Destination),
		Type:       stringPtr(messageType),
		Body:       body,
	}, core.StatusEnqueued)
}

func (i *Ingestor) handleRead(ctx context.Context, _ string, env core.Envelope) (applied, error) {
	existing, err := i.locate(ctx, env)
	if err != nil {
		return applied{}, err
	}
	readAt := firstPresent(env.Payload.Payload["ts"], env.Timestamp)
	if readAt == nil {
		readAt = i.now().Unix()
	}
	update := core.MessageUpdate{
		Body: core.MergeBody(existing.Body, map[string]any{"read_at": readAt}),
	}
	result, err := i.applyUpdate(ctx, env, existing, update, core.StatusRead)
	if err != nil {
		return applied{}, err
	}
	result.readAt = readAt
	return result, nil
}

func (i *Ingestor) handleFailed(ctx context.Context, _ string, env core.Envelope) (applied, error) {
	existing, err := i.locate(ctx, env)
	if err != nil {
		return applied{}, err
	}
	inner := env.Payload.Payload
	update := core.MessageUpdate{
		ErrorCode:   stringPtr(coerceString(inner["code"])),
		ErrorReason: stringPtr(coerceString(inner["reason"])),
	}
	return i.applyUpdate(ctx, env, existing, update, core.StatusFailed)
}

// createOrMerge folds a re-delivery into the live record: new body keys are
// merged over the stored body and a status downgrade is dropped when the
// policy disallows it.
func (i *Ingestor) createOrMerge(ctx context.Context, fields core.MessageFields, next core.MessageStatus) (applied, error) {
	existing, found, err := i.store.FindByProviderID(ctx, fields.ProviderID)
	if err != nil {
		return applied{}, err
	}
	statusApplied := true
	if found {
		fields.Body = core.MergeBody(existing.Body, fields.Body)
		statusApplied = i.policy.Allows(existing.Status, next)
	}
	if statusApplied {
		fields.Status = &next
	}
	message, err := i.store.CreateOrMerge(ctx, fields)
	if err != nil {
		return applied{}, err
	}
	return applied{message: message, statusApplied: statusApplied}, nil
}

func (i *Ingestor) locate(ctx context.Context, env core.Envelope) (core.Message, error) {
	gsID := strings.TrimSpace(env.Payload.GsID)
	existing, found, err := i.store.FindByProviderID(ctx, gsID)
	if err != nil {
		return core.Message{}, err
	}
	if !found {
		return core.Message{}, notFound(env, gsID)
	}
	return existing, nil
}

func (i *Ingestor) applyUpdate(
	ctx context.Context,
	env core.Envelope,
	existing core.Message,
	update core.MessageUpdate,
	next core.MessageStatus,
) (applied, error) {
	statusApplied := i.policy.Allows(existing.Status, next)
	if statusApplied {
		update.Status = &next
	}
	ok, err := i.store.Update(ctx, existing.ID, update)
	if err != nil {
		return applied{}, err
	}
	if !ok {
		return applied{}, notFound(env, existing.ProviderID)
	}

	message := existing
	if update.Body != nil {
		message.Body = update.Body
	}
	if update.Status != nil {
		message.Status = *update.Status
	}
	if update.ErrorCode != nil {
		message.ErrorCode = *update.ErrorCode
	}
	if update.ErrorReason != nil {
		message.ErrorReason = *update.ErrorReason
	}
	message.UpdatedAt = i.now().UTC()
	return applied{message: message, statusApplied: statusApplied}, nil
}

func (i *Ingestor) publish(ctx context.Context, kind core.EventKind, action string, message core.Message) {
	err := i.publisher.Publish(ctx, core.MessageEvent{
		Action:     action,
		Kind:       kind,
		Message:    message,
		OccurredAt: i.now().UTC(),
	})
	if err == nil {
		return
	}
	core.LogFields(ctx, i.logger, "warn", "message event publish failed", map[string]any{
		"kind":        string(kind),
		"database_id": message.ID,
		"provider_id": message.ProviderID,
		"error":       err.Error(),
	})
}

// fail classifies err, logs it with the payload context and records metrics.
// Errors that carry no inbox classification become storage failures.
func (i *Ingestor) fail(
	ctx context.Context,
	startedAt time.Time,
	kind core.EventKind,
	number string,
	payload any,
	err error,
) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		err = core.WrapStorageError(err, "ingest: storage operation failed")
	}
	errKind := core.ErrorKindOf(err)

	fields := map[string]any{
		"number":     number,
		"kind":       string(kind),
		"error_kind": string(errKind),
		"error":      err.Error(),
		"payload":    payload,
	}
	level := "error"
	message := "webhook ingestion failed"
	switch errKind {
	case core.ErrorKindValidation:
		fields["errors"] = core.ValidationFields(err)
		message = "webhook payload validation failed"
	case core.ErrorKindNotFound:
		message = "webhook references unknown message"
	case core.ErrorKindUnknownEvent:
		level = "warn"
		message = "unknown webhook event ignored"
	case core.ErrorKindStorage:
		level = "warn"
		message = "webhook ingestion storage failure"
	}
	core.LogFields(ctx, i.logger, level, message, fields)
	i.record(ctx, startedAt, kind, string(errKind))
	return err
}

func (i *Ingestor) record(ctx context.Context, startedAt time.Time, kind core.EventKind, outcome string) {
	tags := map[string]string{"kind": string(kind), "outcome": outcome}
	core.RecordCounter(ctx, i.metrics, MetricIngestTotal, 1, tags)
	elapsed := i.now().Sub(startedAt)
	core.RecordHistogram(ctx, i.metrics, MetricIngestDuration, float64(elapsed.Milliseconds()), tags)
}

func notFound(env core.Envelope, gsID string) error {
	return core.NewNotFoundError("ingest: no message recorded for gsId", map[string]any{
		"gs_id":      gsID,
		"event_type": env.Payload.Type,
	})
}

// coerceString renders scalar codes without exponent or trailing decimals.
func coerceString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func firstPresent(values ...any) any {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}

func optionalObject(value map[string]any) any {
	if value == nil {
		return nil
	}
	return value
}

func optionalString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func stringPtr(value string) *string {
	return &value
}
