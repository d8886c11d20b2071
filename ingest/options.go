package ingest

import (
	"strings"
	"time"

	"github.com/goliatone/go-inbox/content"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/envelope"
)

type Option func(*Ingestor)

func WithValidator(validator *envelope.Validator) Option {
	return func(i *Ingestor) {
		if validator != nil {
			i.validator = validator
		}
	}
}

func WithNormalizer(normalizer *content.Normalizer) Option {
	return func(i *Ingestor) {
		if normalizer != nil {
			i.normalizer = normalizer
		}
	}
}

// WithPublisher sets the sink notified after every committed change.
func WithPublisher(publisher core.EventPublisher) Option {
	return func(i *Ingestor) {
		if publisher != nil {
			i.publisher = publisher
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(i *Ingestor) {
		i.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(i *Ingestor) {
		i.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(i *Ingestor) {
		if recorder != nil {
			i.metrics = recorder
		}
	}
}

func WithStatusPolicy(policy core.StatusPolicy) Option {
	return func(i *Ingestor) {
		if policy != "" {
			i.policy = policy
		}
	}
}

// WithDefaultOutboundType sets the type stored for enqueued events that do
// not carry a nested content type.
func WithDefaultOutboundType(messageType string) Option {
	return func(i *Ingestor) {
		if trimmed := strings.TrimSpace(messageType); trimmed != "" {
			i.defaultOutboundType = trimmed
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}
