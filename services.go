// Package inbox ingests messaging-channel webhook callbacks into one durable
// record per provider message id.
package inbox

import (
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/ingest"
)

type Config = core.Config

type Message = core.Message
type MessageFields = core.MessageFields
type MessageUpdate = core.MessageUpdate
type MessageFilter = core.MessageFilter
type MessagePage = core.MessagePage
type MessageStore = core.MessageStore
type MessageReader = core.MessageReader
type MessageEvent = core.MessageEvent
type EventPublisher = core.EventPublisher

type Envelope = core.Envelope
type Outcome = core.Outcome
type OutcomeData = core.OutcomeData
type StatusPolicy = core.StatusPolicy
type ErrorKind = core.ErrorKind

type Ingestor = ingest.Ingestor
type IngestOption = ingest.Option

var (
	DefaultConfig = core.DefaultConfig
	NewIngestor   = ingest.New

	WithValidator           = ingest.WithValidator
	WithNormalizer          = ingest.WithNormalizer
	WithPublisher           = ingest.WithPublisher
	WithLogger              = ingest.WithLogger
	WithLoggerProvider      = ingest.WithLoggerProvider
	WithMetricsRecorder     = ingest.WithMetricsRecorder
	WithStatusPolicy        = ingest.WithStatusPolicy
	WithDefaultOutboundType = ingest.WithDefaultOutboundType

	ErrorKindOf = core.ErrorKindOf
	IsRetryable = core.IsRetryable
)
