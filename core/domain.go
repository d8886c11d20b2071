package core

import (
	"math"
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound:
		return true
	default:
		return false
	}
}

type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusPending   MessageStatus = "pending"
	StatusEnqueued  MessageStatus = "enqueued"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

func (s MessageStatus) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Message is the single durable record kept per provider message id.
type Message struct {
	ID          string         `json:"id"`
	ProviderID  string         `json:"provider_id"`
	Direction   Direction      `json:"direction"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Type        string         `json:"type"`
	Body        map[string]any `json:"body"`
	Status      MessageStatus  `json:"status"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorReason string         `json:"error_reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// MessageFields is the create-or-merge input. Nil pointers and a nil Body
// leave the stored value unchanged on merge. Direction is only used when the
// record is created.
type MessageFields struct {
	ProviderID  string
	Direction   Direction
	From        *string
	To          *string
	Type        *string
	Body        map[string]any
	Status      *MessageStatus
	ErrorCode   *string
	ErrorReason *string
}

// MessageUpdate is a partial update applied to an existing record. A non-nil
// Body replaces the stored body, callers merge before updating.
type MessageUpdate struct {
	Status      *MessageStatus
	Body        map[string]any
	ErrorCode   *string
	ErrorReason *string
}

func (u MessageUpdate) IsEmpty() bool {
	return u.Status == nil && u.Body == nil && u.ErrorCode == nil && u.ErrorReason == nil
}

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

type MessageFilter struct {
	ProviderID  string
	Direction   Direction
	From        string
	To          string
	Type        string
	Status      MessageStatus
	ErrorCode   string
	ErrorReason string
	CreatedOn   *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PerPage     int
}

// Normalized applies paging defaults and bounds.
func (f MessageFilter) Normalized() MessageFilter {
	out := f
	out.ProviderID = strings.TrimSpace(out.ProviderID)
	out.From = strings.TrimSpace(out.From)
	out.To = strings.TrimSpace(out.To)
	out.Type = strings.TrimSpace(out.Type)
	out.ErrorCode = strings.TrimSpace(out.ErrorCode)
	out.ErrorReason = strings.TrimSpace(out.ErrorReason)
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PerPage <= 0 {
		out.PerPage = DefaultPerPage
	}
	if out.PerPage > MaxPerPage {
		out.PerPage = MaxPerPage
	}
	return out
}

// Offset returns the zero based row offset of a normalized filter. A page
// whose offset does not fit in an int yields 0.
func (f MessageFilter) Offset() int {
	if f.Page <= 1 || f.PerPage <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PerPage {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// CreatedBounds folds CreatedOn and the explicit range into one half-open
// interval [from, to).
func (f MessageFilter) CreatedBounds() (*time.Time, *time.Time) {
	from, to := f.CreatedFrom, f.CreatedTo
	if f.CreatedOn != nil {
		day := f.CreatedOn.UTC()
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		end := start.Add(24 * time.Hour)
		if from == nil || from.Before(start) {
			from = &start
		}
		if to == nil || to.After(end) {
			to = &end
		}
	}
	return from, to
}

type MessagePage struct {
	Items    []Message
	Page     int
	PerPage  int
	Total    int
	LastPage int
	HasNext  bool
}

// NewMessagePage derives paging metadata for a normalized filter.
func NewMessagePage(items []Message, filter MessageFilter, total int) MessagePage {
	lastPage := 1
	if total > 0 && filter.PerPage > 0 {
		lastPage = (total + filter.PerPage - 1) / filter.PerPage
	}
	if items == nil {
		items = []Message{}
	}
	return MessagePage{
		Items:    items,
		Page:     filter.Page,
		PerPage:  filter.PerPage,
		Total:    total,
		LastPage: lastPage,
		HasNext:  filter.Page < lastPage,
	}
}

const (
	EnvelopeTypeMessage      = "message"
	EnvelopeTypeMessageEvent = "message-event"

	EventTypeEnqueued = "enqueued"
	EventTypeRead     = "read"
	EventTypeFailed   = "failed"
)

// Envelope is a validated provider webhook callback.
type Envelope struct {
	Type      string
	Payload   EnvelopePayload
	Timestamp any
	App       string
	Version   any
	Raw       map[string]any
}

type EnvelopePayload struct {
	ID          string
	Type        string
	Source      string
	Destination string
	GsID        string
	Payload     map[string]any
	Sender      map[string]any
}

// IsStatusUpdate reports whether the envelope references an existing record
// through gsId instead of creating one.
func (e Envelope) IsStatusUpdate() bool {
	return IsStatusUpdateEvent(e.Type, e.Payload.Type)
}

func IsStatusUpdateEvent(envelopeType string, eventType string) bool {
	if envelopeType != EnvelopeTypeMessageEvent {
		return false
	}
	return eventType == EventTypeRead || eventType == EventTypeFailed
}

type EventKind string

const (
	EventKindInboundMessage EventKind = "inbound_message"
	EventKindEnqueued       EventKind = "enqueued"
	EventKindRead           EventKind = "read"
	EventKindFailed         EventKind = "failed"
)

const (
	ActionIncomingMessage = "incoming_message"
	ActionEnqueued        = "enqueued"
	ActionRead            = "read"
	ActionFailed          = "failed"
)

// Outcome is the structured result of one ingested event.
type Outcome struct {
	Type      string      `json:"type"`
	EventType string      `json:"event_type"`
	Data      OutcomeData `json:"data"`
}

type OutcomeData struct {
	Action        string        `json:"action"`
	DatabaseID    string        `json:"database_id"`
	ProviderID    string        `json:"provider_id,omitempty"`
	GsID          string        `json:"gs_id,omitempty"`
	Status        MessageStatus `json:"status"`
	StatusApplied bool          `json:"status_applied"`
	ReadAt        any           `json:"read_at,omitempty"`
	ErrorCode     string        `json:"error_code,omitempty"`
	ErrorReason   string        `json:"error_reason,omitempty"`
}

// MessageEvent is published after a committed change to a message record.
type MessageEvent struct {
	Action     string    `json:"action"`
	Kind       EventKind `json:"kind"`
	Message    Message   `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CloneBody returns a shallow copy of a body map, never nil.
func CloneBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for key, value := range body {
		out[key] = value
	}
	return out
}

// MergeBody overlays patch keys onto a copy of base.
func MergeBody(base map[string]any, patch map[string]any) map[string]any {
	out := CloneBody(base)
	for key, value := range patch {
		out[key] = value
	}
	return out
}
