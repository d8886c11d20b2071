// Package ingest classifies validated webhook envelopes and merges them into
// message records.
package ingest

import (
	"github.com/goliatone/go-inbox/core"
)

// Classify maps an envelope to the event kind that decides the store action.
// Unknown message-event sub types are rejected.
func Classify(env core.Envelope) (core.EventKind, error) {
	switch env.Type {
	case core.EnvelopeTypeMessage:
		return core.EventKindInboundMessage, nil
	case core.EnvelopeTypeMessageEvent:
		switch env.Payload.Type {
		case core.EventTypeEnqueued:
			return core.EventKindEnqueued, nil
		case core.EventTypeRead:
			return core.EventKindRead, nil
		case core.EventTypeFailed:
			return core.EventKindFailed, nil
		}
	}
	return "", core.NewUnknownEventError(env.Type, env.Payload.Type)
}

func actionFor(kind core.EventKind) string {
	switch kind {
	case core.EventKindInboundMessage:
		return core.ActionIncomingMessage
	case core.EventKindEnqueued:
		return core.ActionEnqueued
	case core.EventKindRead:
		return core.ActionRead
	case core.EventKindFailed:
		return core.ActionFailed
	default:
		return ""
	}
}
