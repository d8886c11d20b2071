package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-inbox/core"
)

type GetMessageQuery struct {
	reader core.MessageReader
}

func NewGetMessageQuery(reader core.MessageReader) *GetMessageQuery {
	return &GetMessageQuery{reader: reader}
}

func (q *GetMessageQuery) Query(ctx context.Context, msg GetMessageMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: message reader is required")
	}
	return q.reader.Get(ctx, strings.TrimSpace(msg.ID))
}

type GetMessageByProviderIDQuery struct {
	reader core.MessageReader
}

func NewGetMessageByProviderIDQuery(reader core.MessageReader) *GetMessageByProviderIDQuery {
	return &GetMessageByProviderIDQuery{reader: reader}
}

func (q *GetMessageByProviderIDQuery) Query(ctx context.Context, msg GetMessageByProviderIDMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: message reader is required")
	}
	providerID := strings.TrimSpace(msg.ProviderID)
	record, found, err := q.reader.FindByProviderID(ctx, providerID)
	if err != nil {
		return core.Message{}, err
	}
	if !found {
		return core.Message{}, core.NewNotFoundError("query: message not found", map[string]any{"provider_id": providerID})
	}
	return record, nil
}

type ListMessagesQuery struct {
	reader core.MessageReader
}

func NewListMessagesQuery(reader core.MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) (core.MessagePage, error) {
	if q == nil || q.reader == nil {
		return core.MessagePage{}, queryDependencyError("query: message reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.MessagePage{}, err
	}
	return q.reader.List(ctx, msg.Filter.Normalized())
}
