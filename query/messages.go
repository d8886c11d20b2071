package query

import (
	"strings"

	"github.com/goliatone/go-inbox/core"
)

const (
	TypeGetMessage             = "inbox.query.message.get"
	TypeGetMessageByProviderID = "inbox.query.message.get_by_provider_id"
	TypeListMessages           = "inbox.query.message.list"
)

type GetMessageMessage struct {
	ID string
}

func (GetMessageMessage) Type() string { return TypeGetMessage }

func (m GetMessageMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return queryValidationError("id", "id is required")
	}
	return nil
}

type GetMessageByProviderIDMessage struct {
	ProviderID string
}

func (GetMessageByProviderIDMessage) Type() string { return TypeGetMessageByProviderID }

func (m GetMessageByProviderIDMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider_id is required")
	}
	return nil
}

type ListMessagesMessage struct {
	Filter core.MessageFilter
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	fields := map[string][]string{}
	if m.Filter.Direction != "" && !m.Filter.Direction.Valid() {
		fields[ParamDirection] = append(fields[ParamDirection], "direction must be inbound or outbound")
	}
	if m.Filter.Page < 0 {
		fields[ParamPage] = append(fields[ParamPage], "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		fields[ParamPerPage] = append(fields[ParamPerPage], "per_page must be >= 0")
	}
	if m.Filter.CreatedFrom != nil && m.Filter.CreatedTo != nil && m.Filter.CreatedTo.Before(*m.Filter.CreatedFrom) {
		fields[ParamCreatedTo] = append(fields[ParamCreatedTo], "created_to must not be before created_from")
	}
	if len(fields) > 0 {
		return core.NewFieldValidationError("query: validation failed", fields)
	}
	return nil
}
