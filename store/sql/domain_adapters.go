package sqlstore

import (
	"time"

	"github.com/goliatone/go-inbox/core"
	"github.com/google/uuid"
)

// newMessageRecord builds the insert side of a create-or-merge. Absent fields
// get column defaults; on conflict only present fields are written.
func newMessageRecord(fields core.MessageFields, now time.Time) *messageRecord {
	record := &messageRecord{
		ID:         uuid.NewString(),
		ProviderID: fields.ProviderID,
		Direction:  string(fields.Direction),
		Body:       map[string]any{},
		Status:     string(core.StatusReceived),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if fields.From != nil {
		record.From = *fields.From
	}
	if fields.To != nil {
		record.To = *fields.To
	}
	if fields.Type != nil {
		record.Type = *fields.Type
	}
	if fields.Body != nil {
		record.Body = core.CloneBody(fields.Body)
	}
	if fields.Status != nil {
		record.Status = string(*fields.Status)
	}
	if fields.ErrorCode != nil {
		record.ErrorCode = *fields.ErrorCode
	}
	if fields.ErrorReason != nil {
		record.ErrorReason = *fields.ErrorReason
	}
	return record
}

// mergeColumns lists the columns a conflicting insert overwrites. Direction
// and id are never part of it.
func mergeColumns(fields core.MessageFields) []string {
	columns := make([]string, 0, 8)
	if fields.From != nil {
		columns = append(columns, "from")
	}
	if fields.To != nil {
		columns = append(columns, "to")
	}
	if fields.Type != nil {
		columns = append(columns, "type")
	}
	if fields.Body != nil {
		columns = append(columns, "body")
	}
	if fields.Status != nil {
		columns = append(columns, "status")
	}
	if fields.ErrorCode != nil {
		columns = append(columns, "error_code")
	}
	if fields.ErrorReason != nil {
		columns = append(columns, "error_reason")
	}
	return append(columns, "updated_at")
}

func (r *messageRecord) toDomain() core.Message {
	if r == nil {
		return core.Message{}
	}
	message := core.Message{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		Direction:   core.Direction(r.Direction),
		From:        r.From,
		To:          r.To,
		Type:        r.Type,
		Body:        core.CloneBody(r.Body),
		Status:      core.MessageStatus(r.Status),
		ErrorCode:   r.ErrorCode,
		ErrorReason: r.ErrorReason,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.DeletedAt != nil {
		deletedAt := r.DeletedAt.UTC()
		message.DeletedAt = &deletedAt
	}
	return message
}
