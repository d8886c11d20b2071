package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type messageRecord struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID          string         `bun:"id,pk"`
	ProviderID  string         `bun:"provider_id,notnull"`
	Direction   string         `bun:"direction,notnull"`
	From        string         `bun:"from,notnull"`
	To          string         `bun:"to,notnull"`
	Type        string         `bun:"type,notnull"`
	Body        map[string]any `bun:"body,type:jsonb,notnull"`
	Status      string         `bun:"status,notnull"`
	ErrorCode   string         `bun:"error_code,notnull"`
	ErrorReason string         `bun:"error_reason,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt   *time.Time     `bun:"deleted_at,soft_delete"`
}
