package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
	now  func() time.Time
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{db: db, repo: repo, now: time.Now}, nil
}

// CreateOrMerge is a single INSERT ... ON CONFLICT against the partial unique
// index on live provider ids.
func (s *MessageStore) CreateOrMerge(ctx context.Context, fields core.MessageFields) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, core.NewInternalError("sqlstore: message store is not configured")
	}
	fields.ProviderID = strings.TrimSpace(fields.ProviderID)
	if fields.ProviderID == "" {
		return core.Message{}, core.NewBadInputError("sqlstore: provider id is required")
	}
	if !fields.Direction.Valid() {
		return core.Message{}, core.NewBadInputError("sqlstore: direction is required")
	}

	record := newMessageRecord(fields, s.now().UTC())
	query := s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider_id) WHERE deleted_at IS NULL DO UPDATE")
	for _, column := range mergeColumns(fields) {
		query = query.Set("? = EXCLUDED.?", bun.Ident(column), bun.Ident(column))
	}
	if _, err := query.Exec(ctx); err != nil {
		return core.Message{}, core.WrapStorageError(err, "sqlstore: create or merge message")
	}

	stored, found, err := s.FindByProviderID(ctx, fields.ProviderID)
	if err != nil {
		return core.Message{}, err
	}
	if !found {
		return core.Message{}, core.WrapStorageError(
			fmt.Errorf("message %q vanished after upsert", fields.ProviderID),
			"sqlstore: create or merge message",
		)
	}
	return stored, nil
}

func (s *MessageStore) FindByProviderID(ctx context.Context, providerID string) (core.Message, bool, error) {
	if s == nil || s.db == nil {
		return core.Message{}, false, core.NewInternalError("sqlstore: message store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return core.Message{}, false, nil
	}
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Message{}, false, nil
		}
		return core.Message{}, false, core.WrapStorageError(err, "sqlstore: find message by provider id")
	}
	return record.toDomain(), true, nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, core.NewInternalError("sqlstore: message store is not configured")
	}
	id = strings.TrimSpace(id)
	canonical, ok := messageID(id)
	if !ok {
		return core.Message{}, core.NewNotFoundError("sqlstore: message not found", map[string]any{"id": id})
	}
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", canonical).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Message{}, core.NewNotFoundError("sqlstore: message not found", map[string]any{"id": id})
		}
		return core.Message{}, core.WrapStorageError(err, "sqlstore: get message")
	}
	return record.toDomain(), nil
}

func (s *MessageStore) Update(ctx context.Context, id string, update core.MessageUpdate) (bool, error) {
	if s == nil || s.db == nil {
		return false, core.NewInternalError("sqlstore: message store is not configured")
	}
	canonical, ok := messageID(id)
	if !ok {
		return false, nil
	}
	query := s.db.NewUpdate().
		Model((*messageRecord)(nil)).
		Set("updated_at = ?", s.now().UTC())
	if update.Status != nil {
		query = query.Set("status = ?", string(*update.Status))
	}
	if update.Body != nil {
		encoded, err := json.Marshal(update.Body)
		if err != nil {
			return false, core.NewBadInputError("sqlstore: message body is not json encodable")
		}
		query = query.Set("body = ?", string(encoded))
	}
	if update.ErrorCode != nil {
		query = query.Set("error_code = ?", *update.ErrorCode)
	}
	if update.ErrorReason != nil {
		query = query.Set("error_reason = ?", *update.ErrorReason)
	}
	result, err := query.
		Where("id = ?", canonical).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, core.WrapStorageError(err, "sqlstore: update message")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, core.WrapStorageError(err, "sqlstore: update message")
	}
	return affected > 0, nil
}

func (s *MessageStore) List(ctx context.Context, filter core.MessageFilter) (core.MessagePage, error) {
	if s == nil || s.repo == nil {
		return core.MessagePage{}, core.NewInternalError("sqlstore: message store is not configured")
	}
	filter = filter.Normalized()
	selectors := listCriteria(filter)
	selectors = append(selectors,
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(filter.PerPage, filter.Offset()),
	)
	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.MessagePage{}, core.WrapStorageError(err, "sqlstore: list messages")
	}
	items := make([]core.Message, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.NewMessagePage(items, filter, total), nil
}

// SoftDelete stamps deleted_at, which frees the provider id for a new record.
func (s *MessageStore) SoftDelete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return core.NewInternalError("sqlstore: message store is not configured")
	}
	id = strings.TrimSpace(id)
	canonical, ok := messageID(id)
	if !ok {
		return core.NewNotFoundError("sqlstore: message not found", map[string]any{"id": id})
	}
	result, err := s.db.NewUpdate().
		Model((*messageRecord)(nil)).
		Set("deleted_at = ?", s.now().UTC()).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", canonical).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.WrapStorageError(err, "sqlstore: delete message")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WrapStorageError(err, "sqlstore: delete message")
	}
	if affected == 0 {
		return core.NewNotFoundError("sqlstore: message not found", map[string]any{"id": id})
	}
	return nil
}

func listCriteria(filter core.MessageFilter) []repository.SelectCriteria {
	selectors := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
	}
	if filter.ProviderID != "" {
		selectors = append(selectors, repository.SelectBy("provider_id", "=", filter.ProviderID))
	}
	if filter.Direction != "" {
		selectors = append(selectors, repository.SelectBy("direction", "=", string(filter.Direction)))
	}
	if filter.Type != "" {
		selectors = append(selectors, repository.SelectBy("type", "=", filter.Type))
	}
	if filter.Status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(filter.Status)))
	}
	if filter.ErrorCode != "" {
		selectors = append(selectors, repository.SelectBy("error_code", "=", filter.ErrorCode))
	}
	if filter.ErrorReason != "" {
		selectors = append(selectors, repository.SelectBy("error_reason", "=", filter.ErrorReason))
	}
	// from and to are reserved words and must be quoted.
	if filter.From != "" {
		from := filter.From
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.? = ?", bun.Ident("from"), from)
		}))
	}
	if filter.To != "" {
		to := filter.To
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.? = ?", bun.Ident("to"), to)
		}))
	}
	createdFrom, createdTo := filter.CreatedBounds()
	if createdFrom != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", createdFrom.UTC()))
	}
	if createdTo != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<", createdTo.UTC()))
	}
	return selectors
}
