// Package memory provides an in-process MessageStore.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-inbox/core"
	"github.com/google/uuid"
)

// Store keeps messages in a map guarded by one mutex, so create-or-merge is a
// single compare-and-write per provider id.
type Store struct {
	mu         sync.RWMutex
	records    map[string]core.Message
	byProvider map[string]string
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		records:    map[string]core.Message{},
		byProvider: map[string]string{},
		now:        time.Now,
	}
}

// WithClock overrides the timestamp source, used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) CreateOrMerge(_ context.Context, fields core.MessageFields) (core.Message, error) {
	providerID := strings.TrimSpace(fields.ProviderID)
	if providerID == "" {
		return core.Message{}, core.NewBadInputError("memory: provider id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if id, ok := s.byProvider[providerID]; ok {
		record := s.records[id]
		mergeFields(&record, fields)
		record.UpdatedAt = now
		s.records[id] = record
		return cloneMessage(record), nil
	}

	direction := fields.Direction
	if !direction.Valid() {
		return core.Message{}, core.NewBadInputError("memory: direction is required to create a message")
	}
	record := core.Message{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Direction:  direction,
		Body:       map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	mergeFields(&record, fields)
	if record.Status == "" {
		record.Status = core.StatusReceived
	}
	s.records[record.ID] = record
	s.byProvider[providerID] = record.ID
	return cloneMessage(record), nil
}

func (s *Store) FindByProviderID(_ context.Context, providerID string) (core.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byProvider[strings.TrimSpace(providerID)]
	if !ok {
		return core.Message{}, false, nil
	}
	return cloneMessage(s.records[id]), true, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[strings.TrimSpace(id)]
	if !ok || record.DeletedAt != nil {
		return core.Message{}, core.NewNotFoundError("memory: message not found", map[string]any{"id": id})
	}
	return cloneMessage(record), nil
}

func (s *Store) Update(_ context.Context, id string, update core.MessageUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(id)]
	if !ok || record.DeletedAt != nil {
		return false, nil
	}
	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Body != nil {
		record.Body = core.CloneBody(update.Body)
	}
	if update.ErrorCode != nil {
		record.ErrorCode = *update.ErrorCode
	}
	if update.ErrorReason != nil {
		record.ErrorReason = *update.ErrorReason
	}
	record.UpdatedAt = s.now().UTC()
	s.records[record.ID] = record
	return true, nil
}

func (s *Store) List(_ context.Context, filter core.MessageFilter) (core.MessagePage, error) {
	filter = filter.Normalized()
	from, to := filter.CreatedBounds()

	s.mu.RLock()
	matched := make([]core.Message, 0, len(s.records))
	for _, record := range s.records {
		if record.DeletedAt != nil || !matches(record, filter, from, to) {
			continue
		}
		matched = append(matched, record)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return core.NewMessagePage([]core.Message{}, filter, total), nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	items := make([]core.Message, 0, end-start)
	for _, record := range matched[start:end] {
		items = append(items, cloneMessage(record))
	}
	return core.NewMessagePage(items, filter, total), nil
}

// SoftDelete marks the record deleted and frees its provider id.
func (s *Store) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(id)]
	if !ok || record.DeletedAt != nil {
		return core.NewNotFoundError("memory: message not found", map[string]any{"id": id})
	}
	deletedAt := s.now().UTC()
	record.DeletedAt = &deletedAt
	s.records[record.ID] = record
	delete(s.byProvider, record.ProviderID)
	return nil
}

func mergeFields(record *core.Message, fields core.MessageFields) {
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
		record.Status = *fields.Status
	}
	if fields.ErrorCode != nil {
		record.ErrorCode = *fields.ErrorCode
	}
	if fields.ErrorReason != nil {
		record.ErrorReason = *fields.ErrorReason
	}
}

func matches(record core.Message, filter core.MessageFilter, from *time.Time, to *time.Time) bool {
	switch {
	case filter.ProviderID != "" && record.ProviderID != filter.ProviderID:
		return false
	case filter.Direction != "" && record.Direction != filter.Direction:
		return false
	case filter.From != "" && record.From != filter.From:
		return false
	case filter.To != "" && record.To != filter.To:
		return false
	case filter.Type != "" && record.Type != filter.Type:
		return false
	case filter.Status != "" && record.Status != filter.Status:
		return false
	case filter.ErrorCode != "" && record.ErrorCode != filter.ErrorCode:
		return false
	case filter.ErrorReason != "" && record.ErrorReason != filter.ErrorReason:
		return false
	case from != nil && record.CreatedAt.Before(*from):
		return false
	case to != nil && !record.CreatedAt.Before(*to):
		return false
	}
	return true
}

func cloneMessage(record core.Message) core.Message {
	out := record
	out.Body = core.CloneBody(record.Body)
	if record.DeletedAt != nil {
		deletedAt := *record.DeletedAt
		out.DeletedAt = &deletedAt
	}
	return out
}

var _ core.MessageStore = (*Store)(nil)
