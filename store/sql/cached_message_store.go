package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-inbox/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const messageCacheKeyPrefix = "go-inbox::message::v1"

var errProviderLookupMiss = errors.New("sqlstore: provider lookup miss")

// CachedMessageStore is a read-through cache over any MessageStore. Writes go
// to the base store and evict the affected keys. Provider id misses are never
// cached.
type CachedMessageStore struct {
	base  core.MessageStore
	cache repositorycache.CacheService
}

func NewCachedMessageStore(base core.MessageStore, cacheService repositorycache.CacheService) (*CachedMessageStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base message store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: message cache service is required")
	}
	return &CachedMessageStore{base: base, cache: cacheService}, nil
}

// MessageCacheKey returns go-inbox::message::v1::<field>::<value> with the
// value URL-path escaped.
func MessageCacheKey(field string, value string) string {
	return strings.Join([]string{
		messageCacheKeyPrefix,
		field,
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedMessageStore) Get(ctx context.Context, id string) (core.Message, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Message{}, fmt.Errorf("sqlstore: cached message store is not configured")
	}
	message, err := repositorycache.GetOrFetch(ctx, s.cache, MessageCacheKey("id", id), func(ctx context.Context) (core.Message, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Message{}, err
	}
	return cloneMessage(message), nil
}

func (s *CachedMessageStore) FindByProviderID(ctx context.Context, providerID string) (core.Message, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Message{}, false, fmt.Errorf("sqlstore: cached message store is not configured")
	}
	message, err := repositorycache.GetOrFetch(ctx, s.cache, MessageCacheKey("provider", providerID), func(ctx context.Context) (core.Message, error) {
		found, ok, fetchErr := s.base.FindByProviderID(ctx, providerID)
		if fetchErr != nil {
			return core.Message{}, fetchErr
		}
		if !ok {
			return core.Message{}, errProviderLookupMiss
		}
		return found, nil
	})
	if errors.Is(err, errProviderLookupMiss) {
		return core.Message{}, false, nil
	}
	if err != nil {
		return core.Message{}, false, err
	}
	return cloneMessage(message), true, nil
}

func (s *CachedMessageStore) CreateOrMerge(ctx context.Context, fields core.MessageFields) (core.Message, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Message{}, fmt.Errorf("sqlstore: cached message store is not configured")
	}
	message, err := s.base.CreateOrMerge(ctx, fields)
	if err != nil {
		return core.Message{}, err
	}
	if err := s.evict(ctx, message.ID, message.ProviderID); err != nil {
		return core.Message{}, err
	}
	return message, nil
}

func (s *CachedMessageStore) Update(ctx context.Context, id string, update core.MessageUpdate) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached message store is not configured")
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		if core.ErrorKindOf(err) == core.ErrorKindNotFound {
			return false, nil
		}
		return false, err
	}
	ok, err := s.base.Update(ctx, id, update)
	if err != nil {
		return false, err
	}
	if err := s.evict(ctx, current.ID, current.ProviderID); err != nil {
		return ok, err
	}
	return ok, nil
}

func (s *CachedMessageStore) List(ctx context.Context, filter core.MessageFilter) (core.MessagePage, error) {
	if s == nil || s.base == nil {
		return core.MessagePage{}, fmt.Errorf("sqlstore: cached message store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedMessageStore) SoftDelete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached message store is not configured")
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.SoftDelete(ctx, id); err != nil {
		return err
	}
	return s.evict(ctx, current.ID, current.ProviderID)
}

func (s *CachedMessageStore) evict(ctx context.Context, id string, providerID string) error {
	if strings.TrimSpace(id) != "" {
		if err := s.cache.Delete(ctx, MessageCacheKey("id", id)); err != nil {
			return err
		}
	}
	if strings.TrimSpace(providerID) != "" {
		if err := s.cache.Delete(ctx, MessageCacheKey("provider", providerID)); err != nil {
			return err
		}
	}
	return nil
}

func cloneMessage(message core.Message) core.Message {
	cloned := message
	cloned.Body = core.CloneBody(message.Body)
	if message.DeletedAt != nil {
		deletedAt := *message.DeletedAt
		cloned.DeletedAt = &deletedAt
	}
	return cloned
}
