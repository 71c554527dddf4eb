package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds account snapshots keyed by account id.
type Cache interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	Set(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, ids ...string) error
}

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const (
	DefaultCachePrefix = "bank:account:"
	DefaultCacheTTL    = 30 * time.Second
)

type RedisCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client RedisClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (*models.Account, error) {
	raw, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *RedisCache) Set(ctx context.Context, account *models.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+account.ID, raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.prefix + id
	}
	return c.client.Del(ctx, keys...).Err()
}

// CachedStore decorates a UnitOfWork with a read-through account cache.
// Only reads made outside a unit of work are served from the cache; accounts
// written by a unit of work are evicted once it commits. Cache failures fall
// back to the underlying store.
type CachedStore struct {
	UnitOfWork
	cache Cache
	group singleflight.Group
}

func NewCachedStore(next UnitOfWork, cache Cache) *CachedStore {
	return &CachedStore{UnitOfWork: next, cache: cache}
}

func (s *CachedStore) Accounts() AccountRepository {
	return &cachedAccounts{AccountRepository: s.UnitOfWork.Accounts(), store: s}
}

func (s *CachedStore) Do(ctx context.Context, fn func(r Repositories) error) error {
	touched := make(map[string]struct{})
	err := s.UnitOfWork.Do(ctx, func(r Repositories) error {
		return fn(&trackingUnit{Repositories: r, touched: touched})
	})
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	_ = s.cache.Delete(ctx, ids...)
	return nil
}

type cachedAccounts struct {
	AccountRepository
	store *CachedStore
}

func (r *cachedAccounts) Get(ctx context.Context, id string) (*models.Account, error) {
	if account, err := r.store.cache.Get(ctx, id); err == nil {
		return account, nil
	}

	v, err, _ := r.store.group.Do(id, func() (interface{}, error) {
		account, err := r.AccountRepository.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		_ = r.store.cache.Set(ctx, account)
		return account, nil
	})
	if err != nil {
		return nil, err
	}
	account := *v.(*models.Account)
	return &account, nil
}

func (r *cachedAccounts) Update(ctx context.Context, account *models.Account) error {
	if err := r.AccountRepository.Update(ctx, account); err != nil {
		return err
	}
	_ = r.store.cache.Delete(ctx, account.ID)
	return nil
}

type trackingUnit struct {
	Repositories
	touched map[string]struct{}
}

func (u *trackingUnit) Accounts() AccountRepository {
	return &trackingAccounts{AccountRepository: u.Repositories.Accounts(), touched: u.touched}
}

type trackingAccounts struct {
	AccountRepository
	touched map[string]struct{}
}

func (r *trackingAccounts) Create(ctx context.Context, account *models.Account) error {
	r.touched[account.ID] = struct{}{}
	return r.AccountRepository.Create(ctx, account)
}

func (r *trackingAccounts) Update(ctx context.Context, account *models.Account) error {
	r.touched[account.ID] = struct{}{}
	return r.AccountRepository.Update(ctx, account)
}
