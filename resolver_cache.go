package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultResolverCacheTTL    = 30 * time.Second
	DefaultResolverCachePrefix = "auth:account:"
)

// CachedAccountResolver is a read through Redis cache in front of another
// AccountResolver. Only found accounts are cached so a newly created account
// is visible on the next lookup. Redis failures fall back to the wrapped
// resolver.
type CachedAccountResolver struct {
	next   AccountResolver
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger Logger
}

var _ AccountResolver = (*CachedAccountResolver)(nil)

// cachedAccount is the cached projection of an Account. The password hash
// never leaves the database.
type cachedAccount struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func NewCachedAccountResolver(next AccountResolver, client redis.UniversalClient, ttl time.Duration) *CachedAccountResolver {
	if ttl <= 0 {
		ttl = DefaultResolverCacheTTL
	}
	return &CachedAccountResolver{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: DefaultResolverCachePrefix,
		logger: defLogger{},
	}
}

func (c *CachedAccountResolver) WithLogger(logger Logger) *CachedAccountResolver {
	c.logger = normalizeLogger(logger)
	return c
}

func (c *CachedAccountResolver) WithPrefix(prefix string) *CachedAccountResolver {
	if prefix != "" {
		c.prefix = prefix
	}
	return c
}

func (c *CachedAccountResolver) FindAccountByID(ctx context.Context, id int64) (*Account, error) {
	key := c.key(id)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedAccount
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.account(), nil
		}
		c.logger.Warn("resolver cache entry is corrupt", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("resolver cache read failed", "key", key, "error", err)
	}

	account, err := c.next.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if account != nil {
		c.store(ctx, key, account)
	}

	return account, nil
}

// Forget drops a cached account
func (c *CachedAccountResolver) Forget(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *CachedAccountResolver) store(ctx context.Context, key string, account *Account) {
	payload, err := json.Marshal(cachedAccount{
		ID:        account.ID,
		Email:     account.Email,
		Role:      account.Role,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
		LastLogin: account.LastLogin,
	})
	if err != nil {
		c.logger.Warn("resolver cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("resolver cache write failed", "key", key, "error", err)
	}
}

func (c *CachedAccountResolver) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

func (a cachedAccount) account() *Account {
	return &Account{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		LastLogin: a.LastLogin,
	}
}
