package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedDirectory is a read-through cache in front of the user directory.
// Redis failures fall back to the underlying directory.
type CachedDirectory struct {
	cache *Cache
	next  domain.UserDirectory
	ttl   time.Duration
}

func NewCachedDirectory(cache *Cache, next domain.UserDirectory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{cache: cache, next: next, ttl: ttl}
}

type cachedUser struct {
	Role   string `json:"role"`
	Mobile string `json:"mobile"`
}

func userKey(id uuid.UUID) string { return "user:profile:" + id.String() }

func (d *CachedDirectory) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	raw, err := d.cache.Client.Get(ctx, userKey(id)).Bytes()
	switch {
	case err == nil:
		var cu cachedUser
		if jerr := json.Unmarshal(raw, &cu); jerr == nil {
			role, _ := domain.ParseRole(cu.Role)
			return domain.User{ID: id, Role: role, MobileNumber: cu.Mobile}, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.WithCtx(ctx).Warn().Err(err).Msg("user cache read failed")
	}

	u, err := d.next.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	body, _ := json.Marshal(cachedUser{Role: u.Role.String(), Mobile: u.MobileNumber})
	if err := d.cache.Client.Set(ctx, userKey(id), body, d.ttl).Err(); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Msg("user cache write failed")
	}
	return u, nil
}

// Invalidate drops the cached profile, e.g. after a role change upstream.
func (d *CachedDirectory) Invalidate(ctx context.Context, id uuid.UUID) error {
	return d.cache.Client.Del(ctx, userKey(id)).Err()
}
