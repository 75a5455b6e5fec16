package redis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/memory"
	rediscache "github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*rediscache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return rediscache.New(mr.Addr(), "", 0), mr
}

func TestAllowRequest_FixedWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := c.AllowRequest(ctx, "1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := c.AllowRequest(ctx, "1.2.3.4", 2, time.Minute)
	assert.False(t, ok)

	other, _ := c.AllowRequest(ctx, "5.6.7.8", 2, time.Minute)
	assert.True(t, other)

	mr.FastForward(time.Minute + time.Second)
	ok, _ = c.AllowRequest(ctx, "1.2.3.4", 2, time.Minute)
	assert.True(t, ok, "window resets")
}

func TestAllowRequest_FailsOpen(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	ok, err := c.AllowRequest(context.Background(), "1.2.3.4", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
}

type countingDirectory struct {
	inner *memory.UserDirectory
	calls atomic.Int32
}

func (d *countingDirectory) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	d.calls.Add(1)
	return d.inner.GetUser(ctx, id)
}

func TestCachedDirectory_ReadThrough(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	u := domain.User{ID: uuid.New(), Role: domain.RoleDeliveryPartner, MobileNumber: "9000000002"}
	backing := &countingDirectory{inner: memory.NewUserDirectory(u)}
	dir := rediscache.NewCachedDirectory(c, backing, time.Minute)

	got, err := dir.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Delivery Partner - 9000000002", got.DisplayName())

	got, err = dir.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Equal(t, int32(1), backing.calls.Load(), "second lookup served from cache")

	mr.FastForward(2 * time.Minute)
	_, err = dir.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.calls.Load())

	require.NoError(t, dir.Invalidate(ctx, u.ID))
	_, _ = dir.GetUser(ctx, u.ID)
	assert.Equal(t, int32(3), backing.calls.Load())
}

func TestCachedDirectory_MissIsNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	backing := &countingDirectory{inner: memory.NewUserDirectory()}
	dir := rediscache.NewCachedDirectory(c, backing, time.Minute)

	id := uuid.New()
	_, err := dir.GetUser(context.Background(), id)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
	_, _ = dir.GetUser(context.Background(), id)
	assert.Equal(t, int32(2), backing.calls.Load())
}

func TestCachedDirectory_RedisDownFallsBack(t *testing.T) {
	c, mr := newTestCache(t)
	u := domain.User{ID: uuid.New(), Role: domain.RoleCustomer, MobileNumber: "9000000001"}
	dir := rediscache.NewCachedDirectory(c, memory.NewUserDirectory(u), time.Minute)
	mr.Close()

	got, err := dir.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}
