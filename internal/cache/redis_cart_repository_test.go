package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/repository/file"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingCarts counts backing-store reads
type countingCarts struct {
	repository.CartRepository
	reads atomic.Int32
	delay time.Duration

	// afterLoad runs once the backing read has returned
	afterLoad func()
}

func (c *countingCarts) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	c.reads.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	cart, err := c.CartRepository.FindByID(ctx, id)
	if c.afterLoad != nil {
		c.afterLoad()
	}
	return cart, err
}

func newCachedCarts(t *testing.T) (*RedisCartRepository, *countingCarts, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backing := &countingCarts{CartRepository: file.NewCartRepository(afero.NewMemMapFs(), "carts.json")}
	return NewRedisCartRepository(backing, client, 15*time.Minute, zap.NewNop()), backing, mr
}

func TestFindByID_ReadThrough(t *testing.T) {
	repo, backing, mr := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, []domain.CartLineItem{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	first, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), backing.reads.Load())
	assert.Equal(t, first.Lines, second.Lines)
	assert.True(t, mr.Exists(cacheKey(cart.ID)))

	ttl := mr.TTL(cacheKey(cart.ID))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 16*time.Minute)
}

func TestSave_WritesThrough(t *testing.T) {
	repo, backing, mr := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, nil)
	require.NoError(t, err)
	loaded, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey(cart.ID)))

	loaded.Lines = append(loaded.Lines, domain.CartLineItem{ProductID: "p9", Quantity: 1})
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, "1", mr.HGet(cacheKey(cart.ID), "version"))

	reloaded, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p9", Quantity: 1}}, reloaded.Lines)
	assert.Equal(t, 1, reloaded.Version)
	assert.Equal(t, int32(1), backing.reads.Load(), "the saved cart is served from the cache")
}

func TestFindByID_SlowFillCannotOverwriteNewerSave(t *testing.T) {
	repo, backing, mr := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, nil)
	require.NoError(t, err)

	loaded := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backing.afterLoad = func() {
		once.Do(func() {
			close(loaded)
			<-release
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := repo.FindByID(ctx, cart.ID)
		done <- err
	}()

	// The reader holds version 0 while a writer saves version 1
	<-loaded
	require.NoError(t, repo.Save(ctx, &domain.Cart{
		ID:    cart.ID,
		Lines: []domain.CartLineItem{{ProductID: "p1", Quantity: 3}},
	}))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "1", mr.HGet(cacheKey(cart.ID), "version"))

	got, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLineItem{{ProductID: "p1", Quantity: 3}}, got.Lines)
	assert.Equal(t, 1, got.Version)
}

func TestSet_KeepsNewerEntry(t *testing.T) {
	repo, _, mr := newCachedCarts(t)
	ctx := context.Background()

	newer := &domain.Cart{ID: "c1", Lines: []domain.CartLineItem{{ProductID: "a", Quantity: 2}}, Version: 4}
	older := &domain.Cart{ID: "c1", Lines: []domain.CartLineItem{}, Version: 3}

	require.NoError(t, repo.set(ctx, newer))
	require.NoError(t, repo.set(ctx, older))
	assert.Equal(t, "4", mr.HGet(cacheKey("c1"), "version"))

	got, err := repo.get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, newer.Lines, got.Lines)
}

func TestSaveVersioned_ConflictStillEvicts(t *testing.T) {
	repo, _, mr := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, nil)
	require.NoError(t, err)
	loaded, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)

	err = repo.SaveVersioned(ctx, loaded, loaded.Version+3)
	assert.ErrorIs(t, err, repository.ErrCartVersionConflict)
	assert.False(t, mr.Exists(cacheKey(cart.ID)))
}

func TestFindByID_MissIsNotCached(t *testing.T) {
	repo, _, mr := newCachedCarts(t)

	_, err := repo.FindByID(context.Background(), "unknown")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
	assert.False(t, mr.Exists(cacheKey("unknown")))
}

func TestFindByID_CollapsesConcurrentMisses(t *testing.T) {
	repo, backing, _ := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, []domain.CartLineItem{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	backing.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]*domain.Cart, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.FindByID(ctx, cart.ID)
			if err == nil {
				results[i] = c
			}
		}(i)
	}
	wg.Wait()

	assert.Less(t, backing.reads.Load(), int32(8))
	for _, c := range results {
		require.NotNil(t, c)
		assert.Equal(t, cart.ID, c.ID)
	}

	// Copies are independent
	results[0].Lines[0].Quantity = 99
	assert.Equal(t, 1, results[1].Lines[0].Quantity)
}

func TestFindByID_FallsBackWhenRedisIsDown(t *testing.T) {
	repo, backing, mr := newCachedCarts(t)
	ctx := context.Background()

	cart, err := repo.Create(ctx, nil)
	require.NoError(t, err)
	mr.Close()

	loaded, err := repo.FindByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, loaded.ID)
	assert.Equal(t, int32(1), backing.reads.Load())
}
