package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

type cachedCart struct {
	ID        string                `json:"id"`
	Lines     []domain.CartLineItem `json:"lines"`
	Version   int                   `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// storeScript writes a cart entry unless the cached one is at least as new.
// KEYS[1] cart key; ARGV[1] version, ARGV[2] encoded cart, ARGV[3] ttl in ms.
var storeScript = redis.NewScript(`
local cached = redis.call('HGET', KEYS[1], 'version')
if cached and tonumber(cached) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCartRepository is a read-through, write-through cache in front of
// another CartRepository. Entries are stored with the cart version and never
// replaced by an older version, so a slow reader cannot put back a cart that
// a later save already superseded.
type RedisCartRepository struct {
	next    repository.CartRepository
	client  *redis.Client
	baseTTL time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// NewRedisCartRepository wraps next with a Redis cache
func NewRedisCartRepository(next repository.CartRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCartRepository {
	return &RedisCartRepository{
		next:    next,
		client:  client,
		baseTTL: ttl,
		logger:  logger,
	}
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("cart:%s", domain.CanonicalID(cartID))
}

func (r *RedisCartRepository) Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error) {
	return r.next.Create(ctx, lines)
}

// FindByID serves from Redis when possible. Concurrent misses for one cart
// share a single backing-store read.
func (r *RedisCartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart, err := r.get(ctx, id)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("Cart cache read failed", zap.String("cart_id", id), zap.Error(err))
	}

	v, err, _ := r.group.Do(cacheKey(id), func() (interface{}, error) {
		cart, err := r.next.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.set(ctx, cart); err != nil {
			r.logger.Warn("Cart cache write failed", zap.String("cart_id", id), zap.Error(err))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// Every caller gets its own copy so the shared result is never mutated.
	shared := v.(*domain.Cart)
	cart = &domain.Cart{}
	*cart = *shared
	cart.Lines = domain.CloneLines(shared.Lines)
	return cart, nil
}

func (r *RedisCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	err := r.next.Save(ctx, cart)
	r.afterSave(cart, err)
	return err
}

func (r *RedisCartRepository) SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	err := r.next.SaveVersioned(ctx, cart, expectedVersion)
	r.afterSave(cart, err)
	return err
}

// afterSave writes the saved cart through. A failed save, or a failed write,
// drops the entry instead. It runs on its own short deadline so a cancelled
// request still updates the cache.
func (r *RedisCartRepository) afterSave(cart *domain.Cart, saveErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if saveErr == nil {
		err := r.set(ctx, cart)
		if err == nil {
			return
		}
		r.logger.Warn("Cart cache write-through failed", zap.String("cart_id", cart.ID), zap.Error(err))
	}
	r.evict(ctx, cart.ID)
}

func (r *RedisCartRepository) get(ctx context.Context, id string) (*domain.Cart, error) {
	data, err := r.client.HGet(ctx, cacheKey(id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c cachedCart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &domain.Cart{
		ID:        c.ID,
		Lines:     domain.CloneLines(c.Lines),
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

// set stores cart unless the cache already holds the same or a newer version
func (r *RedisCartRepository) set(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cachedCart{
		ID:        cart.ID,
		Lines:     cart.Lines,
		Version:   cart.Version,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	ttl := r.baseTTL + jitter
	keys := []string{cacheKey(cart.ID)}
	if err := storeScript.Run(ctx, r.client, keys, cart.Version, data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartRepository) evict(ctx context.Context, cartID string) {
	if err := r.client.Del(ctx, cacheKey(cartID)).Err(); err != nil {
		r.logger.Warn("Cart cache invalidation failed", zap.String("cart_id", cartID), zap.Error(err))
	}
}
