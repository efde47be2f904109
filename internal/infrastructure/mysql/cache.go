package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"ckbrelay/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	relayedCacheVersionKey = "ckbrelay:relayed:version"
	relayedCacheKeyPrefix  = "ckbrelay:relayed:v"
	defaultCacheTTL        = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository serves relayed-block lookups from Redis. Any write to
// relayed_blocks bumps a version counter so stale entries are never read.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) StoreRelayedBlocks(ctx context.Context, blocks []domain.RelayedBlock) error {
	if err := r.Repository.StoreRelayedBlocks(ctx, blocks); err != nil {
		return err
	}
	if len(blocks) > 0 {
		r.invalidate(ctx)
	}
	return nil
}

func (r *CachedRepository) DeleteRelayedBlocksFrom(ctx context.Context, fromBlock uint64) error {
	if err := r.Repository.DeleteRelayedBlocksFrom(ctx, fromBlock); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedRepository) RelayedBlock(ctx context.Context, number uint64) (domain.RelayedBlock, bool, error) {
	if r.cache == nil {
		return r.Repository.RelayedBlock(ctx, number)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.RelayedBlock(ctx, number)
	}
	key := relayedCacheKey(version, number)
	if cached, err := r.cache.Get(ctx, key).Bytes(); err == nil {
		var block domain.RelayedBlock
		if err := json.Unmarshal(cached, &block); err == nil {
			return block, true, nil
		}
	}

	block, found, err := r.Repository.RelayedBlock(ctx, number)
	if err != nil || !found {
		return block, found, err
	}
	if payload, err := json.Marshal(block); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	return block, true, nil
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, relayedCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, relayedCacheVersionKey).Err()
}

func relayedCacheKey(version string, number uint64) string {
	return relayedCacheKeyPrefix + version + ":block=" + strconv.FormatUint(number, 10)
}
