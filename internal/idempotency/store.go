package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL 未指定 TTL 时的缓存时长
const DefaultTTL = time.Hour

// Store 保存已完成请求的响应，供相同幂等键的重放请求直接返回
type Store interface {
	// Get 返回缓存的响应；未命中时 ok 为 false
	Get(ctx context.Context, key string) (data json.RawMessage, ok bool, err error)

	// Set 缓存响应，ttl <= 0 时使用 DefaultTTL
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Key 由客户端提供的幂等键与请求内容派生存储键。
// 同一个客户端键配上不同的请求内容得到不同的存储键，不会串用结果。
func Key(clientKey string, inputs ...any) (string, error) {
	if clientKey == "" {
		return "", errors.New("idempotency key is empty")
	}
	data, err := json.Marshal(append([]any{clientKey}, inputs...))
	if err != nil {
		return "", fmt.Errorf("marshal idempotency inputs: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetTyped 是 Store.Get 的类型安全封装
func GetTyped[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("unmarshal cached value: %w", err)
	}
	return v, true, nil
}

// =============================================================================
// Redis 实现
// =============================================================================

// RedisStore 基于 Redis 的存储，多实例部署时共享
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "strictgen:idempotency:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "idempotency")),
	}
}

// Get 实现 Store.Get
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	s.logger.Debug("idempotency hit", zap.String("key", key), zap.Int("bytes", len(data)))
	return data, true, nil
}

// Set 实现 Store.Set
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// =============================================================================
// 内存实现
// =============================================================================

// MemoryStore 进程内存储，条目数超过上限时先清理过期条目，仍超限则淘汰最早过期的条目
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// NewMemoryStore 创建内存存储，maxEntries <= 0 时为 10000
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get 实现 Store.Get
func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set 实现 Store.Set
func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}
	s.entries[key] = memoryEntry{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictLocked() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range s.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(s.entries, oldestKey)
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
