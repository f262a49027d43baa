package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/strictgen/llm"
	"github.com/redis/go-redis/v9"
)

// RedisMemory 基于 Redis 列表的会话记忆，适用于多实例共享同一会话上下文。
// 追加使用 RPUSH + LTRIM 保持窗口大小，过期时间每次追加后刷新。
type RedisMemory struct {
	client      redis.UniversalClient
	key         string
	maxMessages int
	ttl         time.Duration
}

// NewRedisMemory 创建 Redis 记忆；maxMessages <= 0 时不限条数，ttl <= 0 时不过期。
func NewRedisMemory(client redis.UniversalClient, key string, maxMessages int, ttl time.Duration) *RedisMemory {
	return &RedisMemory{
		client:      client,
		key:         key,
		maxMessages: maxMessages,
		ttl:         ttl,
	}
}

// Key 返回记忆使用的 Redis 键
func (m *RedisMemory) Key() string { return m.key }

func (m *RedisMemory) Append(ctx context.Context, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, m.key, values...)
	if m.maxMessages > 0 {
		pipe.LTrim(ctx, m.key, int64(-m.maxMessages), -1)
	}
	if m.ttl > 0 {
		pipe.Expire(ctx, m.key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}
	return nil
}

func (m *RedisMemory) Messages(ctx context.Context) ([]llm.Message, error) {
	raw, err := m.client.LRange(ctx, m.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	out := make([]llm.Message, 0, len(raw))
	for _, item := range raw {
		var msg llm.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *RedisMemory) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("failed to reset memory: %w", err)
	}
	return nil
}
