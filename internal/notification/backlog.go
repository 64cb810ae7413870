package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventBacklog 保存每个工作流最近的运行事件，新连接订阅时先回放
type EventBacklog interface {
	Append(ctx context.Context, workflowID string, payload []byte) error
	Recent(ctx context.Context, workflowID string) ([][]byte, error)
}

// MemoryBacklog 简单内存实现
type MemoryBacklog struct {
	mu    sync.Mutex
	limit int
	data  map[string][][]byte
}

// NewMemoryBacklog 创建内存存储
func NewMemoryBacklog(limit int) *MemoryBacklog {
	if limit <= 0 {
		limit = 50
	}
	return &MemoryBacklog{
		limit: limit,
		data:  make(map[string][][]byte),
	}
}

func (s *MemoryBacklog) Append(_ context.Context, workflowID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := append(s.data[workflowID], append([]byte(nil), payload...))
	if len(queue) > s.limit {
		queue = queue[len(queue)-s.limit:]
	}
	s.data[workflowID] = queue
	return nil
}

// Recent 按发生顺序返回（最旧在前）
func (s *MemoryBacklog) Recent(_ context.Context, workflowID string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.data[workflowID]...), nil
}

// RedisBacklog 基于 Redis 的实现，多个实例共享回放内容
type RedisBacklog struct {
	client redis.UniversalClient
	prefix string
	limit  int
	ttl    time.Duration
}

// NewRedisBacklog 创建 redis 存储
func NewRedisBacklog(client redis.UniversalClient, prefix string, limit int, ttl time.Duration) *RedisBacklog {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "flowbuilder"
	}
	if limit <= 0 {
		limit = 100
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisBacklog{client: client, prefix: prefix, limit: limit, ttl: ttl}
}

func (s *RedisBacklog) Append(ctx context.Context, workflowID string, payload []byte) error {
	key := s.key(workflowID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.limit), -1)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisBacklog) Recent(ctx context.Context, workflowID string) ([][]byte, error) {
	values, err := s.client.LRange(ctx, s.key(workflowID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	result := make([][]byte, 0, len(values))
	for _, v := range values {
		result = append(result, []byte(v))
	}
	return result, nil
}

func (s *RedisBacklog) key(workflowID string) string {
	return s.prefix + ":run_events:" + workflowID
}
