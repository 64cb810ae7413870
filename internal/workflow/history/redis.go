package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	workflow "flowbuilder/internal/workflow"

	"github.com/redis/go-redis/v9"
)

// appendScript 原子地检查运行 ID 并追加记录
// KEYS[1] 运行去重键, KEYS[2] 工作流历史有序集合（score 为执行时间毫秒）
// ARGV[1] 记录 JSON, ARGV[2] 执行时间毫秒, ARGV[3] 保留条数, ARGV[4] 去重键 TTL 秒
var appendScript = redis.NewScript(`
if redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[4]) == false then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
local keep = tonumber(ARGV[3])
if keep > 0 then
  redis.call('ZREMRANGEBYRANK', KEYS[2], 0, -(keep + 1))
end
return 1
`)

// RedisStore 基于 Redis 有序集合的历史存储，按执行时间排序
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention int
	runTTL    time.Duration
}

// NewRedisStore 创建 Redis 存储
// retention<=0 表示不裁剪；runTTL 控制去重键保留时间
// 去重键与历史集合共用 {workflowID} 哈希标签，集群模式下可以在同一脚本中操作
func NewRedisStore(client redis.UniversalClient, prefix string, retention int, runTTL time.Duration) *RedisStore {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "flowbuilder"
	}
	if runTTL <= 0 {
		runTTL = 7 * 24 * time.Hour
	}
	return &RedisStore{redis: client, prefix: prefix, retention: retention, runTTL: runTTL}
}

// Append 实现 Store
func (s *RedisStore) Append(ctx context.Context, workflowID string, rec *workflow.ExecutionRecord) error {
	cp := *rec
	cp.WorkflowID = workflowID
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("序列化执行记录失败: %w", err)
	}

	keys := []string{s.runKey(workflowID, rec.ID), s.listKey(workflowID)}
	args := []any{data, rec.ExecutedAt.UnixMilli(), s.retention, int64(s.runTTL.Seconds())}
	if err := appendScript.Run(ctx, s.redis, keys, args...).Err(); err != nil {
		return fmt.Errorf("追加执行记录失败: %w", err)
	}
	return nil
}

// Recent 实现 Store
func (s *RedisStore) Recent(ctx context.Context, workflowID string, n int) ([]workflow.ExecutionRecord, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	items, err := s.redis.ZRange(ctx, s.listKey(workflowID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("查询执行历史失败: %w", err)
	}

	records := make([]workflow.ExecutionRecord, 0, len(items))
	for _, item := range items {
		var rec workflow.ExecutionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("解析执行记录失败: %w", err)
		}
		records = append(records, rec)
	}
	sortOldestFirst(records)
	return records, nil
}

// Exists 实现 Store
func (s *RedisStore) Exists(ctx context.Context, workflowID, runID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.runKey(workflowID, runID)).Result()
	if err != nil {
		return false, fmt.Errorf("查询执行记录失败: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) listKey(workflowID string) string {
	return fmt.Sprintf("%s:history:{%s}", s.prefix, workflowID)
}

func (s *RedisStore) runKey(workflowID, runID string) string {
	return fmt.Sprintf("%s:history:{%s}:run:%s", s.prefix, workflowID, runID)
}
