package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flowbuilder/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// beginRunScript KEYS[1] 编辑锁, KEYS[2] 运行集合; ARGV[1] 运行 ID, ARGV[2] 集合 TTL 秒
var beginRunScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[2])
return 1
`)

// beginEditScript KEYS[1] 编辑锁, KEYS[2] 运行集合; ARGV[1] 租约令牌, ARGV[2] 租约 TTL 毫秒
var beginEditScript = redis.NewScript(`
if redis.call('SCARD', KEYS[2]) > 0 then
  return -1
end
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) == false then
  return 0
end
return 1
`)

// releaseEditScript 只释放自己持有的租约
var releaseEditScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisGuard 基于 Redis 的跨进程实现（API 进程与 Worker 共享）
type RedisGuard struct {
	redis    redis.UniversalClient
	prefix   string
	runTTL   time.Duration
	editTTL  time.Duration
	newToken func() string
}

// NewRedisGuard 创建 Redis 互斥
// 同一工作流的键带 {workflowID} 哈希标签，集群模式下脚本涉及的键落在同一槽位。
// runTTL 为运行集合的兜底过期时间（进程崩溃时自动释放），editTTL 为编辑租约时长
func NewRedisGuard(client redis.UniversalClient, prefix string, runTTL, editTTL time.Duration) *RedisGuard {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "flowbuilder"
	}
	if runTTL <= 0 {
		runTTL = time.Hour
	}
	if editTTL <= 0 {
		editTTL = 30 * time.Second
	}
	return &RedisGuard{
		redis:    client,
		prefix:   prefix,
		runTTL:   runTTL,
		editTTL:  editTTL,
		newToken: func() string { return fmt.Sprintf("%d", time.Now().UnixNano()) },
	}
}

// BeginRun 实现 RunGuard
func (g *RedisGuard) BeginRun(ctx context.Context, workflowID, runID string) (func(), error) {
	keys := []string{g.editKey(workflowID), g.runsKey(workflowID)}
	ok, err := beginRunScript.Run(ctx, g.redis, keys, runID, int64(g.runTTL.Seconds())).Int()
	if err != nil {
		return nil, fmt.Errorf("登记运行失败: %w", err)
	}
	if ok == 0 {
		return nil, fmt.Errorf("%w: 工作流 %s 正在被修改", ErrConflict, workflowID)
	}

	return func() {
		if err := g.redis.SRem(context.WithoutCancel(ctx), g.runsKey(workflowID), runID).Err(); err != nil {
			logger.Warn("释放运行登记失败", zap.String("workflow_id", workflowID), zap.String("run_id", runID), zap.Error(err))
		}
	}, nil
}

// BeginEdit 实现 RunGuard
func (g *RedisGuard) BeginEdit(ctx context.Context, workflowID string) (func(), error) {
	token := g.newToken()
	keys := []string{g.editKey(workflowID), g.runsKey(workflowID)}
	res, err := beginEditScript.Run(ctx, g.redis, keys, token, g.editTTL.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("获取编辑租约失败: %w", err)
	}
	switch res {
	case -1:
		return nil, fmt.Errorf("%w: 工作流 %s 有运行中的实例", ErrConflict, workflowID)
	case 0:
		return nil, fmt.Errorf("%w: 工作流 %s 正在被修改", ErrConflict, workflowID)
	}

	return func() {
		if err := releaseEditScript.Run(context.WithoutCancel(ctx), g.redis, []string{g.editKey(workflowID)}, token).Err(); err != nil {
			logger.Warn("释放编辑租约失败", zap.String("workflow_id", workflowID), zap.Error(err))
		}
	}, nil
}

// ActiveRuns 实现 RunGuard
func (g *RedisGuard) ActiveRuns(ctx context.Context, workflowID string) ([]string, error) {
	ids, err := g.redis.SMembers(ctx, g.runsKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("查询运行登记失败: %w", err)
	}
	return ids, nil
}

func (g *RedisGuard) runsKey(workflowID string) string {
	return fmt.Sprintf("%s:guard:{%s}:runs", g.prefix, workflowID)
}

func (g *RedisGuard) editKey(workflowID string) string {
	return fmt.Sprintf("%s:guard:{%s}:edit", g.prefix, workflowID)
}
