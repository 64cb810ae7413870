package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowbuilder/internal/config"
	"flowbuilder/internal/metrics"
	"flowbuilder/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// ErrDuplicateTask 相同运行 ID 的任务已在队列中
var ErrDuplicateTask = errors.New("任务已存在")

// Client 任务队列客户端接口
type Client interface {
	EnqueueRunWorkflow(ctx context.Context, payload tasks.RunWorkflowPayload) error
	Close() error
}

type asynqClient struct {
	client   *asynq.Client
	timeout  time.Duration
	maxRetry int
}

// NewClient 创建任务队列客户端
func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) Client {
	client := asynq.NewClient(RedisOpt(redisCfg))

	timeout := time.Duration(queueCfg.TaskTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &asynqClient{client: client, timeout: timeout, maxRetry: queueCfg.MaxRetry}
}

// RedisOpt 由 Redis 配置构造 asynq 连接参数，与 go-redis 客户端使用同一套模式
func RedisOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
			PoolSize:         cfg.PoolSize,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}
	}
}

func (c *asynqClient) EnqueueRunWorkflow(ctx context.Context, payload tasks.RunWorkflowPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeRunWorkflow, data)

	// TaskID 使用运行 ID，重复提交在入队阶段即被拒绝；
	// 重试只处理运行互斥冲突等暂时性错误，Worker 会按运行 ID 去重
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(payload.RunID),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
		asynq.Queue(tasks.QueueWorkflow),
	)
	if err != nil {
		metrics.QueueEnqueuedTotal.WithLabelValues(tasks.TypeRunWorkflow, "error").Inc()
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, payload.RunID)
		}
		return fmt.Errorf("enqueue task failed: %w", err)
	}

	metrics.QueueEnqueuedTotal.WithLabelValues(tasks.TypeRunWorkflow, "ok").Inc()
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
