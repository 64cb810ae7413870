package api

import (
	"fmt"
	"time"

	"flowbuilder/api/handlers/workflows"
	"flowbuilder/internal/advisory"
	"flowbuilder/internal/agent"
	"flowbuilder/internal/config"
	"flowbuilder/internal/infra/queue"
	"flowbuilder/internal/logger"
	"flowbuilder/internal/middleware"
	"flowbuilder/internal/notification"
	"flowbuilder/internal/worker"
	workflowSvc "flowbuilder/internal/workflow"
	"flowbuilder/internal/workflow/executor"
	"flowbuilder/internal/workflow/history"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	// 基础设施
	DB          *gorm.DB
	Config      *config.Config
	RedisClient redis.UniversalClient
	QueueClient queue.Client

	// 工作流核心
	Guard           workflowSvc.RunGuard
	History         history.Store
	WorkflowService *workflowSvc.Service
	WorkflowIO      *workflowSvc.WorkflowIO

	// 执行
	AgentRegistry *agent.Registry
	Runner        *executor.Runner
	Engine        *executor.Engine

	// 事件与建议
	EventHub *notification.RunEventHub
	Advisory *advisory.Bridge

	// Worker 与限流
	WorkerServer *worker.Server
	RateLimiter  *middleware.RateLimiter
}

// Handlers 所有 HTTP Handler
type Handlers struct {
	Workflow  *workflows.WorkflowHandler
	Step      *workflows.StepHandler
	WfExecute *workflows.WorkflowExecuteHandler
	Advisory  *workflows.AdvisoryHandler
	IO        *workflows.IOHandler
}

// InitContainer 初始化应用容器
// redisClient 为 nil 时互斥与历史退回进程内实现，异步运行不可用
func InitContainer(db *gorm.DB, redisClient redis.UniversalClient, cfg *config.Config) (*AppContainer, error) {
	container := &AppContainer{
		DB:          db,
		Config:      cfg,
		RedisClient: redisClient,
	}

	// 运行互斥与执行历史
	container.initGuard(cfg)
	if err := container.initHistory(db, cfg); err != nil {
		return nil, err
	}

	// 工作流服务
	if err := container.initWorkflow(db, cfg); err != nil {
		return nil, err
	}

	// 事件推送
	container.initEventHub(cfg)

	// Agent 调用与运行器
	container.initExecutor(cfg)

	// 优化建议
	if err := container.initAdvisory(cfg); err != nil {
		return nil, err
	}

	// 异步队列 Worker
	container.initWorker(cfg)

	container.RateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	return container, nil
}

// InitHandlers 初始化所有 Handlers
func (c *AppContainer) InitHandlers() *Handlers {
	return &Handlers{
		Workflow:  workflows.NewWorkflowHandler(c.WorkflowService, c.Config.History.DefaultLimit),
		Step:      workflows.NewStepHandler(c.WorkflowService),
		WfExecute: workflows.NewWorkflowExecuteHandler(c.Engine, c.WorkflowService, c.EventHub),
		Advisory:  workflows.NewAdvisoryHandler(c.Advisory, c.WorkflowService),
		IO:        workflows.NewIOHandler(c.WorkflowIO),
	}
}

// Close 释放容器持有的资源
func (c *AppContainer) Close() {
	if c.RateLimiter != nil {
		c.RateLimiter.Stop()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warn("关闭任务队列客户端失败", zap.Error(err))
		}
	}
}

// --- 内部初始化方法 ---

func (c *AppContainer) initGuard(cfg *config.Config) {
	if c.RedisClient == nil {
		c.Guard = workflowSvc.NewMemoryGuard()
		logger.Info("运行互斥使用进程内实现")
		return
	}
	c.Guard = workflowSvc.NewRedisGuard(
		c.RedisClient,
		cfg.Redis.KeyPrefix,
		config.Seconds(cfg.Runner.RunLeaseTTLSeconds),
		config.Seconds(cfg.Runner.EditLeaseSeconds),
	)
}

func (c *AppContainer) initHistory(db *gorm.DB, cfg *config.Config) error {
	switch cfg.History.Backend {
	case "", "database":
		c.History = history.NewGormStore(db, cfg.History.Retention)
	case "redis":
		if c.RedisClient == nil {
			logger.Warn("Redis 未连接，执行历史退回数据库存储")
			c.History = history.NewGormStore(db, cfg.History.Retention)
			break
		}
		c.History = history.NewRedisStore(
			c.RedisClient,
			cfg.Redis.KeyPrefix,
			cfg.History.Retention,
			time.Duration(cfg.History.RunTTLHours)*time.Hour,
		)
	case "memory":
		c.History = history.NewMemoryStore(cfg.History.Retention)
	default:
		return fmt.Errorf("不支持的历史存储: %s (可选: memory, database, redis)", cfg.History.Backend)
	}
	logger.Info("执行历史存储初始化", zap.String("backend", cfg.History.Backend))
	return nil
}

func (c *AppContainer) initWorkflow(db *gorm.DB, cfg *config.Config) error {
	svc, err := workflowSvc.NewService(db, c.Guard, c.History, cfg.History.DefaultLimit)
	if err != nil {
		return fmt.Errorf("初始化工作流服务失败: %w", err)
	}
	c.WorkflowService = svc
	c.WorkflowIO = workflowSvc.NewWorkflowIO(svc)
	return nil
}

func (c *AppContainer) initEventHub(cfg *config.Config) {
	var backlog notification.EventBacklog = notification.NewMemoryBacklog(100)
	if c.RedisClient != nil {
		backlog = notification.NewRedisBacklog(c.RedisClient, cfg.Redis.KeyPrefix, 200, time.Hour)
	}

	c.EventHub = notification.NewRunEventHub(
		notification.WithBacklog(backlog),
		notification.WithBufferSize(cfg.Runner.EventBufferPerClient),
		notification.WithHubLogger(logger.Get()),
	)
}

func (c *AppContainer) initExecutor(cfg *config.Config) {
	// 未注册到本进程的 Agent 走远端服务
	var fallback agent.Invoker
	if cfg.Agent.BaseURL != "" {
		fallback = agent.NewHTTPInvoker(agent.HTTPInvokerConfig{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey,
			Timeout: config.Seconds(cfg.Agent.TimeoutSeconds),
			Retries: cfg.Agent.Retries,
		})
	} else {
		logger.Warn("未配置 agent.base_url，只能调用本进程注册的 Agent")
	}
	c.AgentRegistry = agent.NewRegistry(fallback)

	opts := executor.Options{
		StepBudget:     cfg.Runner.StepBudget,
		StepTimeout:    config.Seconds(cfg.Runner.StepTimeoutSeconds),
		GroupTimeout:   config.Seconds(cfg.Runner.GroupTimeoutSeconds),
		RunTimeout:     config.Seconds(cfg.Runner.RunTimeoutSeconds),
		MaxConcurrency: cfg.Runner.MaxConcurrency,
	}
	c.Runner = executor.NewRunner(c.AgentRegistry, c.History, opts, c.EventHub)

	if cfg.Queue.Enabled && c.RedisClient != nil {
		c.QueueClient = queue.NewClient(cfg.Redis, cfg.Queue)
		c.Engine = executor.NewEngine(c.WorkflowService, c.Runner, c.Guard, c.History, c.QueueClient)
		return
	}
	if cfg.Queue.Enabled {
		logger.Warn("异步运行已禁用，原因：Redis 未连接")
	}
	c.Engine = executor.NewEngine(c.WorkflowService, c.Runner, c.Guard, c.History, nil)
}

func (c *AppContainer) initAdvisory(cfg *config.Config) error {
	var analyzer advisory.Analyzer
	switch cfg.Advisory.Provider {
	case "":
		logger.Info("未配置优化分析服务，建议功能已禁用")
		return nil
	case "http":
		if cfg.Advisory.Endpoint == "" {
			return fmt.Errorf("advisory.provider=http 需要配置 advisory.endpoint")
		}
		analyzer = advisory.NewHTTPAnalyzer(cfg.Advisory.Endpoint, cfg.Advisory.APIKey, config.Seconds(cfg.Advisory.TimeoutSeconds))
	case "openai":
		a, err := advisory.NewOpenAIAnalyzer(advisory.OpenAIConfig{
			APIKey:      cfg.Advisory.APIKey,
			BaseURL:     cfg.Advisory.BaseURL,
			Model:       cfg.Advisory.Model,
			Temperature: cfg.Advisory.Temperature,
		})
		if err != nil {
			return fmt.Errorf("初始化 OpenAI 分析器失败: %w", err)
		}
		analyzer = a
	default:
		return fmt.Errorf("不支持的分析服务: %s (可选: http, openai)", cfg.Advisory.Provider)
	}

	c.Advisory = advisory.NewBridge(cfg.Advisory.Provider, analyzer, c.WorkflowService, cfg.Advisory.HistoryLimit)
	logger.Info("优化分析服务已启用", zap.String("provider", cfg.Advisory.Provider))
	return nil
}

func (c *AppContainer) initWorker(cfg *config.Config) {
	if c.QueueClient == nil {
		return
	}
	c.WorkerServer = worker.NewServer(cfg.Redis, cfg.Queue, c.Engine, logger.Get())
}
