package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowbuilder/internal/infra/queue"
	"flowbuilder/internal/logger"
	"flowbuilder/internal/worker/tasks"
	workflow "flowbuilder/internal/workflow"
	"flowbuilder/internal/workflow/history"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRunNotFound 运行不存在或已结束
	ErrRunNotFound = errors.New("运行不存在或已结束")
	// ErrQueueUnavailable 未配置任务队列
	ErrQueueUnavailable = errors.New("任务队列不可用")
)

// WorkflowLoader 读取工作流定义
type WorkflowLoader interface {
	GetDefinition(ctx context.Context, id string) (*workflow.Workflow, error)
}

// Engine 工作流执行引擎
// 负责运行准入（状态检查、编辑互斥）、同步/异步执行与取消
type Engine struct {
	loader WorkflowLoader
	runner *Runner
	guard  workflow.RunGuard
	store  history.Store
	queue  queue.Client

	mu     sync.Mutex
	active map[string]*activeRun
	queued map[string]*RunControl
}

type activeRun struct {
	workflowID string
	control    *RunControl
	startedAt  time.Time
}

// NewEngine 创建执行引擎，queueClient 为 nil 时仅支持同步执行
func NewEngine(loader WorkflowLoader, runner *Runner, guard workflow.RunGuard, store history.Store, queueClient queue.Client) *Engine {
	if guard == nil {
		guard = workflow.NewMemoryGuard()
	}
	return &Engine{
		loader: loader,
		runner: runner,
		guard:  guard,
		store:  store,
		queue:  queueClient,
		active: make(map[string]*activeRun),
		queued: make(map[string]*RunControl),
	}
}

// SubmitResult 异步提交结果
type SubmitResult struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Execute 同步执行工作流，返回本次运行的执行记录
func (e *Engine) Execute(ctx context.Context, workflowID string, input map[string]any) (*workflow.ExecutionRecord, error) {
	return e.run(ctx, uuid.New().String(), workflowID, input, NewRunControl())
}

// Submit 提交工作流执行任务 (异步)
// 运行 ID 在提交时分配，Worker 以其作为幂等键
func (e *Engine) Submit(ctx context.Context, workflowID string, input map[string]any) (*SubmitResult, error) {
	if e.queue == nil {
		return nil, ErrQueueUnavailable
	}

	// 1. 提前拒绝不可运行的工作流
	wf, err := e.loader.GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := wf.CheckRunnable(); err != nil {
		return nil, err
	}

	// 2. 入队任务
	runID := uuid.New().String()
	payload := tasks.RunWorkflowPayload{
		RunID:      runID,
		WorkflowID: workflowID,
		Input:      input,
		TraceID:    logger.GetTraceID(ctx),
	}

	e.mu.Lock()
	e.queued[runID] = NewRunControl()
	e.mu.Unlock()

	if err := e.queue.EnqueueRunWorkflow(ctx, payload); err != nil {
		e.mu.Lock()
		delete(e.queued, runID)
		e.mu.Unlock()
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	logger.WithContext(logger.WithRun(ctx, workflowID, runID)).Info("工作流运行已入队")

	return &SubmitResult{
		RunID:      runID,
		WorkflowID: workflowID,
		Status:     "queued",
		QueuedAt:   time.Now().UTC(),
	}, nil
}

// RunExecution 执行工作流 (Worker 调用)
// 同一运行 ID 已有执行记录时直接返回，重复投递不会产生第二条记录
func (e *Engine) RunExecution(ctx context.Context, payload tasks.RunWorkflowPayload) error {
	if payload.TraceID != "" {
		ctx = logger.WithTraceID(ctx, payload.TraceID)
	}

	if e.store != nil {
		exists, err := e.store.Exists(ctx, payload.WorkflowID, payload.RunID)
		if err != nil {
			return fmt.Errorf("查询执行记录失败: %w", err)
		}
		if exists {
			logger.WithContext(logger.WithRun(ctx, payload.WorkflowID, payload.RunID)).
				Info("运行已有执行记录，跳过重复任务")
			return nil
		}
	}

	e.mu.Lock()
	control, ok := e.queued[payload.RunID]
	delete(e.queued, payload.RunID)
	e.mu.Unlock()
	if !ok {
		control = NewRunControl()
	}

	_, err := e.run(ctx, payload.RunID, payload.WorkflowID, payload.Input, control)
	return err
}

// run 运行准入与执行
func (e *Engine) run(ctx context.Context, runID, workflowID string, input map[string]any, control *RunControl) (*workflow.ExecutionRecord, error) {
	// 1. 查询工作流定义
	wf, err := e.loader.GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	// 2. 状态检查
	if err := wf.CheckRunnable(); err != nil {
		return nil, err
	}

	// 3. 登记运行，编辑进行中时拒绝
	release, err := e.guard.BeginRun(ctx, wf.ID, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	e.mu.Lock()
	e.active[runID] = &activeRun{workflowID: wf.ID, control: control, startedAt: time.Now()}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, runID)
		e.mu.Unlock()
	}()

	// 4. 执行（使用定义快照）
	rec, err := e.runner.Run(ctx, wf.Clone(), RunRequest{RunID: runID, Input: input, Control: control})
	if err != nil && rec == nil {
		logger.WithContext(logger.WithRun(ctx, wf.ID, runID)).Warn("工作流无法运行", zap.Error(err))
	}
	return rec, err
}

// Cancel 取消运行
// 运行中的运行按 hard 决定软/硬取消；已入队未开始的运行在开始时立即以 cancelled 结束
func (e *Engine) Cancel(runID string, hard bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if run, ok := e.active[runID]; ok {
		run.control.Cancel(hard)
		return nil
	}
	if control, ok := e.queued[runID]; ok {
		control.Cancel(hard)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// RunningRuns 当前进程内运行中的运行 ID（按工作流过滤，空表示全部）
func (e *Engine) RunningRuns(workflowID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.active))
	for id, run := range e.active {
		if workflowID == "" || run.workflowID == workflowID {
			ids = append(ids, id)
		}
	}
	return ids
}
