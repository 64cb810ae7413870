package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowbuilder/internal/agent"
	"flowbuilder/internal/logger"
	"flowbuilder/internal/metrics"
	workflow "flowbuilder/internal/workflow"
	"flowbuilder/internal/workflow/history"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Options 运行参数
type Options struct {
	// StepBudget 单次运行最多派发的步骤数（含重复访问）
	StepBudget     int
	StepTimeout    time.Duration
	GroupTimeout   time.Duration
	RunTimeout     time.Duration
	MaxConcurrency int
}

// DefaultOptions 默认运行参数
func DefaultOptions() Options {
	return Options{
		StepBudget:     1000,
		StepTimeout:    5 * time.Minute,
		GroupTimeout:   0,
		RunTimeout:     30 * time.Minute,
		MaxConcurrency: 5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.StepBudget <= 0 {
		o.StepBudget = d.StepBudget
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = d.MaxConcurrency
	}
	return o
}

// RunControl 运行控制句柄，用于在运行期间请求取消
//
// 软取消在当前组结束后生效，组内进行中的调用允许完成；
// 硬取消立即取消运行上下文，进行中的调用被放弃。
type RunControl struct {
	mu        sync.Mutex
	cancelled bool
	hard      bool
	cancel    context.CancelFunc
}

// NewRunControl 创建控制句柄
func NewRunControl() *RunControl {
	return &RunControl{}
}

// Cancel 请求取消
func (c *RunControl) Cancel(hard bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if hard {
		c.hard = true
		if c.cancel != nil {
			c.cancel()
		}
	}
}

// Cancelled 是否已请求取消
func (c *RunControl) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *RunControl) attach(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
	if c.hard {
		cancel()
	}
}

// RunRequest 运行请求
type RunRequest struct {
	RunID   string
	Input   map[string]any
	Control *RunControl
}

// Runner 按执行计划驱动一次运行：逐组派发、应用分支、记录历史
type Runner struct {
	parallel  *ParallelExecutor
	store     history.Store
	opts      Options
	observers []Observer
	tracer    trace.Tracer
}

// NewRunner 创建运行器
func NewRunner(invoker agent.Invoker, store history.Store, opts Options, observers ...Observer) *Runner {
	opts = opts.withDefaults()
	dispatcher := NewStepDispatcher(invoker, opts.StepTimeout)
	return &Runner{
		parallel:  NewParallelExecutor(opts.MaxConcurrency, dispatcher),
		store:     store,
		opts:      opts,
		observers: observers,
		tracer:    otel.Tracer("flowbuilder/internal/workflow/executor"),
	}
}

// Options 返回生效的运行参数
func (r *Runner) Options() Options {
	return r.opts
}

// Run 执行工作流直到结束，并追加一条执行记录
//
// 定义未通过验证时返回 error 且不产生记录；其余情况（包括步骤失败、取消、超时、超出预算）
// 都以记录的 Status/Reason 表达，error 只反映记录保存失败。
func (r *Runner) Run(ctx context.Context, wf *workflow.Workflow, req RunRequest) (*workflow.ExecutionRecord, error) {
	plan, err := workflow.BuildPlan(wf)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	control := req.Control
	if control == nil {
		control = NewRunControl()
	}

	ctx = logger.WithRun(ctx, wf.ID, runID)
	log := logger.WithContext(ctx)

	ctx, span := r.tracer.Start(ctx, "workflow.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("run.id", runID),
		attribute.Int("workflow.version", wf.Version),
	)

	// 运行上下文：硬取消与运行超时都作用在它上面
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if r.opts.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, r.opts.RunTimeout)
		defer cancelTimeout()
	}
	control.attach(cancelRun)

	metrics.WorkflowRunsRunning.Inc()
	defer metrics.WorkflowRunsRunning.Dec()

	start := time.Now()
	rec := &workflow.ExecutionRecord{
		ID:         runID,
		WorkflowID: wf.ID,
		ExecutedAt: start.UTC(),
	}
	execCtx := NewExecutionContext(wf.ID, runID, req.Input)
	r.emit(RunEvent{Type: EventRunStarted, WorkflowID: wf.ID, RunID: runID})
	log.Info("工作流运行开始", zap.Int("groups", len(plan.Groups)), zap.Int("step_budget", r.opts.StepBudget))

	hook := StepHook{
		OnStart: func(step *workflow.Step) {
			r.emit(RunEvent{Type: EventStepStarted, WorkflowID: wf.ID, RunID: runID, StepID: step.ID})
		},
		OnFinish: func(step *workflow.Step, res workflow.StepResult) {
			r.emit(RunEvent{Type: EventStepFinished, WorkflowID: wf.ID, RunID: runID, StepID: step.ID, Result: &res})
			if res.Status != workflow.RunSuccess {
				log.Warn("步骤执行失败",
					zap.String("step_id", step.ID),
					zap.String("error_kind", string(res.ErrorKind)),
					zap.String("error", res.Error),
					zap.Int("attempts", res.Attempts))
			}
		},
	}

	var results []workflow.StepResult
	dispatches := 0
	current := plan.Start
	reason := workflow.ReasonNone
	var runErr string

	for {
		if reason = r.interrupted(ctx, runCtx, control); reason != workflow.ReasonNone {
			runErr = interruptMessage(reason)
			break
		}

		group := plan.Groups[current]
		if dispatches+len(group.StepIDs) > r.opts.StepBudget {
			reason = workflow.ReasonBudgetExceeded
			runErr = fmt.Errorf("%w: 已派发 %d 个步骤，预算 %d", workflow.ErrBudgetExceeded, dispatches, r.opts.StepBudget).Error()
			break
		}

		steps := make([]*workflow.Step, len(group.StepIDs))
		for i, id := range group.StepIDs {
			steps[i] = plan.Step(id)
		}
		groupResults := r.parallel.ExecuteGroup(runCtx, steps, execCtx, r.opts.GroupTimeout, hook)
		dispatches += len(steps)
		results = append(results, groupResults...)

		if reason = r.interrupted(ctx, runCtx, control); reason != workflow.ReasonNone {
			runErr = interruptMessage(reason)
			break
		}

		if failed := firstFatal(steps, groupResults); failed != nil {
			reason = workflow.ReasonStepFailed
			runErr = fmt.Sprintf("步骤 %s 失败: %s", failed.StepID, failed.Error)
			break
		}

		outcomes := make(map[string]workflow.Outcome, len(steps))
		for i := range groupResults {
			res := &groupResults[i]
			out, err := plan.Resolve(res.StepID, workflow.ConditionContext(res, execCtx.Input()))
			if err != nil {
				reason = workflow.ReasonConditionError
				runErr = fmt.Sprintf("步骤 %s 条件求值失败: %v", res.StepID, err)
				break
			}
			outcomes[res.StepID] = out
		}
		if reason != workflow.ReasonNone {
			break
		}

		next, ok := plan.Next(current, outcomes)
		if !ok {
			break
		}
		current = next
	}

	rec.DurationMs = time.Since(start).Milliseconds()
	rec.StepResults = datatypes.JSONSlice[workflow.StepResult](results)
	rec.Reason = reason
	rec.Error = runErr
	rec.Status = workflow.RunSuccess
	if reason != workflow.ReasonNone {
		rec.Status = workflow.RunFailure
		span.SetStatus(codes.Error, runErr)
	}
	span.SetAttributes(attribute.String("run.status", rec.Status), attribute.Int("run.dispatches", dispatches))

	metrics.WorkflowRunsTotal.WithLabelValues(rec.Status, string(reason)).Inc()
	metrics.WorkflowRunDuration.WithLabelValues(rec.Status).Observe(time.Since(start).Seconds())

	// 取消或超时的运行同样要落一条记录
	var appendErr error
	if r.store != nil {
		appendErr = r.store.Append(context.WithoutCancel(ctx), wf.ID, rec)
		result := "ok"
		if appendErr != nil {
			result = "error"
			log.Error("保存执行记录失败", zap.Error(appendErr))
		}
		metrics.HistoryAppendsTotal.WithLabelValues(result).Inc()
	}

	r.emit(RunEvent{Type: EventRunFinished, WorkflowID: wf.ID, RunID: runID, Record: rec})
	log.Info("工作流运行结束",
		zap.String("status", rec.Status),
		zap.String("reason", string(reason)),
		zap.Int("dispatches", dispatches),
		zap.Int64("duration_ms", rec.DurationMs))

	if appendErr != nil {
		return rec, fmt.Errorf("保存执行记录失败: %w", appendErr)
	}
	return rec, nil
}

// interrupted 组边界上的中断检查
func (r *Runner) interrupted(parent, runCtx context.Context, control *RunControl) workflow.RunReason {
	switch {
	case control.Cancelled():
		return workflow.ReasonCancelled
	case parent.Err() != nil:
		return workflow.ReasonCancelled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return workflow.ReasonTimeout
	case runCtx.Err() != nil:
		return workflow.ReasonCancelled
	}
	return workflow.ReasonNone
}

func interruptMessage(reason workflow.RunReason) string {
	if reason == workflow.ReasonTimeout {
		return "运行超时"
	}
	return "运行已取消"
}

// firstFatal 组内第一个未允许继续的失败步骤
func firstFatal(steps []*workflow.Step, results []workflow.StepResult) *workflow.StepResult {
	for i := range results {
		if results[i].Status != workflow.RunSuccess && !steps[i].ContinueOnError {
			return &results[i]
		}
	}
	return nil
}

// emit 观察者在派发 goroutine 中被调用，需自行保证并发安全
func (r *Runner) emit(event RunEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, o := range r.observers {
		o.OnRunEvent(event)
	}
}
