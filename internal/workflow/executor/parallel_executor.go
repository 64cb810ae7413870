package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"flowbuilder/internal/agent"
	workflow "flowbuilder/internal/workflow"
)

// ParallelExecutor 组执行器
// 并行组的成员同时派发，全部成员产生结果（或组超时）后才返回
type ParallelExecutor struct {
	maxConcurrency int
	dispatcher     *StepDispatcher
}

// NewParallelExecutor 创建并行执行器
func NewParallelExecutor(maxConcurrency int, dispatcher *StepDispatcher) *ParallelExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = 5 // 默认最大并发数
	}
	return &ParallelExecutor{
		maxConcurrency: maxConcurrency,
		dispatcher:     dispatcher,
	}
}

// StepHook 单个步骤开始/结束时的回调
type StepHook struct {
	OnStart  func(step *workflow.Step)
	OnFinish func(step *workflow.Step, result workflow.StepResult)
}

// ExecuteGroup 执行一个就绪组，返回结果与 steps 顺序一致
// groupTimeout > 0 时，超出时限仍未完成的成员记为超时失败
func (e *ParallelExecutor) ExecuteGroup(ctx context.Context, steps []*workflow.Step, execCtx *ExecutionContext, groupTimeout time.Duration, hook StepHook) []workflow.StepResult {
	results := make([]workflow.StepResult, len(steps))
	if len(steps) == 0 {
		return results
	}

	if groupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, groupTimeout)
		defer cancel()
	}

	// 同一组内的成员看到的是组开始前的上游快照
	upstream := execCtx.Upstream()

	if len(steps) == 1 {
		results[0] = e.run(ctx, steps[0], execCtx, upstream, hook)
		return results
	}

	var wg sync.WaitGroup
	// 使用 channel 实现并发限制
	semaphore := make(chan struct{}, e.maxConcurrency)

	for i, step := range steps {
		wg.Add(1)
		go func(i int, step *workflow.Step) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[i] = notStarted(step, ctx.Err())
				if hook.OnFinish != nil {
					hook.OnFinish(step, results[i])
				}
				return
			}

			results[i] = e.run(ctx, step, execCtx, upstream, hook)
		}(i, step)
	}

	// 屏障：等待所有成员都有结果
	wg.Wait()
	return results
}

func (e *ParallelExecutor) run(ctx context.Context, step *workflow.Step, execCtx *ExecutionContext, upstream map[string]any, hook StepHook) workflow.StepResult {
	if hook.OnStart != nil {
		hook.OnStart(step)
	}
	req := &agent.Request{
		Agent:      step.Agent,
		WorkflowID: execCtx.WorkflowID,
		RunID:      execCtx.RunID,
		StepID:     step.ID,
		Input:      execCtx.StepInput(step.Input),
		Upstream:   upstream,
	}
	res := e.dispatcher.Dispatch(ctx, step, req)
	if res.Status == workflow.RunSuccess {
		execCtx.SetStepOutput(step.ID, res.Output)
	}
	if hook.OnFinish != nil {
		hook.OnFinish(step, res)
	}
	return res
}

// notStarted 未能获得执行槽位的成员
func notStarted(step *workflow.Step, err error) workflow.StepResult {
	kind := workflow.ErrorKindCancelled
	msg := "步骤已取消"
	if errors.Is(err, context.DeadlineExceeded) {
		kind = workflow.ErrorKindTimeout
		msg = "等待执行槽位超时"
	}
	return workflow.StepResult{
		StepID:    step.ID,
		AgentID:   step.Agent.ID,
		Status:    workflow.RunFailure,
		Error:     msg,
		ErrorKind: kind,
	}
}
