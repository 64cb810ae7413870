package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flowbuilder/internal/agent"
	"flowbuilder/internal/metrics"
	workflow "flowbuilder/internal/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StepDispatcher 把单个步骤交给 Agent 调用方，处理步骤超时与显式重试
type StepDispatcher struct {
	invoker        agent.Invoker
	defaultTimeout time.Duration
	tracer         trace.Tracer
}

// NewStepDispatcher 创建调度器
func NewStepDispatcher(invoker agent.Invoker, defaultTimeout time.Duration) *StepDispatcher {
	return &StepDispatcher{
		invoker:        invoker,
		defaultTimeout: defaultTimeout,
		tracer:         otel.Tracer("flowbuilder/internal/workflow/executor"),
	}
}

type invokeResult struct {
	resp *agent.Response
	err  error
}

// Dispatch 执行步骤并返回结果，调用失败不会以 error 形式返回，而是记录在结果中
func (d *StepDispatcher) Dispatch(ctx context.Context, step *workflow.Step, req *agent.Request) workflow.StepResult {
	ctx, span := d.tracer.Start(ctx, "workflow.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.id", req.WorkflowID),
		attribute.String("run.id", req.RunID),
		attribute.String("step.id", step.ID),
		attribute.String("agent.id", step.Agent.ID),
	)

	result := workflow.StepResult{StepID: step.ID, AgentID: step.Agent.ID}
	start := time.Now()

	maxAttempts := 1
	if step.Retry != nil && step.Retry.MaxRetries > 0 {
		maxAttempts += step.Retry.MaxRetries
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.WorkflowStepRetriesTotal.Inc()
			if err := sleepContext(ctx, step.Retry.Delay(attempt-1)); err != nil {
				result.ErrorKind = errorKind(ctx, err)
				result.Error = err.Error()
				break
			}
		}

		result.Attempts = attempt
		resp, kind, err := d.attempt(ctx, step, req, attempt)
		if resp != nil {
			result.Output = resp.Output
		}
		if err == nil {
			result.Status = workflow.RunSuccess
			result.Error = ""
			result.ErrorKind = workflow.ErrorKindNone
			break
		}

		result.Status = workflow.RunFailure
		result.Error = err.Error()
		result.ErrorKind = kind
		if kind == workflow.ErrorKindCancelled || ctx.Err() != nil {
			break
		}
	}

	if result.Status == "" {
		result.Status = workflow.RunFailure
	}
	result.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.Int("step.attempts", result.Attempts))
	if result.Status != workflow.RunSuccess {
		span.SetStatus(codes.Error, result.Error)
	}
	metrics.WorkflowStepDispatchesTotal.WithLabelValues(result.Status, string(result.ErrorKind)).Inc()
	metrics.WorkflowStepDuration.WithLabelValues(result.Status).Observe(time.Since(start).Seconds())
	return result
}

// attempt 单次调用；调用方不遵守 ctx 时也能在超时后返回
func (d *StepDispatcher) attempt(ctx context.Context, step *workflow.Step, req *agent.Request, attempt int) (*agent.Response, workflow.StepErrorKind, error) {
	timeout := time.Duration(step.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	call := *req
	call.Attempt = attempt

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- invokeResult{err: fmt.Errorf("agent 调用异常: %v", p)}
			}
		}()
		resp, err := d.invoker.Invoke(stepCtx, &call)
		done <- invokeResult{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if stepCtx.Err() != nil {
				return nil, errorKind(stepCtx, stepCtx.Err()), describe(stepCtx.Err(), timeout)
			}
			return out.resp, workflow.ErrorKindDispatch, out.err
		}
		if out.resp == nil {
			return nil, workflow.ErrorKindAgent, errors.New("agent 返回空响应")
		}
		if out.resp.Failed() {
			msg := out.resp.Error
			if msg == "" {
				msg = fmt.Sprintf("agent 返回失败状态: %s", out.resp.Status)
			}
			return out.resp, workflow.ErrorKindAgent, errors.New(msg)
		}
		return out.resp, workflow.ErrorKindNone, nil
	case <-stepCtx.Done():
		return nil, errorKind(stepCtx, stepCtx.Err()), describe(stepCtx.Err(), timeout)
	}
}

// errorKind 根据 ctx 状态区分超时与取消
func errorKind(ctx context.Context, err error) workflow.StepErrorKind {
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return workflow.ErrorKindTimeout
	case errors.Is(cause, context.Canceled):
		return workflow.ErrorKindCancelled
	default:
		return workflow.ErrorKindDispatch
	}
}

func describe(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("步骤执行超时 (%s)", timeout)
	}
	if errors.Is(err, context.Canceled) {
		return errors.New("步骤已取消")
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
