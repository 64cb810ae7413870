package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"flowbuilder/internal/logger"
	"flowbuilder/internal/worker/tasks"
	workflow "flowbuilder/internal/workflow"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// WorkflowRunner 工作流执行器抽象，便于注入 mock
type WorkflowRunner interface {
	RunExecution(ctx context.Context, payload tasks.RunWorkflowPayload) error
}

type WorkflowHandler struct {
	runner WorkflowRunner
	logger *zap.Logger
}

func NewWorkflowHandler(runner WorkflowRunner, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		runner: runner,
		logger: logger,
	}
}

// HandleRunWorkflow 处理异步运行任务
// 工作流不存在、未激活或定义非法时不再重试；运行互斥冲突交给队列重试
func (h *WorkflowHandler) HandleRunWorkflow(ctx context.Context, t *asynq.Task) error {
	var p tasks.RunWorkflowPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.RunID == "" || p.WorkflowID == "" {
		return fmt.Errorf("payload missing run_id or workflow_id: %w", asynq.SkipRetry)
	}

	if p.TraceID != "" {
		ctx = logger.WithTraceID(ctx, p.TraceID)
	}

	h.logger.Info("开始执行工作流任务",
		zap.String("run_id", p.RunID),
		zap.String("workflow_id", p.WorkflowID),
	)

	if err := h.runner.RunExecution(ctx, p); err != nil {
		h.logger.Error("工作流执行失败",
			zap.String("run_id", p.RunID),
			zap.Error(err),
		)
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	h.logger.Info("工作流执行完成", zap.String("run_id", p.RunID))
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, workflow.ErrNotFound) ||
		errors.Is(err, workflow.ErrWorkflowPaused) ||
		errors.Is(err, workflow.ErrWorkflowNotActive) ||
		errors.Is(err, workflow.ErrValidation)
}
