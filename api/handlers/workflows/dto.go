package workflows

import (
	workflow "flowbuilder/internal/workflow"
)

// ========== 工作流 ==========

// WorkflowResponse 带消息的工作流响应
type WorkflowResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Workflow *workflow.Workflow `json:"workflow"`
}

// ValidateResponse 验证结果
type ValidateResponse struct {
	Valid  bool                      `json:"valid"`
	Errors workflow.ValidationErrors `json:"errors,omitempty"`
}

// ========== 步骤 ==========

// GroupStepsRequest 建立并行组请求
type GroupStepsRequest struct {
	GroupID string   `json:"group_id" binding:"required"`
	Name    string   `json:"name"`
	StepIDs []string `json:"step_ids" binding:"required,min=1"`
}

// StepResponse 步骤变更响应
type StepResponse struct {
	Step     *workflow.Step     `json:"step,omitempty"`
	Workflow *workflow.Workflow `json:"workflow"`
}

// RemoveStepResponse 删除步骤响应，包含级联清理的引用
type RemoveStepResponse struct {
	Report   *workflow.RemovalReport `json:"report"`
	Workflow *workflow.Workflow      `json:"workflow"`
}

// ========== 运行 ==========

// RunWorkflowRequest 运行工作流请求
type RunWorkflowRequest struct {
	Input map[string]any `json:"input"`
}

// CancelRunRequest 取消运行请求
type CancelRunRequest struct {
	Hard bool `json:"hard"`
}

// RunningRunsResponse 运行中的运行
type RunningRunsResponse struct {
	WorkflowID string   `json:"workflow_id"`
	RunIDs     []string `json:"run_ids"`
}

// HistoryResponse 执行历史
type HistoryResponse struct {
	WorkflowID string                     `json:"workflow_id"`
	Records    []workflow.ExecutionRecord `json:"records"`
}

// ========== 优化建议 ==========

// ApplySuggestionRequest 应用建议请求，调用方给出具体的步骤编辑
type ApplySuggestionRequest struct {
	Edit workflow.StepEdit `json:"edit"`
}

// ApplySuggestionResponse 应用建议响应
type ApplySuggestionResponse struct {
	Suggestion *workflow.Suggestion `json:"suggestion"`
	Workflow   *workflow.Workflow   `json:"workflow"`
}

// SuggestionListResponse 建议列表
type SuggestionListResponse struct {
	WorkflowID  string                `json:"workflow_id"`
	Suggestions []workflow.Suggestion `json:"suggestions"`
}

// ========== 导入导出 ==========

// BatchExportRequest 批量导出请求
type BatchExportRequest struct {
	IDs    []string `json:"ids" binding:"required,min=1"`
	Format string   `json:"format"`
}
