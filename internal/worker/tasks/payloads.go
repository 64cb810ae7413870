package tasks

// Task Types
const (
	TypeRunWorkflow = "workflow:run"
)

// QueueWorkflow 工作流运行专用队列
const QueueWorkflow = "workflow"

// RunWorkflowPayload 工作流异步运行任务载荷
// RunID 在提交时分配，Worker 以其作为幂等键
type RunWorkflowPayload struct {
	RunID      string         `json:"run_id"`
	WorkflowID string         `json:"workflow_id"`
	Input      map[string]any `json:"input,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
}
