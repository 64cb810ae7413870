package executor

import (
	"sync"
)

// ExecutionContext 单次运行的执行上下文
// 保存运行输入与已完成步骤的输出，供下游步骤作为 upstream 读取
type ExecutionContext struct {
	// === 全局信息 (不可变) ===
	WorkflowID string
	RunID      string

	input   map[string]any
	outputs map[string]map[string]any

	mu sync.RWMutex
}

// NewExecutionContext 创建执行上下文
func NewExecutionContext(workflowID, runID string, input map[string]any) *ExecutionContext {
	if input == nil {
		input = map[string]any{}
	}
	return &ExecutionContext{
		WorkflowID: workflowID,
		RunID:      runID,
		input:      input,
		outputs:    make(map[string]map[string]any),
	}
}

// Input 运行输入（只读）
func (ec *ExecutionContext) Input() map[string]any {
	return ec.input
}

// SetStepOutput 记录步骤输出，重复执行的步骤保留最新一次
func (ec *ExecutionContext) SetStepOutput(stepID string, output map[string]any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.outputs[stepID] = output
}

// GetStepOutput 获取步骤输出
func (ec *ExecutionContext) GetStepOutput(stepID string) (map[string]any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out, ok := ec.outputs[stepID]
	return out, ok
}

// Upstream 已完成步骤输出的快照
func (ec *ExecutionContext) Upstream() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	snapshot := make(map[string]any, len(ec.outputs))
	for id, out := range ec.outputs {
		snapshot[id] = out
	}
	return snapshot
}

// StepInput 合并运行输入与步骤静态输入，步骤输入优先
func (ec *ExecutionContext) StepInput(static map[string]any) map[string]any {
	merged := make(map[string]any, len(ec.input)+len(static))
	for k, v := range ec.input {
		merged[k] = v
	}
	for k, v := range static {
		merged[k] = v
	}
	return merged
}
