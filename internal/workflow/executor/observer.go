package executor

import (
	"time"

	workflow "flowbuilder/internal/workflow"
)

// 运行事件类型
const (
	EventRunStarted   = "run_started"
	EventStepStarted  = "step_started"
	EventStepFinished = "step_finished"
	EventRunFinished  = "run_finished"
)

// RunEvent 运行过程中发布的事件
type RunEvent struct {
	Type       string                    `json:"type"`
	WorkflowID string                    `json:"workflow_id"`
	RunID      string                    `json:"run_id"`
	StepID     string                    `json:"step_id,omitempty"`
	Result     *workflow.StepResult      `json:"result,omitempty"`
	Record     *workflow.ExecutionRecord `json:"record,omitempty"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// Observer 运行事件订阅方，必须非阻塞
type Observer interface {
	OnRunEvent(event RunEvent)
}

// ObserverFunc 函数适配器
type ObserverFunc func(event RunEvent)

// OnRunEvent 实现 Observer
func (f ObserverFunc) OnRunEvent(event RunEvent) {
	f(event)
}
