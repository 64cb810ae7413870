// Package agent 定义工作流步骤调用的外部 Agent 协作方
//
// 工作流核心只把 Agent 当作一个不透明的函数调用：
// 传入 (agent 引用, 上游上下文)，返回 (状态, 输出, 耗时, 错误)。
package agent

import (
	"context"
	"errors"
)

// 调用结果状态
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ErrAgentNotFound 注册表中不存在该 Agent
var ErrAgentNotFound = errors.New("agent 不存在")

// Ref Agent 引用（ID + 展示名称）
type Ref struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Request 单次步骤调用请求
type Request struct {
	Agent      Ref            `json:"agent"`
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	StepID     string         `json:"step_id"`
	Attempt    int            `json:"attempt"`
	Input      map[string]any `json:"input,omitempty"`
	Upstream   map[string]any `json:"upstream,omitempty"`
}

// Response 调用响应
type Response struct {
	Status     string         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// Failed 响应是否表示失败
func (r *Response) Failed() bool {
	return r == nil || (r.Status != "" && r.Status != StatusSuccess)
}

// Invoker Agent 调用接口
//
// 实现方必须遵守 ctx 的取消与超时；
// 返回 error 表示调用本身失败（网络、超时），Response.Status=failure 表示 Agent 报告失败。
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// InvokerFunc 函数适配器
type InvokerFunc func(ctx context.Context, req *Request) (*Response, error)

// Invoke 实现 Invoker
func (f InvokerFunc) Invoke(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
