// Package advisory 对接外部的工作流分析服务
//
// 本地只负责组装请求（定义 + 执行历史）并保存返回的建议，
// 分析逻辑完全由外部协作方实现。
package advisory

import (
	"context"
	"errors"

	workflow "flowbuilder/internal/workflow"
)

// ErrEmptyReport 分析服务没有返回可用结果
var ErrEmptyReport = errors.New("分析服务返回空结果")

// 健康状态
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Request 分析请求
type Request struct {
	Workflow *workflow.Workflow         `json:"workflow"`
	History  []workflow.ExecutionRecord `json:"execution_history"`
}

// Bottleneck 性能瓶颈
type Bottleneck struct {
	StepID        string  `json:"step_id"`
	AvgDurationMs float64 `json:"avg_duration_ms,omitempty"`
	Description   string  `json:"description"`
}

// ErrorPattern 错误模式
type ErrorPattern struct {
	StepID      string `json:"step_id,omitempty"`
	Pattern     string `json:"pattern"`
	Occurrences int    `json:"occurrences"`
}

// Recommendation 优化建议
type Recommendation struct {
	Priority       string `json:"priority"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Report 分析报告
type Report struct {
	HealthStatus          string           `json:"health_status"`
	PerformanceScore      float64          `json:"performance_score"`
	Bottlenecks           []Bottleneck     `json:"bottlenecks"`
	ErrorPatterns         []ErrorPattern   `json:"error_patterns"`
	Recommendations       []Recommendation `json:"recommendations"`
	PredictedImprovements map[string]any   `json:"predicted_improvements,omitempty"`
}

// Analyzer 外部分析协作方
type Analyzer interface {
	Analyze(ctx context.Context, req *Request) (*Report, error)
}

// AnalyzerFunc 函数适配器
type AnalyzerFunc func(ctx context.Context, req *Request) (*Report, error)

// Analyze 实现 Analyzer
func (f AnalyzerFunc) Analyze(ctx context.Context, req *Request) (*Report, error) {
	return f(ctx, req)
}
