package advisory

import (
	"context"
	"fmt"

	"flowbuilder/internal/logger"
	"flowbuilder/internal/metrics"
	workflow "flowbuilder/internal/workflow"

	"go.uber.org/zap"
)

// WorkflowSource 建议桥接依赖的工作流服务能力
type WorkflowSource interface {
	GetDefinition(ctx context.Context, id string) (*workflow.Workflow, error)
	History(ctx context.Context, id string, n int) ([]workflow.ExecutionRecord, error)
	StoreSuggestions(ctx context.Context, workflowID string, items []workflow.Suggestion) ([]workflow.Suggestion, error)
}

// Advice 一次分析的结果与保存下来的建议
type Advice struct {
	Report      *Report               `json:"report"`
	Suggestions []workflow.Suggestion `json:"suggestions"`
}

// Bridge 组装分析请求并保存建议，建议不会被自动应用
type Bridge struct {
	name         string
	analyzer     Analyzer
	source       WorkflowSource
	historyLimit int
}

// NewBridge 创建建议桥接，name 用于指标标签
func NewBridge(name string, analyzer Analyzer, source WorkflowSource, historyLimit int) *Bridge {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Bridge{name: name, analyzer: analyzer, source: source, historyLimit: historyLimit}
}

// Advise 分析工作流并把建议保存为未应用状态
func (b *Bridge) Advise(ctx context.Context, workflowID string) (*Advice, error) {
	wf, err := b.source.GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	records, err := b.source.History(ctx, workflowID, b.historyLimit)
	if err != nil {
		return nil, err
	}

	report, err := b.analyzer.Analyze(ctx, &Request{Workflow: wf, History: records})
	if err != nil {
		metrics.AdvisoryRequestsTotal.WithLabelValues(b.name, "error").Inc()
		logger.WithContext(ctx).Warn("工作流分析失败", zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("工作流分析失败: %w", err)
	}
	metrics.AdvisoryRequestsTotal.WithLabelValues(b.name, "ok").Inc()

	items := make([]workflow.Suggestion, 0, len(report.Recommendations))
	for _, rec := range report.Recommendations {
		items = append(items, workflow.Suggestion{
			Priority:       workflow.NormalizePriority(rec.Priority),
			Title:          rec.Title,
			Description:    rec.Description,
			Recommendation: rec.Recommendation,
		})
	}
	stored, err := b.source.StoreSuggestions(ctx, workflowID, items)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("工作流分析完成",
		zap.String("workflow_id", workflowID),
		zap.String("health_status", report.HealthStatus),
		zap.Int("suggestions", len(stored)))
	return &Advice{Report: report, Suggestions: stored}, nil
}
