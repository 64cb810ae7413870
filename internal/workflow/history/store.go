// Package history 实现只追加的工作流执行历史
//
// 每条 ExecutionRecord 以运行 ID 为幂等键追加一次；
// 任意子集都按 executed_at 从旧到新返回。
package history

import (
	"context"
	"sort"

	workflow "flowbuilder/internal/workflow"
)

// Store 执行历史存储
type Store interface {
	// Append 追加记录；相同运行 ID 的重复追加被忽略
	Append(ctx context.Context, workflowID string, rec *workflow.ExecutionRecord) error
	// Recent 返回最近 n 条记录（n<=0 返回全部），从旧到新
	Recent(ctx context.Context, workflowID string, n int) ([]workflow.ExecutionRecord, error)
	// Exists 工作流下该运行 ID 是否已有记录
	Exists(ctx context.Context, workflowID, runID string) (bool, error)
}

// sortOldestFirst 按执行时间排序，时间相同按运行 ID
func sortOldestFirst(records []workflow.ExecutionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ExecutedAt.Equal(records[j].ExecutedAt) {
			return records[i].ExecutedAt.Before(records[j].ExecutedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func tail(records []workflow.ExecutionRecord, n int) []workflow.ExecutionRecord {
	if n > 0 && len(records) > n {
		return records[len(records)-n:]
	}
	return records
}
