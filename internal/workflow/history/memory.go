package history

import (
	"context"
	"sync"

	workflow "flowbuilder/internal/workflow"
)

// MemoryStore 进程内历史存储（本地运行与测试）
type MemoryStore struct {
	mu        sync.RWMutex
	retention int
	records   map[string][]workflow.ExecutionRecord
	runs      map[string]bool
}

// NewMemoryStore 创建内存存储，retention<=0 表示不裁剪
func NewMemoryStore(retention int) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		records:   make(map[string][]workflow.ExecutionRecord),
		runs:      make(map[string]bool),
	}
}

// Append 实现 Store
func (m *MemoryStore) Append(ctx context.Context, workflowID string, rec *workflow.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runs[rec.ID] {
		return nil
	}
	m.runs[rec.ID] = true

	cp := *rec
	cp.WorkflowID = workflowID
	cp.StepResults = append(cp.StepResults[:0:0], rec.StepResults...)

	list := append(m.records[workflowID], cp)
	sortOldestFirst(list)
	if m.retention > 0 && len(list) > m.retention {
		list = append([]workflow.ExecutionRecord(nil), list[len(list)-m.retention:]...)
	}
	m.records[workflowID] = list
	return nil
}

// Recent 实现 Store
func (m *MemoryStore) Recent(ctx context.Context, workflowID string, n int) ([]workflow.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := tail(m.records[workflowID], n)
	return append([]workflow.ExecutionRecord(nil), out...), nil
}

// Exists 实现 Store
func (m *MemoryStore) Exists(ctx context.Context, workflowID, runID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[runID], nil
}
