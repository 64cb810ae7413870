package workflow

import (
	"context"
	"fmt"
	"sync"
)

// RunGuard 运行与编辑互斥
//
// 同一工作流可以并发多个运行；存在运行时编辑被拒绝（ErrConflict），
// 编辑进行中新的运行也被拒绝。
type RunGuard interface {
	// BeginRun 登记一次运行，返回的函数用于结束登记
	BeginRun(ctx context.Context, workflowID, runID string) (func(), error)
	// BeginEdit 获取编辑租约
	BeginEdit(ctx context.Context, workflowID string) (func(), error)
	// ActiveRuns 当前运行中的运行 ID
	ActiveRuns(ctx context.Context, workflowID string) ([]string, error)
}

// MemoryGuard 进程内实现
type MemoryGuard struct {
	mu      sync.Mutex
	runs    map[string]map[string]bool
	editing map[string]bool
}

// NewMemoryGuard 创建进程内互斥
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		runs:    make(map[string]map[string]bool),
		editing: make(map[string]bool),
	}
}

// BeginRun 实现 RunGuard
func (g *MemoryGuard) BeginRun(ctx context.Context, workflowID, runID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.editing[workflowID] {
		return nil, fmt.Errorf("%w: 工作流 %s 正在被修改", ErrConflict, workflowID)
	}
	if g.runs[workflowID] == nil {
		g.runs[workflowID] = make(map[string]bool)
	}
	g.runs[workflowID][runID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.runs[workflowID], runID)
			if len(g.runs[workflowID]) == 0 {
				delete(g.runs, workflowID)
			}
		})
	}, nil
}

// BeginEdit 实现 RunGuard
func (g *MemoryGuard) BeginEdit(ctx context.Context, workflowID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := len(g.runs[workflowID]); n > 0 {
		return nil, fmt.Errorf("%w: 工作流 %s 有 %d 个运行中的实例", ErrConflict, workflowID, n)
	}
	if g.editing[workflowID] {
		return nil, fmt.Errorf("%w: 工作流 %s 正在被修改", ErrConflict, workflowID)
	}
	g.editing[workflowID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.editing, workflowID)
		})
	}, nil
}

// ActiveRuns 实现 RunGuard
func (g *MemoryGuard) ActiveRuns(ctx context.Context, workflowID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.runs[workflowID]))
	for id := range g.runs[workflowID] {
		ids = append(ids, id)
	}
	return ids, nil
}
