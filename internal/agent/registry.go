package agent

import (
	"context"
	"fmt"
	"sync"
)

// Registry 按 Agent ID 路由的调用器
// 已注册的 Agent 在本进程内执行，其余交给 fallback（通常是 HTTPInvoker）
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]Invoker
	fallback Invoker
}

// NewRegistry 创建注册表，fallback 可以为 nil
func NewRegistry(fallback Invoker) *Registry {
	return &Registry{
		agents:   make(map[string]Invoker),
		fallback: fallback,
	}
}

// Register 注册本地 Agent
func (r *Registry) Register(agentID string, invoker Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentID] = invoker
}

// Unregister 移除本地 Agent
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// Invoke 实现 Invoker
func (r *Registry) Invoke(ctx context.Context, req *Request) (*Response, error) {
	r.mu.RLock()
	invoker, ok := r.agents[req.Agent.ID]
	fallback := r.fallback
	r.mu.RUnlock()

	if ok {
		return invoker.Invoke(ctx, req)
	}
	if fallback != nil {
		return fallback.Invoke(ctx, req)
	}
	return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, req.Agent.ID)
}
