package executor

import (
	"context"
	"sync"

	"flowbuilder/internal/agent"
	workflow "flowbuilder/internal/workflow"
)

// stubInvoker 按步骤 ID 分派行为的 Agent 调用桩，记录调用顺序
type stubInvoker struct {
	mu       sync.Mutex
	calls    []string
	behavior map[string]func(ctx context.Context, req *agent.Request) (*agent.Response, error)
}

func newStubInvoker() *stubInvoker {
	return &stubInvoker{behavior: make(map[string]func(context.Context, *agent.Request) (*agent.Response, error))}
}

func (s *stubInvoker) on(stepID string, fn func(ctx context.Context, req *agent.Request) (*agent.Response, error)) *stubInvoker {
	s.behavior[stepID] = fn
	return s
}

func (s *stubInvoker) Invoke(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.StepID)
	fn := s.behavior[req.StepID]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &agent.Response{Status: agent.StatusSuccess, Output: map[string]any{"step": req.StepID}}, nil
}

func (s *stubInvoker) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// blockUntilDone 阻塞直到 ctx 结束
func blockUntilDone(ctx context.Context, _ *agent.Request) (*agent.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func respond(status string, output map[string]any) func(context.Context, *agent.Request) (*agent.Response, error) {
	return func(context.Context, *agent.Request) (*agent.Response, error) {
		return &agent.Response{Status: status, Output: output}, nil
	}
}

func seqStep(id string, order int) workflow.Step {
	return workflow.Step{
		ID:            id,
		Name:          id,
		Agent:         agent.Ref{ID: "agent-" + id},
		Order:         order,
		ExecutionMode: workflow.ModeSequential,
		Condition:     workflow.Condition{Type: workflow.ConditionNone},
	}
}

func parStep(id string, order int, group string) workflow.Step {
	s := seqStep(id, order)
	s.ExecutionMode = workflow.ModeParallel
	s.ParallelGroup = group
	return s
}

func ifStep(id string, order int, predicate, then, els string) workflow.Step {
	s := seqStep(id, order)
	s.Condition = workflow.Condition{Type: workflow.ConditionIf, Predicate: predicate, ThenStep: then, ElseStep: els}
	return s
}

func activeWorkflow(id string, steps ...workflow.Step) *workflow.Workflow {
	wf := &workflow.Workflow{ID: id, Name: id, Status: workflow.StatusActive, Version: 1, Steps: steps}
	groups := make(map[string]int)
	for _, s := range steps {
		if s.ParallelGroup == "" {
			continue
		}
		idx, ok := groups[s.ParallelGroup]
		if !ok {
			wf.ParallelGroups = append(wf.ParallelGroups, workflow.ParallelGroup{ID: s.ParallelGroup})
			idx = len(wf.ParallelGroups) - 1
			groups[s.ParallelGroup] = idx
		}
		wf.ParallelGroups[idx].StepIDs = append(wf.ParallelGroups[idx].StepIDs, s.ID)
	}
	return wf
}

func stepIDs(rec *workflow.ExecutionRecord) []string {
	ids := make([]string, 0, len(rec.StepResults))
	for _, r := range rec.StepResults {
		ids = append(ids, r.StepID)
	}
	return ids
}

func resultOf(rec *workflow.ExecutionRecord, stepID string) *workflow.StepResult {
	for i := range rec.StepResults {
		if rec.StepResults[i].StepID == stepID {
			return &rec.StepResults[i]
		}
	}
	return nil
}
