package workflow

import "flowbuilder/internal/agent"

func seqStep(id string, order int) Step {
	return Step{
		ID:            id,
		Name:          id,
		Agent:         agent.Ref{ID: "agent-" + id},
		Order:         order,
		ExecutionMode: ModeSequential,
		Condition:     Condition{Type: ConditionNone},
	}
}

func parStep(id string, order int, group string) Step {
	s := seqStep(id, order)
	s.ExecutionMode = ModeParallel
	s.ParallelGroup = group
	return s
}

func newTestWorkflow(steps ...Step) *Workflow {
	wf := &Workflow{ID: "wf-test", Name: "test", Status: StatusDraft, Version: 1, Steps: steps}
	groups := make(map[string]int)
	for _, s := range steps {
		if s.ParallelGroup == "" {
			continue
		}
		idx, ok := groups[s.ParallelGroup]
		if !ok {
			wf.ParallelGroups = append(wf.ParallelGroups, ParallelGroup{ID: s.ParallelGroup})
			idx = len(wf.ParallelGroups) - 1
			groups[s.ParallelGroup] = idx
		}
		wf.ParallelGroups[idx].StepIDs = append(wf.ParallelGroups[idx].StepIDs, s.ID)
	}
	return wf
}
