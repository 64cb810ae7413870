package workflow

import (
	"sort"
)

// PlanGroup 执行计划中的一个就绪组：单个顺序步骤，或一个并行组的全部成员
type PlanGroup struct {
	ID       string   `json:"id"`
	Parallel bool     `json:"parallel"`
	StepIDs  []string `json:"step_ids"`
	Position int      `json:"position"`

	index int
}

// Plan 由工作流定义推导出的可执行计划
type Plan struct {
	WorkflowID  string              `json:"workflow_id"`
	Version     int                 `json:"version"`
	Groups      []*PlanGroup        `json:"groups"`
	Start       int                 `json:"start"`
	Edges       map[string][]string `json:"edges"`
	DefaultNext map[string]string   `json:"default_next"`

	steps      map[string]*Step
	stepIndex  map[string]int
	groupOf    map[string]int
	conditions map[string]*CompiledCondition
}

// BuildPlan 验证工作流并生成执行计划
func BuildPlan(wf *Workflow) (*Plan, error) {
	if errs := Validate(wf); len(errs) > 0 {
		return nil, errs
	}
	return newPlan(wf)
}

// newPlan 假定定义结构已通过验证
func newPlan(wf *Workflow) (*Plan, error) {
	p := &Plan{
		WorkflowID:  wf.ID,
		Version:     wf.Version,
		Edges:       make(map[string][]string),
		DefaultNext: make(map[string]string),
		steps:       make(map[string]*Step, len(wf.Steps)),
		stepIndex:   make(map[string]int, len(wf.Steps)),
		groupOf:     make(map[string]int, len(wf.Steps)),
		conditions:  make(map[string]*CompiledCondition, len(wf.Steps)),
	}

	for i := range wf.Steps {
		s := &wf.Steps[i]
		p.steps[s.ID] = s
		p.stepIndex[s.ID] = i
		cc, err := CompileCondition(s.Condition)
		if err != nil {
			return nil, ValidationErrors{{Field: "steps[" + s.ID + "].condition", Message: err.Error()}}
		}
		p.conditions[s.ID] = cc
	}

	// 1. 分组：顺序步骤各自成组，并行组成员合为一组
	byGroup := make(map[string]*PlanGroup)
	for i := range wf.Steps {
		s := &wf.Steps[i]
		if s.Mode() == ModeParallel {
			g, ok := byGroup[s.ParallelGroup]
			if !ok {
				g = &PlanGroup{ID: s.ParallelGroup, Parallel: true, Position: s.Order, index: i}
				byGroup[s.ParallelGroup] = g
				p.Groups = append(p.Groups, g)
			}
			g.StepIDs = append(g.StepIDs, s.ID)
			if s.Order < g.Position {
				g.Position = s.Order
			}
			continue
		}
		p.Groups = append(p.Groups, &PlanGroup{ID: s.ID, StepIDs: []string{s.ID}, Position: s.Order, index: i})
	}
	sort.SliceStable(p.Groups, func(i, j int) bool {
		if p.Groups[i].Position != p.Groups[j].Position {
			return p.Groups[i].Position < p.Groups[j].Position
		}
		return p.Groups[i].index < p.Groups[j].index
	})
	for gi, g := range p.Groups {
		sort.SliceStable(g.StepIDs, func(i, j int) bool {
			return p.less(g.StepIDs[i], g.StepIDs[j])
		})
		for _, id := range g.StepIDs {
			p.groupOf[id] = gi
		}
	}

	// 2. 静态边
	incoming := make(map[int]bool)
	for gi, g := range p.Groups {
		var targets []string
		seen := make(map[string]bool)
		addEdge := func(target int) {
			id := p.Groups[target].ID
			incoming[target] = true
			if !seen[id] {
				seen[id] = true
				targets = append(targets, id)
			}
		}
		for _, id := range g.StepIDs {
			step := p.steps[id]
			if gi+1 < len(p.Groups) {
				p.DefaultNext[id] = p.Groups[gi+1].ID
			} else {
				p.DefaultNext[id] = ""
			}
			if step.Condition.Kind() == ConditionNone {
				if gi+1 < len(p.Groups) {
					addEdge(gi + 1)
				}
				continue
			}
			for _, target := range step.Condition.Targets() {
				if tg, ok := p.groupOf[target]; ok {
					addEdge(tg)
				}
			}
		}
		p.Edges[g.ID] = targets
	}

	// 3. 起始组：第一个没有入边的组，默认第一组
	for gi := range p.Groups {
		if !incoming[gi] {
			p.Start = gi
			break
		}
	}
	return p, nil
}

// less 步骤排序：order 小者优先，其次按编写顺序
func (p *Plan) less(a, b string) bool {
	sa, sb := p.steps[a], p.steps[b]
	if sa.Order != sb.Order {
		return sa.Order < sb.Order
	}
	return p.stepIndex[a] < p.stepIndex[b]
}

// StartGroup 起始组
func (p *Plan) StartGroup() *PlanGroup {
	if len(p.Groups) == 0 {
		return nil
	}
	return p.Groups[p.Start]
}

// Step 按 ID 获取步骤
func (p *Plan) Step(id string) *Step {
	return p.steps[id]
}

// GroupIndex 返回步骤所在组的下标
func (p *Plan) GroupIndex(stepID string) (int, bool) {
	gi, ok := p.groupOf[stepID]
	return gi, ok
}

// Resolve 对步骤的条件求值
func (p *Plan) Resolve(stepID string, data map[string]any) (Outcome, error) {
	cc, ok := p.conditions[stepID]
	if !ok {
		return Outcome{Branch: BranchStop}, nil
	}
	return cc.Evaluate(data)
}

// Next 根据组内各成员的分支结果选出下一组
// 每个成员提出一个目标步骤（默认后继取下一组的首个步骤），order 最小者胜出，
// order 相同时按编写顺序；没有任何提议时返回 false 表示运行结束
func (p *Plan) Next(current int, outcomes map[string]Outcome) (int, bool) {
	winner := ""
	for _, id := range p.Groups[current].StepIDs {
		out, ok := outcomes[id]
		if !ok {
			continue
		}
		var proposal string
		switch out.Branch {
		case BranchJump:
			proposal = out.Target
		case BranchDefault:
			if current+1 < len(p.Groups) {
				proposal = p.Groups[current+1].StepIDs[0]
			}
		}
		if proposal == "" {
			continue
		}
		if _, known := p.steps[proposal]; !known {
			continue
		}
		if winner == "" || p.less(proposal, winner) {
			winner = proposal
		}
	}
	if winner == "" {
		return 0, false
	}
	return p.groupOf[winner], true
}

// unconditionalNext 组的后继是否与运行时数据无关
// 返回 (next, terminal, ok)：ok=false 表示后继依赖运行时数据
func (p *Plan) unconditionalNext(gi int) (int, bool, bool) {
	outcomes := make(map[string]Outcome, len(p.Groups[gi].StepIDs))
	for _, id := range p.Groups[gi].StepIDs {
		out, ok := p.conditions[id].Unconditional()
		if !ok {
			return 0, false, false
		}
		outcomes[id] = out
	}
	next, ok := p.Next(gi, outcomes)
	if !ok {
		return 0, true, true
	}
	return next, false, true
}
