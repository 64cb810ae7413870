package workflow

import (
	"fmt"
	"strings"
)

// Validate 验证工作流定义
// 检查步骤 ID、Agent 引用、分支目标、并行组一致性、条件表达式以及无条件环
func Validate(wf *Workflow) ValidationErrors {
	errs := ValidationErrors{}

	if len(wf.Steps) == 0 {
		errs.add("steps", "至少需要一个步骤")
		return errs
	}

	// 1. 步骤字段
	stepIDs := make(map[string]bool, len(wf.Steps))
	for i := range wf.Steps {
		s := &wf.Steps[i]
		field := fmt.Sprintf("steps[%d]", i)

		if s.ID == "" {
			errs.add(field+".id", "缺少步骤 ID")
		} else if stepIDs[s.ID] {
			errs.add(field+".id", "重复的步骤 ID: %s", s.ID)
		}
		stepIDs[s.ID] = true

		if s.Agent.ID == "" {
			errs.add(field+".agent", "步骤缺少 Agent 引用")
		}
		if s.TimeoutMs < 0 {
			errs.add(field+".timeout_ms", "超时时间不能为负数")
		}
		if s.Retry != nil {
			if s.Retry.MaxRetries < 0 {
				errs.add(field+".retry.max_retries", "重试次数不能为负数")
			}
			if s.Retry.Backoff != "" && s.Retry.Backoff != BackoffFixed && s.Retry.Backoff != BackoffExponential {
				errs.add(field+".retry.backoff", "不支持的退避策略: %s", s.Retry.Backoff)
			}
		}

		switch s.Mode() {
		case ModeSequential:
			if s.ParallelGroup != "" {
				errs.add(field+".parallel_group", "顺序步骤不能属于并行组")
			}
		case ModeParallel:
			if s.ParallelGroup == "" {
				errs.add(field+".parallel_group", "并行步骤必须属于一个并行组")
			}
		default:
			errs.add(field+".execution_mode", "不支持的执行模式: %s", s.ExecutionMode)
		}
	}

	// 2. 条件与分支目标
	for i := range wf.Steps {
		s := &wf.Steps[i]
		field := fmt.Sprintf("steps[%d].condition", i)
		c := s.Condition

		if _, err := CompileCondition(c); err != nil {
			errs.add(field, "条件无效: %v", err)
		}
		switch c.Kind() {
		case ConditionIf:
			checkTarget(&errs, stepIDs, field+".then_step", c.ThenStep)
			checkTarget(&errs, stepIDs, field+".else_step", c.ElseStep)
		case ConditionSwitch:
			for _, key := range sortedKeys(c.Cases) {
				if c.Cases[key] == "" {
					errs.add(field+".cases."+key, "分支目标不能为空")
					continue
				}
				checkTarget(&errs, stepIDs, field+".cases."+key, c.Cases[key])
			}
			checkTarget(&errs, stepIDs, field+".default", c.Default)
		}
	}

	// 3. 并行组
	errs = append(errs, validateGroups(wf, stepIDs)...)

	if len(errs) > 0 {
		return errs
	}

	// 4. 无条件环
	plan, err := newPlan(wf)
	if err != nil {
		errs.add("steps", "%v", err)
		return errs
	}
	if cycle := detectUnconditionalCycle(plan); cycle != nil {
		errs.add("steps", "检测到无条件循环: %s", formatCycle(cycle))
	}
	return errs
}

func checkTarget(errs *ValidationErrors, stepIDs map[string]bool, field, target string) {
	if target != "" && !stepIDs[target] {
		errs.add(field, "引用的步骤不存在: %s", target)
	}
}

// validateGroups 检查并行组与步骤字段的一致性
func validateGroups(wf *Workflow, stepIDs map[string]bool) ValidationErrors {
	errs := ValidationErrors{}
	groupIDs := make(map[string]bool, len(wf.ParallelGroups))
	memberOf := make(map[string]string)

	for i, g := range wf.ParallelGroups {
		field := fmt.Sprintf("parallel_groups[%d]", i)
		switch {
		case g.ID == "":
			errs.add(field+".id", "缺少并行组 ID")
		case groupIDs[g.ID]:
			errs.add(field+".id", "重复的并行组 ID: %s", g.ID)
		case stepIDs[g.ID]:
			errs.add(field+".id", "并行组 ID 与步骤 ID 冲突: %s", g.ID)
		}
		groupIDs[g.ID] = true

		if len(g.StepIDs) == 0 {
			errs.add(field+".step_ids", "并行组不能为空")
		}
		for _, id := range g.StepIDs {
			step, _ := wf.FindStep(id)
			if step == nil {
				errs.add(field+".step_ids", "并行组成员不存在: %s", id)
				continue
			}
			if prev, dup := memberOf[id]; dup {
				errs.add(field+".step_ids", "步骤 %s 同时属于并行组 %s 和 %s", id, prev, g.ID)
				continue
			}
			memberOf[id] = g.ID
			if step.Mode() != ModeParallel || step.ParallelGroup != g.ID {
				errs.add(field+".step_ids", "步骤 %s 的执行模式或并行组与并行组 %s 不一致", id, g.ID)
			}
		}
	}

	for i := range wf.Steps {
		s := &wf.Steps[i]
		if s.Mode() != ModeParallel || s.ParallelGroup == "" {
			continue
		}
		if !groupIDs[s.ParallelGroup] {
			errs.add(fmt.Sprintf("steps[%d].parallel_group", i), "并行组不存在: %s", s.ParallelGroup)
		} else if memberOf[s.ID] != s.ParallelGroup {
			errs.add(fmt.Sprintf("steps[%d].parallel_group", i), "并行组 %s 未列出该步骤", s.ParallelGroup)
		}
	}
	return errs
}

// detectUnconditionalCycle 检测不依赖任何运行时数据的循环
// 只沿与运行时数据无关的后继边遍历；由条件驱动的回环交给步骤预算约束
func detectUnconditionalCycle(p *Plan) []string {
	graph := make(map[string][]string, len(p.Groups))
	for gi, g := range p.Groups {
		graph[g.ID] = nil
		next, terminal, ok := p.unconditionalNext(gi)
		if ok && !terminal {
			graph[g.ID] = []string{p.Groups[next].ID}
		}
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, g := range p.Groups {
		if !visited[g.ID] {
			if cycle := dfsCycleDetect(g.ID, graph, visited, recStack, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// dfsCycleDetect DFS 检测环
func dfsCycleDetect(
	node string,
	graph map[string][]string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, neighbor := range graph[node] {
		if !visited[neighbor] {
			if cycle := dfsCycleDetect(neighbor, graph, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[neighbor] {
			// 找到环，返回环的路径
			cycle := []string{neighbor}
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, path[i])
				if path[i] == neighbor {
					break
				}
			}
			return cycle
		}
	}

	recStack[node] = false
	return nil
}

// formatCycle 格式化循环路径（DFS 为反向记录）
func formatCycle(cycle []string) string {
	reversed := make([]string, len(cycle))
	for i, id := range cycle {
		reversed[len(cycle)-1-i] = id
	}
	return strings.Join(reversed, " -> ")
}
