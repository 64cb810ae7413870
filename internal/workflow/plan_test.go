package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func groupIDs(p *Plan) []string {
	ids := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

func TestBuildPlanSequential(t *testing.T) {
	wf := newTestWorkflow(seqStep("B", 1), seqStep("A", 0))
	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, groupIDs(plan))
	require.Equal(t, "A", plan.StartGroup().ID)
	require.Equal(t, []string{"B"}, plan.Edges["A"])
	require.Empty(t, plan.Edges["B"])
	require.Equal(t, "B", plan.DefaultNext["A"])
	require.Equal(t, "", plan.DefaultNext["B"])
}

func TestBuildPlanCoversEveryStepOnce(t *testing.T) {
	wf := newTestWorkflow(
		seqStep("a", 0),
		parStep("x", 1, "g1"),
		parStep("y", 1, "g1"),
		seqStep("b", 2),
		parStep("p", 3, "g2"),
		parStep("q", 5, "g2"),
	)
	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "g1", "b", "g2"}, groupIDs(plan))

	seen := make(map[string]int)
	for _, g := range plan.Groups {
		for _, id := range g.StepIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, len(wf.Steps))
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
	require.True(t, plan.Groups[1].Parallel)
	require.Equal(t, []string{"x", "y"}, plan.Groups[1].StepIDs)
}

func TestBuildPlanStartGroupSkipsTargetedGroups(t *testing.T) {
	loop := seqStep("a", 0)
	loop.Condition = Condition{Type: ConditionIf, Predicate: "result.output.again", ThenStep: "a", ElseStep: "b"}
	wf := newTestWorkflow(loop, seqStep("b", 1))
	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	// a 被自身引用，b 被 a 引用，所有组都有入边，回退到第一组
	require.Equal(t, "a", plan.StartGroup().ID)

	back := seqStep("b", 1)
	back.Condition = Condition{Type: ConditionIf, Predicate: "result.output.again", ThenStep: "a"}
	head := seqStep("h", 5)
	head.Condition = Condition{Type: ConditionIf, Predicate: "result.output.go", ThenStep: "a"}
	wf2 := newTestWorkflow(seqStep("a", 0), back, head)
	plan, err = BuildPlan(wf2)
	require.NoError(t, err)
	require.Equal(t, "h", plan.StartGroup().ID)
}

func TestValidateRejectsDanglingAndMalformed(t *testing.T) {
	a := seqStep("a", 0)
	a.Condition = Condition{Type: ConditionIf, Predicate: "result.status ==", ThenStep: "ghost"}
	b := seqStep("b", 1)
	b.Agent.ID = ""
	c := seqStep("b", 2)
	d := seqStep("d", 3)
	d.Condition = Condition{Type: "loop"}
	wf := newTestWorkflow(a, b, c, d)

	errs := Validate(wf)
	require.True(t, errors.Is(errs, ErrValidation))
	fields := errs.Fields()
	require.Contains(t, fields, "steps[0].condition")
	require.Contains(t, fields, "steps[0].condition.then_step")
	require.Contains(t, fields, "steps[1].agent")
	require.Contains(t, fields, "steps[2].id")
	require.Contains(t, fields, "steps[3].condition")

	_, err := BuildPlan(wf)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.NotEmpty(t, verrs)
}

func TestValidateParallelGroupInvariants(t *testing.T) {
	// 步骤声明了组，但组没有列出它
	wf := newTestWorkflow(seqStep("a", 0), parStep("x", 1, "g1"))
	wf.ParallelGroups[0].StepIDs = nil
	require.Contains(t, Validate(wf).Fields(), "parallel_groups[0].step_ids")

	// 组列出了顺序步骤
	wf = newTestWorkflow(seqStep("a", 0))
	wf.ParallelGroups = []ParallelGroup{{ID: "g1", StepIDs: []string{"a"}}}
	require.Contains(t, Validate(wf).Fields(), "parallel_groups[0].step_ids")

	// 并行步骤没有组
	s := seqStep("a", 0)
	s.ExecutionMode = ModeParallel
	wf = newTestWorkflow(s)
	require.Contains(t, Validate(wf).Fields(), "steps[0].parallel_group")

	// 顺序步骤带了组
	s = seqStep("a", 0)
	s.ParallelGroup = "g"
	wf = &Workflow{Steps: []Step{s}}
	require.Contains(t, Validate(wf).Fields(), "steps[0].parallel_group")

	// 步骤 ID 与组 ID 冲突
	wf = newTestWorkflow(seqStep("g1", 0), parStep("x", 1, "g1"))
	require.Contains(t, Validate(wf).Fields(), "parallel_groups[0].id")
}

func TestValidateUnconditionalCycle(t *testing.T) {
	a := seqStep("a", 0)
	b := seqStep("b", 1)
	b.Condition = Condition{Type: ConditionIf, Predicate: "result.output.x", ThenStep: "a", ElseStep: "a"}
	wf := newTestWorkflow(a, b)

	errs := Validate(wf)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Message, "a -> b -> a")

	// switch 全部分支与 default 相同也是无条件的
	b.Condition = Condition{Type: ConditionSwitch, SwitchExpression: "result.status", Cases: map[string]string{"success": "a"}, Default: "a"}
	wf = newTestWorkflow(a, b)
	require.Len(t, Validate(wf), 1)

	// 由条件驱动的回环是允许的
	b.Condition = Condition{Type: ConditionIf, Predicate: "result.output.retry", ThenStep: "a"}
	wf = newTestWorkflow(a, b)
	require.Empty(t, Validate(wf))

	// 只回到自身且没有 default 的 switch
	self := seqStep("s", 0)
	self.Condition = Condition{Type: ConditionSwitch, SwitchExpression: "result.status", Cases: map[string]string{"success": "s"}}
	require.Empty(t, Validate(newTestWorkflow(self)))
}

func TestValidateParallelGroupCycleNeedsAllMembersUnconditional(t *testing.T) {
	x := parStep("x", 1, "g")
	x.Condition = Condition{Type: ConditionIf, Predicate: "result.output.ok", ThenStep: "a", ElseStep: "a"}
	y := parStep("y", 1, "g")
	y.Condition = Condition{Type: ConditionIf, Predicate: "result.output.ok", ThenStep: "a"}
	wf := newTestWorkflow(seqStep("a", 0), x, y)
	require.Empty(t, Validate(wf))

	y.Condition = Condition{Type: ConditionNone}
	wf = newTestWorkflow(seqStep("a", 0), x, y)
	// x 无条件回到 a（order 0），y 无后继可提议，a 的默认后继又是 g
	require.Len(t, Validate(wf), 1)
}

func TestPlanNextTieBreak(t *testing.T) {
	x := parStep("x", 1, "g")
	x.Condition = Condition{Type: ConditionIf, Predicate: "result.output.ok", ThenStep: "late"}
	y := parStep("y", 1, "g")
	y.Condition = Condition{Type: ConditionIf, Predicate: "result.output.ok", ThenStep: "early"}
	early1 := seqStep("early", 3)
	early2 := seqStep("early2", 3)
	late := seqStep("late", 7)
	wf := newTestWorkflow(seqStep("a", 0), x, y, late, early2, early1)
	plan, err := BuildPlan(wf)
	require.NoError(t, err)

	gi, _ := plan.GroupIndex("x")
	next, ok := plan.Next(gi, map[string]Outcome{
		"x": {Branch: BranchJump, Target: "late"},
		"y": {Branch: BranchJump, Target: "early"},
	})
	require.True(t, ok)
	require.Equal(t, "early", plan.Groups[next].ID)

	// order 相同时按编写顺序
	next, ok = plan.Next(gi, map[string]Outcome{
		"x": {Branch: BranchJump, Target: "early"},
		"y": {Branch: BranchJump, Target: "early2"},
	})
	require.True(t, ok)
	require.Equal(t, "early2", plan.Groups[next].ID)

	// 默认后继也参与比较
	next, ok = plan.Next(gi, map[string]Outcome{
		"x": {Branch: BranchDefault},
		"y": {Branch: BranchJump, Target: "late"},
	})
	require.True(t, ok)
	require.Equal(t, "early2", plan.Groups[next].ID)

	_, ok = plan.Next(gi, map[string]Outcome{
		"x": {Branch: BranchStop},
		"y": {Branch: BranchStop},
	})
	require.False(t, ok)
}
