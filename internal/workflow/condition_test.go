package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConditionEvaluate(t *testing.T) {
	res := &StepResult{Status: RunSuccess, Output: map[string]any{"score": 72, "kind": "blog", "count": 3}}
	data := ConditionContext(res, map[string]any{"min": 60})

	tests := []struct {
		name string
		cond Condition
		want Outcome
	}{
		{"none", Condition{}, Outcome{Branch: BranchDefault}},
		{"if 为真", Condition{Type: ConditionIf, Predicate: "output.score >= input.min", ThenStep: "t", ElseStep: "e"}, Outcome{Branch: BranchJump, Target: "t"}},
		{"if 为假", Condition{Type: ConditionIf, Predicate: "result.output.score > 90", ThenStep: "t", ElseStep: "e"}, Outcome{Branch: BranchJump, Target: "e"}},
		{"if 缺少目标", Condition{Type: ConditionIf, Predicate: "result.output.score > 90", ThenStep: "t"}, Outcome{Branch: BranchStop}},
		{"switch 命中字符串", Condition{Type: ConditionSwitch, SwitchExpression: "result.output.kind", Cases: map[string]string{"blog": "b", "news": "n"}, Default: "d"}, Outcome{Branch: BranchJump, Target: "b"}},
		{"switch 命中数字", Condition{Type: ConditionSwitch, SwitchExpression: "output.count", Cases: map[string]string{"3": "three"}}, Outcome{Branch: BranchJump, Target: "three"}},
		{"switch 命中布尔", Condition{Type: ConditionSwitch, SwitchExpression: `result.status == "success"`, Cases: map[string]string{"true": "ok"}}, Outcome{Branch: BranchJump, Target: "ok"}},
		{"switch 走 default", Condition{Type: ConditionSwitch, SwitchExpression: "result.output.kind", Cases: map[string]string{"news": "n"}, Default: "d"}, Outcome{Branch: BranchJump, Target: "d"}},
		{"switch 无 default", Condition{Type: ConditionSwitch, SwitchExpression: "result.output.missing", Cases: map[string]string{"x": "n"}}, Outcome{Branch: BranchStop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := CompileCondition(tt.cond)
			require.NoError(t, err)
			got, err := cc.Evaluate(data)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConditionRuntimeError(t *testing.T) {
	cc, err := CompileCondition(Condition{Type: ConditionIf, Predicate: "result.output.missing > 3", ThenStep: "x"})
	require.NoError(t, err)
	_, err = cc.Evaluate(ConditionContext(&StepResult{Status: RunSuccess}, nil))
	require.Error(t, err)
}

func TestConditionCompileRejectsCode(t *testing.T) {
	_, err := CompileCondition(Condition{Type: ConditionIf, Predicate: "len(result.output) > 1"})
	require.Error(t, err)
	_, err = CompileCondition(Condition{Type: ConditionSwitch})
	require.Error(t, err)
}

func TestConditionUnconditional(t *testing.T) {
	cc, _ := CompileCondition(Condition{Type: ConditionIf, Predicate: "result.output.x", ThenStep: "a", ElseStep: "a"})
	out, ok := cc.Unconditional()
	require.True(t, ok)
	require.Equal(t, Outcome{Branch: BranchJump, Target: "a"}, out)

	cc, _ = CompileCondition(Condition{Type: ConditionIf, Predicate: "result.output.x", ThenStep: "a"})
	_, ok = cc.Unconditional()
	require.False(t, ok)

	cc, _ = CompileCondition(Condition{Type: ConditionSwitch, SwitchExpression: "result.status", Default: "d"})
	out, ok = cc.Unconditional()
	require.True(t, ok)
	require.Equal(t, "d", out.Target)
}
