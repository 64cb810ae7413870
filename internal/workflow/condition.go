package workflow

import (
	"fmt"

	"flowbuilder/internal/workflow/expr"
)

// Branch 条件求值得到的分支类别
type Branch int

const (
	// BranchDefault 沿默认后继（下一组）继续
	BranchDefault Branch = iota
	// BranchJump 跳转到指定步骤
	BranchJump
	// BranchStop 结束该分支
	BranchStop
)

// Outcome 条件求值结果
type Outcome struct {
	Branch Branch
	Target string
}

// CompiledCondition 预编译的条件
type CompiledCondition struct {
	cond      Condition
	predicate *expr.Expression
	switchKey *expr.Expression
}

// CompileCondition 编译条件中的表达式
func CompileCondition(c Condition) (*CompiledCondition, error) {
	cc := &CompiledCondition{cond: c}
	switch c.Kind() {
	case ConditionNone:
	case ConditionIf:
		e, err := expr.Compile(c.Predicate)
		if err != nil {
			return nil, fmt.Errorf("predicate: %w", err)
		}
		cc.predicate = e
	case ConditionSwitch:
		e, err := expr.Compile(c.SwitchExpression)
		if err != nil {
			return nil, fmt.Errorf("switch_expression: %w", err)
		}
		cc.switchKey = e
	default:
		return nil, fmt.Errorf("不支持的条件类型: %s", c.Type)
	}
	return cc, nil
}

// Evaluate 在运行时上下文上求值
func (cc *CompiledCondition) Evaluate(data map[string]any) (Outcome, error) {
	switch cc.cond.Kind() {
	case ConditionIf:
		ok, err := cc.predicate.EvaluateBool(data)
		if err != nil {
			return Outcome{}, err
		}
		target := cc.cond.ElseStep
		if ok {
			target = cc.cond.ThenStep
		}
		return jumpOrStop(target), nil
	case ConditionSwitch:
		key, ok, err := cc.switchKey.EvaluateKey(data)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			if target, hit := cc.cond.Cases[key]; hit {
				return jumpOrStop(target), nil
			}
		}
		return jumpOrStop(cc.cond.Default), nil
	default:
		return Outcome{Branch: BranchDefault}, nil
	}
}

// Unconditional 判断条件是否与运行时数据无关
// 返回 (outcome, true) 表示无论上下文如何结果都相同
func (cc *CompiledCondition) Unconditional() (Outcome, bool) {
	c := cc.cond
	switch c.Kind() {
	case ConditionNone:
		return Outcome{Branch: BranchDefault}, true
	case ConditionIf:
		if c.ThenStep == c.ElseStep {
			return jumpOrStop(c.ThenStep), true
		}
	case ConditionSwitch:
		if c.Default == "" {
			return Outcome{}, false
		}
		for _, target := range c.Cases {
			if target != c.Default {
				return Outcome{}, false
			}
		}
		return jumpOrStop(c.Default), true
	}
	return Outcome{}, false
}

// ConditionContext 构造条件表达式可见的上下文
//
//	result.status / result.output / result.error / result.duration_ms
//	output  (result.output 的别名)
//	input   (运行输入)
func ConditionContext(res *StepResult, input map[string]any) map[string]any {
	output := res.Output
	if output == nil {
		output = map[string]any{}
	}
	return map[string]any{
		"result": map[string]any{
			"status":      res.Status,
			"output":      output,
			"error":       res.Error,
			"duration_ms": res.DurationMs,
			"attempts":    res.Attempts,
		},
		"output": output,
		"input":  input,
	}
}

func jumpOrStop(target string) Outcome {
	if target == "" {
		return Outcome{Branch: BranchStop}
	}
	return Outcome{Branch: BranchJump, Target: target}
}
