package workflow

import (
	"fmt"
	"sort"

	"flowbuilder/internal/agent"

	"github.com/google/uuid"
)

// EditOp 步骤编辑操作类型
type EditOp string

const (
	EditAdd     EditOp = "add"
	EditUpdate  EditOp = "update"
	EditRemove  EditOp = "remove"
	EditGroup   EditOp = "group"
	EditUngroup EditOp = "ungroup"
)

// StepEdit 可序列化的步骤编辑，应用优化建议时记录在案
type StepEdit struct {
	Op        EditOp     `json:"op"`
	StepID    string     `json:"step_id,omitempty"`
	Step      *Step      `json:"step,omitempty"`
	Patch     *StepPatch `json:"patch,omitempty"`
	GroupID   string     `json:"group_id,omitempty"`
	GroupName string     `json:"group_name,omitempty"`
	StepIDs   []string   `json:"step_ids,omitempty"`
}

// StepPatch 字段级更新，nil 字段保持不变
type StepPatch struct {
	Name            *string        `json:"name,omitempty"`
	Agent           *agent.Ref     `json:"agent,omitempty"`
	Order           *int           `json:"order,omitempty"`
	Condition       *Condition     `json:"condition,omitempty"`
	ContinueOnError *bool          `json:"continue_on_error,omitempty"`
	TimeoutMs       *int64         `json:"timeout_ms,omitempty"`
	Retry           *RetryPolicy   `json:"retry,omitempty"`
	ClearRetry      bool           `json:"clear_retry,omitempty"`
	Input           map[string]any `json:"input,omitempty"`
}

// ScrubbedReference 删除步骤时被清理的引用
type ScrubbedReference struct {
	StepID  string `json:"step_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	Field   string `json:"field"`
}

// RemovalReport 删除步骤的级联清理报告
type RemovalReport struct {
	StepID        string              `json:"step_id"`
	Scrubbed      []ScrubbedReference `json:"scrubbed"`
	RemovedGroups []string            `json:"removed_groups,omitempty"`
}

// AddStep 追加步骤
// ID 为空时自动生成；Order 为 0 且已有步骤时追加到末尾；
// 指定 ParallelGroup 时加入该并行组（不存在则创建）
func AddStep(wf *Workflow, step Step) (*Step, error) {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	if s, _ := wf.FindStep(step.ID); s != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
	}
	if step.Order == 0 && len(wf.Steps) > 0 {
		step.Order = maxOrder(wf) + 1
	}
	if step.Condition.Type == "" {
		step.Condition.Type = ConditionNone
	}

	groupID := step.ParallelGroup
	step.ExecutionMode = ModeSequential
	step.ParallelGroup = ""
	wf.Steps = append(wf.Steps, step)

	if groupID != "" {
		if _, err := GroupSteps(wf, groupID, "", step.ID); err != nil {
			return nil, err
		}
	}
	added, _ := wf.FindStep(step.ID)
	return added, nil
}

// UpdateStep 按字段更新步骤
func UpdateStep(wf *Workflow, stepID string, patch StepPatch) (*Step, error) {
	step, _ := wf.FindStep(stepID)
	if step == nil {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}

	if patch.Name != nil {
		step.Name = *patch.Name
	}
	if patch.Agent != nil {
		step.Agent = *patch.Agent
	}
	if patch.Order != nil {
		step.Order = *patch.Order
	}
	if patch.Condition != nil {
		cond := *patch.Condition
		cond.Cases = copyStringMap(cond.Cases)
		if cond.Type == "" {
			cond.Type = ConditionNone
		}
		step.Condition = cond
	}
	if patch.ContinueOnError != nil {
		step.ContinueOnError = *patch.ContinueOnError
	}
	if patch.TimeoutMs != nil {
		step.TimeoutMs = *patch.TimeoutMs
	}
	if patch.ClearRetry {
		step.Retry = nil
	} else if patch.Retry != nil {
		r := *patch.Retry
		step.Retry = &r
	}
	if patch.Input != nil {
		step.Input = patch.Input
	}
	return step, nil
}

// RemoveStep 删除步骤，并级联清理其他步骤中的分支目标与并行组成员
// 所有被清理的引用都记录在返回的报告中
func RemoveStep(wf *Workflow, stepID string) (*RemovalReport, error) {
	_, idx := wf.FindStep(stepID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	wf.Steps = append(wf.Steps[:idx], wf.Steps[idx+1:]...)

	report := &RemovalReport{StepID: stepID}
	for i := range wf.Steps {
		s := &wf.Steps[i]
		c := &s.Condition
		if c.ThenStep == stepID {
			c.ThenStep = ""
			report.Scrubbed = append(report.Scrubbed, ScrubbedReference{StepID: s.ID, Field: "condition.then_step"})
		}
		if c.ElseStep == stepID {
			c.ElseStep = ""
			report.Scrubbed = append(report.Scrubbed, ScrubbedReference{StepID: s.ID, Field: "condition.else_step"})
		}
		for _, key := range sortedKeys(c.Cases) {
			if c.Cases[key] == stepID {
				delete(c.Cases, key)
				report.Scrubbed = append(report.Scrubbed, ScrubbedReference{StepID: s.ID, Field: "condition.cases." + key})
			}
		}
		if c.Default == stepID {
			c.Default = ""
			report.Scrubbed = append(report.Scrubbed, ScrubbedReference{StepID: s.ID, Field: "condition.default"})
		}
	}

	for i := 0; i < len(wf.ParallelGroups); i++ {
		g := &wf.ParallelGroups[i]
		if !removeString(&g.StepIDs, stepID) {
			continue
		}
		report.Scrubbed = append(report.Scrubbed, ScrubbedReference{GroupID: g.ID, Field: "step_ids"})
		if len(g.StepIDs) == 0 {
			report.RemovedGroups = append(report.RemovedGroups, g.ID)
			wf.ParallelGroups = append(wf.ParallelGroups[:i], wf.ParallelGroups[i+1:]...)
			i--
		}
	}
	return report, nil
}

// GroupSteps 把步骤加入并行组（改变执行模式的唯一入口）
// 步骤若已属于其他组会先从原组移出，空组被删除
func GroupSteps(wf *Workflow, groupID, name string, stepIDs ...string) (*ParallelGroup, error) {
	if len(stepIDs) == 0 {
		return nil, fmt.Errorf("%w: 并行组至少需要一个步骤", ErrInvalidEdit)
	}
	for _, id := range stepIDs {
		if s, _ := wf.FindStep(id); s == nil {
			return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
		}
	}
	if groupID == "" {
		groupID = uuid.New().String()
	}
	if s, _ := wf.FindStep(groupID); s != nil {
		return nil, fmt.Errorf("%w: 并行组 ID 与步骤 ID 冲突: %s", ErrInvalidEdit, groupID)
	}

	if g, _ := wf.FindGroup(groupID); g == nil {
		wf.ParallelGroups = append(wf.ParallelGroups, ParallelGroup{ID: groupID, Name: name})
	}

	for _, id := range stepIDs {
		step, _ := wf.FindStep(id)
		if step.ParallelGroup != "" && step.ParallelGroup != groupID {
			detachFromGroup(wf, step.ParallelGroup, id)
		}
		step.ExecutionMode = ModeParallel
		step.ParallelGroup = groupID

		g, _ := wf.FindGroup(groupID)
		if !containsString(g.StepIDs, id) {
			g.StepIDs = append(g.StepIDs, id)
		}
	}

	g, _ := wf.FindGroup(groupID)
	if name != "" {
		g.Name = name
	}
	return g, nil
}

// UngroupStep 把步骤移出并行组，恢复为顺序执行
func UngroupStep(wf *Workflow, stepID string) error {
	step, _ := wf.FindStep(stepID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	if step.ParallelGroup == "" {
		return fmt.Errorf("%w: 步骤 %s 不在并行组中", ErrGroupNotFound, stepID)
	}
	detachFromGroup(wf, step.ParallelGroup, stepID)
	step.ExecutionMode = ModeSequential
	step.ParallelGroup = ""
	return nil
}

// ApplyEdit 执行一条序列化的编辑
func ApplyEdit(wf *Workflow, edit StepEdit) error {
	switch edit.Op {
	case EditAdd:
		if edit.Step == nil {
			return fmt.Errorf("%w: add 操作缺少 step", ErrInvalidEdit)
		}
		_, err := AddStep(wf, *edit.Step)
		return err
	case EditUpdate:
		if edit.Patch == nil {
			return fmt.Errorf("%w: update 操作缺少 patch", ErrInvalidEdit)
		}
		_, err := UpdateStep(wf, edit.StepID, *edit.Patch)
		return err
	case EditRemove:
		_, err := RemoveStep(wf, edit.StepID)
		return err
	case EditGroup:
		ids := edit.StepIDs
		if len(ids) == 0 && edit.StepID != "" {
			ids = []string{edit.StepID}
		}
		_, err := GroupSteps(wf, edit.GroupID, edit.GroupName, ids...)
		return err
	case EditUngroup:
		return UngroupStep(wf, edit.StepID)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEdit, edit.Op)
	}
}

func detachFromGroup(wf *Workflow, groupID, stepID string) {
	g, idx := wf.FindGroup(groupID)
	if g == nil {
		return
	}
	removeString(&g.StepIDs, stepID)
	if len(g.StepIDs) == 0 {
		wf.ParallelGroups = append(wf.ParallelGroups[:idx], wf.ParallelGroups[idx+1:]...)
	}
}

func maxOrder(wf *Workflow) int {
	max := 0
	for i, s := range wf.Steps {
		if i == 0 || s.Order > max {
			max = s.Order
		}
	}
	return max
}

func removeString(list *[]string, value string) bool {
	for i, v := range *list {
		if v == value {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
