package workflow

import (
	"fmt"
	"time"

	"flowbuilder/internal/agent"

	"gorm.io/datatypes"
)

// Status 工作流状态
type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// ExecutionMode 步骤执行模式
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// ConditionType 条件类型
type ConditionType string

const (
	ConditionNone   ConditionType = "none"
	ConditionIf     ConditionType = "if"
	ConditionSwitch ConditionType = "switch"
)

// Condition 步骤完成后的分支规则
//
//	none:   流向下一组（按 order）
//	if:     predicate 为真走 then_step，否则走 else_step；目标为空则结束该分支
//	switch: switch_expression 的标量值在 cases 中查找，未命中走 default，无 default 则结束
type Condition struct {
	Type             ConditionType     `json:"type" yaml:"type"`
	Predicate        string            `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	ThenStep         string            `json:"then_step,omitempty" yaml:"then_step,omitempty"`
	ElseStep         string            `json:"else_step,omitempty" yaml:"else_step,omitempty"`
	SwitchExpression string            `json:"switch_expression,omitempty" yaml:"switch_expression,omitempty"`
	Cases            map[string]string `json:"cases,omitempty" yaml:"cases,omitempty"`
	Default          string            `json:"default,omitempty" yaml:"default,omitempty"`
}

// Kind 返回条件类型，空值视为 none
func (c Condition) Kind() ConditionType {
	if c.Type == "" {
		return ConditionNone
	}
	return c.Type
}

// Targets 返回条件引用的所有目标步骤 ID（去重，保持出现顺序）
func (c Condition) Targets() []string {
	var targets []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}
	switch c.Kind() {
	case ConditionIf:
		add(c.ThenStep)
		add(c.ElseStep)
	case ConditionSwitch:
		for _, key := range sortedKeys(c.Cases) {
			add(c.Cases[key])
		}
		add(c.Default)
	}
	return targets
}

// RetryPolicy 步骤重试策略，只有显式配置时才会重试
type RetryPolicy struct {
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`
	Backoff    string `json:"backoff,omitempty" yaml:"backoff,omitempty"` // fixed, exponential
	DelayMs    int64  `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
}

// 重试退避策略
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Delay 第 attempt 次重试前的等待时间（attempt 从 1 开始）
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	base := time.Duration(p.DelayMs) * time.Millisecond
	if p.Backoff != BackoffExponential || attempt <= 1 {
		return base
	}
	return base << (attempt - 1)
}

// Step 工作流中的一个步骤，绑定一个外部 Agent
type Step struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Agent           agent.Ref      `json:"agent" yaml:"agent"`
	Order           int            `json:"order" yaml:"order"`
	ExecutionMode   ExecutionMode  `json:"execution_mode" yaml:"execution_mode"`
	ParallelGroup   string         `json:"parallel_group,omitempty" yaml:"parallel_group,omitempty"`
	Condition       Condition      `json:"condition" yaml:"condition"`
	ContinueOnError bool           `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
	TimeoutMs       int64          `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry           *RetryPolicy   `json:"retry,omitempty" yaml:"retry,omitempty"`
	Input           map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
}

// Mode 返回执行模式，空值视为 sequential
func (s *Step) Mode() ExecutionMode {
	if s.ExecutionMode == "" {
		return ModeSequential
	}
	return s.ExecutionMode
}

// ParallelGroup 并行组，显式持有成员步骤 ID
type ParallelGroup struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	StepIDs []string `json:"step_ids" yaml:"step_ids"`
}

// Trigger 触发器描述（由外部调度协作方解释）
type Trigger struct {
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Workflow 工作流定义
type Workflow struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`
	Status      Status `json:"status" gorm:"size:20;not null;default:draft;index"`

	// 定义（结构化）
	Steps          []Step          `json:"steps" gorm:"type:jsonb;serializer:json"`
	ParallelGroups []ParallelGroup `json:"parallel_groups" gorm:"type:jsonb;serializer:json"`
	Triggers       []Trigger       `json:"triggers" gorm:"type:jsonb;serializer:json"`

	// 每次定义变更递增
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;autoUpdateTime"`

	// 读取时附加，不属于可编辑定义
	Suggestions      []Suggestion      `json:"optimization_suggestions,omitempty" gorm:"-"`
	ExecutionHistory []ExecutionRecord `json:"execution_history,omitempty" gorm:"-"`
}

// TableName 表名
func (Workflow) TableName() string {
	return "workflows"
}

// Clone 深拷贝定义部分，运行期间使用快照而不是共享切片
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		cp.Steps[i] = s
		cp.Steps[i].Condition.Cases = copyStringMap(s.Condition.Cases)
		if s.Retry != nil {
			r := *s.Retry
			cp.Steps[i].Retry = &r
		}
	}
	cp.ParallelGroups = make([]ParallelGroup, len(w.ParallelGroups))
	for i, g := range w.ParallelGroups {
		cp.ParallelGroups[i] = g
		cp.ParallelGroups[i].StepIDs = append([]string(nil), g.StepIDs...)
	}
	cp.Triggers = append([]Trigger(nil), w.Triggers...)
	cp.Suggestions = nil
	cp.ExecutionHistory = nil
	return &cp
}

// FindStep 按 ID 查找步骤
func (w *Workflow) FindStep(id string) (*Step, int) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], i
		}
	}
	return nil, -1
}

// FindGroup 按 ID 查找并行组
func (w *Workflow) FindGroup(id string) (*ParallelGroup, int) {
	for i := range w.ParallelGroups {
		if w.ParallelGroups[i].ID == id {
			return &w.ParallelGroups[i], i
		}
	}
	return nil, -1
}

// CheckRunnable 只有 active 状态的工作流可以运行
func (w *Workflow) CheckRunnable() error {
	switch w.Status {
	case StatusActive:
		return nil
	case StatusPaused:
		return fmt.Errorf("%w: %s", ErrWorkflowPaused, w.ID)
	default:
		return fmt.Errorf("%w: %s (%s)", ErrWorkflowNotActive, w.ID, w.Status)
	}
}

// 运行结果状态
const (
	RunSuccess = "success"
	RunFailure = "failure"
)

// RunReason 运行失败原因
type RunReason string

const (
	ReasonNone           RunReason = ""
	ReasonStepFailed     RunReason = "step_failed"
	ReasonBudgetExceeded RunReason = "budget_exceeded"
	ReasonCancelled      RunReason = "cancelled"
	ReasonTimeout        RunReason = "timeout"
	ReasonConditionError RunReason = "condition_error"
)

// StepErrorKind 步骤失败类别
type StepErrorKind string

const (
	ErrorKindNone      StepErrorKind = ""
	ErrorKindDispatch  StepErrorKind = "dispatch"
	ErrorKindTimeout   StepErrorKind = "timeout"
	ErrorKindCancelled StepErrorKind = "cancelled"
	ErrorKindAgent     StepErrorKind = "agent"
)

// StepResult 单个步骤的执行结果
type StepResult struct {
	StepID     string         `json:"step_id"`
	AgentID    string         `json:"agent_id"`
	Status     string         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  StepErrorKind  `json:"error_kind,omitempty"`
	Attempts   int            `json:"attempts"`
	Output     map[string]any `json:"output,omitempty"`
}

// ExecutionRecord 一次完整运行的不可变记录，以运行 ID 为幂等键
type ExecutionRecord struct {
	ID          string                          `json:"id" gorm:"primaryKey;size:64"`
	WorkflowID  string                          `json:"workflow_id" gorm:"size:64;not null;index:idx_exec_wf_time,priority:1"`
	ExecutedAt  time.Time                       `json:"executed_at" gorm:"not null;index:idx_exec_wf_time,priority:2"`
	DurationMs  int64                           `json:"duration_ms"`
	Status      string                          `json:"status" gorm:"size:20;not null"`
	Reason      RunReason                       `json:"reason,omitempty" gorm:"size:32"`
	Error       string                          `json:"error,omitempty" gorm:"type:text"`
	StepResults datatypes.JSONSlice[StepResult] `json:"step_results" gorm:"type:jsonb"`
}

// TableName 表名
func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// Succeeded 运行是否成功
func (r *ExecutionRecord) Succeeded() bool {
	return r.Status == RunSuccess
}

// Priority 建议优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// NormalizePriority 未知优先级归为 medium
func NormalizePriority(p string) Priority {
	switch Priority(p) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(p)
	default:
		return PriorityMedium
	}
}

// Suggestion 外部分析服务产出的优化建议
type Suggestion struct {
	ID             string                 `json:"id" gorm:"primaryKey;size:64"`
	WorkflowID     string                 `json:"workflow_id" gorm:"size:64;not null;index"`
	Priority       Priority               `json:"priority" gorm:"size:20;not null"`
	Title          string                 `json:"title" gorm:"size:255"`
	Description    string                 `json:"description" gorm:"type:text"`
	Recommendation string                 `json:"recommendation" gorm:"type:text"`
	Applied        bool                   `json:"applied" gorm:"not null;default:false"`
	Application    *SuggestionApplication `json:"application,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time              `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (Suggestion) TableName() string {
	return "workflow_suggestions"
}

// SuggestionApplication 建议应用记录：执行的编辑与定义差异
type SuggestionApplication struct {
	Edit      StepEdit  `json:"edit"`
	AppliedAt time.Time `json:"applied_at"`
	Diff      string    `json:"diff"`
}

// Stats 由执行历史计算的统计信息
type Stats struct {
	TotalExecutions      int64   `json:"total_executions"`
	SuccessfulExecutions int64   `json:"successful_executions"`
	FailedExecutions     int64   `json:"failed_executions"`
	AverageDurationMs    float64 `json:"average_duration_ms"`
	LastExecutionAt      string  `json:"last_execution_at,omitempty"`
}

// ComputeStats 根据执行历史计算统计信息
func ComputeStats(records []ExecutionRecord) *Stats {
	stats := &Stats{}
	if len(records) == 0 {
		return stats
	}

	var totalMs int64
	var last time.Time
	for _, rec := range records {
		stats.TotalExecutions++
		if rec.Succeeded() {
			stats.SuccessfulExecutions++
		} else {
			stats.FailedExecutions++
		}
		totalMs += rec.DurationMs
		if rec.ExecutedAt.After(last) {
			last = rec.ExecutedAt
		}
	}
	stats.AverageDurationMs = float64(totalMs) / float64(len(records))
	stats.LastExecutionAt = last.UTC().Format(time.RFC3339)
	return stats
}
