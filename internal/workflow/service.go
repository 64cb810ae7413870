package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"flowbuilder/internal/logger"
	"flowbuilder/internal/metrics"
	"flowbuilder/internal/store"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryReader 读取执行历史
type HistoryReader interface {
	Recent(ctx context.Context, workflowID string, n int) ([]ExecutionRecord, error)
}

// Service 工作流管理服务
// 定义的所有修改都在编辑租约内完成，运行中的工作流拒绝修改
type Service struct {
	db           *gorm.DB
	workflows    *store.Repository[Workflow]
	suggestions  *store.Repository[Suggestion]
	guard        RunGuard
	history      HistoryReader
	historyLimit int
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB, guard RunGuard, history HistoryReader, historyLimit int) (*Service, error) {
	workflows, err := store.NewRepository[Workflow](db)
	if err != nil {
		return nil, err
	}
	suggestions, err := store.NewRepository[Suggestion](db)
	if err != nil {
		return nil, err
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Service{
		db:           db,
		workflows:    workflows,
		suggestions:  suggestions,
		guard:        guard,
		history:      history,
		historyLimit: historyLimit,
	}, nil
}

// AutoMigrate 迁移服务使用的表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Workflow{}, &ExecutionRecord{}, &Suggestion{})
}

// ListRequest 查询工作流列表请求
type ListRequest struct {
	Status   Status
	Sort     string // 如 "-updated_at"
	Page     int
	PageSize int
}

// ListResponse 查询工作流列表响应
type ListResponse struct {
	Workflows  []Workflow `json:"workflows"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// List 查询工作流列表
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	// 分页
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	sortSpec := req.Sort
	if sortSpec == "" {
		sortSpec = "-created_at"
	}

	q := store.Query{Sort: sortSpec, Limit: pageSize, Offset: (page - 1) * pageSize}
	if req.Status != "" {
		q.Filters = map[string]any{"status": string(req.Status)}
	}

	workflows, total, err := s.workflows.List(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrInvalidQuery) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("查询工作流列表失败: %w", err)
	}

	// 计算总页数
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Workflows:  workflows,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Get 查询单个工作流，附带最近的执行历史与优化建议
func (s *Service) Get(ctx context.Context, id string) (*Workflow, error) {
	wf, err := s.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		records, err := s.history.Recent(ctx, id, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("查询执行历史失败: %w", err)
		}
		wf.ExecutionHistory = records
	}

	suggestions, err := s.ListSuggestions(ctx, id)
	if err != nil {
		return nil, err
	}
	wf.Suggestions = suggestions
	return wf, nil
}

// GetDefinition 只读取定义
func (s *Service) GetDefinition(ctx context.Context, id string) (*Workflow, error) {
	wf, err := s.workflows.Get(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "工作流", id)
	}
	return wf, nil
}

// CreateRequest 创建工作流请求
type CreateRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Steps          []Step          `json:"steps"`
	ParallelGroups []ParallelGroup `json:"parallel_groups"`
	Triggers       []Trigger       `json:"triggers"`
}

// Create 创建工作流（draft 状态，激活时才做完整验证）
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Workflow, error) {
	// 验证必填字段
	if strings.TrimSpace(req.Name) == "" {
		return nil, ValidationErrors{{Field: "name", Message: "工作流名称不能为空"}}
	}

	wf := &Workflow{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Description:    req.Description,
		Status:         StatusDraft,
		Steps:          req.Steps,
		ParallelGroups: req.ParallelGroups,
		Triggers:       req.Triggers,
		Version:        1,
	}
	if wf.Steps == nil {
		wf.Steps = []Step{}
	}

	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("创建工作流失败: %w", err)
	}

	logger.WithContext(ctx).Info("工作流已创建", zap.String("workflow_id", wf.ID), zap.String("name", wf.Name))
	return wf, nil
}

// UpdateRequest 更新工作流请求，nil 字段保持不变
type UpdateRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Steps          *[]Step          `json:"steps"`
	ParallelGroups *[]ParallelGroup `json:"parallel_groups"`
	Triggers       *[]Trigger       `json:"triggers"`
}

// Update 更新工作流
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow) error {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return ValidationErrors{{Field: "name", Message: "工作流名称不能为空"}}
			}
			wf.Name = *req.Name
		}
		if req.Description != nil {
			wf.Description = *req.Description
		}
		if req.Steps != nil {
			wf.Steps = *req.Steps
		}
		if req.ParallelGroups != nil {
			wf.ParallelGroups = *req.ParallelGroups
		}
		if req.Triggers != nil {
			wf.Triggers = *req.Triggers
		}
		return nil
	})
}

// Delete 删除工作流及其优化建议
func (s *Service) Delete(ctx context.Context, id string) error {
	release, err := s.guard.BeginEdit(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	return store.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.workflows.WithTx(tx).Delete(ctx, id); err != nil {
			return wrapNotFound(err, "工作流", id)
		}
		if err := tx.WithContext(ctx).Where("workflow_id = ?", id).Delete(&Suggestion{}).Error; err != nil {
			return fmt.Errorf("删除优化建议失败: %w", err)
		}
		return nil
	})
}

// Activate 验证通过后切换为 active
func (s *Service) Activate(ctx context.Context, id string) (*Workflow, error) {
	return s.setStatus(ctx, id, StatusActive)
}

// Pause 暂停工作流，暂停期间拒绝新的运行
func (s *Service) Pause(ctx context.Context, id string) (*Workflow, error) {
	return s.setStatus(ctx, id, StatusPaused)
}

// Draft 退回草稿
func (s *Service) Draft(ctx context.Context, id string) (*Workflow, error) {
	return s.setStatus(ctx, id, StatusDraft)
}

func (s *Service) setStatus(ctx context.Context, id string, status Status) (*Workflow, error) {
	return store.TransactionResult(ctx, s.db, func(tx *gorm.DB) (*Workflow, error) {
		repo := s.workflows.WithTx(tx)
		wf, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return nil, wrapNotFound(err, "工作流", id)
		}
		if wf.Status == status {
			return wf, nil
		}
		if status == StatusActive {
			if errs := Validate(wf); len(errs) > 0 {
				metrics.WorkflowValidationFailuresTotal.Inc()
				return nil, errs
			}
		}
		wf.Status = status
		if err := repo.Update(ctx, wf); err != nil {
			return nil, fmt.Errorf("更新工作流状态失败: %w", err)
		}
		logger.WithContext(ctx).Info("工作流状态变更",
			zap.String("workflow_id", id),
			zap.String("status", string(status)))
		return wf, nil
	})
}

// Validate 验证已保存的工作流定义
func (s *Service) Validate(ctx context.Context, id string) (ValidationErrors, error) {
	wf, err := s.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	return Validate(wf), nil
}

// Plan 生成执行计划
func (s *Service) Plan(ctx context.Context, id string) (*Plan, error) {
	wf, err := s.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildPlan(wf)
}

// AddStep 追加步骤
func (s *Service) AddStep(ctx context.Context, id string, step Step) (*Step, *Workflow, error) {
	var added Step
	wf, err := s.mutate(ctx, id, func(wf *Workflow) error {
		st, err := AddStep(wf, step)
		if err != nil {
			return err
		}
		added = *st
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &added, wf, nil
}

// UpdateStep 更新步骤字段
func (s *Service) UpdateStep(ctx context.Context, id, stepID string, patch StepPatch) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow) error {
		_, err := UpdateStep(wf, stepID, patch)
		return err
	})
}

// RemoveStep 删除步骤并级联清理引用
func (s *Service) RemoveStep(ctx context.Context, id, stepID string) (*RemovalReport, *Workflow, error) {
	var report *RemovalReport
	wf, err := s.mutate(ctx, id, func(wf *Workflow) error {
		r, err := RemoveStep(wf, stepID)
		report = r
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return report, wf, nil
}

// GroupSteps 把步骤放入并行组
func (s *Service) GroupSteps(ctx context.Context, id, groupID, name string, stepIDs ...string) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow) error {
		_, err := GroupSteps(wf, groupID, name, stepIDs...)
		return err
	})
}

// UngroupStep 把步骤移出并行组
func (s *Service) UngroupStep(ctx context.Context, id, stepID string) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow) error {
		return UngroupStep(wf, stepID)
	})
}

// mutate 在编辑租约与事务内修改定义
// active 工作流修改后必须仍然有效，否则整体回滚
func (s *Service) mutate(ctx context.Context, id string, fn func(wf *Workflow) error) (*Workflow, error) {
	release, err := s.guard.BeginEdit(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	return store.TransactionResult(ctx, s.db, func(tx *gorm.DB) (*Workflow, error) {
		repo := s.workflows.WithTx(tx)
		wf, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return nil, wrapNotFound(err, "工作流", id)
		}
		if err := fn(wf); err != nil {
			return nil, err
		}
		if err := s.commit(ctx, repo, wf); err != nil {
			return nil, err
		}
		return wf, nil
	})
}

// commit 校验并保存定义，版本号递增
func (s *Service) commit(ctx context.Context, repo *store.Repository[Workflow], wf *Workflow) error {
	if wf.Status == StatusActive {
		if errs := Validate(wf); len(errs) > 0 {
			metrics.WorkflowValidationFailuresTotal.Inc()
			return errs
		}
	}
	wf.Version++
	if err := repo.Update(ctx, wf); err != nil {
		return fmt.Errorf("更新工作流失败: %w", err)
	}
	return nil
}

// History 最近 n 条执行记录（从旧到新）
func (s *Service) History(ctx context.Context, id string, n int) ([]ExecutionRecord, error) {
	if _, err := s.GetDefinition(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []ExecutionRecord{}, nil
	}
	return s.history.Recent(ctx, id, n)
}

// Stats 获取工作流统计信息
func (s *Service) Stats(ctx context.Context, id string) (*Stats, error) {
	records, err := s.History(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	return ComputeStats(records), nil
}

// StoreSuggestions 保存外部分析服务产出的建议（均为未应用）
func (s *Service) StoreSuggestions(ctx context.Context, workflowID string, items []Suggestion) ([]Suggestion, error) {
	if _, err := s.GetDefinition(ctx, workflowID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Suggestion{}, nil
	}

	now := time.Now().UTC()
	stored := make([]Suggestion, len(items))
	err := store.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.suggestions.WithTx(tx)
		for i, item := range items {
			item.ID = uuid.New().String()
			item.WorkflowID = workflowID
			item.Priority = NormalizePriority(string(item.Priority))
			item.Applied = false
			item.Application = nil
			// 同一批次保持顺序
			item.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			if err := repo.Create(ctx, &item); err != nil {
				return err
			}
			stored[i] = item
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("保存优化建议失败: %w", err)
	}
	return stored, nil
}

// ListSuggestions 列出工作流的优化建议，按优先级与创建时间排序
func (s *Service) ListSuggestions(ctx context.Context, workflowID string) ([]Suggestion, error) {
	items, _, err := s.suggestions.List(ctx, store.Query{
		Filters: map[string]any{"workflow_id": workflowID},
		Sort:    "created_at",
	})
	if err != nil {
		return nil, fmt.Errorf("查询优化建议失败: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return priorityRank(items[i].Priority) < priorityRank(items[j].Priority)
	})
	return items, nil
}

// ApplySuggestion 以一次事务应用建议：执行编辑、标记已应用并记录编辑内容与定义差异
func (s *Service) ApplySuggestion(ctx context.Context, workflowID, suggestionID string, edit StepEdit) (*Suggestion, *Workflow, error) {
	release, err := s.guard.BeginEdit(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var applied *Suggestion
	wf, err := store.TransactionResult(ctx, s.db, func(tx *gorm.DB) (*Workflow, error) {
		sugRepo := s.suggestions.WithTx(tx)
		sug, err := sugRepo.GetForUpdate(ctx, suggestionID)
		if err != nil || sug.WorkflowID != workflowID {
			if err == nil || errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrSuggestionNotFound, suggestionID)
			}
			return nil, err
		}
		if sug.Applied {
			return nil, fmt.Errorf("%w: %s", ErrSuggestionApplied, suggestionID)
		}

		wfRepo := s.workflows.WithTx(tx)
		wf, err := wfRepo.GetForUpdate(ctx, workflowID)
		if err != nil {
			return nil, wrapNotFound(err, "工作流", workflowID)
		}

		before, err := definitionYAML(wf)
		if err != nil {
			return nil, err
		}
		fromVersion := wf.Version
		if err := ApplyEdit(wf, edit); err != nil {
			return nil, err
		}
		if err := s.commit(ctx, wfRepo, wf); err != nil {
			return nil, err
		}
		after, err := definitionYAML(wf)
		if err != nil {
			return nil, err
		}

		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(before),
			B:        difflib.SplitLines(after),
			FromFile: fmt.Sprintf("%s@v%d", workflowID, fromVersion),
			ToFile:   fmt.Sprintf("%s@v%d", workflowID, wf.Version),
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("生成定义差异失败: %w", err)
		}

		sug.Applied = true
		sug.Application = &SuggestionApplication{Edit: edit, AppliedAt: time.Now().UTC(), Diff: diff}
		if err := sugRepo.Update(ctx, sug); err != nil {
			return nil, fmt.Errorf("更新优化建议失败: %w", err)
		}
		applied = sug
		return wf, nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithContext(ctx).Info("优化建议已应用",
		zap.String("workflow_id", workflowID),
		zap.String("suggestion_id", suggestionID),
		zap.String("op", string(edit.Op)),
		zap.Int("version", wf.Version))
	return applied, wf, nil
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}
