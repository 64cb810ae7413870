package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound 工作流不存在
	ErrNotFound = errors.New("工作流不存在")
	// ErrValidation 工作流定义验证失败
	ErrValidation = errors.New("工作流定义验证失败")
	// ErrConflict 工作流正在运行时拒绝修改（或修改进行中拒绝运行）
	ErrConflict = errors.New("工作流存在并发的运行或修改")
	// ErrWorkflowPaused 已暂停的工作流拒绝新的运行请求
	ErrWorkflowPaused = errors.New("工作流已暂停")
	// ErrWorkflowNotActive 非激活状态的工作流不能运行
	ErrWorkflowNotActive = errors.New("工作流未激活")
	// ErrBudgetExceeded 步骤调度次数超过预算
	ErrBudgetExceeded = errors.New("步骤调度次数超过预算")
	// ErrSuggestionNotFound 优化建议不存在
	ErrSuggestionNotFound = errors.New("优化建议不存在")
	// ErrSuggestionApplied 优化建议已被应用
	ErrSuggestionApplied = errors.New("优化建议已应用")
	// ErrStepNotFound 步骤不存在
	ErrStepNotFound = errors.New("步骤不存在")
	// ErrDuplicateStep 步骤 ID 重复
	ErrDuplicateStep = errors.New("步骤 ID 重复")
	// ErrGroupNotFound 并行组不存在
	ErrGroupNotFound = errors.New("并行组不存在")
	// ErrInvalidEdit 无法识别的编辑操作
	ErrInvalidEdit = errors.New("无效的编辑操作")
)

// ValidationError 验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors 一组验证错误，errors.Is(err, ErrValidation) 为真
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is 支持 errors.Is(err, ErrValidation)
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields 返回出错字段列表
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, v := range e {
		fields = append(fields, v.Field)
	}
	return fields
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}
