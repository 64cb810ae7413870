package common

import (
	"errors"
	"net/http"

	"flowbuilder/internal/infra/queue"
	"flowbuilder/internal/logger"
	workflow "flowbuilder/internal/workflow"
	"flowbuilder/internal/workflow/executor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 错误码
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeValidation  = "VALIDATION_FAILED"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodePaused      = "WORKFLOW_PAUSED"
	CodeNotActive   = "WORKFLOW_NOT_ACTIVE"
	CodeApplied     = "SUGGESTION_APPLIED"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

// StatusFor 将领域错误映射为 HTTP 状态码与错误码
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrDuplicateStep),
		errors.Is(err, workflow.ErrInvalidEdit):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrStepNotFound),
		errors.Is(err, workflow.ErrGroupNotFound),
		errors.Is(err, workflow.ErrSuggestionNotFound),
		errors.Is(err, executor.ErrRunNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, workflow.ErrWorkflowPaused):
		return http.StatusConflict, CodePaused
	case errors.Is(err, workflow.ErrWorkflowNotActive):
		return http.StatusConflict, CodeNotActive
	case errors.Is(err, workflow.ErrSuggestionApplied):
		return http.StatusConflict, CodeApplied
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, queue.ErrDuplicateTask):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, executor.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteError 输出统一错误响应，验证错误附带字段列表
func WriteError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	resp := ErrorResponse{Success: false, Code: code, Message: err.Error()}

	var verrs workflow.ValidationErrors
	if errors.As(err, &verrs) {
		for _, v := range verrs {
			resp.Fields = append(resp.Fields, FieldError{Field: v.Field, Message: v.Message})
		}
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("请求处理失败",
			zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: CodeBadRequest, Message: message})
}
