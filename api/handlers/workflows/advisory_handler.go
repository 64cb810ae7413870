package workflows

import (
	"net/http"

	response "flowbuilder/api/handlers/common"
	"flowbuilder/internal/advisory"
	workflow "flowbuilder/internal/workflow"

	"github.com/gin-gonic/gin"
)

// AdvisoryHandler 优化建议 Handler
type AdvisoryHandler struct {
	bridge  *advisory.Bridge
	service *workflow.Service
}

// NewAdvisoryHandler 创建 AdvisoryHandler，bridge 为 nil 表示未配置分析服务
func NewAdvisoryHandler(bridge *advisory.Bridge, service *workflow.Service) *AdvisoryHandler {
	return &AdvisoryHandler{bridge: bridge, service: service}
}

// Advise 请求外部服务分析工作流，建议保存为未应用状态
// @Summary 请求优化分析
// @Tags Suggestions
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} advisory.Advice
// @Failure 503 {object} response.ErrorResponse
// @Router /api/workflows/{id}/advise [post]
func (h *AdvisoryHandler) Advise(c *gin.Context) {
	if h.bridge == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.ErrorResponse{Success: false, Code: response.CodeUnavailable, Message: "未配置优化分析服务"})
		return
	}

	advice, err := h.bridge.Advise(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, advice)
}

// ListSuggestions 查询工作流的优化建议
// @Summary 查询优化建议
// @Tags Suggestions
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} SuggestionListResponse
// @Router /api/workflows/{id}/suggestions [get]
func (h *AdvisoryHandler) ListSuggestions(c *gin.Context) {
	workflowID := c.Param("id")
	if _, err := h.service.GetDefinition(c.Request.Context(), workflowID); err != nil {
		response.WriteError(c, err)
		return
	}

	items, err := h.service.ListSuggestions(c.Request.Context(), workflowID)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	if items == nil {
		items = []workflow.Suggestion{}
	}

	c.JSON(http.StatusOK, SuggestionListResponse{WorkflowID: workflowID, Suggestions: items})
}

// ApplySuggestion 应用建议
// 建议本身只是描述，调用方需要给出具体的步骤编辑
// @Summary 应用优化建议
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param suggestionId path string true "建议 ID"
// @Param request body ApplySuggestionRequest true "步骤编辑"
// @Success 200 {object} ApplySuggestionResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/workflows/{id}/suggestions/{suggestionId}/apply [post]
func (h *AdvisoryHandler) ApplySuggestion(c *gin.Context) {
	var req ApplySuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if req.Edit.Op == "" {
		response.BadRequest(c, "edit.op 不能为空")
		return
	}

	sug, wf, err := h.service.ApplySuggestion(c.Request.Context(), c.Param("id"), c.Param("suggestionId"), req.Edit)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApplySuggestionResponse{Suggestion: sug, Workflow: wf})
}
