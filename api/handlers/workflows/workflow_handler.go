package workflows

import (
	"context"
	"net/http"
	"strconv"

	response "flowbuilder/api/handlers/common"
	workflow "flowbuilder/internal/workflow"

	"github.com/gin-gonic/gin"
)

// WorkflowHandler 工作流管理 Handler
type WorkflowHandler struct {
	service      *workflow.Service
	historyLimit int
}

// NewWorkflowHandler 创建 WorkflowHandler 实例
func NewWorkflowHandler(service *workflow.Service, historyLimit int) *WorkflowHandler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &WorkflowHandler{service: service, historyLimit: historyLimit}
}

// ListWorkflows 查询工作流列表
// @Summary 查询工作流列表
// @Tags Workflows
// @Produce json
// @Param status query string false "状态过滤 draft/active/paused"
// @Param sort query string false "排序字段，前缀 - 表示倒序"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} workflow.ListResponse
// @Router /api/workflows [get]
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	req := &workflow.ListRequest{
		Status: workflow.Status(c.Query("status")),
		Sort:   c.Query("sort"),
	}
	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil {
			req.Page = p
		}
	}
	if pageSize := c.Query("page_size"); pageSize != "" {
		if ps, err := strconv.Atoi(pageSize); err == nil {
			req.PageSize = ps
		}
	}

	resp, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetWorkflow 查询单个工作流（含最近执行历史与优化建议）
// @Summary 查询工作流详情
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} workflow.Workflow
// @Failure 404 {object} response.ErrorResponse
// @Router /api/workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	wf, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, wf)
}

// CreateWorkflow 创建工作流
// @Summary 创建工作流（draft）
// @Tags Workflows
// @Accept json
// @Produce json
// @Param request body workflow.CreateRequest true "工作流创建参数"
// @Success 201 {object} workflow.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Router /api/workflows [post]
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req workflow.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	wf, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, wf)
}

// UpdateWorkflow 更新工作流
// @Summary 更新工作流
// @Tags Workflows
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param request body workflow.UpdateRequest true "更新参数"
// @Success 200 {object} workflow.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/workflows/{id} [put]
func (h *WorkflowHandler) UpdateWorkflow(c *gin.Context) {
	var req workflow.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	wf, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow 删除工作流
// @Summary 删除工作流
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/workflows/{id} [delete]
func (h *WorkflowHandler) DeleteWorkflow(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "工作流删除成功"})
}

// ActivateWorkflow 激活工作流（激活前做完整验证）
// @Summary 激活工作流
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} WorkflowResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/workflows/{id}/activate [post]
func (h *WorkflowHandler) ActivateWorkflow(c *gin.Context) {
	h.changeStatus(c, h.service.Activate, "工作流已激活")
}

// PauseWorkflow 暂停工作流
// @Summary 暂停工作流
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} WorkflowResponse
// @Router /api/workflows/{id}/pause [post]
func (h *WorkflowHandler) PauseWorkflow(c *gin.Context) {
	h.changeStatus(c, h.service.Pause, "工作流已暂停")
}

// DraftWorkflow 退回草稿
// @Summary 工作流退回草稿
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} WorkflowResponse
// @Router /api/workflows/{id}/draft [post]
func (h *WorkflowHandler) DraftWorkflow(c *gin.Context) {
	h.changeStatus(c, h.service.Draft, "工作流已退回草稿")
}

func (h *WorkflowHandler) changeStatus(c *gin.Context, fn func(ctx context.Context, id string) (*workflow.Workflow, error), message string) {
	wf, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkflowResponse{Success: true, Message: message, Workflow: wf})
}

// ValidateWorkflow 验证已保存的工作流定义
// @Summary 验证工作流定义
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} ValidateResponse
// @Router /api/workflows/{id}/validate [post]
func (h *WorkflowHandler) ValidateWorkflow(c *gin.Context) {
	errs, err := h.service.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, ValidateResponse{Valid: len(errs) == 0, Errors: errs})
}

// GetPlan 查询执行计划
// @Summary 查询工作流执行计划
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} workflow.Plan
// @Failure 400 {object} response.ErrorResponse
// @Router /api/workflows/{id}/plan [get]
func (h *WorkflowHandler) GetPlan(c *gin.Context) {
	plan, err := h.service.Plan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// GetHistory 查询最近的执行记录
// @Summary 查询执行历史
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Param limit query int false "条数"
// @Success 200 {object} HistoryResponse
// @Router /api/workflows/{id}/history [get]
func (h *WorkflowHandler) GetHistory(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "limit 必须是非负整数")
			return
		}
		limit = n
	}

	workflowID := c.Param("id")
	records, err := h.service.History(c.Request.Context(), workflowID, limit)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	if records == nil {
		records = []workflow.ExecutionRecord{}
	}

	c.JSON(http.StatusOK, HistoryResponse{WorkflowID: workflowID, Records: records})
}

// GetWorkflowStats 获取工作流统计
// @Summary 获取工作流统计
// @Tags Workflows
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} workflow.Stats
// @Router /api/workflows/{id}/stats [get]
func (h *WorkflowHandler) GetWorkflowStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
