package workflows

import (
	"net/http"

	response "flowbuilder/api/handlers/common"
	workflow "flowbuilder/internal/workflow"

	"github.com/gin-gonic/gin"
)

// StepHandler 步骤编辑 Handler
// 所有编辑都会递增工作流版本；active 工作流的编辑结果必须仍然通过验证
type StepHandler struct {
	service *workflow.Service
}

// NewStepHandler 创建 StepHandler 实例
func NewStepHandler(service *workflow.Service) *StepHandler {
	return &StepHandler{service: service}
}

// AddStep 追加步骤
// @Summary 追加步骤
// @Tags Steps
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param request body workflow.Step true "步骤定义，id 为空时自动生成"
// @Success 201 {object} StepResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/workflows/{id}/steps [post]
func (h *StepHandler) AddStep(c *gin.Context) {
	var step workflow.Step
	if err := c.ShouldBindJSON(&step); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	added, wf, err := h.service.AddStep(c.Request.Context(), c.Param("id"), step)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StepResponse{Step: added, Workflow: wf})
}

// UpdateStep 字段级更新步骤
// @Summary 更新步骤
// @Tags Steps
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param stepId path string true "步骤 ID"
// @Param request body workflow.StepPatch true "待更新字段"
// @Success 200 {object} StepResponse
// @Router /api/workflows/{id}/steps/{stepId} [patch]
func (h *StepHandler) UpdateStep(c *gin.Context) {
	var patch workflow.StepPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	stepID := c.Param("stepId")
	wf, err := h.service.UpdateStep(c.Request.Context(), c.Param("id"), stepID, patch)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	step, _ := wf.FindStep(stepID)
	c.JSON(http.StatusOK, StepResponse{Step: step, Workflow: wf})
}

// RemoveStep 删除步骤并清理对它的引用
// @Summary 删除步骤
// @Tags Steps
// @Produce json
// @Param id path string true "工作流 ID"
// @Param stepId path string true "步骤 ID"
// @Success 200 {object} RemoveStepResponse
// @Router /api/workflows/{id}/steps/{stepId} [delete]
func (h *StepHandler) RemoveStep(c *gin.Context) {
	report, wf, err := h.service.RemoveStep(c.Request.Context(), c.Param("id"), c.Param("stepId"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, RemoveStepResponse{Report: report, Workflow: wf})
}

// GroupSteps 把若干步骤放入同一个并行组
// @Summary 建立并行组
// @Tags Steps
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param request body GroupStepsRequest true "并行组"
// @Success 200 {object} workflow.Workflow
// @Router /api/workflows/{id}/groups [post]
func (h *StepHandler) GroupSteps(c *gin.Context) {
	var req GroupStepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	wf, err := h.service.GroupSteps(c.Request.Context(), c.Param("id"), req.GroupID, req.Name, req.StepIDs...)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, wf)
}

// UngroupStep 把步骤移出所在并行组
// @Summary 移出并行组
// @Tags Steps
// @Produce json
// @Param id path string true "工作流 ID"
// @Param stepId path string true "步骤 ID"
// @Success 200 {object} workflow.Workflow
// @Router /api/workflows/{id}/groups/{stepId} [delete]
func (h *StepHandler) UngroupStep(c *gin.Context) {
	wf, err := h.service.UngroupStep(c.Request.Context(), c.Param("id"), c.Param("stepId"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, wf)
}
