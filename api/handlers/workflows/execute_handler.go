package workflows

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	response "flowbuilder/api/handlers/common"
	"flowbuilder/internal/logger"
	"flowbuilder/internal/notification"
	workflow "flowbuilder/internal/workflow"
	"flowbuilder/internal/workflow/executor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WorkflowExecuteHandler 工作流运行 Handler
type WorkflowExecuteHandler struct {
	engine   *executor.Engine
	service  *workflow.Service
	hub      *notification.RunEventHub
	upgrader websocket.Upgrader
}

// NewWorkflowExecuteHandler 创建 WorkflowExecuteHandler 实例，hub 为 nil 时不提供事件订阅
func NewWorkflowExecuteHandler(engine *executor.Engine, service *workflow.Service, hub *notification.RunEventHub) *WorkflowExecuteHandler {
	return &WorkflowExecuteHandler{
		engine:  engine,
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// bindOptionalJSON 请求体可以为空
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return false
	}
	return true
}

// RunWorkflow 运行工作流
// 默认同步执行并返回执行记录；async=true 时入队并立即返回运行 ID
// @Summary 运行工作流
// @Tags Runs
// @Accept json
// @Produce json
// @Param id path string true "工作流 ID"
// @Param async query bool false "是否异步执行"
// @Param request body RunWorkflowRequest false "运行输入"
// @Success 200 {object} workflow.ExecutionRecord
// @Success 202 {object} executor.SubmitResult
// @Failure 409 {object} response.ErrorResponse
// @Router /api/workflows/{id}/runs [post]
func (h *WorkflowExecuteHandler) RunWorkflow(c *gin.Context) {
	var req RunWorkflowRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	workflowID := c.Param("id")
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		result, err := h.engine.Submit(c.Request.Context(), workflowID, req.Input)
		if err != nil {
			response.WriteError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, result)
		return
	}

	record, err := h.engine.Execute(c.Request.Context(), workflowID, req.Input)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListRunning 查询本实例上运行中的运行
// @Summary 查询运行中的运行
// @Tags Runs
// @Produce json
// @Param id path string true "工作流 ID"
// @Success 200 {object} RunningRunsResponse
// @Router /api/workflows/{id}/runs [get]
func (h *WorkflowExecuteHandler) ListRunning(c *gin.Context) {
	workflowID := c.Param("id")
	runIDs := h.engine.RunningRuns(workflowID)
	if runIDs == nil {
		runIDs = []string{}
	}
	c.JSON(http.StatusOK, RunningRunsResponse{WorkflowID: workflowID, RunIDs: runIDs})
}

// CancelRun 取消运行
// soft 取消不再调度新步骤，hard 取消同时中断正在执行的步骤
// @Summary 取消运行
// @Tags Runs
// @Accept json
// @Produce json
// @Param runId path string true "运行 ID"
// @Param request body CancelRunRequest false "取消方式"
// @Success 202 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/runs/{runId}/cancel [post]
func (h *WorkflowExecuteHandler) CancelRun(c *gin.Context) {
	var req CancelRunRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	runID := c.Param("runId")
	if err := h.engine.Cancel(runID, req.Hard); err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.APIResponse{Success: true, Message: "已请求取消", Data: gin.H{"run_id": runID, "hard": req.Hard}})
}

// StreamEvents 通过 WebSocket 订阅工作流的运行事件
// @Summary 订阅运行事件
// @Tags Runs
// @Param id path string true "工作流 ID，* 表示全部"
// @Router /api/workflows/{id}/events [get]
func (h *WorkflowExecuteHandler) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.ErrorResponse{Success: false, Code: response.CodeUnavailable, Message: "运行事件推送未启用"})
		return
	}

	workflowID := c.Param("id")
	if workflowID != notification.AllWorkflows {
		if _, err := h.service.GetDefinition(c.Request.Context(), workflowID); err != nil {
			response.WriteError(c, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	h.hub.Serve(c.Request.Context(), workflowID, conn)
}
