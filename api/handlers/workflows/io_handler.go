package workflows

import (
	"io"
	"net/http"
	"strings"

	response "flowbuilder/api/handlers/common"
	workflow "flowbuilder/internal/workflow"

	"github.com/gin-gonic/gin"
)

// maxImportSize 导入文件大小上限
const maxImportSize = 10 << 20

// IOHandler 工作流导入导出 Handler
type IOHandler struct {
	io *workflow.WorkflowIO
}

// NewIOHandler 创建 IOHandler 实例
func NewIOHandler(wio *workflow.WorkflowIO) *IOHandler {
	return &IOHandler{io: wio}
}

// ExportWorkflow 导出单个工作流定义
// @Summary 导出工作流
// @Tags IO
// @Produce application/json,application/x-yaml
// @Param id path string true "工作流 ID"
// @Param format query string false "json 或 yaml"
// @Router /api/workflows/{id}/export [get]
func (h *IOHandler) ExportWorkflow(c *gin.Context) {
	format, err := workflow.ParseFormat(c.Query("format"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	result, err := h.io.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	writeExport(c, result)
}

// BatchExport 批量导出
// @Summary 批量导出工作流
// @Tags IO
// @Accept json
// @Param request body BatchExportRequest true "工作流 ID 列表"
// @Router /api/workflows/export [post]
func (h *IOHandler) BatchExport(c *gin.Context) {
	var req BatchExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	format, err := workflow.ParseFormat(req.Format)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	result, err := h.io.BatchExport(c.Request.Context(), req.IDs, format)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	writeExport(c, result)
}

// ImportWorkflows 导入工作流，结果一律为 draft
// 格式由 format 参数或 Content-Type 决定
// @Summary 导入工作流
// @Tags IO
// @Accept application/json,application/x-yaml
// @Produce json
// @Param format query string false "json 或 yaml"
// @Param prefix query string false "名称前缀"
// @Success 200 {object} workflow.ImportResult
// @Router /api/workflows/import [post]
func (h *IOHandler) ImportWorkflows(c *gin.Context) {
	rawFormat := c.Query("format")
	if rawFormat == "" && strings.Contains(c.ContentType(), "yaml") {
		rawFormat = string(workflow.FormatYAML)
	}
	format, err := workflow.ParseFormat(rawFormat)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		response.BadRequest(c, "读取导入数据失败: "+err.Error())
		return
	}

	result, err := h.io.Import(c.Request.Context(), &workflow.ImportRequest{
		Data:       data,
		Format:     format,
		NamePrefix: c.Query("prefix"),
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func writeExport(c *gin.Context, result *workflow.ExportResult) {
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
