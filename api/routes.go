package api

import (
	"flowbuilder/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer, handlers *Handlers) {
	// 运行与分析接口开销较大，按端点限流
	limited := middleware.RateLimitByEndpoint(container.RateLimiter)

	api := router.Group("/api")
	registerWorkflowRoutes(api, handlers)
	registerStepRoutes(api, handlers)
	registerRunRoutes(api, handlers, limited)
	registerSuggestionRoutes(api, handlers, limited)
	registerIORoutes(api, handlers)
}

// registerWorkflowRoutes 工作流定义与生命周期
func registerWorkflowRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	workflowsGroup := apiGroup.Group("/workflows")
	{
		workflowsGroup.GET("", h.Workflow.ListWorkflows)
		workflowsGroup.POST("", h.Workflow.CreateWorkflow)
		workflowsGroup.GET("/:id", h.Workflow.GetWorkflow)
		workflowsGroup.PUT("/:id", h.Workflow.UpdateWorkflow)
		workflowsGroup.DELETE("/:id", h.Workflow.DeleteWorkflow)

		workflowsGroup.POST("/:id/activate", h.Workflow.ActivateWorkflow)
		workflowsGroup.POST("/:id/pause", h.Workflow.PauseWorkflow)
		workflowsGroup.POST("/:id/draft", h.Workflow.DraftWorkflow)
		workflowsGroup.POST("/:id/validate", h.Workflow.ValidateWorkflow)
		workflowsGroup.GET("/:id/plan", h.Workflow.GetPlan)

		workflowsGroup.GET("/:id/history", h.Workflow.GetHistory)
		workflowsGroup.GET("/:id/stats", h.Workflow.GetWorkflowStats)
	}
}

// registerStepRoutes 步骤与并行组编辑
func registerStepRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	workflowsGroup := apiGroup.Group("/workflows/:id")
	{
		workflowsGroup.POST("/steps", h.Step.AddStep)
		workflowsGroup.PATCH("/steps/:stepId", h.Step.UpdateStep)
		workflowsGroup.DELETE("/steps/:stepId", h.Step.RemoveStep)

		workflowsGroup.POST("/groups", h.Step.GroupSteps)
		workflowsGroup.DELETE("/groups/:stepId", h.Step.UngroupStep)
	}
}

// registerRunRoutes 运行、取消与事件推送
func registerRunRoutes(apiGroup *gin.RouterGroup, h *Handlers, limited gin.HandlerFunc) {
	apiGroup.POST("/workflows/:id/runs", limited, h.WfExecute.RunWorkflow)
	apiGroup.GET("/workflows/:id/runs", h.WfExecute.ListRunning)
	apiGroup.GET("/workflows/:id/events", h.WfExecute.StreamEvents)

	runs := apiGroup.Group("/runs")
	{
		runs.POST("/:runId/cancel", h.WfExecute.CancelRun)
	}
}

// registerSuggestionRoutes 优化建议
func registerSuggestionRoutes(apiGroup *gin.RouterGroup, h *Handlers, limited gin.HandlerFunc) {
	workflowsGroup := apiGroup.Group("/workflows/:id")
	{
		workflowsGroup.POST("/advise", limited, h.Advisory.Advise)
		workflowsGroup.GET("/suggestions", h.Advisory.ListSuggestions)
		workflowsGroup.POST("/suggestions/:suggestionId/apply", h.Advisory.ApplySuggestion)
	}
}

// registerIORoutes 导入导出
func registerIORoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	apiGroup.GET("/workflows/:id/export", h.IO.ExportWorkflow)
	apiGroup.POST("/workflows/export", h.IO.BatchExport)
	apiGroup.POST("/workflows/import", h.IO.ImportWorkflows)
}
