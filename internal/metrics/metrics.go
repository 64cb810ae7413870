package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowbuilder_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 工作流运行指标
var (
	// WorkflowRunsTotal 工作流运行总数
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_workflow_runs_total",
			Help: "工作流运行总数",
		},
		[]string{"status", "reason"},
	)

	// WorkflowRunDuration 工作流运行耗时（秒）
	WorkflowRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowbuilder_workflow_run_duration_seconds",
			Help:    "工作流运行耗时分布",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// WorkflowRunsRunning 正在运行的工作流数量
	WorkflowRunsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowbuilder_workflow_runs_running",
			Help: "正在运行的工作流数量",
		},
	)

	// WorkflowStepDispatchesTotal 步骤调度总数
	WorkflowStepDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_workflow_step_dispatches_total",
			Help: "步骤调度总数",
		},
		[]string{"status", "error_kind"},
	)

	// WorkflowStepDuration 步骤耗时（秒）
	WorkflowStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowbuilder_workflow_step_duration_seconds",
			Help:    "步骤执行耗时分布",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// WorkflowStepRetriesTotal 步骤重试次数
	WorkflowStepRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowbuilder_workflow_step_retries_total",
			Help: "步骤重试总次数",
		},
	)

	// WorkflowValidationFailuresTotal 定义验证失败次数
	WorkflowValidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowbuilder_workflow_validation_failures_total",
			Help: "工作流定义验证失败次数",
		},
	)
)

// 队列与历史指标
var (
	// QueueEnqueuedTotal 入队任务数
	QueueEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_queue_enqueued_total",
			Help: "入队任务总数",
		},
		[]string{"task_type", "result"},
	)

	// HistoryAppendsTotal 执行记录追加次数
	HistoryAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_history_appends_total",
			Help: "执行记录追加次数",
		},
		[]string{"result"},
	)

	// AdvisoryRequestsTotal 优化分析请求数
	AdvisoryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowbuilder_advisory_requests_total",
			Help: "优化分析请求总数",
		},
		[]string{"analyzer", "result"},
	)

	// WSConnections WebSocket 连接数
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowbuilder_ws_connections",
			Help: "当前 WebSocket 连接数",
		},
	)

	// DBConnections 数据库连接池状态
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowbuilder_db_connections",
			Help: "数据库连接池状态",
		},
		[]string{"state"},
	)
)

// 系统指标
var (
	// BuildInfo 构建信息
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowbuilder_build_info",
			Help: "构建信息",
		},
		[]string{"version", "go_version"},
	)
)

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
