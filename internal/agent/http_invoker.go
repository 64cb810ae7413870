package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"flowbuilder/internal/logger"
	"flowbuilder/pkg/httputil"

	"go.uber.org/zap"
)

// HTTPInvoker 通过 HTTP 调用远端 Agent 服务
// POST {base_url}/agents/{id}/invoke
type HTTPInvoker struct {
	baseURL string
	client  *httputil.Client
}

// HTTPInvokerConfig HTTP 调用配置
type HTTPInvokerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// NewHTTPInvoker 创建 HTTP 调用器
// 传输层重试只覆盖连接错误和 5xx，步骤级重试由 RetryPolicy 决定
func NewHTTPInvoker(cfg HTTPInvokerConfig) *HTTPInvoker {
	return &HTTPInvoker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: httputil.NewClient(
			httputil.WithTimeout(cfg.Timeout),
			httputil.WithBearerToken(cfg.APIKey),
			httputil.WithRetries(cfg.Retries, 200*time.Millisecond),
		),
	}
}

// Invoke 实现 Invoker
func (h *HTTPInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if req.Agent.ID == "" {
		return nil, fmt.Errorf("agent id 不能为空")
	}

	endpoint := fmt.Sprintf("%s/agents/%s/invoke", h.baseURL, url.PathEscape(req.Agent.ID))
	start := time.Now()

	var resp Response
	if err := h.client.PostJSON(ctx, endpoint, req, &resp); err != nil {
		logger.WithContext(ctx).Warn("调用 Agent 失败",
			zap.String("agent_id", req.Agent.ID),
			zap.String("step_id", req.StepID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("调用 Agent %s 失败: %w", req.Agent.ID, err)
	}

	if resp.Status == "" {
		if resp.Error != "" {
			resp.Status = StatusFailure
		} else {
			resp.Status = StatusSuccess
		}
	}
	if resp.DurationMs == 0 {
		resp.DurationMs = time.Since(start).Milliseconds()
	}
	return &resp, nil
}
