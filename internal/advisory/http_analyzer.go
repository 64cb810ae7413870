package advisory

import (
	"context"
	"fmt"
	"time"

	"flowbuilder/pkg/httputil"
)

// HTTPAnalyzer 通过 JSON POST 调用外部分析服务
type HTTPAnalyzer struct {
	endpoint string
	client   *httputil.Client
}

// NewHTTPAnalyzer 创建 HTTP 分析器
func NewHTTPAnalyzer(endpoint, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint: endpoint,
		client: httputil.NewClient(
			httputil.WithTimeout(timeout),
			httputil.WithBearerToken(apiKey),
			httputil.WithRetries(2, 500*time.Millisecond),
		),
	}
}

// Analyze 实现 Analyzer
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req *Request) (*Report, error) {
	var report Report
	if err := a.client.PostJSON(ctx, a.endpoint, req, &report); err != nil {
		return nil, fmt.Errorf("调用分析服务失败: %w", err)
	}
	if report.HealthStatus == "" && len(report.Recommendations) == 0 {
		return nil, ErrEmptyReport
	}
	return &report, nil
}
