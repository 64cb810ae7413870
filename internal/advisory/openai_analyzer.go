package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `你是工作流性能分析服务。输入是一个工作流定义（steps / parallel_groups）和它的执行历史。
只输出一个 JSON 对象，字段如下：
{
  "health_status": "healthy" | "warning" | "critical",
  "performance_score": 0-100,
  "bottlenecks": [{"step_id": "", "avg_duration_ms": 0, "description": ""}],
  "error_patterns": [{"step_id": "", "pattern": "", "occurrences": 0}],
  "recommendations": [{"priority": "critical|high|medium|low", "title": "", "description": "", "recommendation": ""}],
  "predicted_improvements": {}
}`

// OpenAIConfig 大模型分析器配置
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// chatClient go-openai 客户端中用到的部分
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAnalyzer 把分析请求交给大模型，按 JSON 模式解析结果
type OpenAIAnalyzer struct {
	client      chatClient
	model       string
	temperature float32
}

// NewOpenAIAnalyzer 创建大模型分析器
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key 不能为空")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAnalyzer{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Analyze 实现 Analyzer
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req *Request) (*Report, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化分析请求失败: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("调用大模型失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReport
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyReport
	}

	var report Report
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("解析分析结果失败: %w", err)
	}
	return &report, nil
}
