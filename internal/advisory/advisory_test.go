package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flowbuilder/internal/agent"
	workflow "flowbuilder/internal/workflow"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	wf      *workflow.Workflow
	records []workflow.ExecutionRecord
	stored  []workflow.Suggestion
	limit   int
}

func (f *fakeSource) GetDefinition(ctx context.Context, id string) (*workflow.Workflow, error) {
	if f.wf == nil || f.wf.ID != id {
		return nil, workflow.ErrNotFound
	}
	return f.wf, nil
}

func (f *fakeSource) History(ctx context.Context, id string, n int) ([]workflow.ExecutionRecord, error) {
	f.limit = n
	return f.records, nil
}

func (f *fakeSource) StoreSuggestions(ctx context.Context, workflowID string, items []workflow.Suggestion) ([]workflow.Suggestion, error) {
	for i := range items {
		items[i].ID = workflowID + "-s" + string(rune('0'+i))
		items[i].WorkflowID = workflowID
	}
	f.stored = append(f.stored, items...)
	return items, nil
}

func sampleSource() *fakeSource {
	return &fakeSource{
		wf: &workflow.Workflow{
			ID:     "wf-1",
			Name:   "sample",
			Status: workflow.StatusActive,
			Steps:  []workflow.Step{{ID: "a", Agent: agent.Ref{ID: "writer"}}},
		},
		records: []workflow.ExecutionRecord{
			{ID: "run-1", WorkflowID: "wf-1", Status: workflow.RunSuccess, DurationMs: 1200},
		},
	}
}

func TestHTTPAnalyzerPostsDefinitionAndHistory(t *testing.T) {
	var received Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Report{
			HealthStatus:     HealthWarning,
			PerformanceScore: 72,
			Bottlenecks:      []Bottleneck{{StepID: "a", AvgDurationMs: 1200, Description: "slow"}},
			Recommendations: []Recommendation{
				{Priority: "high", Title: "设置超时", Recommendation: "为步骤 a 设置 timeout_ms"},
			},
		})
	}))
	defer srv.Close()

	analyzer := NewHTTPAnalyzer(srv.URL, "secret", 5*time.Second)
	src := sampleSource()
	report, err := analyzer.Analyze(context.Background(), &Request{Workflow: src.wf, History: src.records})
	require.NoError(t, err)
	require.Equal(t, HealthWarning, report.HealthStatus)
	require.Len(t, report.Recommendations, 1)

	require.Equal(t, "wf-1", received.Workflow.ID)
	require.Len(t, received.History, 1)
}

func TestHTTPAnalyzerEmptyReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPAnalyzer(srv.URL, "", time.Second).Analyze(context.Background(), &Request{})
	require.ErrorIs(t, err, ErrEmptyReport)
}

type fakeChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestOpenAIAnalyzerParsesJSONReport(t *testing.T) {
	chat := &fakeChat{content: `{"health_status":"healthy","performance_score":90,"recommendations":[{"priority":"low","title":"t"}]}`}
	analyzer := &OpenAIAnalyzer{client: chat, model: "test-model"}

	src := sampleSource()
	report, err := analyzer.Analyze(context.Background(), &Request{Workflow: src.wf})
	require.NoError(t, err)
	require.Equal(t, HealthHealthy, report.HealthStatus)
	require.InDelta(t, 90, report.PerformanceScore, 0.001)

	require.Equal(t, "test-model", chat.req.Model)
	require.NotNil(t, chat.req.ResponseFormat)
	require.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
	require.Contains(t, chat.req.Messages[1].Content, `"wf-1"`)
}

func TestOpenAIAnalyzerErrors(t *testing.T) {
	_, err := (&OpenAIAnalyzer{client: &fakeChat{content: "  "}}).Analyze(context.Background(), &Request{})
	require.ErrorIs(t, err, ErrEmptyReport)

	_, err = (&OpenAIAnalyzer{client: &fakeChat{content: "not json"}}).Analyze(context.Background(), &Request{})
	require.Error(t, err)

	_, err = (&OpenAIAnalyzer{client: &fakeChat{err: errors.New("boom")}}).Analyze(context.Background(), &Request{})
	require.Error(t, err)

	_, err = NewOpenAIAnalyzer(OpenAIConfig{})
	require.Error(t, err)
}

func TestBridgeStoresRecommendationsUnapplied(t *testing.T) {
	src := sampleSource()
	analyzer := AnalyzerFunc(func(ctx context.Context, req *Request) (*Report, error) {
		require.Len(t, req.History, 1)
		return &Report{
			HealthStatus: HealthCritical,
			Recommendations: []Recommendation{
				{Priority: "critical", Title: "拆分步骤"},
				{Priority: "bogus", Title: "未知优先级"},
			},
		}, nil
	})

	bridge := NewBridge("test", analyzer, src, 20)
	advice, err := bridge.Advise(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Equal(t, 20, src.limit)
	require.Equal(t, HealthCritical, advice.Report.HealthStatus)
	require.Len(t, advice.Suggestions, 2)
	require.Equal(t, workflow.PriorityCritical, advice.Suggestions[0].Priority)
	require.Equal(t, workflow.PriorityMedium, advice.Suggestions[1].Priority)
	for _, s := range src.stored {
		require.False(t, s.Applied)
	}
}

func TestBridgePropagatesFailures(t *testing.T) {
	src := sampleSource()
	failing := AnalyzerFunc(func(ctx context.Context, req *Request) (*Report, error) {
		return nil, errors.New("unavailable")
	})
	bridge := NewBridge("test", failing, src, 0)

	_, err := bridge.Advise(context.Background(), "wf-1")
	require.Error(t, err)
	require.Empty(t, src.stored)

	_, err = bridge.Advise(context.Background(), "missing")
	require.ErrorIs(t, err, workflow.ErrNotFound)
}
