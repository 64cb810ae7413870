package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flowbuilder/internal/agent"
	"flowbuilder/internal/config"
	"flowbuilder/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestContainer(t *testing.T, mutate ...func(*config.Config)) *AppContainer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_setup_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, workflow.AutoMigrate(db))

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: gin.TestMode},
		Runner:  config.RunnerConfig{StepBudget: 100, StepTimeoutSeconds: 2, RunTimeoutSeconds: 5, MaxConcurrency: 2, EventBufferPerClient: 8},
		History: config.HistoryConfig{Backend: "memory", DefaultLimit: 10},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	container, err := InitContainer(db, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(container.Close)
	return container
}

func TestHealthAndReady(t *testing.T) {
	router := SetupRouter(newTestContainer(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ready", resp.Status)
	require.Equal(t, "disabled", resp.Redis)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestInitContainerWithoutRedis(t *testing.T) {
	c := newTestContainer(t)

	require.Nil(t, c.QueueClient)
	require.Nil(t, c.WorkerServer)
	require.Nil(t, c.Advisory)
	require.NotNil(t, c.Engine)
	require.IsType(t, &workflow.MemoryGuard{}, c.Guard)
}

func TestInitContainerRejectsUnknownBackends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	_, err = InitContainer(db, nil, &config.Config{History: config.HistoryConfig{Backend: "s3"}})
	require.Error(t, err)

	_, err = InitContainer(db, nil, &config.Config{Advisory: config.AdvisoryConfig{Provider: "http"}})
	require.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	router := SetupRouter(newTestContainer(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSwaggerDocServed(t *testing.T) {
	router := SetupRouter(newTestContainer(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"/api/workflows/{id}/runs"`)
	require.Contains(t, w.Body.String(), "FlowBuilder API")
}

func TestCreateAndRunThroughRouter(t *testing.T) {
	router := SetupRouter(newTestContainer(t))

	body, err := json.Marshal(workflow.CreateRequest{
		Name: "单步",
		Steps: []workflow.Step{{
			ID:            "only",
			Name:          "only",
			Agent:         agent.Ref{ID: "writer"},
			ExecutionMode: workflow.ModeSequential,
			Condition:     workflow.Condition{Type: workflow.ConditionNone},
		}},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/workflows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var wf workflow.Workflow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wf))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/workflows/"+wf.ID+"/plan", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs/unknown/cancel", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := SetupRouter(newTestContainer(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
