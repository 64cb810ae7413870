package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowbuilder/internal/workflow/executor"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...HubOption) (*RunEventHub, string) {
	t.Helper()
	hub := NewRunEventHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), r.URL.Query().Get("workflow"), conn)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, workflowID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?workflow="+workflowID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) executor.RunEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event executor.RunEvent
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestRunEventHubDeliversToWorkflowSubscribers(t *testing.T) {
	hub, base := startHub(t, WithBacklog(nil))
	conn := dial(t, base, "wf-1")
	all := dial(t, base, AllWorkflows)
	require.Eventually(t, func() bool {
		return hub.ConnectedCount("wf-1") == 1 && hub.ConnectedCount(AllWorkflows) == 1
	}, time.Second, 10*time.Millisecond)

	hub.OnRunEvent(executor.RunEvent{Type: executor.EventRunStarted, WorkflowID: "wf-2", RunID: "run-x"})
	hub.OnRunEvent(executor.RunEvent{Type: executor.EventStepStarted, WorkflowID: "wf-1", RunID: "run-1", StepID: "a"})

	event := readEvent(t, conn)
	require.Equal(t, executor.EventStepStarted, event.Type)
	require.Equal(t, "a", event.StepID)
	require.False(t, event.Timestamp.IsZero())

	require.Equal(t, "wf-2", readEvent(t, all).WorkflowID)
	require.Equal(t, "wf-1", readEvent(t, all).WorkflowID)
}

func TestRunEventHubReplaysBacklog(t *testing.T) {
	hub, base := startHub(t, WithBacklog(NewMemoryBacklog(2)))

	hub.OnRunEvent(executor.RunEvent{Type: executor.EventRunStarted, WorkflowID: "wf-1", RunID: "run-1"})
	hub.OnRunEvent(executor.RunEvent{Type: executor.EventStepStarted, WorkflowID: "wf-1", RunID: "run-1", StepID: "a"})
	hub.OnRunEvent(executor.RunEvent{Type: executor.EventRunFinished, WorkflowID: "wf-1", RunID: "run-1"})

	require.Eventually(t, func() bool {
		recent, _ := hub.backlog.Recent(context.Background(), "wf-1")
		return len(recent) == 2
	}, time.Second, 10*time.Millisecond)

	conn := dial(t, base, "wf-1")
	require.Equal(t, executor.EventStepStarted, readEvent(t, conn).Type)
	require.Equal(t, executor.EventRunFinished, readEvent(t, conn).Type)
}

func TestRunEventHubUnregistersOnClose(t *testing.T) {
	hub, base := startHub(t)
	conn := dial(t, base, "wf-1")
	require.Eventually(t, func() bool { return hub.ConnectedCount("wf-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ConnectedCount("wf-1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryBacklogKeepsNewest(t *testing.T) {
	b := NewMemoryBacklog(2)
	ctx := context.Background()
	for _, p := range []string{"1", "2", "3"} {
		require.NoError(t, b.Append(ctx, "wf", []byte(p)))
	}
	recent, err := b.Recent(ctx, "wf")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("2"), []byte("3")}, recent)
}

func TestRedisBacklogKeyUsesConfiguredPrefix(t *testing.T) {
	require.Equal(t, "flowbuilder:run_events:wf-1", NewRedisBacklog(nil, "flowbuilder:", 0, 0).key("wf-1"))
	require.Equal(t, "app:run_events:wf-1", NewRedisBacklog(nil, "app", 0, 0).key("wf-1"))
}
