package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"flowbuilder/internal/worker/tasks"
	workflow "flowbuilder/internal/workflow"

	"github.com/hibiken/asynq"
	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	called  bool
	payload tasks.RunWorkflowPayload
	retErr  error
}

func (f *fakeRunner) RunExecution(ctx context.Context, payload tasks.RunWorkflowPayload) error {
	f.called = true
	f.payload = payload
	return f.retErr
}

func runTask(t *testing.T, p tasks.RunWorkflowPayload) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(tasks.TypeRunWorkflow, payload)
}

func TestWorkflowHandlerHandleRunWorkflow_Success(t *testing.T) {
	runner := &fakeRunner{}
	h := NewWorkflowHandler(runner, zaptest.NewLogger(t))
	task := runTask(t, tasks.RunWorkflowPayload{RunID: "run-1", WorkflowID: "wf-1", Input: map[string]any{"k": "v"}})
	if err := h.HandleRunWorkflow(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !runner.called || runner.payload.RunID != "run-1" || runner.payload.Input["k"] != "v" {
		t.Fatalf("runner not invoked correctly: called=%v payload=%+v", runner.called, runner.payload)
	}
}

func TestWorkflowHandlerHandleRunWorkflow_RetryableError(t *testing.T) {
	runner := &fakeRunner{retErr: workflow.ErrConflict}
	h := NewWorkflowHandler(runner, zaptest.NewLogger(t))
	err := h.HandleRunWorkflow(context.Background(), runTask(t, tasks.RunWorkflowPayload{RunID: "run-2", WorkflowID: "wf-1"}))
	if !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("conflict should be retried")
	}
}

func TestWorkflowHandlerHandleRunWorkflow_PermanentErrors(t *testing.T) {
	for _, cause := range []error{workflow.ErrNotFound, workflow.ErrWorkflowPaused, workflow.ErrWorkflowNotActive, workflow.ErrValidation} {
		runner := &fakeRunner{retErr: cause}
		h := NewWorkflowHandler(runner, zaptest.NewLogger(t))
		err := h.HandleRunWorkflow(context.Background(), runTask(t, tasks.RunWorkflowPayload{RunID: "run-3", WorkflowID: "wf-1"}))
		if !errors.Is(err, cause) || !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("expected %v wrapped with SkipRetry, got %v", cause, err)
		}
	}
}

func TestWorkflowHandlerHandleRunWorkflow_InvalidPayload(t *testing.T) {
	runner := &fakeRunner{}
	h := NewWorkflowHandler(runner, zaptest.NewLogger(t))
	task := asynq.NewTask(tasks.TypeRunWorkflow, []byte("not-json"))
	if err := h.HandleRunWorkflow(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for invalid payload, got %v", err)
	}
	if err := h.HandleRunWorkflow(context.Background(), runTask(t, tasks.RunWorkflowPayload{RunID: "run-4"})); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for missing workflow id, got %v", err)
	}
	if runner.called {
		t.Fatalf("runner should not be called when payload invalid")
	}
}
