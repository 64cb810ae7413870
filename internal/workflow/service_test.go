package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeHistory struct {
	records map[string][]ExecutionRecord
}

func (f *fakeHistory) Recent(ctx context.Context, workflowID string, n int) ([]ExecutionRecord, error) {
	all := f.records[workflowID]
	if n > 0 && len(all) > n {
		return all[len(all)-n:], nil
	}
	return all, nil
}

func setupWorkflowServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:workflow_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("迁移 schema 失败: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *MemoryGuard, *fakeHistory) {
	t.Helper()
	guard := NewMemoryGuard()
	hist := &fakeHistory{records: make(map[string][]ExecutionRecord)}
	svc, err := NewService(setupWorkflowServiceTestDB(t), guard, hist, 10)
	require.NoError(t, err)
	return svc, guard, hist
}

func createSample(t *testing.T, svc *Service) *Workflow {
	t.Helper()
	a := seqStep("a", 0)
	a.Condition = Condition{Type: ConditionIf, Predicate: `result.status == "success"`, ThenStep: "b", ElseStep: "c"}
	wf, err := svc.Create(context.Background(), &CreateRequest{
		Name:  "内容生成",
		Steps: []Step{a, seqStep("b", 1), seqStep("c", 2)},
	})
	require.NoError(t, err)
	return wf
}

func TestServiceCreateListAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	created := createSample(t, svc)
	require.Equal(t, StatusDraft, created.Status)
	require.Equal(t, 1, created.Version)

	_, err := svc.Create(ctx, &CreateRequest{Name: "  "})
	require.ErrorIs(t, err, ErrValidation)

	resp, err := svc.List(ctx, &ListRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Workflows, 1)

	resp, err = svc.List(ctx, &ListRequest{Status: StatusActive})
	require.NoError(t, err)
	require.EqualValues(t, 0, resp.Total)

	_, err = svc.List(ctx, &ListRequest{Sort: "-no_such_field"})
	require.ErrorIs(t, err, ErrValidation)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 3)
	require.Equal(t, "b", got.Steps[0].Condition.ThenStep)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceActivateValidates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	dangling := seqStep("a", 0)
	dangling.Condition = Condition{Type: ConditionIf, Predicate: "true", ThenStep: "ghost"}
	bad, err := svc.Create(ctx, &CreateRequest{Name: "bad", Steps: []Step{dangling}})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, bad.ID)
	require.ErrorIs(t, err, ErrValidation)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs.Fields(), "steps[0].condition.then_step")

	good := createSample(t, svc)
	activated, err := svc.Activate(ctx, good.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, activated.Status)

	paused, err := svc.Pause(ctx, good.ID)
	require.NoError(t, err)
	require.ErrorIs(t, paused.CheckRunnable(), ErrWorkflowPaused)
}

func TestServiceStepEditsBumpVersion(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)

	step, updated, err := svc.AddStep(ctx, wf.ID, Step{Name: "润色", Agent: seqStep("d", 0).Agent})
	require.NoError(t, err)
	require.NotEmpty(t, step.ID)
	require.Equal(t, 3, step.Order)
	require.Equal(t, 2, updated.Version)

	name := "审核"
	updated, err = svc.UpdateStep(ctx, wf.ID, "b", StepPatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, 3, updated.Version)

	_, err = svc.UpdateStep(ctx, wf.ID, "nope", StepPatch{Name: &name})
	require.ErrorIs(t, err, ErrStepNotFound)

	updated, err = svc.GroupSteps(ctx, wf.ID, "g1", "并行", "b", "c")
	require.NoError(t, err)
	require.Len(t, updated.ParallelGroups, 1)

	updated, err = svc.UngroupStep(ctx, wf.ID, "c")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, updated.ParallelGroups[0].StepIDs)

	reloaded, err := svc.GetDefinition(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, updated.Version, reloaded.Version)
	s, _ := reloaded.FindStep("b")
	require.Equal(t, "审核", s.Name)
}

func TestServiceRemoveStepCascades(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)

	report, updated, err := svc.RemoveStep(ctx, wf.ID, "c")
	require.NoError(t, err)
	require.Equal(t, "c", report.StepID)
	require.Len(t, report.Scrubbed, 1)
	require.Equal(t, "a", report.Scrubbed[0].StepID)
	require.Len(t, updated.Steps, 2)
	require.Empty(t, Validate(updated))
}

func TestServiceActiveWorkflowMustStayValid(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)
	_, err := svc.Activate(ctx, wf.ID)
	require.NoError(t, err)

	loop := Condition{Type: ConditionIf, Predicate: "true", ThenStep: "a", ElseStep: "a"}
	_, err = svc.UpdateStep(ctx, wf.ID, "a", StepPatch{Condition: &loop})
	require.ErrorIs(t, err, ErrValidation)

	reloaded, err := svc.GetDefinition(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Version)
	require.Equal(t, "b", reloaded.Steps[0].Condition.ThenStep)
}

func TestServiceRejectsEditWhileRunning(t *testing.T) {
	ctx := context.Background()
	svc, guard, _ := newTestService(t)
	wf := createSample(t, svc)

	release, err := guard.BeginRun(ctx, wf.ID, "run-1")
	require.NoError(t, err)

	_, _, err = svc.AddStep(ctx, wf.ID, seqStep("d", 3))
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, svc.Delete(ctx, wf.ID), ErrConflict)

	release()
	_, _, err = svc.AddStep(ctx, wf.ID, seqStep("d", 3))
	require.NoError(t, err)
}

func TestServiceHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _, hist := newTestService(t)
	wf := createSample(t, svc)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hist.records[wf.ID] = []ExecutionRecord{
		{ID: "r1", WorkflowID: wf.ID, ExecutedAt: base, DurationMs: 100, Status: RunSuccess},
		{ID: "r2", WorkflowID: wf.ID, ExecutedAt: base.Add(time.Minute), DurationMs: 300, Status: RunFailure, Reason: ReasonStepFailed},
	}

	stats, err := svc.Stats(ctx, wf.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalExecutions)
	require.EqualValues(t, 1, stats.FailedExecutions)
	require.InDelta(t, 200.0, stats.AverageDurationMs, 0.001)
	require.Equal(t, "2026-01-01T00:01:00Z", stats.LastExecutionAt)

	got, err := svc.Get(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, got.ExecutionHistory, 2)

	_, err = svc.History(ctx, "missing", 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceApplySuggestion(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)

	stored, err := svc.StoreSuggestions(ctx, wf.ID, []Suggestion{
		{Priority: "low", Title: "命名"},
		{Priority: "urgent", Title: "超时", Recommendation: "为 b 设置超时"},
		{Priority: "critical", Title: "失败率"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.Equal(t, PriorityMedium, stored[1].Priority)

	listed, err := svc.ListSuggestions(ctx, wf.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"失败率", "超时", "命名"}, []string{listed[0].Title, listed[1].Title, listed[2].Title})

	timeout := int64(30000)
	edit := StepEdit{Op: EditUpdate, StepID: "b", Patch: &StepPatch{TimeoutMs: &timeout}}
	sug, updated, err := svc.ApplySuggestion(ctx, wf.ID, stored[1].ID, edit)
	require.NoError(t, err)
	require.True(t, sug.Applied)
	require.NotNil(t, sug.Application)
	require.Equal(t, EditUpdate, sug.Application.Edit.Op)
	require.Contains(t, sug.Application.Diff, "+")
	require.True(t, strings.Contains(sug.Application.Diff, "timeout_ms: 30000"))
	require.Equal(t, 2, updated.Version)

	_, _, err = svc.ApplySuggestion(ctx, wf.ID, stored[1].ID, edit)
	require.ErrorIs(t, err, ErrSuggestionApplied)

	_, _, err = svc.ApplySuggestion(ctx, wf.ID, "missing", edit)
	require.ErrorIs(t, err, ErrSuggestionNotFound)

	// 编辑失败时建议保持未应用
	_, _, err = svc.ApplySuggestion(ctx, wf.ID, stored[0].ID, StepEdit{Op: EditRemove, StepID: "ghost"})
	require.ErrorIs(t, err, ErrStepNotFound)
	listed, err = svc.ListSuggestions(ctx, wf.ID)
	require.NoError(t, err)
	for _, s := range listed {
		if s.ID == stored[0].ID {
			require.False(t, s.Applied)
		}
	}
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)
	_, err := svc.StoreSuggestions(ctx, wf.ID, []Suggestion{{Title: "x"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, wf.ID))
	_, err = svc.GetDefinition(ctx, wf.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, wf.ID), ErrNotFound)

	left, err := svc.ListSuggestions(ctx, wf.ID)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestWorkflowIORoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	wf := createSample(t, svc)
	_, err := svc.GroupSteps(ctx, wf.ID, "g1", "", "b", "c")
	require.NoError(t, err)

	io := NewWorkflowIO(svc)
	for _, format := range []ExportFormat{FormatYAML, FormatJSON} {
		exported, err := io.Export(ctx, wf.ID, format)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(exported.Filename, "."+string(format)))

		result, err := io.Import(ctx, &ImportRequest{Data: exported.Data, Format: format, NamePrefix: "copy"})
		require.NoError(t, err)
		require.Equal(t, 1, result.Imported)

		imported, err := svc.GetDefinition(ctx, result.IDs[0])
		require.NoError(t, err)
		require.Equal(t, "copy_内容生成", imported.Name)
		require.Equal(t, StatusDraft, imported.Status)
		require.Len(t, imported.Steps, 3)
		require.Equal(t, []string{"b", "c"}, imported.ParallelGroups[0].StepIDs)
	}

	_, err = io.Import(ctx, &ImportRequest{Data: []byte("not: [valid"), Format: FormatYAML})
	require.ErrorIs(t, err, ErrValidation)
}
