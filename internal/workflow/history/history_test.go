package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	workflow "flowbuilder/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func record(id string, at time.Time, status string) *workflow.ExecutionRecord {
	return &workflow.ExecutionRecord{
		ID:         id,
		ExecutedAt: at,
		DurationMs: 100,
		Status:     status,
		StepResults: []workflow.StepResult{
			{StepID: "a", AgentID: "agent-a", Status: status, DurationMs: 100, Attempts: 1},
		},
	}
}

// exerciseStore 所有实现共享的行为检查
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// 乱序追加，读取时按时间从旧到新
	require.NoError(t, store.Append(ctx, "wf", record("r2", base.Add(2*time.Second), workflow.RunFailure)))
	require.NoError(t, store.Append(ctx, "wf", record("r1", base.Add(1*time.Second), workflow.RunSuccess)))
	require.NoError(t, store.Append(ctx, "wf", record("r3", base.Add(3*time.Second), workflow.RunSuccess)))
	require.NoError(t, store.Append(ctx, "other", record("x1", base, workflow.RunSuccess)))

	// 重复追加同一运行 ID 不产生第二条记录
	require.NoError(t, store.Append(ctx, "wf", record("r3", base.Add(4*time.Second), workflow.RunSuccess)))

	all, err := store.Recent(ctx, "wf", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2", "r3"}, recordIDs(all))
	require.Equal(t, "wf", all[0].WorkflowID)
	require.Len(t, all[0].StepResults, 1)

	last2, err := store.Recent(ctx, "wf", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"r2", "r3"}, recordIDs(last2))

	ok, err := store.Exists(ctx, "wf", "r2")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Exists(ctx, "wf", "nope")
	require.NoError(t, err)
	require.False(t, ok)

	stats := workflow.ComputeStats(all)
	require.EqualValues(t, 3, stats.TotalExecutions)
	require.EqualValues(t, 2, stats.SuccessfulExecutions)
	require.EqualValues(t, 1, stats.FailedExecutions)
	require.InDelta(t, 100.0, stats.AverageDurationMs, 0.001)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, "wf", record(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Second), workflow.RunSuccess)))
	}
	recs, err := store.Recent(ctx, "wf", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"r2", "r3"}, recordIDs(recs))
}

func TestGormStore(t *testing.T) {
	dsn := fmt.Sprintf("file:history_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	if err := db.AutoMigrate(&workflow.ExecutionRecord{}); err != nil {
		t.Fatalf("迁移 schema 失败: %v", err)
	}
	exerciseStore(t, NewGormStore(db, 0))

	// 裁剪
	pruned := NewGormStore(db, 1)
	require.NoError(t, pruned.Append(context.Background(), "wf", record("r9", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), workflow.RunSuccess)))
	recs, err := pruned.Recent(context.Background(), "wf", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"r9"}, recordIDs(recs))
}

func TestRedisStoreKeysShareHashSlot(t *testing.T) {
	s := NewRedisStore(nil, "flowbuilder:", 0, time.Minute)
	require.Equal(t, "flowbuilder:history:{wf-1}", s.listKey("wf-1"))
	require.Equal(t, "flowbuilder:history:{wf-1}:run:r1", s.runKey("wf-1", "r1"))
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis 不可用，跳过集成测试")
	}
	defer client.Close()

	prefix := fmt.Sprintf("test-%d", time.Now().UnixNano())
	exerciseStore(t, NewRedisStore(client, prefix, 0, time.Minute))

	keys, _ := client.Keys(ctx, prefix+":*").Result()
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func recordIDs(records []workflow.ExecutionRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
