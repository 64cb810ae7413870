package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
	Kind string
	Rank int
}

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:store_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("迁移 schema 失败: %v", err)
	}
	return db
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository[widget](setupStoreTestDB(t))
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, &widget{ID: "w1", Name: "one", Kind: "a", Rank: 3}))

	got, err := repo.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "one", got.Name)

	got.Name = "uno"
	got.Rank = 0
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "uno", got.Name)
	require.Equal(t, 0, got.Rank, "零值字段也应被更新")

	require.ErrorIs(t, repo.Update(ctx, &widget{ID: "missing"}), ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "w1"))
	_, err = repo.Get(ctx, "w1")
	require.True(t, errors.Is(err, ErrNotFound))
	require.ErrorIs(t, repo.Delete(ctx, "w1"), ErrNotFound)
}

func TestRepositoryListFilterSortPage(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository[widget](setupStoreTestDB(t))
	require.NoError(t, err)

	for i, kind := range []string{"a", "b", "a", "a", "b"} {
		require.NoError(t, repo.Create(ctx, &widget{ID: fmt.Sprintf("w%d", i), Kind: kind, Rank: i}))
	}

	items, total, err := repo.List(ctx, Query{Filters: map[string]any{"kind": "a"}, Sort: "-rank"})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Equal(t, []string{"w3", "w2", "w0"}, ids(items))

	items, total, err = repo.List(ctx, Query{Sort: "Kind,-rank", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Equal(t, []string{"w2", "w0"}, ids(items))

	_, _, err = repo.List(ctx, Query{Sort: "-password"})
	require.ErrorIs(t, err, ErrInvalidQuery)
	_, _, err = repo.List(ctx, Query{Filters: map[string]any{"1=1 OR kind": "a"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupStoreTestDB(t)
	repo, err := NewRepository[widget](db)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Transaction(ctx, db, func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(ctx, &widget{ID: "tx1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.Get(ctx, "tx1")
	require.ErrorIs(t, err, ErrNotFound)
}

func ids(items []widget) []string {
	out := make([]string, 0, len(items))
	for _, w := range items {
		out = append(out, w.ID)
	}
	return out
}
