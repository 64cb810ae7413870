// Package store 提供基于 GORM 的通用实体存储：
// 按 ID 的增删改查、等值过滤、"-field" 降序排序、分页与事务。
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrInvalidQuery 过滤或排序字段不属于模型
	ErrInvalidQuery = errors.New("无效的查询条件")
)

// Query 列表查询条件
type Query struct {
	// Filters 字段 -> 值 的等值过滤，字段可以是列名或 Go 字段名
	Filters map[string]any
	// Sort 逗号分隔的字段，"-" 前缀表示降序，如 "-updated_at,name"
	Sort   string
	Limit  int
	Offset int
}

// Repository 泛型实体仓储
type Repository[T any] struct {
	db     *gorm.DB
	schema *schema.Schema
}

var schemaCache sync.Map

// NewRepository 创建仓储并解析模型 schema
func NewRepository[T any](db *gorm.DB) (*Repository[T], error) {
	sch, err := schema.Parse(new(T), &schemaCache, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("解析模型失败: %w", err)
	}
	if sch.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("模型 %s 缺少主键", sch.Name)
	}
	return &Repository[T]{db: db, schema: sch}, nil
}

// WithTx 返回绑定到事务的仓储副本
func (r *Repository[T]) WithTx(tx *gorm.DB) *Repository[T] {
	return &Repository[T]{db: tx, schema: r.schema}
}

// DB 返回底层连接
func (r *Repository[T]) DB() *gorm.DB {
	return r.db
}

// Create 创建实体
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("创建 %s 失败: %w", r.schema.Table, err)
	}
	return nil
}

// Update 按主键整体更新实体（包括零值字段）
func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	result := r.db.WithContext(ctx).Model(entity).Select("*").Omit(r.schema.PrioritizedPrimaryField.DBName).Updates(entity)
	if result.Error != nil {
		return fmt.Errorf("更新 %s 失败: %w", r.schema.Table, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 按主键删除
func (r *Repository[T]) Delete(ctx context.Context, id any) error {
	result := r.db.WithContext(ctx).Where(r.pkEq(id)).Delete(new(T))
	if result.Error != nil {
		return fmt.Errorf("删除 %s 失败: %w", r.schema.Table, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get 按主键查询
func (r *Repository[T]) Get(ctx context.Context, id any) (*T, error) {
	var out T
	if err := r.db.WithContext(ctx).Where(r.pkEq(id)).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询 %s 失败: %w", r.schema.Table, err)
	}
	return &out, nil
}

// GetForUpdate 在事务中加行锁查询（SQLite 会忽略锁子句）
func (r *Repository[T]) GetForUpdate(ctx context.Context, id any) (*T, error) {
	var out T
	tx := r.db.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := tx.Where(r.pkEq(id)).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询 %s 失败: %w", r.schema.Table, err)
	}
	return &out, nil
}

// List 按条件查询列表，返回结果与总数
func (r *Repository[T]) List(ctx context.Context, q Query) ([]T, int64, error) {
	tx := r.db.WithContext(ctx).Model(new(T))

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		column, err := r.column(k)
		if err != nil {
			return nil, 0, err
		}
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: column}, Value: q.Filters[k]})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计 %s 失败: %w", r.schema.Table, err)
	}

	orders, err := r.orderBy(q.Sort)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		tx = tx.Order(o)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var out []T
	if err := tx.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("查询 %s 列表失败: %w", r.schema.Table, err)
	}
	return out, total, nil
}

// Transaction 在事务中执行 fn
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

func (r *Repository[T]) pkEq(id any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: r.schema.PrioritizedPrimaryField.DBName}, Value: id}
}

// column 把字段名（列名或 Go 字段名）解析为列名
func (r *Repository[T]) column(name string) (string, error) {
	field := r.schema.LookUpField(name)
	if field == nil || field.DBName == "" {
		return "", fmt.Errorf("%w: 未知字段 %q", ErrInvalidQuery, name)
	}
	return field.DBName, nil
}

func (r *Repository[T]) orderBy(sortSpec string) ([]clause.OrderByColumn, error) {
	var orders []clause.OrderByColumn
	for _, part := range strings.Split(sortSpec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		column, err := r.column(strings.TrimPrefix(part, "-"))
		if err != nil {
			return nil, err
		}
		orders = append(orders, clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	}
	return orders, nil
}

// TransactionResult 在事务中执行 fn 并返回其结果
func TransactionResult[R any](ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) (R, error)) (R, error) {
	var out R
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := fn(tx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}
