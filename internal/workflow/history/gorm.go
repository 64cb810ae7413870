package history

import (
	"context"
	"fmt"

	workflow "flowbuilder/internal/workflow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 基于数据库的历史存储（execution_records 表）
type GormStore struct {
	db        *gorm.DB
	retention int
}

// NewGormStore 创建数据库存储，retention<=0 表示不裁剪
func NewGormStore(db *gorm.DB, retention int) *GormStore {
	return &GormStore{db: db, retention: retention}
}

// Append 实现 Store，运行 ID 冲突时不做任何事
func (s *GormStore) Append(ctx context.Context, workflowID string, rec *workflow.ExecutionRecord) error {
	cp := *rec
	cp.WorkflowID = workflowID

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&cp)
	if result.Error != nil {
		return fmt.Errorf("追加执行记录失败: %w", result.Error)
	}

	if result.RowsAffected > 0 && s.retention > 0 {
		if err := s.prune(ctx, workflowID); err != nil {
			return err
		}
	}
	return nil
}

// prune 只保留最近 retention 条
func (s *GormStore) prune(ctx context.Context, workflowID string) error {
	keep := s.db.Model(&workflow.ExecutionRecord{}).
		Select("id").
		Where("workflow_id = ?", workflowID).
		Order("executed_at DESC").Order("id DESC").
		Limit(s.retention)

	err := s.db.WithContext(ctx).
		Where("workflow_id = ? AND id NOT IN (?)", workflowID, keep).
		Delete(&workflow.ExecutionRecord{}).Error
	if err != nil {
		return fmt.Errorf("裁剪执行历史失败: %w", err)
	}
	return nil
}

// Recent 实现 Store
func (s *GormStore) Recent(ctx context.Context, workflowID string, n int) ([]workflow.ExecutionRecord, error) {
	var records []workflow.ExecutionRecord
	q := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("executed_at DESC").Order("id DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询执行历史失败: %w", err)
	}
	sortOldestFirst(records)
	return records, nil
}

// Exists 实现 Store
func (s *GormStore) Exists(ctx context.Context, workflowID, runID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&workflow.ExecutionRecord{}).
		Where("workflow_id = ? AND id = ?", workflowID, runID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询执行记录失败: %w", err)
	}
	return count > 0, nil
}
