package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
)

// AssignmentBatchRepository 批次数据访问接口
type AssignmentBatchRepository interface {
	Create(ctx context.Context, batch *model.AssignmentBatch) error
	GetByID(ctx context.Context, id string) (*model.AssignmentBatch, error)
	Update(ctx context.Context, batch *model.AssignmentBatch) error
}

// AssignmentRepository 指派数据访问接口
type AssignmentRepository interface {
	BatchCreate(ctx context.Context, assignments []model.Assignment) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	ListByBatch(ctx context.Context, batchID string) ([]model.Assignment, error)
	Update(ctx context.Context, assignment *model.Assignment) error
	ListConfirmedByConsultant(ctx context.Context, consultantID string) ([]model.Assignment, error)
	CountConfirmedAtHospital(ctx context.Context, consultantID, hospitalID string) (int64, error)
	CountConfirmedSince(ctx context.Context, consultantID string, since time.Time) (int64, error)
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error)
}

// ── AssignmentBatch Repository 实现 ──

type assignmentBatchRepo struct {
	db *gorm.DB
}

// NewAssignmentBatchRepo 创建 AssignmentBatchRepository 实例
func NewAssignmentBatchRepo(db *gorm.DB) AssignmentBatchRepository {
	return &assignmentBatchRepo{db: db}
}

func (r *assignmentBatchRepo) Create(ctx context.Context, batch *model.AssignmentBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *assignmentBatchRepo) GetByID(ctx context.Context, id string) (*model.AssignmentBatch, error) {
	var batch model.AssignmentBatch
	err := r.db.WithContext(ctx).
		Preload("Assignments").
		Where("batch_id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *assignmentBatchRepo) Update(ctx context.Context, batch *model.AssignmentBatch) error {
	oldVersion := batch.Version
	result := r.db.WithContext(ctx).
		Model(batch).
		Where("batch_id = ? AND version = ?", batch.BatchID, oldVersion).
		Updates(map[string]interface{}{
			"status":       batch.Status,
			"confirmed_at": batch.ConfirmedAt,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	batch.Version = oldVersion + 1
	return nil
}

// ── Assignment Repository 实现 ──

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) BatchCreate(ctx context.Context, assignments []model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").Preload("Shift.Hospital").
		Preload("Consultant").
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) ListByBatch(ctx context.Context, batchID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").Preload("Shift.Hospital").
		Preload("Consultant").
		Where("batch_id = ?", batchID).
		Order("created_at ASC, assignment_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) Update(ctx context.Context, assignment *model.Assignment) error {
	oldVersion := assignment.Version
	result := r.db.WithContext(ctx).
		Model(assignment).
		Where("assignment_id = ? AND version = ?", assignment.AssignmentID, oldVersion).
		Updates(map[string]interface{}{
			"status":          assignment.Status,
			"overridden":      assignment.Overridden,
			"overridden_rule": assignment.OverriddenRule,
			"override_actor":  assignment.OverrideActor,
			"override_reason": assignment.OverrideReason,
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	assignment.Version = oldVersion + 1
	return nil
}

func (r *assignmentRepo) ListConfirmedByConsultant(ctx context.Context, consultantID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").
		Where("consultant_id = ? AND status = ?", consultantID, model.AssignmentConfirmed).
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) CountConfirmedAtHospital(ctx context.Context, consultantID, hospitalID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Joins("JOIN shifts ON shifts.shift_id = assignments.shift_id").
		Where("assignments.consultant_id = ? AND assignments.status = ? AND shifts.hospital_id = ?",
			consultantID, model.AssignmentConfirmed, hospitalID).
		Count(&count).Error
	return count, err
}

func (r *assignmentRepo) CountConfirmedSince(ctx context.Context, consultantID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Joins("JOIN shifts ON shifts.shift_id = assignments.shift_id").
		Where("assignments.consultant_id = ? AND assignments.status = ? AND shifts.start_at >= ?",
			consultantID, model.AssignmentConfirmed, since).
		Count(&count).Error
	return count, err
}

func (r *assignmentRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").Preload("Shift.Hospital").
		Preload("Consultant").
		Joins("JOIN shifts ON shifts.shift_id = assignments.shift_id").
		Where("assignments.status = ? AND shifts.start_at >= ? AND shifts.start_at < ?",
			model.AssignmentConfirmed, from, to).
		Order("shifts.start_at ASC").
		Find(&assignments).Error
	return assignments, err
}
