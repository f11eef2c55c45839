package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// OutboxRepository 发件箱数据访问接口
type OutboxRepository interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	BatchCreate(ctx context.Context, msgs []model.OutboxMessage) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxMessage, error)
	Update(ctx context.Context, msg *model.OutboxMessage) error
}

type outboxRepo struct {
	db *gorm.DB
}

// NewOutboxRepo 创建 OutboxRepository 实例
func NewOutboxRepo(db *gorm.DB) OutboxRepository {
	return &outboxRepo{db: db}
}

func (r *outboxRepo) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *outboxRepo) BatchCreate(ctx context.Context, msgs []model.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&msgs).Error
}

func (r *outboxRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", model.OutboxPending, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *outboxRepo) Update(ctx context.Context, msg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).
		Model(msg).
		Where("message_id = ?", msg.MessageID).
		Updates(map[string]interface{}{
			"status":          msg.Status,
			"attempts":        msg.Attempts,
			"last_error":      msg.LastError,
			"next_attempt_at": msg.NextAttemptAt,
		}).Error
}
