package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/client"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

const dispatchBatchSize = 50

// OutboxDispatcher 协作方发件箱分发器。
// 后台按间隔轮询到期消息，逐条投递通知/日历服务；
// 失败按指数退避重排，超出重试上限标记 failed。
type OutboxDispatcher struct {
	repo     *repository.Repository
	notify   *client.NotifyClient
	calendar *client.CalendarClient
	cfg      *config.CollaboratorsConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewOutboxDispatcher 创建分发器实例
func NewOutboxDispatcher(
	repo *repository.Repository,
	notify *client.NotifyClient,
	calendar *client.CalendarClient,
	cfg *config.CollaboratorsConfig,
	logger *zap.Logger,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		repo:     repo,
		notify:   notify,
		calendar: calendar,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run 阻塞式主循环，ctx 取消后返回
func (d *OutboxDispatcher) Run(ctx context.Context) {
	interval := d.cfg.OutboxInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("发件箱分发器启动", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("发件箱分发器退出")
			return
		case <-ticker.C:
			d.DispatchDue(ctx)
		}
	}
}

// DispatchDue 处理一轮到期消息
func (d *OutboxDispatcher) DispatchDue(ctx context.Context) {
	msgs, err := d.repo.Outbox.ListDue(ctx, d.now().UTC(), dispatchBatchSize)
	if err != nil {
		d.logger.Error("发件箱读取失败", zap.Error(err))
		return
	}
	for i := range msgs {
		d.dispatchOne(ctx, &msgs[i])
	}
}

func (d *OutboxDispatcher) dispatchOne(ctx context.Context, msg *model.OutboxMessage) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	var err error
	switch msg.Channel {
	case model.ChannelNotification:
		err = d.notify.Send(callCtx, msg.Payload)
	case model.ChannelCalendar:
		err = d.calendar.Push(callCtx, msg.Payload)
	default:
		d.logger.Error("未知发件箱通道", zap.String("channel", msg.Channel), zap.String("message_id", msg.MessageID))
		msg.Status = model.OutboxFailed
		d.save(ctx, msg)
		return
	}

	msg.Attempts++
	if err == nil {
		msg.Status = model.OutboxDelivered
		msg.LastError = nil
		d.save(ctx, msg)
		return
	}

	errText := err.Error()
	if len(errText) > 500 {
		errText = errText[:500]
	}
	msg.LastError = &errText
	if msg.Attempts >= d.cfg.OutboxMaxRetry {
		msg.Status = model.OutboxFailed
		d.logger.Error("协作方投递重试耗尽",
			zap.String("message_id", msg.MessageID),
			zap.String("channel", msg.Channel),
			zap.Int("attempts", msg.Attempts),
			zap.Error(err))
	} else {
		// 指数退避：interval × 2^attempts，上限 30 分钟
		backoff := time.Duration(float64(d.cfg.OutboxInterval) * math.Pow(2, float64(msg.Attempts)))
		if backoff > 30*time.Minute {
			backoff = 30 * time.Minute
		}
		msg.NextAttemptAt = d.now().UTC().Add(backoff)
		d.logger.Warn("协作方投递失败，已重排",
			zap.String("message_id", msg.MessageID),
			zap.String("channel", msg.Channel),
			zap.Int("attempts", msg.Attempts),
			zap.Time("next_attempt_at", msg.NextAttemptAt),
			zap.Error(err))
	}
	d.save(ctx, msg)
}

func (d *OutboxDispatcher) save(ctx context.Context, msg *model.OutboxMessage) {
	if err := d.repo.Outbox.Update(ctx, msg); err != nil {
		d.logger.Error("发件箱状态写入失败", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
}
