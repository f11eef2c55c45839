package model

import "time"

// 分发通道
const (
	ChannelNotification = "notification"
	ChannelCalendar     = "calendar"
)

// 分发状态
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// OutboxMessage 协作方分发发件箱表 — 对应 outbox_messages
// 协作方调用失败不影响指派落库，由后台分发器按 next_attempt_at 重试
type OutboxMessage struct {
	MessageID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"message_id"`
	Channel       string    `gorm:"type:varchar(20);not null"                      json:"channel"`
	Payload       JSONMap   `gorm:"type:jsonb;not null"                            json:"payload"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	Attempts      int       `gorm:"not null;default:0"                             json:"attempts"`
	LastError     *string   `gorm:"type:varchar(500)"                              json:"last_error,omitempty"`
	NextAttemptAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"next_attempt_at"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (OutboxMessage) TableName() string { return "outbox_messages" }
