package model

import "time"

// 审计类别
const (
	AuditScoring    = "scoring"
	AuditAssignment = "assignment"
	AuditOverride   = "override"
	AuditConfig     = "config"
	AuditUndo       = "undo"
	AuditBatch      = "batch"
)

// AuditEntry 审计日志表 — 对应 audit_entries（append-only，引擎只写）
type AuditEntry struct {
	AuditID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"audit_id"`
	Category  string    `gorm:"type:varchar(30);not null"                      json:"category"`
	RefID     *string   `gorm:"type:uuid"                                      json:"ref_id,omitempty"`
	Actor     *string   `gorm:"type:uuid"                                      json:"actor,omitempty"`
	Detail    JSONMap   `gorm:"type:jsonb"                                     json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
