package model

import "time"

// 指派状态
const (
	AssignmentProposed   = "proposed"
	AssignmentConfirmed  = "confirmed"
	AssignmentRejected   = "rejected"
	AssignmentRolledBack = "rolled_back"
)

// 批次状态
const (
	BatchValidating       = "validating"
	BatchApplied          = "applied"
	BatchPartiallyApplied = "partially_applied"
	BatchRolledBack       = "rolled_back"
)

// 批次模式
const (
	ModeAllOrNothing = "all_or_nothing"
	ModeBestEffort   = "best_effort"
)

// AssignmentBatch 指派批次表 — 对应 assignment_batches
// 批次是自动指派的事务单元
type AssignmentBatch struct {
	BatchID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"batch_id"`
	Mode        string     `gorm:"type:varchar(20);not null"                      json:"mode"`
	Status      string     `gorm:"type:varchar(20);not null;default:'validating'" json:"status"`
	RequestedBy string     `gorm:"type:uuid;not null"                             json:"requested_by"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	// 请求的班次总数与提议阶段即落空的班次结果，
	// 用于终态判定和批次详情回放
	RequestedShifts int     `gorm:"not null;default:0" json:"requested_shifts"`
	FailedResults   JSONMap `gorm:"type:jsonb"         json:"failed_results,omitempty"`
	VersionedModel

	// 关联
	Assignments []Assignment `gorm:"foreignKey:BatchID" json:"assignments,omitempty"`
}

func (AssignmentBatch) TableName() string { return "assignment_batches" }

// Assignment 指派表 — 对应 assignments
// 唯一性约束：每个班次至多一条 confirmed（部分唯一索引）
type Assignment struct {
	AssignmentID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	BatchID         string  `gorm:"type:uuid;not null"                             json:"batch_id"`
	ShiftID         string  `gorm:"type:uuid;not null"                             json:"shift_id"`
	ConsultantID    string  `gorm:"type:uuid;not null"                             json:"consultant_id"`
	Status          string  `gorm:"type:varchar(20);not null;default:'proposed'"   json:"status"`
	ScoreSnapshot   float64 `gorm:"not null;default:0"                             json:"score_snapshot"`
	FactorBreakdown JSONMap `gorm:"type:jsonb"                                     json:"factor_breakdown,omitempty"`
	Overridden      bool    `gorm:"not null;default:false"                         json:"overridden"`
	OverriddenRule  *string `gorm:"type:varchar(50)"                               json:"overridden_rule,omitempty"`
	OverrideActor   *string `gorm:"type:uuid"                                      json:"override_actor,omitempty"`
	OverrideReason  *string `gorm:"type:varchar(500)"                              json:"override_reason,omitempty"`
	CreatedBy       string  `gorm:"type:uuid;not null"                             json:"created_by"`
	VersionedModel

	// 关联
	Shift      *Shift      `gorm:"foreignKey:ShiftID;references:ShiftID"                json:"shift,omitempty"`
	Consultant *Consultant `gorm:"foreignKey:ConsultantID;references:ConsultantID"      json:"consultant,omitempty"`
}

func (Assignment) TableName() string { return "assignments" }

// CommittedHoursLedger 周工时账本表 — 对应 committed_hours_ledger
// (consultant_id, week_start) 唯一；version 支撑跨批乐观锁
type CommittedHoursLedger struct {
	LedgerID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"ledger_id"`
	ConsultantID string    `gorm:"type:uuid;not null"                             json:"consultant_id"`
	WeekStart    time.Time `gorm:"type:date;not null"                             json:"week_start"`
	Hours        float64   `gorm:"not null;default:0"                             json:"hours"`
	Version      int       `gorm:"not null;default:1"                             json:"version"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (CommittedHoursLedger) TableName() string { return "committed_hours_ledger" }
