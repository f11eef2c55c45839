package dto

// ── 推荐模块 DTO ──

// RecommendationsRequest 推荐列表查询参数
type RecommendationsRequest struct {
	ShiftID string `form:"shift_id" binding:"required,uuid"`
	Limit   int    `form:"limit"    binding:"omitempty,min=1,max=100"`
}

// ExplainRequest 推荐解释查询参数
type ExplainRequest struct {
	ShiftID      string `form:"shift_id"      binding:"required,uuid"`
	ConsultantID string `form:"consultant_id" binding:"required,uuid"`
}

// CandidateScoreResponse 候选人评分响应
type CandidateScoreResponse struct {
	ConsultantID    string             `json:"consultant_id"`
	ConsultantName  string             `json:"consultant_name"`
	ShiftID         string             `json:"shift_id"`
	TotalScore      float64            `json:"total_score"`
	FactorBreakdown map[string]float64 `json:"factor_breakdown"`
	Explanation     []string           `json:"explanation"`
}

// ── 自动指派模块 DTO ──

// AutoAssignRequest 自动指派请求
type AutoAssignRequest struct {
	Shifts []ShiftRequest `json:"shifts" binding:"required,min=1,dive"`
	Mode   string         `json:"mode"   binding:"required,oneof=all_or_nothing best_effort"`
}

// ShiftRequest 批次内单个班次请求
type ShiftRequest struct {
	ShiftID             string  `json:"shift_id"              binding:"required,uuid"`
	PreferredConsultant *string `json:"preferred_consultant"  binding:"omitempty,uuid"`
}

// ValidateBatchRequest 批次校验（纯预览，不落库）请求
type ValidateBatchRequest struct {
	Shifts []ShiftRequest `json:"shifts" binding:"required,min=1,dive"`
}

// ConfirmBatchRequest 批次确认请求
type ConfirmBatchRequest struct {
	BatchID string `json:"batch_id" binding:"required,uuid"`
}

// UndoBatchRequest 批次撤销请求
type UndoBatchRequest struct {
	BatchID string `json:"batch_id" binding:"required,uuid"`
}

// CancelBatchRequest 批次取消请求（确认前）
type CancelBatchRequest struct {
	BatchID string `json:"batch_id" binding:"required,uuid"`
}

// OverrideAssignRequest 特权覆盖指派请求
// 只绕过被点名的那条规则，资格检查不可绕过
type OverrideAssignRequest struct {
	ShiftID      string `json:"shift_id"      binding:"required,uuid"`
	ConsultantID string `json:"consultant_id" binding:"required,uuid"`
	Rule         string `json:"rule"          binding:"required"`
	Reason       string `json:"reason"        binding:"required,min=2,max=500"`
}

// ViolationResponse 约束违规
type ViolationResponse struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // hard | soft
	Message  string `json:"message"`
}

// ShiftResultResponse 批内单班次结果
type ShiftResultResponse struct {
	ShiftID      string              `json:"shift_id"`
	Status       string              `json:"status"` // assigned | conflict | ineligible | violation | error
	ConsultantID string              `json:"consultant_id,omitempty"`
	Score        float64             `json:"score,omitempty"`
	Reasons      []string            `json:"reasons,omitempty"`
	Violations   []ViolationResponse `json:"violations,omitempty"`
}

// BatchResponse 批次结果响应
type BatchResponse struct {
	BatchID     string                `json:"batch_id,omitempty"`
	Mode        string                `json:"mode"`
	Status      string                `json:"status"`
	Results     []ShiftResultResponse `json:"results"`
	ConfirmedAt *string               `json:"confirmed_at,omitempty"`
	CreatedAt   string                `json:"created_at,omitempty"`
}

// ValidatePreviewResponse 批次校验预览响应（无任何持久化副作用）
type ValidatePreviewResponse struct {
	Results []ShiftResultResponse `json:"results"`
}

// AssignmentResponse 指派响应
type AssignmentResponse struct {
	AssignmentID   string             `json:"assignment_id"`
	BatchID        string             `json:"batch_id"`
	ShiftID        string             `json:"shift_id"`
	ConsultantID   string             `json:"consultant_id"`
	Status         string             `json:"status"`
	ScoreSnapshot  float64            `json:"score_snapshot"`
	Overridden     bool               `json:"overridden"`
	OverriddenRule *string            `json:"overridden_rule,omitempty"`
	OverrideReason *string            `json:"override_reason,omitempty"`
	CreatedAt      string             `json:"created_at"`
}

// ── 审计模块 DTO ──

// AuditListRequest 审计日志查询参数
type AuditListRequest struct {
	Category string `form:"category" binding:"omitempty,oneof=scoring assignment override config undo batch"`
	RefID    string `form:"ref_id"   binding:"omitempty,uuid"`
	PaginationRequest
}

// AuditEntryResponse 审计日志响应
type AuditEntryResponse struct {
	AuditID   string                 `json:"audit_id"`
	Category  string                 `json:"category"`
	RefID     *string                `json:"ref_id,omitempty"`
	Actor     *string                `json:"actor,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// ── 导出模块 DTO ──

// ExportAssignmentsRequest 指派导出查询参数
type ExportAssignmentsRequest struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to"   binding:"required,datetime=2006-01-02"`
}
