package dto

// ── 调度配置模块 DTO ──

// SaveConfigRequest 保存配置请求（每次保存产生新的不可变版本）
type SaveConfigRequest struct {
	Weights       map[string]float64    `json:"weights"        binding:"required"`
	Constraints   ConstraintSetRequest  `json:"constraints"    binding:"required"`
	BusinessRules []BusinessRuleRequest `json:"business_rules" binding:"omitempty,dive"`
	Note          string                `json:"note"           binding:"omitempty,max=500"`
}

// ConstraintSetRequest 硬约束参数
type ConstraintSetRequest struct {
	MaxWeeklyHours     float64 `json:"max_weekly_hours"     binding:"required,gt=0"`
	MinRestHours       float64 `json:"min_rest_hours"       binding:"required,gte=0"`
	MaxConsecutiveDays int     `json:"max_consecutive_days" binding:"required,gt=0"`
	MaxTravelKm        float64 `json:"max_travel_km"        binding:"omitempty,gt=0"`
	FairnessWindowRef  string  `json:"fairness_window_ref"  binding:"omitempty"`
}

// BusinessRuleRequest 业务规则
type BusinessRuleRequest struct {
	Code   string `json:"code"   binding:"required,max=50"`
	Effect string `json:"effect" binding:"required,oneof=require forbid"`
	Target string `json:"target" binding:"required,max=200"`
	Note   string `json:"note"   binding:"omitempty,max=500"`
}

// RollbackConfigRequest 回滚配置请求
type RollbackConfigRequest struct {
	ToVersion int `json:"to_version" binding:"required,gt=0"`
}

// ConfigResponse 配置版本响应
type ConfigResponse struct {
	Version       int                   `json:"version"`
	Weights       map[string]float64    `json:"weights"`
	Constraints   ConstraintSetRequest  `json:"constraints"`
	BusinessRules []BusinessRuleRequest `json:"business_rules,omitempty"`
	IsActive      bool                  `json:"is_active"`
	Note          string                `json:"note,omitempty"`
	CreatedAt     string                `json:"created_at"`
}
