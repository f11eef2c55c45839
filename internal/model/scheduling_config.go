package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 评分因子名（权重向量与约束引用共用此集合）
const (
	FactorSkillMatch          = "skill_match"
	FactorAvailability        = "availability"
	FactorCost                = "cost"
	FactorHospitalFamiliarity = "hospital_familiarity"
	FactorEHRExpertise        = "ehr_expertise"
	FactorReliability         = "reliability"
	FactorProximity           = "proximity"
	FactorFairness            = "fairness"
)

// KnownFactors 全部合法因子名
var KnownFactors = []string{
	FactorSkillMatch,
	FactorAvailability,
	FactorCost,
	FactorHospitalFamiliarity,
	FactorEHRExpertise,
	FactorReliability,
	FactorProximity,
	FactorFairness,
}

// DefaultWeights 默认权重向量（和为 1.0）
func DefaultWeights() WeightVector {
	return WeightVector{
		FactorSkillMatch:          0.25,
		FactorAvailability:        0.20,
		FactorCost:                0.15,
		FactorHospitalFamiliarity: 0.10,
		FactorEHRExpertise:        0.10,
		FactorReliability:         0.10,
		FactorProximity:           0.05,
		FactorFairness:            0.05,
	}
}

// WeightVector 因子→权重，JSONB 存储
type WeightVector map[string]float64

// Scan 反序列化 JSONB 列
func (w *WeightVector) Scan(src interface{}) error {
	if src == nil {
		*w = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("WeightVector.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(data, w)
}

// Value 序列化为 JSONB
func (w WeightVector) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Sum 权重和
func (w WeightVector) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// ConstraintSet 硬约束参数，JSONB 存储
type ConstraintSet struct {
	MaxWeeklyHours     float64 `json:"max_weekly_hours"`
	MinRestHours       float64 `json:"min_rest_hours"`
	MaxConsecutiveDays int     `json:"max_consecutive_days"`
	MaxTravelKm        float64 `json:"max_travel_km"`        // 软约束：超出则告警
	FairnessWindowRef  string  `json:"fairness_window_ref"`  // 公平因子引用的窗口因子名
}

// Scan 反序列化 JSONB 列
func (c *ConstraintSet) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("ConstraintSet.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(data, c)
}

// Value 序列化为 JSONB
func (c ConstraintSet) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// 业务规则效果
const (
	RuleEffectRequire = "require"
	RuleEffectForbid  = "forbid"
)

// BusinessRule 业务规则：对某个目标谓词的强制/禁止
// 矛盾检测是对规则谓词的静态检查，不做通用求解
type BusinessRule struct {
	Code   string `json:"code"`
	Effect string `json:"effect"` // require | forbid
	Target string `json:"target"` // 谓词标识，如 "assign:night_shift:junior"
	Note   string `json:"note,omitempty"`
}

// BusinessRules 业务规则集合，JSONB 存储
type BusinessRules []BusinessRule

// Scan 反序列化 JSONB 列
func (r *BusinessRules) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("BusinessRules.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(data, r)
}

// Value 序列化为 JSONB
func (r BusinessRules) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// SchedulingConfiguration 版本化调度配置表 — 对应 scheduling_configurations
// 版本不可变；回滚=复制旧内容的新版本；任一时刻恰好一个活动版本
type SchedulingConfiguration struct {
	ConfigID      string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"config_id"`
	Version       int           `gorm:"not null;uniqueIndex"                           json:"version"`
	Weights       WeightVector  `gorm:"type:jsonb;not null"                            json:"weights"`
	Constraints   ConstraintSet `gorm:"type:jsonb;not null"                            json:"constraints"`
	BusinessRules BusinessRules `gorm:"type:jsonb"                                     json:"business_rules,omitempty"`
	IsActive      bool          `gorm:"not null;default:false"                         json:"is_active"`
	Note          string        `gorm:"type:varchar(500)"                              json:"note,omitempty"`
	CreatedBy     string        `gorm:"type:uuid;not null"                             json:"created_by"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (SchedulingConfiguration) TableName() string { return "scheduling_configurations" }
