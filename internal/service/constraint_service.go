package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

// 违规类型
const (
	ViolationDoubleBooking      = "double_booking"
	ViolationWeeklyOvertime     = "weekly_overtime"
	ViolationMinRest            = "min_rest_hours"
	ViolationConsecutiveDays    = "max_consecutive_days"
	ViolationRuleForbidden      = "rule_forbidden"
	ViolationRuleRequired       = "rule_required"
	ViolationPreferenceMismatch = "preference_mismatch"
	ViolationTravelDistance     = "travel_distance"
	ViolationSeniorityImbalance = "seniority_imbalance"
)

// 违规级别
const (
	SeverityHard = "hard"
	SeveritySoft = "soft"
)

// Violation 单条约束违规
type Violation struct {
	Type     string
	Severity string
	Message  string
}

// 可被特权覆盖的规则白名单。
// 双重预订与业务规则禁令永远不可覆盖；资格校验根本不进本服务。
var overridableRules = map[string]bool{
	ViolationWeeklyOvertime:  true,
	ViolationMinRest:         true,
	ViolationConsecutiveDays: true,
}

// OverridableRule 判断某条硬约束是否允许被特权覆盖
func OverridableRule(rule string) bool {
	return overridableRules[rule]
}

// ConstraintService 约束校验服务接口。
// 硬违规阻断指派，软违规只作为告警随结果返回。
type ConstraintService interface {
	CheckHard(ctx context.Context, consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]Violation, error)
	CheckSoft(ctx context.Context, consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]Violation, error)
}

type constraintService struct {
	repo *repository.Repository
}

// NewConstraintService 创建约束校验服务实例
func NewConstraintService(repo *repository.Repository) ConstraintService {
	return &constraintService{repo: repo}
}

// CheckHard 收集全部硬违规（不短路），结果按类型名定序
func (s *constraintService) CheckHard(ctx context.Context, consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]Violation, error) {
	var violations []Violation

	confirmed, err := s.repo.Assignment.ListConfirmedByConsultant(ctx, consultant.ConsultantID)
	if err != nil {
		return nil, fmt.Errorf("查询既有指派失败: %w", err)
	}

	// 双重预订：既有确认指派 + 批内提议，任一重叠即违规
	if v := s.checkDoubleBooking(consultant, shift, confirmed, bctx); v != nil {
		violations = append(violations, *v)
	}

	// 周工时上限：账本余额 + 批内增量 + 本班次时长
	if v, err := s.checkWeeklyOvertime(ctx, consultant, shift, cfg, bctx); err != nil {
		return nil, err
	} else if v != nil {
		violations = append(violations, *v)
	}

	// 班次间最小休息
	if v := s.checkMinRest(consultant, shift, cfg, confirmed, bctx); v != nil {
		violations = append(violations, *v)
	}

	// 最大连续工作天数
	if v := s.checkConsecutiveDays(consultant, shift, cfg, confirmed, bctx); v != nil {
		violations = append(violations, *v)
	}

	// 业务规则禁令
	violations = append(violations, s.checkBusinessRules(consultant, shift, cfg)...)

	sort.Slice(violations, func(i, j int) bool { return violations[i].Type < violations[j].Type })
	return violations, nil
}

// CheckSoft 收集软违规告警
func (s *constraintService) CheckSoft(ctx context.Context, consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]Violation, error) {
	var violations []Violation

	// 医院偏好
	if len(consultant.PreferredHospitalIDs) > 0 && !consultant.PreferredHospitalIDs.Contains(shift.HospitalID) {
		violations = append(violations, Violation{
			Type:     ViolationPreferenceMismatch,
			Severity: SeveritySoft,
			Message:  "班次医院不在顾问偏好列表内",
		})
	}

	// 通勤距离
	if cfg.Constraints.MaxTravelKm > 0 && shift.Hospital != nil {
		km := haversineKm(consultant.Latitude, consultant.Longitude, shift.Hospital.Latitude, shift.Hospital.Longitude)
		if km > cfg.Constraints.MaxTravelKm {
			violations = append(violations, Violation{
				Type:     ViolationTravelDistance,
				Severity: SeveritySoft,
				Message:  fmt.Sprintf("通勤距离 %.0fkm 超出建议上限 %.0fkm", km, cfg.Constraints.MaxTravelKm),
			})
		}
	}

	// 批内集中度：同一顾问在一个批次里拿到过多班次
	if bctx != nil && bctx.AssignCount(consultant.ConsultantID) >= 3 {
		violations = append(violations, Violation{
			Type:     ViolationSeniorityImbalance,
			Severity: SeveritySoft,
			Message:  "该顾问在本批次内已集中获得多个班次",
		})
	}

	sort.Slice(violations, func(i, j int) bool { return violations[i].Type < violations[j].Type })
	return violations, nil
}

// ── 硬约束明细 ──

func (s *constraintService) checkDoubleBooking(consultant *model.Consultant, shift *model.Shift, confirmed []model.Assignment, bctx *BatchContext) *Violation {
	for _, a := range confirmed {
		if a.Shift == nil {
			continue
		}
		if model.Overlaps(a.Shift.StartAt, a.Shift.EndAt, shift.StartAt, shift.EndAt) {
			return &Violation{
				Type:     ViolationDoubleBooking,
				Severity: SeverityHard,
				Message:  fmt.Sprintf("与已确认班次 %s 时间重叠", a.ShiftID),
			}
		}
	}
	if bctx != nil && bctx.Conflicts(consultant.ConsultantID, shift.StartAt, shift.EndAt) {
		return &Violation{
			Type:     ViolationDoubleBooking,
			Severity: SeverityHard,
			Message:  "与本批次内已提议的班次时间重叠",
		}
	}
	return nil
}

func (s *constraintService) checkWeeklyOvertime(ctx context.Context, consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, bctx *BatchContext) (*Violation, error) {
	maxWeekly := cfg.Constraints.MaxWeeklyHours
	if maxWeekly <= 0 {
		return nil, nil
	}
	week := shift.WeekStart()
	var committed float64
	entry, err := s.repo.Ledger.Get(ctx, consultant.ConsultantID, week)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("查询工时账本失败: %w", err)
		}
	} else {
		committed = entry.Hours
	}
	if bctx != nil {
		committed += bctx.HoursDelta(consultant.ConsultantID, week)
	}
	if committed+shift.Hours() > maxWeekly {
		return &Violation{
			Type:     ViolationWeeklyOvertime,
			Severity: SeverityHard,
			Message:  fmt.Sprintf("本周累计 %.1fh + 班次 %.1fh 超出上限 %.1fh", committed, shift.Hours(), maxWeekly),
		}, nil
	}
	return nil, nil
}

func (s *constraintService) checkMinRest(consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, confirmed []model.Assignment, bctx *BatchContext) *Violation {
	minRest := cfg.Constraints.MinRestHours
	if minRest <= 0 {
		return nil
	}
	gap := time.Duration(minRest * float64(time.Hour))

	check := func(otherStart, otherEnd time.Time) bool {
		// 紧邻班次之间的空档不足 minRest 即违规（重叠走双重预订）
		if !model.Overlaps(otherStart, otherEnd, shift.StartAt, shift.EndAt) {
			if otherEnd.Before(shift.StartAt) || otherEnd.Equal(shift.StartAt) {
				return shift.StartAt.Sub(otherEnd) < gap
			}
			return otherStart.Sub(shift.EndAt) < gap
		}
		return false
	}

	for _, a := range confirmed {
		if a.Shift == nil {
			continue
		}
		if check(a.Shift.StartAt, a.Shift.EndAt) {
			return &Violation{
				Type:     ViolationMinRest,
				Severity: SeverityHard,
				Message:  fmt.Sprintf("与既有班次间隔不足 %.1f 小时", minRest),
			}
		}
	}
	if bctx != nil {
		for _, slot := range bctx.Slots(consultant.ConsultantID) {
			if check(slot.StartAt, slot.EndAt) {
				return &Violation{
					Type:     ViolationMinRest,
					Severity: SeverityHard,
					Message:  fmt.Sprintf("与批内提议班次间隔不足 %.1f 小时", minRest),
				}
			}
		}
	}
	return nil
}

func (s *constraintService) checkConsecutiveDays(consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration, confirmed []model.Assignment, bctx *BatchContext) *Violation {
	maxDays := cfg.Constraints.MaxConsecutiveDays
	if maxDays <= 0 {
		return nil
	}

	// 收集所有已占用的工作日（UTC 日期粒度）
	workdays := make(map[time.Time]bool)
	addDay := func(t time.Time) {
		t = t.UTC()
		workdays[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)] = true
	}
	for _, a := range confirmed {
		if a.Shift != nil {
			addDay(a.Shift.StartAt)
		}
	}
	if bctx != nil {
		for _, slot := range bctx.Slots(consultant.ConsultantID) {
			addDay(slot.StartAt)
		}
	}
	addDay(shift.StartAt)

	// 从候选班次当天向两侧延伸，数出连续占用天数
	day := time.Date(shift.StartAt.UTC().Year(), shift.StartAt.UTC().Month(), shift.StartAt.UTC().Day(), 0, 0, 0, 0, time.UTC)
	run := 1
	for d := day.AddDate(0, 0, -1); workdays[d]; d = d.AddDate(0, 0, -1) {
		run++
	}
	for d := day.AddDate(0, 0, 1); workdays[d]; d = d.AddDate(0, 0, 1) {
		run++
	}
	if run > maxDays {
		return &Violation{
			Type:     ViolationConsecutiveDays,
			Severity: SeverityHard,
			Message:  fmt.Sprintf("连续工作 %d 天超出上限 %d 天", run, maxDays),
		}
	}
	return nil
}

// checkBusinessRules 对班次谓词求值业务规则。
// 谓词形如 "assign:<班次属性>"，目前支持 priority 与 ehr 两类属性匹配。
func (s *constraintService) checkBusinessRules(consultant *model.Consultant, shift *model.Shift, cfg *model.SchedulingConfiguration) []Violation {
	var violations []Violation
	for _, rule := range cfg.BusinessRules {
		if !ruleTargetMatches(rule.Target, shift) {
			continue
		}
		if rule.Effect == model.RuleEffectForbid {
			violations = append(violations, Violation{
				Type:     ViolationRuleForbidden,
				Severity: SeverityHard,
				Message:  fmt.Sprintf("业务规则 %s 禁止该类指派", rule.Code),
			})
		}
	}
	return violations
}

// ruleTargetMatches 谓词匹配："assign:priority:critical"、"assign:ehr:Epic" 等
func ruleTargetMatches(target string, shift *model.Shift) bool {
	parts := strings.Split(target, ":")
	if len(parts) < 3 || parts[0] != "assign" {
		return false
	}
	switch parts[1] {
	case "priority":
		return shift.Priority == parts[2]
	case "ehr":
		return shift.EHRSystem == parts[2]
	case "hospital":
		return shift.HospitalID == parts[2]
	default:
		return false
	}
}
