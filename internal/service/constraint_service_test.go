package service

import (
	"context"
	"testing"
	"time"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

func hasViolation(violations []Violation, typ string) bool {
	for _, v := range violations {
		if v.Type == typ {
			return true
		}
	}
	return false
}

func TestCheckHard_无违规(t *testing.T) {
	svc := setupTestServices()
	shift := seedShift(svc.repos, "shift-1", futureTime(24*time.Hour))
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	cfg, _ := svc.config.ActiveModel(context.Background())

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, cfg, nil)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("期望无违规，实际: %+v", violations)
	}
}

func TestCheckHard_双重预订(t *testing.T) {
	svc := setupTestServices()
	start := futureTime(24 * time.Hour)
	shift := seedShift(svc.repos, "shift-1", start)
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	cfg, _ := svc.config.ActiveModel(context.Background())

	// 批内已提议重叠班次
	bctx := NewBatchContext()
	overlap := seedShift(svc.repos, "shift-2", start.Add(4*time.Hour))
	bctx.Commit(c.ConsultantID, overlap)

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, cfg, bctx)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationDoubleBooking) {
		t.Errorf("期望 double_booking 违规，实际: %+v", violations)
	}
}

func TestCheckHard_周工时超限(t *testing.T) {
	svc := setupTestServices()
	shift := seedShift(svc.repos, "shift-1", futureTime(24*time.Hour))
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	cfg, _ := svc.config.ActiveModel(context.Background())

	// 账本已记 36h，8h 班次必超 40h 上限
	week := shift.WeekStart()
	svc.repos.ledger.entries[ledgerKey(c.ConsultantID, week)] = &model.CommittedHoursLedger{
		LedgerID:     "ledger-1",
		ConsultantID: c.ConsultantID,
		WeekStart:    week,
		Hours:        36,
		Version:      1,
	}

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, cfg, nil)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationWeeklyOvertime) {
		t.Errorf("期望 weekly_overtime 违规，实际: %+v", violations)
	}
}

func TestCheckHard_账本加批内增量计入周工时(t *testing.T) {
	svc := setupTestServices()
	shift := seedShift(svc.repos, "shift-1", futureTime(24*time.Hour))
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	cfg, _ := svc.config.ActiveModel(context.Background())

	// 账本 20h + 批内 16h，再加本班次 8h = 44h > 40h
	week := shift.WeekStart()
	svc.repos.ledger.entries[ledgerKey(c.ConsultantID, week)] = &model.CommittedHoursLedger{
		LedgerID: "ledger-1", ConsultantID: c.ConsultantID, WeekStart: week, Hours: 20, Version: 1,
	}
	bctx := NewBatchContext()
	bctx.Commit(c.ConsultantID, seedShift(svc.repos, "shift-a", week))
	bctx.Commit(c.ConsultantID, seedShift(svc.repos, "shift-b", week.Add(24*time.Hour)))

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, cfg, bctx)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationWeeklyOvertime) {
		t.Errorf("期望 weekly_overtime 违规，实际: %+v", violations)
	}
}

func TestCheckHard_最小休息间隔(t *testing.T) {
	svc := setupTestServices()
	start := futureTime(48 * time.Hour)
	shift := seedShift(svc.repos, "shift-1", start)
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	cfg, _ := svc.config.ActiveModel(context.Background())

	// 前一班次结束于本班次开始前 4h（< 8h 最小休息）
	bctx := NewBatchContext()
	prev := seedShift(svc.repos, "shift-prev", start.Add(-12*time.Hour))
	bctx.Commit(c.ConsultantID, prev)

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, cfg, bctx)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationMinRest) {
		t.Errorf("期望 min_rest_hours 违规，实际: %+v", violations)
	}
}

func TestCheckHard_业务规则禁令(t *testing.T) {
	svc := setupTestServices()
	shift := seedShift(svc.repos, "shift-1", futureTime(24*time.Hour))
	shift.Priority = model.PriorityCritical
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")

	cfg, _ := svc.config.ActiveModel(context.Background())
	withRule := *cfg
	withRule.BusinessRules = model.BusinessRules{
		{Code: "BR-001", Effect: model.RuleEffectForbid, Target: "assign:priority:critical"},
	}

	violations, err := svc.constraint.CheckHard(context.Background(), c, shift, &withRule, nil)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationRuleForbidden) {
		t.Errorf("期望 rule_forbidden 违规，实际: %+v", violations)
	}
}

func TestCheckSoft_偏好与批内集中度(t *testing.T) {
	svc := setupTestServices()
	shift := seedShift(svc.repos, "shift-1", futureTime(24*time.Hour))
	c := seedEligibleConsultant(svc.repos, "cons-1", "张三")
	c.PreferredHospitalIDs = model.StringArray{"hosp-other"}
	cfg, _ := svc.config.ActiveModel(context.Background())

	bctx := NewBatchContext()
	for i, id := range []string{"shift-x", "shift-y", "shift-z"} {
		s := seedShift(svc.repos, id, futureTime(time.Duration(100*(i+1))*time.Hour))
		bctx.Commit(c.ConsultantID, s)
	}

	violations, err := svc.constraint.CheckSoft(context.Background(), c, shift, cfg, bctx)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if !hasViolation(violations, ViolationPreferenceMismatch) {
		t.Errorf("期望 preference_mismatch 软违规，实际: %+v", violations)
	}
	if !hasViolation(violations, ViolationSeniorityImbalance) {
		t.Errorf("期望 seniority_imbalance 软违规，实际: %+v", violations)
	}
	// 软违规不应出现 hard 级别
	for _, v := range violations {
		if v.Severity != SeveritySoft {
			t.Errorf("期望全部为 soft 级别，实际: %+v", v)
		}
	}
}

func TestOverridableRule_白名单(t *testing.T) {
	if !OverridableRule(ViolationWeeklyOvertime) {
		t.Error("期望 weekly_overtime 可覆盖")
	}
	if OverridableRule(ViolationDoubleBooking) {
		t.Error("期望 double_booking 不可覆盖")
	}
	if OverridableRule(ViolationRuleForbidden) {
		t.Error("期望 rule_forbidden 不可覆盖")
	}
}
