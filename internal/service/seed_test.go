package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// ── 测试装配 ──

// testEngineConfig 引擎参数（测试用缺省值）
func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		MaxWorkers:          4,
		BatchTimeout:        30 * time.Second,
		EligibilityCacheTTL: time.Hour,
		UndoGracePeriod:     15 * time.Minute,
		LedgerRetryLimit:    1,
		MaxWeeklyHours:      40,
		MinRestHours:        8,
		MaxConsecutiveDays:  6,
	}
}

// testServices 全量服务装配（无 Redis，无真实数据库）
type testServices struct {
	repos       *testRepos
	eligibility EligibilityService
	scoring     ScoringService
	constraint  ConstraintService
	autoAssign  AutoAssignService
	config      ConfigService
}

func setupTestServices() *testServices {
	repos := newTestRepos()
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	engCfg := testEngineConfig()

	eligibilitySvc := NewEligibilityService(repoAgg, nil, engCfg, logger)
	configSvc := NewConfigService(repoAgg, logger)
	scoringSvc := NewScoringService(repoAgg, configSvc, eligibilitySvc, logger)
	constraintSvc := NewConstraintService(repoAgg)
	autoAssignSvc := NewAutoAssignService(repoAgg, scoringSvc, constraintSvc, eligibilitySvc, configSvc, engCfg, logger)

	return &testServices{
		repos:       repos,
		eligibility: eligibilitySvc,
		scoring:     scoringSvc,
		constraint:  constraintSvc,
		autoAssign:  autoAssignSvc,
		config:      configSvc,
	}
}

// ── 种子数据 ──

// 基准时刻：2026-03-02（周一）
var testBase = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func futureTime(d time.Duration) time.Time {
	return time.Now().UTC().Add(d).Truncate(time.Hour)
}

// seedHospital 医院：加州洛杉矶
func seedHospital(repos *testRepos) *model.Hospital {
	return &model.Hospital{
		HospitalID: "hosp-1",
		Name:       "圣玛丽医疗中心",
		State:      "CA",
		Latitude:   34.05,
		Longitude:  -118.25,
	}
}

// seedShift 明日 8h 日班：要求 icu 技能 + RN 证书 + Epic 系统
func seedShift(repos *testRepos, id string, start time.Time) *model.Shift {
	hosp := seedHospital(repos)
	shift := &model.Shift{
		ShiftID:        id,
		HospitalID:     hosp.HospitalID,
		StartAt:        start,
		EndAt:          start.Add(8 * time.Hour),
		RequiredSkills: model.StringArray{"icu"},
		RequiredCerts:  model.StringArray{"RN"},
		Priority:       model.PriorityNormal,
		EHRSystem:      "Epic",
		Status:         "open",
		Hospital:       hosp,
	}
	repos.shift.shifts[id] = shift
	return shift
}

// seedEligibleConsultant 资质齐全的顾问：CA 执照 + RN 证书均在有效期内
func seedEligibleConsultant(repos *testRepos, id, name string) *model.Consultant {
	expiry := time.Now().UTC().AddDate(1, 0, 0)
	c := &model.Consultant{
		ConsultantID:          id,
		Name:                  name,
		Email:                 id + "@nicehr.test",
		HourlyRate:            90,
		HomeState:             "CA",
		Latitude:              34.06,
		Longitude:             -118.24,
		EHRSystems:            model.StringArray{"Epic"},
		ReliabilityScore:      90,
		CompletionRate:        0.95,
		Rating:                4.5,
		WorkAuthorized:        true,
		BackgroundCheckStatus: model.BackgroundClear,
		Skills: []model.ConsultantSkill{
			{ConsultantID: id, SkillType: "icu", Proficiency: 5},
		},
		Certifications: []model.Certification{
			{ConsultantID: id, CertType: "RN", IssuingBody: "加州护理委员会", ExpiresAt: expiry},
		},
		Licenses: []model.License{
			{ConsultantID: id, State: "CA", ExpiresAt: expiry},
		},
	}
	repos.consultant.consultants[id] = c
	return c
}

// seedExpiredCertConsultant 证书过期的顾问（其余资质齐全）
func seedExpiredCertConsultant(repos *testRepos, id, name string) *model.Consultant {
	c := seedEligibleConsultant(repos, id, name)
	c.Certifications[0].ExpiresAt = time.Now().UTC().AddDate(0, -1, 0)
	return c
}
