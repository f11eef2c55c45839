package service

import (
	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
	"github.com/MDx-Vision/nicehr-sub005/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Eligibility EligibilityService
	Scoring     ScoringService
	Constraint  ConstraintService
	AutoAssign  AutoAssignService
	Config      ConfigService
	Audit       AuditService
	Export      ExportService
}

// NewService 创建 Service 聚合
func NewService(repo *repository.Repository, cache *redis.Client, cfg *config.Config, logger *zap.Logger) *Service {
	eligibilitySvc := NewEligibilityService(repo, cache, &cfg.Engine, logger)
	configSvc := NewConfigService(repo, logger)
	scoringSvc := NewScoringService(repo, configSvc, eligibilitySvc, logger)
	constraintSvc := NewConstraintService(repo)
	autoAssignSvc := NewAutoAssignService(repo, scoringSvc, constraintSvc, eligibilitySvc, configSvc, &cfg.Engine, logger)

	return &Service{
		Eligibility: eligibilitySvc,
		Scoring:     scoringSvc,
		Constraint:  constraintSvc,
		AutoAssign:  autoAssignSvc,
		Config:      configSvc,
		Audit:       NewAuditService(repo),
		Export:      NewExportService(repo, logger),
	}
}
