package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

var (
	ErrWeightsSumInvalid     = errors.New("权重之和必须为 1.0")
	ErrUnknownFactor         = errors.New("存在未知评分因子")
	ErrRulesContradict       = errors.New("业务规则互相矛盾")
	ErrConfigVersionNotFound = errors.New("配置版本不存在")
)

const weightSumTolerance = 1e-6

// ConfigService 版本化调度配置服务接口。
// 版本只增不改；回滚是把旧内容复制成新版本，历史永不重写。
type ConfigService interface {
	Save(ctx context.Context, actor string, req *dto.SaveConfigRequest) (*dto.ConfigResponse, error)
	Rollback(ctx context.Context, actor string, req *dto.RollbackConfigRequest) (*dto.ConfigResponse, error)
	GetActive(ctx context.Context) (*dto.ConfigResponse, error)
	History(ctx context.Context, page *dto.PaginationRequest) ([]dto.ConfigResponse, int64, error)
	// ActiveModel 引擎内部路径：返回当前激活版本的模型对象
	ActiveModel(ctx context.Context) (*model.SchedulingConfiguration, error)
}

type configService struct {
	repo   *repository.Repository
	logger *zap.Logger

	// 激活版本的只读缓存；写路径换入新指针，读路径无锁
	active atomic.Pointer[model.SchedulingConfiguration]
}

// NewConfigService 创建配置服务实例
func NewConfigService(repo *repository.Repository, logger *zap.Logger) ConfigService {
	return &configService{repo: repo, logger: logger}
}

// Save 校验并保存为新的不可变版本，同时切换激活指针
func (s *configService) Save(ctx context.Context, actor string, req *dto.SaveConfigRequest) (*dto.ConfigResponse, error) {
	weights, err := validateWeights(req.Weights)
	if err != nil {
		return nil, err
	}
	rules, err := validateRules(req.BusinessRules)
	if err != nil {
		return nil, err
	}

	maxVersion, err := s.repo.Config.MaxVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询最大版本号失败: %w", err)
	}

	cfg := &model.SchedulingConfiguration{
		Version: maxVersion + 1,
		Weights: weights,
		Constraints: model.ConstraintSet{
			MaxWeeklyHours:     req.Constraints.MaxWeeklyHours,
			MinRestHours:       req.Constraints.MinRestHours,
			MaxConsecutiveDays: req.Constraints.MaxConsecutiveDays,
			MaxTravelKm:        req.Constraints.MaxTravelKm,
			FairnessWindowRef:  req.Constraints.FairnessWindowRef,
		},
		BusinessRules: rules,
		Note:          req.Note,
		CreatedBy:     actor,
	}
	if err := s.repo.Config.CreateActive(ctx, cfg); err != nil {
		return nil, fmt.Errorf("保存配置版本失败: %w", err)
	}
	s.active.Store(cfg)

	s.audit(ctx, actor, cfg, "save")
	s.logger.Info("调度配置已保存新版本",
		zap.Int("version", cfg.Version),
		zap.String("actor", actor))
	return toConfigResponse(cfg), nil
}

// Rollback 把历史版本的内容复制为新的激活版本
func (s *configService) Rollback(ctx context.Context, actor string, req *dto.RollbackConfigRequest) (*dto.ConfigResponse, error) {
	source, err := s.repo.Config.GetByVersion(ctx, req.ToVersion)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigVersionNotFound
		}
		return nil, fmt.Errorf("查询配置版本失败: %w", err)
	}

	maxVersion, err := s.repo.Config.MaxVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询最大版本号失败: %w", err)
	}

	cfg := &model.SchedulingConfiguration{
		Version:       maxVersion + 1,
		Weights:       source.Weights,
		Constraints:   source.Constraints,
		BusinessRules: source.BusinessRules,
		Note:          fmt.Sprintf("回滚自版本 %d", source.Version),
		CreatedBy:     actor,
	}
	if err := s.repo.Config.CreateActive(ctx, cfg); err != nil {
		return nil, fmt.Errorf("保存回滚版本失败: %w", err)
	}
	s.active.Store(cfg)

	s.audit(ctx, actor, cfg, "rollback")
	s.logger.Info("调度配置已回滚",
		zap.Int("to_version", source.Version),
		zap.Int("new_version", cfg.Version),
		zap.String("actor", actor))
	return toConfigResponse(cfg), nil
}

func (s *configService) GetActive(ctx context.Context) (*dto.ConfigResponse, error) {
	cfg, err := s.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	return toConfigResponse(cfg), nil
}

func (s *configService) History(ctx context.Context, page *dto.PaginationRequest) ([]dto.ConfigResponse, int64, error) {
	configs, total, err := s.repo.Config.List(ctx, page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, 0, fmt.Errorf("查询配置历史失败: %w", err)
	}
	out := make([]dto.ConfigResponse, 0, len(configs))
	for i := range configs {
		out = append(out, *toConfigResponse(&configs[i]))
	}
	return out, total, nil
}

// ActiveModel 返回激活配置；无任何已保存版本时回落到内置默认值
func (s *configService) ActiveModel(ctx context.Context) (*model.SchedulingConfiguration, error) {
	if cached := s.active.Load(); cached != nil {
		return cached, nil
	}
	cfg, err := s.repo.Config.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = defaultConfiguration()
			s.active.Store(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("查询激活配置失败: %w", err)
	}
	s.active.Store(cfg)
	return cfg, nil
}

// ── 校验 ──

func validateWeights(in map[string]float64) (model.WeightVector, error) {
	known := make(map[string]bool, len(model.KnownFactors))
	for _, f := range model.KnownFactors {
		known[f] = true
	}
	weights := make(model.WeightVector, len(in))
	for factor, w := range in {
		if !known[factor] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFactor, factor)
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: 因子 %s 权重为负", ErrWeightsSumInvalid, factor)
		}
		weights[factor] = w
	}
	if math.Abs(weights.Sum()-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("%w: 当前和为 %.4f", ErrWeightsSumInvalid, weights.Sum())
	}
	return weights, nil
}

// validateRules 静态矛盾检查：同一谓词同时被 require 与 forbid 即拒绝
func validateRules(in []dto.BusinessRuleRequest) (model.BusinessRules, error) {
	effects := make(map[string]string, len(in))
	rules := make(model.BusinessRules, 0, len(in))
	for _, r := range in {
		if prev, ok := effects[r.Target]; ok && prev != r.Effect {
			return nil, fmt.Errorf("%w: 谓词 %s 同时被强制和禁止", ErrRulesContradict, r.Target)
		}
		effects[r.Target] = r.Effect
		rules = append(rules, model.BusinessRule{
			Code:   r.Code,
			Effect: r.Effect,
			Target: r.Target,
			Note:   r.Note,
		})
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return rules, nil
}

func defaultConfiguration() *model.SchedulingConfiguration {
	return &model.SchedulingConfiguration{
		Version: 0,
		Weights: model.DefaultWeights(),
		Constraints: model.ConstraintSet{
			MaxWeeklyHours:     40,
			MinRestHours:       8,
			MaxConsecutiveDays: 6,
			MaxTravelKm:        150,
			FairnessWindowRef:  model.FactorFairness,
		},
		IsActive:  true,
		Note:      "内置默认配置",
		CreatedAt: time.Now().UTC(),
	}
}

func (s *configService) audit(ctx context.Context, actor string, cfg *model.SchedulingConfiguration, action string) {
	entry := &model.AuditEntry{
		Category: model.AuditConfig,
		RefID:    &cfg.ConfigID,
		Actor:    &actor,
		Detail: model.JSONMap{
			"action":  action,
			"version": cfg.Version,
		},
	}
	if err := s.repo.Audit.Create(ctx, entry); err != nil {
		// 审计写失败只记日志，业务不回滚
		s.logger.Error("配置审计写入失败", zap.Int("version", cfg.Version), zap.Error(err))
	}
}

func toConfigResponse(cfg *model.SchedulingConfiguration) *dto.ConfigResponse {
	rules := make([]dto.BusinessRuleRequest, 0, len(cfg.BusinessRules))
	for _, r := range cfg.BusinessRules {
		rules = append(rules, dto.BusinessRuleRequest{
			Code:   r.Code,
			Effect: r.Effect,
			Target: r.Target,
			Note:   r.Note,
		})
	}
	return &dto.ConfigResponse{
		Version: cfg.Version,
		Weights: cfg.Weights,
		Constraints: dto.ConstraintSetRequest{
			MaxWeeklyHours:     cfg.Constraints.MaxWeeklyHours,
			MinRestHours:       cfg.Constraints.MinRestHours,
			MaxConsecutiveDays: cfg.Constraints.MaxConsecutiveDays,
			MaxTravelKm:        cfg.Constraints.MaxTravelKm,
			FairnessWindowRef:  cfg.Constraints.FairnessWindowRef,
		},
		BusinessRules: rules,
		IsActive:      cfg.IsActive,
		Note:          cfg.Note,
		CreatedAt:     cfg.CreatedAt.Format(time.RFC3339),
	}
}
