package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
	"github.com/MDx-Vision/nicehr-sub005/pkg/redis"
)

// 资格校验失败原因标签
const (
	ReasonCertExpired       = "certification_expired"
	ReasonCertMissing       = "certification_missing"
	ReasonLicenseExpired    = "license_expired"
	ReasonLicenseMismatch   = "license_state_mismatch"
	ReasonBackgroundFailed  = "background_check_failed"
	ReasonBackgroundPending = "background_check_pending"
	ReasonSanctioned        = "sanctioned"
	ReasonComplianceOverdue = "compliance_overdue"
	ReasonNotWorkAuthorized = "work_authorization_missing"
)

var (
	ErrConsultantNotFound = errors.New("顾问不存在")
	ErrShiftNotFound      = errors.New("班次不存在")
)

// EligibilityResult 引擎内部使用的校验结果
type EligibilityResult struct {
	ConsultantID string
	Eligible     bool
	Reasons      []string // 全部失败原因
	ComputedAt   time.Time
	ExpiresAt    time.Time
	FromCache    bool
}

// EligibilityService 资格校验服务接口
// 资格判定是不可协商的闸门：任何指派路径（含特权覆盖）都先过这里
type EligibilityService interface {
	Check(ctx context.Context, consultantID, shiftID string) (*dto.EligibilityResponse, error)
	CheckForShift(ctx context.Context, consultant *model.Consultant, shift *model.Shift, hospital *model.Hospital) (*EligibilityResult, error)
	Invalidate(ctx context.Context, consultantID string) error
	CertificationReport(ctx context.Context, consultantID string) (*dto.CertificationReportResponse, error)
	LicenseReport(ctx context.Context, consultantID string) (*dto.LicenseReportResponse, error)
	BackgroundReport(ctx context.Context, consultantID string) (*dto.BackgroundReportResponse, error)
	ComplianceReport(ctx context.Context, consultantID string) (*dto.ComplianceReportResponse, error)
}

// eligibilitySnapshot 顾问侧资质快照（缓存单元）
// 只缓存顾问自身的资质事实；跟班次相关的匹配在快照之上即时计算
type eligibilitySnapshot struct {
	ConsultantID          string             `json:"consultant_id"`
	WorkAuthorized        bool               `json:"work_authorized"`
	BackgroundCheckStatus string             `json:"background_check_status"`
	Sanctioned            bool               `json:"sanctioned"`
	Certifications        []snapshotCert     `json:"certifications"`
	Licenses              []snapshotLicense  `json:"licenses"`
	ComplianceOverdue     bool               `json:"compliance_overdue"`
	ComputedAt            time.Time          `json:"computed_at"`
}

type snapshotCert struct {
	CertType  string    `json:"cert_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type snapshotLicense struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

type eligibilityService struct {
	repo   *repository.Repository
	cache  *redis.Client
	cfg    *config.EngineConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewEligibilityService 创建资格校验服务实例
func NewEligibilityService(repo *repository.Repository, cache *redis.Client, cfg *config.EngineConfig, logger *zap.Logger) EligibilityService {
	return &eligibilityService{
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Check 校验顾问资格；shiftID 非空时叠加班次相关的证书/执照匹配
func (s *eligibilityService) Check(ctx context.Context, consultantID, shiftID string) (*dto.EligibilityResponse, error) {
	snap, fromCache, err := s.loadSnapshot(ctx, consultantID)
	if err != nil {
		return nil, err
	}

	var shift *model.Shift
	var hospital *model.Hospital
	if shiftID != "" {
		sh, err := s.repo.Shift.GetByID(ctx, shiftID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrShiftNotFound
			}
			return nil, fmt.Errorf("查询班次失败: %w", err)
		}
		shift = sh
		hospital = sh.Hospital
	}

	reasons := s.evaluate(snap, shift, hospital)
	expiresAt := snap.ComputedAt.Add(s.cfg.EligibilityCacheTTL)
	return &dto.EligibilityResponse{
		ConsultantID: consultantID,
		Eligible:     len(reasons) == 0,
		Reasons:      reasons,
		ComputedAt:   snap.ComputedAt.Format(time.RFC3339),
		ExpiresAt:    expiresAt.Format(time.RFC3339),
		FromCache:    fromCache,
	}, nil
}

// CheckForShift 批次内部路径：顾问与班次已在手，避免重复捞库
func (s *eligibilityService) CheckForShift(ctx context.Context, consultant *model.Consultant, shift *model.Shift, hospital *model.Hospital) (*EligibilityResult, error) {
	snap, fromCache, err := s.loadSnapshotFor(ctx, consultant)
	if err != nil {
		return nil, err
	}
	reasons := s.evaluate(snap, shift, hospital)
	return &EligibilityResult{
		ConsultantID: consultant.ConsultantID,
		Eligible:     len(reasons) == 0,
		Reasons:      reasons,
		ComputedAt:   snap.ComputedAt,
		ExpiresAt:    snap.ComputedAt.Add(s.cfg.EligibilityCacheTTL),
		FromCache:    fromCache,
	}, nil
}

// Invalidate 资质变更钩子：外部系统同步到证书/执照变化时调用，立即失效缓存
func (s *eligibilityService) Invalidate(ctx context.Context, consultantID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateEligibility(ctx, consultantID)
}

// ── 快照装载 ──

func (s *eligibilityService) loadSnapshot(ctx context.Context, consultantID string) (*eligibilitySnapshot, bool, error) {
	if s.cache != nil {
		data, err := s.cache.GetEligibilitySnapshot(ctx, consultantID)
		if err == nil {
			var snap eligibilitySnapshot
			if uerr := json.Unmarshal(data, &snap); uerr == nil {
				return &snap, true, nil
			}
			// 缓存内容损坏按未命中处理
			s.logger.Warn("资格快照缓存解析失败，回落数据库", zap.String("consultant_id", consultantID))
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("资格快照缓存读取失败，回落数据库", zap.String("consultant_id", consultantID), zap.Error(err))
		}
	}

	consultant, err := s.repo.Consultant.GetByID(ctx, consultantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrConsultantNotFound
		}
		return nil, false, fmt.Errorf("查询顾问失败: %w", err)
	}
	snap := s.buildSnapshot(consultant)
	s.storeSnapshot(ctx, snap)
	return snap, false, nil
}

func (s *eligibilityService) loadSnapshotFor(ctx context.Context, consultant *model.Consultant) (*eligibilitySnapshot, bool, error) {
	if s.cache != nil {
		data, err := s.cache.GetEligibilitySnapshot(ctx, consultant.ConsultantID)
		if err == nil {
			var snap eligibilitySnapshot
			if uerr := json.Unmarshal(data, &snap); uerr == nil {
				return &snap, true, nil
			}
		}
	}
	snap := s.buildSnapshot(consultant)
	s.storeSnapshot(ctx, snap)
	return snap, false, nil
}

func (s *eligibilityService) buildSnapshot(consultant *model.Consultant) *eligibilitySnapshot {
	snap := &eligibilitySnapshot{
		ConsultantID:          consultant.ConsultantID,
		WorkAuthorized:        consultant.WorkAuthorized,
		BackgroundCheckStatus: consultant.BackgroundCheckStatus,
		Sanctioned:            consultant.Sanctioned,
		ComputedAt:            s.now().UTC(),
	}
	for _, cert := range consultant.Certifications {
		snap.Certifications = append(snap.Certifications, snapshotCert{
			CertType:  cert.CertType,
			ExpiresAt: cert.ExpiresAt,
		})
	}
	for _, lic := range consultant.Licenses {
		snap.Licenses = append(snap.Licenses, snapshotLicense{
			State:     lic.State,
			ExpiresAt: lic.ExpiresAt,
		})
	}
	for _, item := range consultant.ComplianceItems {
		if item.Status == "overdue" {
			snap.ComplianceOverdue = true
			break
		}
	}
	return snap
}

func (s *eligibilityService) storeSnapshot(ctx context.Context, snap *eligibilitySnapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.SetEligibilitySnapshot(ctx, snap.ConsultantID, data, s.cfg.EligibilityCacheTTL); err != nil {
		// 缓存写失败不阻断业务
		s.logger.Warn("资格快照缓存写入失败", zap.String("consultant_id", snap.ConsultantID), zap.Error(err))
	}
}

// ── 规则求值 ──

// evaluate 在快照之上求值；shift 为 nil 时只做顾问侧检查。
// 返回全部失败原因（不短路），便于一趟看清欠缺什么。
func (s *eligibilityService) evaluate(snap *eligibilitySnapshot, shift *model.Shift, hospital *model.Hospital) []string {
	var reasons []string

	if !snap.WorkAuthorized {
		reasons = append(reasons, ReasonNotWorkAuthorized)
	}
	switch snap.BackgroundCheckStatus {
	case model.BackgroundFailed:
		reasons = append(reasons, ReasonBackgroundFailed)
	case model.BackgroundPending:
		reasons = append(reasons, ReasonBackgroundPending)
	}
	if snap.Sanctioned {
		reasons = append(reasons, ReasonSanctioned)
	}
	if snap.ComplianceOverdue {
		reasons = append(reasons, ReasonComplianceOverdue)
	}

	if shift == nil {
		return reasons
	}

	// 证书须覆盖班次要求，且在班次开始时刻仍有效
	for _, required := range shift.RequiredCerts {
		found := false
		expired := false
		for _, cert := range snap.Certifications {
			if cert.CertType != required {
				continue
			}
			found = true
			if !cert.ExpiresAt.After(shift.StartAt) {
				expired = true
				continue
			}
			expired = false
			break
		}
		switch {
		case !found:
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonCertMissing, required))
		case expired:
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonCertExpired, required))
		}
	}

	// 州执照须匹配医院所在州，且在班次开始时刻仍有效
	if hospital != nil {
		found := false
		expired := false
		for _, lic := range snap.Licenses {
			if lic.State != hospital.State {
				continue
			}
			found = true
			if !lic.ExpiresAt.After(shift.StartAt) {
				expired = true
				continue
			}
			expired = false
			break
		}
		switch {
		case !found:
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonLicenseMismatch, hospital.State))
		case expired:
			reasons = append(reasons, fmt.Sprintf("%s:%s", ReasonLicenseExpired, hospital.State))
		}
	}

	return reasons
}

// ── 子报告 ──

func (s *eligibilityService) CertificationReport(ctx context.Context, consultantID string) (*dto.CertificationReportResponse, error) {
	consultant, err := s.getConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	resp := &dto.CertificationReportResponse{ConsultantID: consultantID, Items: []dto.CertificationItem{}}
	for _, cert := range consultant.Certifications {
		resp.Items = append(resp.Items, dto.CertificationItem{
			CertType:    cert.CertType,
			IssuingBody: cert.IssuingBody,
			ExpiresAt:   cert.ExpiresAt.Format(time.RFC3339),
			Expired:     !cert.ExpiresAt.After(now),
		})
	}
	return resp, nil
}

func (s *eligibilityService) LicenseReport(ctx context.Context, consultantID string) (*dto.LicenseReportResponse, error) {
	consultant, err := s.getConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	resp := &dto.LicenseReportResponse{ConsultantID: consultantID, Items: []dto.LicenseItem{}}
	for _, lic := range consultant.Licenses {
		resp.Items = append(resp.Items, dto.LicenseItem{
			State:     lic.State,
			ExpiresAt: lic.ExpiresAt.Format(time.RFC3339),
			Expired:   !lic.ExpiresAt.After(now),
		})
	}
	return resp, nil
}

func (s *eligibilityService) BackgroundReport(ctx context.Context, consultantID string) (*dto.BackgroundReportResponse, error) {
	consultant, err := s.getConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	return &dto.BackgroundReportResponse{
		ConsultantID:   consultantID,
		Status:         consultant.BackgroundCheckStatus,
		Sanctioned:     consultant.Sanctioned,
		WorkAuthorized: consultant.WorkAuthorized,
	}, nil
}

func (s *eligibilityService) ComplianceReport(ctx context.Context, consultantID string) (*dto.ComplianceReportResponse, error) {
	consultant, err := s.getConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ComplianceReportResponse{ConsultantID: consultantID, Items: []dto.ComplianceItem{}}
	for _, item := range consultant.ComplianceItems {
		out := dto.ComplianceItem{ItemType: item.ItemType, Status: item.Status}
		if item.DueAt != nil {
			out.DueAt = item.DueAt.Format(time.RFC3339)
		}
		resp.Items = append(resp.Items, out)
	}
	return resp, nil
}

func (s *eligibilityService) getConsultant(ctx context.Context, consultantID string) (*model.Consultant, error) {
	consultant, err := s.repo.Consultant.GetByID(ctx, consultantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultantNotFound
		}
		return nil, fmt.Errorf("查询顾问失败: %w", err)
	}
	return consultant, nil
}
