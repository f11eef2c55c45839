package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

var ErrCandidateIneligible = errors.New("候选人未通过资格校验")

// CandidateScore 单个候选人的评分结果
type CandidateScore struct {
	Consultant  *model.Consultant
	Total       float64
	Breakdown   map[string]float64 // 因子 → 子分（0-100）
	Explanation []string           // 按贡献降序的可读解释
}

// ScoringService 多因子评分服务接口
type ScoringService interface {
	Recommend(ctx context.Context, req *dto.RecommendationsRequest) ([]dto.CandidateScoreResponse, error)
	Explain(ctx context.Context, req *dto.ExplainRequest) (*dto.CandidateScoreResponse, error)
	// ScoreCandidates 对一组候选人评分并按分数排序（批次内部路径）
	ScoreCandidates(ctx context.Context, shift *model.Shift, candidates []*model.Consultant, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]CandidateScore, error)
}

type scoringService struct {
	repo        *repository.Repository
	config      ConfigService
	eligibility EligibilityService
	logger      *zap.Logger
	now         func() time.Time
}

// NewScoringService 创建评分服务实例
func NewScoringService(repo *repository.Repository, configSvc ConfigService, eligibilitySvc EligibilityService, logger *zap.Logger) ScoringService {
	return &scoringService{
		repo:        repo,
		config:      configSvc,
		eligibility: eligibilitySvc,
		logger:      logger,
		now:         time.Now,
	}
}

// Recommend 为班次产出排序后的推荐列表。
// 不合格的候选人直接排除，不会以低分形式混进结果。
func (s *scoringService) Recommend(ctx context.Context, req *dto.RecommendationsRequest) ([]dto.CandidateScoreResponse, error) {
	shift, err := s.getShift(ctx, req.ShiftID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := s.repo.Consultant.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}

	pool := make([]*model.Consultant, 0, len(candidates))
	for i := range candidates {
		pool = append(pool, &candidates[i])
	}
	scored, err := s.ScoreCandidates(ctx, shift, pool, cfg, nil)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > len(scored) {
		limit = len(scored)
	}

	out := make([]dto.CandidateScoreResponse, 0, limit)
	for _, cs := range scored[:limit] {
		out = append(out, dto.CandidateScoreResponse{
			ConsultantID:    cs.Consultant.ConsultantID,
			ConsultantName:  cs.Consultant.Name,
			ShiftID:         shift.ShiftID,
			TotalScore:      round2(cs.Total),
			FactorBreakdown: cs.Breakdown,
			Explanation:     cs.Explanation,
		})
	}
	return out, nil
}

// Explain 解释单个候选人在某班次上的得分构成
func (s *scoringService) Explain(ctx context.Context, req *dto.ExplainRequest) (*dto.CandidateScoreResponse, error) {
	shift, err := s.getShift(ctx, req.ShiftID)
	if err != nil {
		return nil, err
	}
	consultant, err := s.repo.Consultant.GetByID(ctx, req.ConsultantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultantNotFound
		}
		return nil, fmt.Errorf("查询顾问失败: %w", err)
	}
	cfg, err := s.config.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}

	cs, err := s.scoreOne(ctx, shift, consultant, cfg, nil, nil)
	if err != nil {
		return nil, err
	}
	return &dto.CandidateScoreResponse{
		ConsultantID:    consultant.ConsultantID,
		ConsultantName:  consultant.Name,
		ShiftID:         shift.ShiftID,
		TotalScore:      round2(cs.Total),
		FactorBreakdown: cs.Breakdown,
		Explanation:     cs.Explanation,
	}, nil
}

// ScoreCandidates 对候选池评分，剔除不合格者，返回确定性排序后的结果。
// 排序键：总分降序 → 可靠性降序 → 时薪升序 → 可用起始日升序 → 顾问 ID 升序。
// 同分时排序键保证任何一次运行产出同一顺序。
func (s *scoringService) ScoreCandidates(ctx context.Context, shift *model.Shift, candidates []*model.Consultant, cfg *model.SchedulingConfiguration, bctx *BatchContext) ([]CandidateScore, error) {
	// 成本因子需要池内时薪范围做归一化
	minRate, maxRate := rateRange(candidates)

	scored := make([]CandidateScore, 0, len(candidates))
	for _, c := range candidates {
		// 不合格的候选人直接出局，不参与评分
		elig, err := s.eligibility.CheckForShift(ctx, c, shift, shift.Hospital)
		if err != nil {
			return nil, err
		}
		if !elig.Eligible {
			continue
		}
		cs, err := s.scoreOne(ctx, shift, c, cfg, bctx, &rateBounds{min: minRate, max: maxRate})
		if err != nil {
			return nil, err
		}
		scored = append(scored, *cs)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Consultant.ReliabilityScore != b.Consultant.ReliabilityScore {
			return a.Consultant.ReliabilityScore > b.Consultant.ReliabilityScore
		}
		if a.Consultant.HourlyRate != b.Consultant.HourlyRate {
			return a.Consultant.HourlyRate < b.Consultant.HourlyRate
		}
		ai, bi := availableFromKey(a.Consultant), availableFromKey(b.Consultant)
		if !ai.Equal(bi) {
			return ai.Before(bi)
		}
		return a.Consultant.ConsultantID < b.Consultant.ConsultantID
	})
	return scored, nil
}

type rateBounds struct {
	min, max float64
}

// scoreOne 计算单个候选人的加权总分。
// bounds 为 nil 时成本因子退化为绝对刻度（Explain 单人路径）。
func (s *scoringService) scoreOne(ctx context.Context, shift *model.Shift, c *model.Consultant, cfg *model.SchedulingConfiguration, bctx *BatchContext, bounds *rateBounds) (*CandidateScore, error) {
	weights := cfg.Weights
	if weights == nil {
		weights = model.DefaultWeights()
	}

	breakdown := make(map[string]float64, len(model.KnownFactors))
	breakdown[model.FactorSkillMatch] = s.skillMatchScore(shift, c)
	availability, err := s.availabilityScore(ctx, shift, c, bctx)
	if err != nil {
		return nil, err
	}
	breakdown[model.FactorAvailability] = availability
	breakdown[model.FactorCost] = costScore(c.HourlyRate, bounds)
	familiarity, err := s.familiarityScore(ctx, shift, c)
	if err != nil {
		return nil, err
	}
	breakdown[model.FactorHospitalFamiliarity] = familiarity
	breakdown[model.FactorEHRExpertise] = ehrScore(shift, c)
	breakdown[model.FactorReliability] = reliabilityScore(c)
	breakdown[model.FactorProximity] = proximityScore(shift, c)
	fairness, err := s.fairnessScore(ctx, shift, c, cfg, bctx)
	if err != nil {
		return nil, err
	}
	breakdown[model.FactorFairness] = fairness

	var total float64
	type contribution struct {
		factor string
		value  float64
	}
	// 固定因子序求和，避免浮点加法顺序随 map 迭代变化
	contributions := make([]contribution, 0, len(breakdown))
	for _, factor := range model.KnownFactors {
		contrib := weights[factor] * breakdown[factor]
		total += contrib
		contributions = append(contributions, contribution{factor: factor, value: contrib})
	}

	// 解释按贡献降序展示，贡献相同按因子名定序
	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].value != contributions[j].value {
			return contributions[i].value > contributions[j].value
		}
		return contributions[i].factor < contributions[j].factor
	})
	explanation := make([]string, 0, len(contributions))
	for _, con := range contributions {
		explanation = append(explanation, fmt.Sprintf("%s: 子分 %.1f × 权重 %.2f = 贡献 %.2f",
			con.factor, breakdown[con.factor], weights[con.factor], con.value))
	}

	for factor := range breakdown {
		breakdown[factor] = round2(breakdown[factor])
	}

	return &CandidateScore{
		Consultant:  c,
		Total:       total,
		Breakdown:   breakdown,
		Explanation: explanation,
	}, nil
}

// ── 因子子分（统一 0-100 刻度）──

// skillMatchScore 必需技能覆盖率，按熟练度加权；班次无技能要求时满分
func (s *scoringService) skillMatchScore(shift *model.Shift, c *model.Consultant) float64 {
	if len(shift.RequiredSkills) == 0 {
		return 100
	}
	var sum float64
	for _, required := range shift.RequiredSkills {
		for _, skill := range c.Skills {
			if skill.SkillType == required {
				sum += float64(skill.Proficiency) / 5.0 * 100
				break
			}
		}
	}
	return sum / float64(len(shift.RequiredSkills))
}

// availabilityScore 与既有确认指派、批内提议的冲突检查；有冲突归零
func (s *scoringService) availabilityScore(ctx context.Context, shift *model.Shift, c *model.Consultant, bctx *BatchContext) (float64, error) {
	if c.AvailableFrom != nil && c.AvailableFrom.After(shift.StartAt) {
		return 0, nil
	}
	if bctx != nil && bctx.Conflicts(c.ConsultantID, shift.StartAt, shift.EndAt) {
		return 0, nil
	}
	confirmed, err := s.repo.Assignment.ListConfirmedByConsultant(ctx, c.ConsultantID)
	if err != nil {
		return 0, fmt.Errorf("查询既有指派失败: %w", err)
	}
	for _, a := range confirmed {
		if a.Shift == nil {
			continue
		}
		if model.Overlaps(a.Shift.StartAt, a.Shift.EndAt, shift.StartAt, shift.EndAt) {
			return 0, nil
		}
	}
	return 100, nil
}

// costScore 时薪在候选池内的相对位置，越便宜越高；单人路径用绝对刻度
func costScore(rate float64, bounds *rateBounds) float64 {
	if bounds == nil {
		// 绝对刻度：以 300/h 为零分锚点
		if rate >= 300 {
			return 0
		}
		return (300 - rate) / 300 * 100
	}
	if bounds.max <= bounds.min {
		return 100
	}
	return (bounds.max - rate) / (bounds.max - bounds.min) * 100
}

// familiarityScore 在该医院的历史确认班次数，5 次封顶
func (s *scoringService) familiarityScore(ctx context.Context, shift *model.Shift, c *model.Consultant) (float64, error) {
	count, err := s.repo.Assignment.CountConfirmedAtHospital(ctx, c.ConsultantID, shift.HospitalID)
	if err != nil {
		return 0, fmt.Errorf("查询医院历史指派失败: %w", err)
	}
	if count >= 5 {
		return 100, nil
	}
	return float64(count) * 20, nil
}

// ehrScore 班次 EHR 系统匹配；班次未指定系统时满分
func ehrScore(shift *model.Shift, c *model.Consultant) float64 {
	if shift.EHRSystem == "" {
		return 100
	}
	if c.EHRSystems.Contains(shift.EHRSystem) {
		return 100
	}
	return 0
}

// reliabilityScore 可靠性综合分：历史可靠度为主，完成率与评价辅助
func reliabilityScore(c *model.Consultant) float64 {
	return 0.6*c.ReliabilityScore + 0.25*c.CompletionRate*100 + 0.15*c.Rating*20
}

// proximityScore 顾问与医院的大圆距离线性衰减：10km 内满分，200km 外零分
func proximityScore(shift *model.Shift, c *model.Consultant) float64 {
	if shift.Hospital == nil {
		return 50 // 医院坐标缺失时取中性分
	}
	km := haversineKm(c.Latitude, c.Longitude, shift.Hospital.Latitude, shift.Hospital.Longitude)
	switch {
	case km <= 10:
		return 100
	case km >= 200:
		return 0
	default:
		return (200 - km) / 190 * 100
	}
}

// fairnessScore 当周已承诺工时越少分越高；批内已拿到指派的候选人额外降权
func (s *scoringService) fairnessScore(ctx context.Context, shift *model.Shift, c *model.Consultant, cfg *model.SchedulingConfiguration, bctx *BatchContext) (float64, error) {
	week := shift.WeekStart()
	var committed float64
	entry, err := s.repo.Ledger.Get(ctx, c.ConsultantID, week)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("查询工时账本失败: %w", err)
		}
	} else {
		committed = entry.Hours
	}
	if bctx != nil {
		committed += bctx.HoursDelta(c.ConsultantID, week)
	}

	maxWeekly := cfg.Constraints.MaxWeeklyHours
	if maxWeekly <= 0 {
		maxWeekly = 40
	}
	load := committed / maxWeekly
	if load > 1 {
		load = 1
	}
	score := (1 - load) * 100

	if bctx != nil {
		// 批内每多拿一个班次扣 10 分，8 分封底扣减
		penalty := float64(bctx.AssignCount(c.ConsultantID)) * 10
		if penalty > 80 {
			penalty = 80
		}
		score -= penalty
		if score < 0 {
			score = 0
		}
	}
	return score, nil
}

// ── 辅助 ──

func (s *scoringService) getShift(ctx context.Context, shiftID string) (*model.Shift, error) {
	shift, err := s.repo.Shift.GetByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	return shift, nil
}

func rateRange(candidates []*model.Consultant) (float64, float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	min, max := candidates[0].HourlyRate, candidates[0].HourlyRate
	for _, c := range candidates[1:] {
		if c.HourlyRate < min {
			min = c.HourlyRate
		}
		if c.HourlyRate > max {
			max = c.HourlyRate
		}
	}
	return min, max
}

func availableFromKey(c *model.Consultant) time.Time {
	if c.AvailableFrom == nil {
		return time.Time{} // 未设置视为随时可用，排最前
	}
	return *c.AvailableFrom
}

// haversineKm 两点大圆距离（公里）
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
