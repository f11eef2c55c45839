package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
)

var (
	ErrBatchNotFound        = errors.New("批次不存在")
	ErrBatchNotConfirmable  = errors.New("批次当前状态不可确认")
	ErrBatchNotCancelable   = errors.New("批次当前状态不可取消")
	ErrBatchNotUndoable     = errors.New("批次当前状态不可撤销")
	ErrUndoWindowExpired    = errors.New("撤销宽限期已过")
	ErrBatchFailed          = errors.New("批次整体失败，已回滚")
	ErrRuleNotOverridable   = errors.New("该规则不允许特权覆盖")
	ErrOverrideStillBlocked = errors.New("存在未被点名的硬违规，覆盖被拒绝")
)

// 班次结果状态
const (
	ResultAssigned   = "assigned"
	ResultConflict   = "conflict"
	ResultIneligible = "ineligible"
	ResultViolation  = "violation"
	ResultError      = "error"
)

// AutoAssignService 批次编排服务接口。
// 提议/确认/撤销三段分离：提议只写 proposed 记录，确认落账本并定稿，
// 撤销在宽限期内把已确认的批次整体还原。
type AutoAssignService interface {
	Validate(ctx context.Context, req *dto.ValidateBatchRequest) (*dto.ValidatePreviewResponse, error)
	Propose(ctx context.Context, actor string, req *dto.AutoAssignRequest) (*dto.BatchResponse, error)
	Confirm(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error)
	Undo(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error)
	Cancel(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error)
	Override(ctx context.Context, actor string, req *dto.OverrideAssignRequest) (*dto.AssignmentResponse, error)
	GetBatch(ctx context.Context, batchID string) (*dto.BatchResponse, error)
}

type autoAssignService struct {
	repo        *repository.Repository
	scoring     ScoringService
	constraint  ConstraintService
	eligibility EligibilityService
	configSvc   ConfigService
	cfg         *config.EngineConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewAutoAssignService 创建批次编排服务实例
func NewAutoAssignService(
	repo *repository.Repository,
	scoringSvc ScoringService,
	constraintSvc ConstraintService,
	eligibilitySvc EligibilityService,
	configSvc ConfigService,
	cfg *config.EngineConfig,
	logger *zap.Logger,
) AutoAssignService {
	return &autoAssignService{
		repo:        repo,
		scoring:     scoringSvc,
		constraint:  constraintSvc,
		eligibility: eligibilitySvc,
		configSvc:   configSvc,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// ── 批内规划的中间结构 ──

// shiftPlan 单个班次在批内的规划状态
type shiftPlan struct {
	req        dto.ShiftRequest
	shift      *model.Shift
	candidates []CandidateScore // 评分降序（资格已过滤）
	decision   *planDecision
	failStatus string
	reasons    []string
}

// planDecision 班次的最终选择
type planDecision struct {
	candidate  CandidateScore
	violations []Violation // 软违规告警
}

// ── 校验预览 ──

// Validate 纯预览：跑完整条评估管线但不写任何持久化状态。
// 同一输入重复调用产出同一结果。
func (s *autoAssignService) Validate(ctx context.Context, req *dto.ValidateBatchRequest) (*dto.ValidatePreviewResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	plans, err := s.plan(ctx, req.Shifts)
	if err != nil {
		return nil, err
	}
	return &dto.ValidatePreviewResponse{Results: plansToResults(plans)}, nil
}

// ── 提议 ──

// Propose 执行批次规划并持久化 proposed 记录。
// all_or_nothing 下任一班次失败则不落任何指派，批次直接记为 rolled_back。
func (s *autoAssignService) Propose(ctx context.Context, actor string, req *dto.AutoAssignRequest) (*dto.BatchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	plans, err := s.plan(ctx, req.Shifts)
	if err != nil {
		return nil, err
	}

	assignedCount := 0
	for _, p := range plans {
		if p.decision != nil {
			assignedCount++
		}
	}

	// 提议即落空的班次没有指派行，失败结果随批次落库供详情回放
	failedResults := model.JSONMap{}
	for _, p := range plans {
		if p.decision != nil {
			continue
		}
		status := p.failStatus
		if status == "" {
			status = ResultError
		}
		failedResults[p.req.ShiftID] = map[string]interface{}{
			"status":  status,
			"reasons": p.reasons,
		}
	}

	batch := &model.AssignmentBatch{
		Mode:            req.Mode,
		Status:          model.BatchValidating,
		RequestedBy:     actor,
		RequestedShifts: len(plans),
		FailedResults:   failedResults,
	}
	allFailed := assignedCount == 0
	anyFailed := assignedCount < len(plans)
	if req.Mode == model.ModeAllOrNothing && anyFailed {
		batch.Status = model.BatchRolledBack
	} else if allFailed {
		batch.Status = model.BatchRolledBack
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Batch.Create(ctx, batch); err != nil {
			return fmt.Errorf("创建批次失败: %w", err)
		}
		if batch.Status == model.BatchRolledBack {
			return nil
		}
		assignments := make([]model.Assignment, 0, assignedCount)
		for _, p := range plans {
			if p.decision == nil {
				continue
			}
			cs := p.decision.candidate
			assignments = append(assignments, model.Assignment{
				BatchID:       batch.BatchID,
				ShiftID:       p.shift.ShiftID,
				ConsultantID:  cs.Consultant.ConsultantID,
				Status:        model.AssignmentProposed,
				ScoreSnapshot: cs.Total,
				FactorBreakdown: func() model.JSONMap {
					m := make(model.JSONMap, len(cs.Breakdown))
					for k, v := range cs.Breakdown {
						m[k] = v
					}
					return m
				}(),
				CreatedBy: actor,
			})
		}
		return tx.Assignment.BatchCreate(ctx, assignments)
	})
	if err != nil {
		return nil, err
	}

	s.auditBatch(ctx, actor, batch.BatchID, model.AuditBatch, model.JSONMap{
		"action":   "propose",
		"mode":     req.Mode,
		"shifts":   len(plans),
		"assigned": assignedCount,
		"status":   batch.Status,
	})
	s.logger.Info("批次提议完成",
		zap.String("batch_id", batch.BatchID),
		zap.String("mode", req.Mode),
		zap.Int("shifts", len(plans)),
		zap.Int("assigned", assignedCount))

	return &dto.BatchResponse{
		BatchID:   batch.BatchID,
		Mode:      batch.Mode,
		Status:    batch.Status,
		Results:   plansToResults(plans),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}, nil
}

// plan 批次规划主流程：并行评估 → 确定性贪心 → 单轮重排。
// 竞技场 bctx 只存在于本次调用，批间互不可见。
func (s *autoAssignService) plan(ctx context.Context, reqs []dto.ShiftRequest) ([]*shiftPlan, error) {
	cfg, err := s.configSvc.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}

	consultants, err := s.repo.Consultant.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	pool := make([]*model.Consultant, 0, len(consultants))
	for i := range consultants {
		pool = append(pool, &consultants[i])
	}

	plans := make([]*shiftPlan, len(reqs))
	for i, r := range reqs {
		plans[i] = &shiftPlan{req: r}
	}

	// 阶段一：并行评估。每个 worker 只读持久化状态，批内效应留给贪心阶段
	workers := s.cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(plans) {
		workers = len(plans)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, p := range plans {
		wg.Add(1)
		go func(p *shiftPlan) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.evaluateShift(ctx, p, pool, cfg)
		}(p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("批次处理超时: %w", err)
	}

	// 阶段二：确定性贪心。优先级 → 候选稀缺度 → 班次 ID 定序后逐个定夺
	order := make([]*shiftPlan, len(plans))
	copy(order, plans)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.shift == nil || b.shift == nil {
			return a.req.ShiftID < b.req.ShiftID
		}
		ra, rb := model.PriorityRank(a.shift.Priority), model.PriorityRank(b.shift.Priority)
		if ra != rb {
			return ra < rb
		}
		if len(a.candidates) != len(b.candidates) {
			return len(a.candidates) < len(b.candidates)
		}
		return a.shift.ShiftID < b.shift.ShiftID
	})

	bctx := NewBatchContext()
	for _, p := range order {
		// 贪心阶段逐班次让出取消点
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("批次处理超时: %w", err)
		}
		if p.failStatus != "" {
			continue
		}
		s.decideShift(ctx, p, cfg, bctx)
	}

	// 阶段三：单轮重排。只为落空班次做一次让位尝试，不做全局回溯
	if err := s.reassignPass(ctx, order, cfg, bctx); err != nil {
		return nil, err
	}

	return plans, nil
}

// evaluateShift 装载班次并产出资格过滤后的评分列表
func (s *autoAssignService) evaluateShift(ctx context.Context, p *shiftPlan, pool []*model.Consultant, cfg *model.SchedulingConfiguration) {
	shift, err := s.repo.Shift.GetByID(ctx, p.req.ShiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.failStatus = ResultError
			p.reasons = []string{"班次不存在"}
			return
		}
		p.failStatus = ResultError
		p.reasons = []string{fmt.Sprintf("查询班次失败: %v", err)}
		return
	}
	p.shift = shift

	if shift.Status != "open" {
		p.failStatus = ResultConflict
		p.reasons = []string{fmt.Sprintf("班次状态为 %s，不可指派", shift.Status)}
		return
	}

	scored, err := s.scoring.ScoreCandidates(ctx, shift, pool, cfg, nil)
	if err != nil {
		p.failStatus = ResultError
		p.reasons = []string{fmt.Sprintf("候选评分失败: %v", err)}
		return
	}
	if len(scored) == 0 {
		p.failStatus = ResultIneligible
		p.reasons = []string{"无任何合格候选人"}
		return
	}
	p.candidates = scored
}

// decideShift 在竞技场状态下为班次选出首个通过硬约束的候选人。
// 请求点名的首选顾问若过关则优先采纳。
func (s *autoAssignService) decideShift(ctx context.Context, p *shiftPlan, cfg *model.SchedulingConfiguration, bctx *BatchContext) {
	// 并行评估只看持久化状态；定夺前带竞技场重评一次，
	// 让公平性惩罚在批内逐班次生效
	pool := make([]*model.Consultant, 0, len(p.candidates))
	for i := range p.candidates {
		pool = append(pool, p.candidates[i].Consultant)
	}
	ordered, err := s.scoring.ScoreCandidates(ctx, p.shift, pool, cfg, bctx)
	if err != nil {
		p.failStatus = ResultError
		p.reasons = []string{fmt.Sprintf("候选评分失败: %v", err)}
		return
	}
	if p.req.PreferredConsultant != nil {
		ordered = preferFirst(ordered, *p.req.PreferredConsultant)
	}

	var lastViolations []Violation
	for _, cs := range ordered {
		hard, err := s.constraint.CheckHard(ctx, cs.Consultant, p.shift, cfg, bctx)
		if err != nil {
			p.failStatus = ResultError
			p.reasons = []string{fmt.Sprintf("约束校验失败: %v", err)}
			return
		}
		if len(hard) > 0 {
			lastViolations = hard
			continue
		}
		soft, err := s.constraint.CheckSoft(ctx, cs.Consultant, p.shift, cfg, bctx)
		if err != nil {
			p.failStatus = ResultError
			p.reasons = []string{fmt.Sprintf("约束校验失败: %v", err)}
			return
		}
		bctx.Commit(cs.Consultant.ConsultantID, p.shift)
		p.decision = &planDecision{candidate: cs, violations: soft}
		return
	}

	p.failStatus = ResultViolation
	p.reasons = []string{"所有候选人均被硬约束阻断"}
	for _, v := range lastViolations {
		p.reasons = append(p.reasons, v.Message)
	}
}

// reassignPass 单轮让位重排：落空班次尝试从已占位的候选人手里
// 接走一个可由替补承接的班次。只跑一遍，不递归。
func (s *autoAssignService) reassignPass(ctx context.Context, order []*shiftPlan, cfg *model.SchedulingConfiguration, bctx *BatchContext) error {
	assignedBy := make(map[string][]*shiftPlan) // consultantID → 已占位班次
	for _, p := range order {
		if p.decision != nil {
			cid := p.decision.candidate.Consultant.ConsultantID
			assignedBy[cid] = append(assignedBy[cid], p)
		}
	}

	for _, failed := range order {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("批次处理超时: %w", err)
		}
		if failed.decision != nil || failed.failStatus != ResultViolation || failed.shift == nil {
			continue
		}
		if s.tryReassign(ctx, failed, assignedBy, cfg, bctx) {
			failed.failStatus = ""
			failed.reasons = nil
			cid := failed.decision.candidate.Consultant.ConsultantID
			assignedBy[cid] = append(assignedBy[cid], failed)
		}
	}
	return nil
}

func (s *autoAssignService) tryReassign(ctx context.Context, failed *shiftPlan, assignedBy map[string][]*shiftPlan, cfg *model.SchedulingConfiguration, bctx *BatchContext) bool {
	for _, cs := range failed.candidates {
		cid := cs.Consultant.ConsultantID
		// 找到与落空班次冲突的那一个批内占位
		var blocker *shiftPlan
		conflicts := 0
		for _, held := range assignedBy[cid] {
			if model.Overlaps(held.shift.StartAt, held.shift.EndAt, failed.shift.StartAt, failed.shift.EndAt) {
				blocker = held
				conflicts++
			}
		}
		if conflicts != 1 {
			continue
		}

		// 暂时让位，看替补能否接走 blocker
		bctx.Release(cid, blocker.shift)
		substitute := s.findSubstitute(ctx, blocker, cid, cfg, bctx)
		if substitute == nil {
			bctx.Commit(cid, blocker.shift)
			continue
		}

		// 让位成立前提：候选人本人要能过落空班次的硬约束
		hard, err := s.constraint.CheckHard(ctx, cs.Consultant, failed.shift, cfg, bctx)
		if err != nil || len(hard) > 0 {
			bctx.Release(substitute.Consultant.ConsultantID, blocker.shift)
			bctx.Commit(cid, blocker.shift)
			continue
		}

		// 定稿：blocker 移交替补，落空班次归候选人
		oldHolder := assignedBy[cid]
		for i, held := range oldHolder {
			if held == blocker {
				assignedBy[cid] = append(oldHolder[:i], oldHolder[i+1:]...)
				break
			}
		}
		sid := substitute.Consultant.ConsultantID
		assignedBy[sid] = append(assignedBy[sid], blocker)
		blocker.decision = &planDecision{candidate: *substitute}

		bctx.Commit(cid, failed.shift)
		failed.decision = &planDecision{candidate: cs}
		return true
	}
	return false
}

// findSubstitute 为班次找下一位通过硬约束的替补（排除让位者本人）
func (s *autoAssignService) findSubstitute(ctx context.Context, p *shiftPlan, excludeID string, cfg *model.SchedulingConfiguration, bctx *BatchContext) *CandidateScore {
	for i := range p.candidates {
		cs := &p.candidates[i]
		if cs.Consultant.ConsultantID == excludeID {
			continue
		}
		hard, err := s.constraint.CheckHard(ctx, cs.Consultant, p.shift, cfg, bctx)
		if err != nil || len(hard) > 0 {
			continue
		}
		bctx.Commit(cs.Consultant.ConsultantID, p.shift)
		return cs
	}
	return nil
}

// ── 确认 ──

// Confirm 把 validating 批次定稿：资格复核、账本入账、班次占用。
// all_or_nothing 下任一失败整批回滚；best_effort 下失败的指派单独拒绝。
func (s *autoAssignService) Confirm(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != model.BatchValidating {
		return nil, ErrBatchNotConfirmable
	}

	assignments, err := s.repo.Assignment.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询批次指派失败: %w", err)
	}
	cfg, err := s.configSvc.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}

	if batch.Mode == model.ModeAllOrNothing {
		return s.confirmAllOrNothing(ctx, actor, batch, assignments, cfg)
	}
	return s.confirmBestEffort(ctx, actor, batch, assignments, cfg)
}

func (s *autoAssignService) confirmAllOrNothing(ctx context.Context, actor string, batch *model.AssignmentBatch, assignments []model.Assignment, cfg *model.SchedulingConfiguration) (*dto.BatchResponse, error) {
	confirmErr := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for i := range assignments {
			if err := s.confirmOne(ctx, tx, &assignments[i], cfg); err != nil {
				return err
			}
		}
		return nil
	})
	if confirmErr != nil {
		// 事务已整体回滚，批次记为 rolled_back 后把失败明确返回给调用方
		batch.Status = model.BatchRolledBack
		if err := s.repo.Batch.Update(ctx, batch); err != nil {
			s.logger.Error("批次回滚状态写入失败", zap.String("batch_id", batch.BatchID), zap.Error(err))
		}
		s.auditBatch(ctx, actor, batch.BatchID, model.AuditBatch, model.JSONMap{
			"action": "confirm_rollback",
			"reason": confirmErr.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrBatchFailed, confirmErr)
	}

	now := s.now().UTC()
	batch.Status = model.BatchApplied
	batch.ConfirmedAt = &now
	if err := s.repo.Batch.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("批次状态更新失败: %w", err)
	}
	s.afterConfirm(ctx, actor, batch, assignments)
	return s.GetBatch(ctx, batch.BatchID)
}

func (s *autoAssignService) confirmBestEffort(ctx context.Context, actor string, batch *model.AssignmentBatch, assignments []model.Assignment, cfg *model.SchedulingConfiguration) (*dto.BatchResponse, error) {
	confirmed := 0
	for i := range assignments {
		a := &assignments[i]
		err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			return s.confirmOne(ctx, tx, a, cfg)
		})
		if err != nil {
			s.logger.Warn("指派确认失败，继续处理批内其余指派",
				zap.String("assignment_id", a.AssignmentID),
				zap.Error(err))
			a.Status = model.AssignmentRejected
			if uerr := s.repo.Assignment.Update(ctx, a); uerr != nil {
				s.logger.Error("指派拒绝状态写入失败", zap.String("assignment_id", a.AssignmentID), zap.Error(uerr))
			}
			continue
		}
		confirmed++
	}

	// 终态看请求总数而非落库指派数：提议阶段落空的班次同样算未满足
	requested := batch.RequestedShifts
	if requested < len(assignments) {
		requested = len(assignments)
	}
	now := s.now().UTC()
	switch {
	case confirmed == requested && confirmed > 0:
		batch.Status = model.BatchApplied
		batch.ConfirmedAt = &now
	case confirmed > 0:
		batch.Status = model.BatchPartiallyApplied
		batch.ConfirmedAt = &now
	default:
		batch.Status = model.BatchRolledBack
	}
	if err := s.repo.Batch.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("批次状态更新失败: %w", err)
	}
	if confirmed > 0 {
		s.afterConfirm(ctx, actor, batch, assignments)
	}
	return s.GetBatch(ctx, batch.BatchID)
}

// confirmOne 确认单条指派：资格复核 → 硬约束复核 → 状态翻转 → 班次占用 → 账本入账
func (s *autoAssignService) confirmOne(ctx context.Context, tx *repository.Repository, a *model.Assignment, cfg *model.SchedulingConfiguration) error {
	if a.Status != model.AssignmentProposed {
		return fmt.Errorf("指派 %s 状态为 %s，不可确认", a.AssignmentID, a.Status)
	}
	if a.Shift == nil || a.Consultant == nil {
		return fmt.Errorf("指派 %s 关联数据缺失", a.AssignmentID)
	}

	// 提议与确认之间资质可能已变化，确认前强制复核
	elig, err := s.eligibility.CheckForShift(ctx, a.Consultant, a.Shift, a.Shift.Hospital)
	if err != nil {
		return err
	}
	if !elig.Eligible {
		return fmt.Errorf("%w: %v", ErrCandidateIneligible, elig.Reasons)
	}

	// 另一批次可能在提议后抢先确认了同人重叠班次或占满周工时，
	// 对当前持久化状态重跑硬约束兜住这类漂移
	hard, err := s.constraint.CheckHard(ctx, a.Consultant, a.Shift, cfg, nil)
	if err != nil {
		return err
	}
	if len(hard) > 0 {
		msgs := make([]string, 0, len(hard))
		for _, v := range hard {
			msgs = append(msgs, v.Message)
		}
		return fmt.Errorf("确认时硬约束违规: %s", strings.Join(msgs, "; "))
	}

	a.Status = model.AssignmentConfirmed
	if err := tx.Assignment.Update(ctx, a); err != nil {
		// 部分唯一索引兜底：同班次已有他人 confirmed 时在这里报冲突
		return fmt.Errorf("指派确认写入失败: %w", err)
	}

	if err := tx.Shift.UpdateStatus(ctx, a.ShiftID, "assigned"); err != nil {
		return fmt.Errorf("班次占用写入失败: %w", err)
	}

	return s.creditLedger(ctx, tx, a.ConsultantID, a.Shift.WeekStart(), a.Shift.Hours())
}

// creditLedger 周工时入账；乐观锁冲突时重读重试，超出次数上限则放弃
func (s *autoAssignService) creditLedger(ctx context.Context, tx *repository.Repository, consultantID string, week time.Time, hours float64) error {
	retries := s.cfg.LedgerRetryLimit
	if retries <= 0 {
		retries = 1
	}
	for attempt := 0; attempt <= retries; attempt++ {
		entry, err := tx.Ledger.Get(ctx, consultantID, week)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				entry = &model.CommittedHoursLedger{
					ConsultantID: consultantID,
					WeekStart:    week,
					Hours:        hours,
					Version:      1,
				}
				if cerr := tx.Ledger.Create(ctx, entry); cerr != nil {
					// 并发首建撞唯一键的场景走一次重读
					if attempt < retries {
						continue
					}
					return fmt.Errorf("工时账本创建失败: %w", cerr)
				}
				return nil
			}
			return fmt.Errorf("查询工时账本失败: %w", err)
		}
		entry.Hours += hours
		if uerr := tx.Ledger.Update(ctx, entry); uerr != nil {
			if errors.Is(uerr, pkgerrors.ErrOptimisticLock) && attempt < retries {
				continue
			}
			return fmt.Errorf("工时账本更新失败: %w", uerr)
		}
		return nil
	}
	return pkgerrors.ErrOptimisticLock
}

// afterConfirm 确认善后：审计 + 协作方发件箱。失败只记日志，不影响定稿。
func (s *autoAssignService) afterConfirm(ctx context.Context, actor string, batch *model.AssignmentBatch, assignments []model.Assignment) {
	var audits []model.AuditEntry
	var messages []model.OutboxMessage
	now := s.now().UTC()
	for i := range assignments {
		a := &assignments[i]
		if a.Status != model.AssignmentConfirmed {
			continue
		}
		aid := a.AssignmentID
		audits = append(audits, model.AuditEntry{
			Category: model.AuditAssignment,
			RefID:    &aid,
			Actor:    &actor,
			Detail: model.JSONMap{
				"action":        "confirm",
				"batch_id":      batch.BatchID,
				"shift_id":      a.ShiftID,
				"consultant_id": a.ConsultantID,
				"score":         a.ScoreSnapshot,
			},
		})
		payload := model.JSONMap{
			"assignment_id": a.AssignmentID,
			"batch_id":      batch.BatchID,
			"shift_id":      a.ShiftID,
			"consultant_id": a.ConsultantID,
			"event":         "assignment_confirmed",
		}
		if a.Shift != nil {
			payload["start_at"] = a.Shift.StartAt.Format(time.RFC3339)
			payload["end_at"] = a.Shift.EndAt.Format(time.RFC3339)
		}
		messages = append(messages,
			model.OutboxMessage{Channel: model.ChannelNotification, Payload: payload, Status: model.OutboxPending, NextAttemptAt: now},
			model.OutboxMessage{Channel: model.ChannelCalendar, Payload: payload, Status: model.OutboxPending, NextAttemptAt: now},
		)
	}
	if err := s.repo.Audit.BatchCreate(ctx, audits); err != nil {
		s.logger.Error("指派审计写入失败", zap.String("batch_id", batch.BatchID), zap.Error(err))
	}
	if err := s.repo.Outbox.BatchCreate(ctx, messages); err != nil {
		s.logger.Error("协作方发件箱写入失败", zap.String("batch_id", batch.BatchID), zap.Error(err))
	}
}

// ── 撤销与取消 ──

// Undo 宽限期内把已确认批次整体还原：指派翻转、账本退账、班次释放
func (s *autoAssignService) Undo(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != model.BatchApplied && batch.Status != model.BatchPartiallyApplied {
		return nil, ErrBatchNotUndoable
	}
	if batch.ConfirmedAt == nil || s.now().After(batch.ConfirmedAt.Add(s.cfg.UndoGracePeriod)) {
		return nil, ErrUndoWindowExpired
	}

	assignments, err := s.repo.Assignment.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询批次指派失败: %w", err)
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for i := range assignments {
			a := &assignments[i]
			if a.Status != model.AssignmentConfirmed {
				continue
			}
			a.Status = model.AssignmentRolledBack
			if err := tx.Assignment.Update(ctx, a); err != nil {
				return fmt.Errorf("指派撤销写入失败: %w", err)
			}
			if err := tx.Shift.UpdateStatus(ctx, a.ShiftID, "open"); err != nil {
				return fmt.Errorf("班次释放失败: %w", err)
			}
			if a.Shift != nil {
				if err := s.creditLedger(ctx, tx, a.ConsultantID, a.Shift.WeekStart(), -a.Shift.Hours()); err != nil {
					return fmt.Errorf("工时账本退账失败: %w", err)
				}
			}
		}
		batch.Status = model.BatchRolledBack
		return tx.Batch.Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.auditBatch(ctx, actor, batchID, model.AuditUndo, model.JSONMap{
		"action":      "undo",
		"assignments": len(assignments),
	})
	s.notifyUndo(ctx, batch, assignments)
	s.logger.Info("批次已撤销", zap.String("batch_id", batchID), zap.String("actor", actor))
	return s.GetBatch(ctx, batchID)
}

// Cancel 确认前放弃批次：proposed 指派全部拒绝，不碰账本
func (s *autoAssignService) Cancel(ctx context.Context, actor, batchID string) (*dto.BatchResponse, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != model.BatchValidating {
		return nil, ErrBatchNotCancelable
	}

	assignments, err := s.repo.Assignment.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询批次指派失败: %w", err)
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for i := range assignments {
			a := &assignments[i]
			if a.Status != model.AssignmentProposed {
				continue
			}
			a.Status = model.AssignmentRejected
			if err := tx.Assignment.Update(ctx, a); err != nil {
				return fmt.Errorf("指派取消写入失败: %w", err)
			}
		}
		batch.Status = model.BatchRolledBack
		return tx.Batch.Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.auditBatch(ctx, actor, batchID, model.AuditBatch, model.JSONMap{"action": "cancel"})
	return s.GetBatch(ctx, batchID)
}

func (s *autoAssignService) notifyUndo(ctx context.Context, batch *model.AssignmentBatch, assignments []model.Assignment) {
	var messages []model.OutboxMessage
	now := s.now().UTC()
	for i := range assignments {
		a := &assignments[i]
		if a.Status != model.AssignmentRolledBack {
			continue
		}
		payload := model.JSONMap{
			"assignment_id": a.AssignmentID,
			"batch_id":      batch.BatchID,
			"shift_id":      a.ShiftID,
			"consultant_id": a.ConsultantID,
			"event":         "assignment_rolled_back",
		}
		if a.Shift != nil {
			payload["start_at"] = a.Shift.StartAt.Format(time.RFC3339)
			payload["end_at"] = a.Shift.EndAt.Format(time.RFC3339)
		}
		messages = append(messages,
			model.OutboxMessage{Channel: model.ChannelNotification, Payload: payload, Status: model.OutboxPending, NextAttemptAt: now},
			model.OutboxMessage{Channel: model.ChannelCalendar, Payload: payload, Status: model.OutboxPending, NextAttemptAt: now},
		)
	}
	if err := s.repo.Outbox.BatchCreate(ctx, messages); err != nil {
		s.logger.Error("撤销通知发件箱写入失败", zap.String("batch_id", batch.BatchID), zap.Error(err))
	}
}

// ── 特权覆盖 ──

// Override 特权覆盖指派：只豁免被点名的那一条可覆盖硬约束。
// 资格校验永不豁免；未点名的硬违规照常阻断。
func (s *autoAssignService) Override(ctx context.Context, actor string, req *dto.OverrideAssignRequest) (*dto.AssignmentResponse, error) {
	if !OverridableRule(req.Rule) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotOverridable, req.Rule)
	}

	shift, err := s.repo.Shift.GetByID(ctx, req.ShiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	consultant, err := s.repo.Consultant.GetByID(ctx, req.ConsultantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsultantNotFound
		}
		return nil, fmt.Errorf("查询顾问失败: %w", err)
	}

	elig, err := s.eligibility.CheckForShift(ctx, consultant, shift, shift.Hospital)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %v", ErrCandidateIneligible, elig.Reasons)
	}

	cfg, err := s.configSvc.ActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	hard, err := s.constraint.CheckHard(ctx, consultant, shift, cfg, nil)
	if err != nil {
		return nil, err
	}
	for _, v := range hard {
		if v.Type != req.Rule {
			return nil, fmt.Errorf("%w: %s", ErrOverrideStillBlocked, v.Type)
		}
	}

	now := s.now().UTC()
	batch := &model.AssignmentBatch{
		Mode:        model.ModeBestEffort,
		Status:      model.BatchApplied,
		RequestedBy: actor,
		ConfirmedAt: &now,
	}
	rule := req.Rule
	reason := req.Reason
	assignment := &model.Assignment{
		ShiftID:        shift.ShiftID,
		ConsultantID:   consultant.ConsultantID,
		Status:         model.AssignmentConfirmed,
		Overridden:     true,
		OverriddenRule: &rule,
		OverrideActor:  &actor,
		OverrideReason: &reason,
		CreatedBy:      actor,
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Batch.Create(ctx, batch); err != nil {
			return fmt.Errorf("创建覆盖批次失败: %w", err)
		}
		assignment.BatchID = batch.BatchID
		if err := tx.Assignment.BatchCreate(ctx, []model.Assignment{*assignment}); err != nil {
			return fmt.Errorf("覆盖指派写入失败: %w", err)
		}
		if err := tx.Shift.UpdateStatus(ctx, shift.ShiftID, "assigned"); err != nil {
			return fmt.Errorf("班次占用写入失败: %w", err)
		}
		return s.creditLedger(ctx, tx, consultant.ConsultantID, shift.WeekStart(), shift.Hours())
	})
	if err != nil {
		return nil, err
	}

	s.auditBatch(ctx, actor, batch.BatchID, model.AuditOverride, model.JSONMap{
		"action":        "override",
		"shift_id":      shift.ShiftID,
		"consultant_id": consultant.ConsultantID,
		"rule":          req.Rule,
		"reason":        req.Reason,
	})
	s.logger.Warn("特权覆盖指派已生效",
		zap.String("actor", actor),
		zap.String("shift_id", shift.ShiftID),
		zap.String("consultant_id", consultant.ConsultantID),
		zap.String("rule", req.Rule))

	return &dto.AssignmentResponse{
		AssignmentID:   assignment.AssignmentID,
		BatchID:        batch.BatchID,
		ShiftID:        assignment.ShiftID,
		ConsultantID:   assignment.ConsultantID,
		Status:         assignment.Status,
		Overridden:     true,
		OverriddenRule: assignment.OverriddenRule,
		OverrideReason: assignment.OverrideReason,
		CreatedAt:      now.Format(time.RFC3339),
	}, nil
}

// ── 查询 ──

// GetBatch 批次详情
func (s *autoAssignService) GetBatch(ctx context.Context, batchID string) (*dto.BatchResponse, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	results := make([]dto.ShiftResultResponse, 0, len(batch.Assignments)+len(batch.FailedResults))
	for i := range batch.Assignments {
		a := &batch.Assignments[i]
		status := ResultAssigned
		if a.Status == model.AssignmentRejected {
			status = ResultError
		}
		results = append(results, dto.ShiftResultResponse{
			ShiftID:      a.ShiftID,
			Status:       status,
			ConsultantID: a.ConsultantID,
			Score:        a.ScoreSnapshot,
		})
	}
	results = append(results, failedShiftResults(batch.FailedResults)...)
	sort.Slice(results, func(i, j int) bool { return results[i].ShiftID < results[j].ShiftID })

	resp := &dto.BatchResponse{
		BatchID:   batch.BatchID,
		Mode:      batch.Mode,
		Status:    batch.Status,
		Results:   results,
		CreatedAt: batch.CreatedAt.Format(time.RFC3339),
	}
	if batch.ConfirmedAt != nil {
		at := batch.ConfirmedAt.Format(time.RFC3339)
		resp.ConfirmedAt = &at
	}
	return resp, nil
}

func (s *autoAssignService) getBatch(ctx context.Context, batchID string) (*model.AssignmentBatch, error) {
	batch, err := s.repo.Batch.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("查询批次失败: %w", err)
	}
	return batch, nil
}

// ── 辅助 ──

func (s *autoAssignService) auditBatch(ctx context.Context, actor, refID, category string, detail model.JSONMap) {
	entry := &model.AuditEntry{
		Category: category,
		RefID:    &refID,
		Actor:    &actor,
		Detail:   detail,
	}
	if err := s.repo.Audit.Create(ctx, entry); err != nil {
		s.logger.Error("批次审计写入失败", zap.String("ref_id", refID), zap.Error(err))
	}
}

// preferFirst 把点名的首选顾问挪到候选列表最前（其余相对顺序不变）
func preferFirst(candidates []CandidateScore, preferredID string) []CandidateScore {
	for i, cs := range candidates {
		if cs.Consultant.ConsultantID == preferredID {
			out := make([]CandidateScore, 0, len(candidates))
			out = append(out, candidates[i])
			out = append(out, candidates[:i]...)
			out = append(out, candidates[i+1:]...)
			return out
		}
	}
	return candidates
}

// failedShiftResults 把批次上落库的失败结果还原成班次结果。
// JSONB 读回后数组是 []interface{}，两种形态都要兼容。
func failedShiftResults(failed model.JSONMap) []dto.ShiftResultResponse {
	results := make([]dto.ShiftResultResponse, 0, len(failed))
	for shiftID, raw := range failed {
		r := dto.ShiftResultResponse{ShiftID: shiftID, Status: ResultError}
		m, ok := raw.(map[string]interface{})
		if !ok {
			results = append(results, r)
			continue
		}
		if status, ok := m["status"].(string); ok && status != "" {
			r.Status = status
		}
		switch reasons := m["reasons"].(type) {
		case []string:
			r.Reasons = reasons
		case []interface{}:
			for _, v := range reasons {
				if s, ok := v.(string); ok {
					r.Reasons = append(r.Reasons, s)
				}
			}
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ShiftID < results[j].ShiftID })
	return results
}

func plansToResults(plans []*shiftPlan) []dto.ShiftResultResponse {
	results := make([]dto.ShiftResultResponse, 0, len(plans))
	for _, p := range plans {
		r := dto.ShiftResultResponse{ShiftID: p.req.ShiftID}
		switch {
		case p.decision != nil:
			r.Status = ResultAssigned
			r.ConsultantID = p.decision.candidate.Consultant.ConsultantID
			r.Score = round2(p.decision.candidate.Total)
			for _, v := range p.decision.violations {
				r.Violations = append(r.Violations, dto.ViolationResponse{
					Type:     v.Type,
					Severity: v.Severity,
					Message:  v.Message,
				})
			}
		case p.failStatus != "":
			r.Status = p.failStatus
			r.Reasons = p.reasons
		default:
			r.Status = ResultError
			r.Reasons = []string{"班次未被处理"}
		}
		results = append(results, r)
	}
	return results
}
