package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// SchedulingHandler 推荐与批次指派模块 HTTP 处理器
type SchedulingHandler struct {
	scoringSvc    service.ScoringService
	autoAssignSvc service.AutoAssignService
}

// NewSchedulingHandler 创建 SchedulingHandler
func NewSchedulingHandler(scoringSvc service.ScoringService, autoAssignSvc service.AutoAssignService) *SchedulingHandler {
	return &SchedulingHandler{scoringSvc: scoringSvc, autoAssignSvc: autoAssignSvc}
}

// Recommendations 获取班次推荐列表
// GET /api/v1/scheduling/recommendations
func (h *SchedulingHandler) Recommendations(c *gin.Context) {
	var req dto.RecommendationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	list, err := h.scoringSvc.Recommend(c.Request.Context(), &req)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Explain 解释某候选人在某班次上的得分构成
// GET /api/v1/scheduling/recommendations/explain
func (h *SchedulingHandler) Explain(c *gin.Context) {
	var req dto.ExplainRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	result, err := h.scoringSvc.Explain(c.Request.Context(), &req)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, result)
}

// Validate 批次校验预览（无持久化副作用）
// POST /api/v1/scheduling/auto-assign/validate
func (h *SchedulingHandler) Validate(c *gin.Context) {
	var req dto.ValidateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	preview, err := h.autoAssignSvc.Validate(c.Request.Context(), &req)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, preview)
}

// AutoAssign 执行批次自动指派（提议阶段）
// POST /api/v1/scheduling/auto-assign
// 全部成功 200；best_effort 部分成功 207；all_or_nothing 失败 500（携带回滚确认）
func (h *SchedulingHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.autoAssignSvc.Propose(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	h.writeBatchResult(c, result)
}

// Confirm 确认批次
// POST /api/v1/scheduling/auto-assign/confirm
func (h *SchedulingHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.autoAssignSvc.Confirm(c.Request.Context(), actor, req.BatchID)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	h.writeBatchResult(c, result)
}

// Undo 宽限期内撤销已确认批次
// POST /api/v1/scheduling/auto-assign/undo
func (h *SchedulingHandler) Undo(c *gin.Context) {
	var req dto.UndoBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.autoAssignSvc.Undo(c.Request.Context(), actor, req.BatchID)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, result)
}

// Cancel 确认前取消批次
// POST /api/v1/scheduling/auto-assign/cancel
func (h *SchedulingHandler) Cancel(c *gin.Context) {
	var req dto.CancelBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.autoAssignSvc.Cancel(c.Request.Context(), actor, req.BatchID)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, result)
}

// GetBatch 批次详情
// GET /api/v1/scheduling/batches/:id
func (h *SchedulingHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 13001, "批次ID不能为空")
		return
	}

	result, err := h.autoAssignSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.OK(c, result)
}

// Override 特权覆盖指派（仅 admin，且仅可豁免被点名的规则）
// POST /api/v1/scheduling/override
func (h *SchedulingHandler) Override(c *gin.Context) {
	var req dto.OverrideAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.autoAssignSvc.Override(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleSchedulingError(c, err)
		return
	}
	response.Created(c, result)
}

// writeBatchResult 按批次终态映射 HTTP 状态码
func (h *SchedulingHandler) writeBatchResult(c *gin.Context, result *dto.BatchResponse) {
	switch result.Status {
	case model.BatchPartiallyApplied:
		response.MultiStatus(c, result)
	case model.BatchRolledBack:
		response.ErrorWithData(c, http.StatusInternalServerError, 13201, "批次未能成交，已整体回滚", result)
	default:
		response.OK(c, result)
	}
}

func (h *SchedulingHandler) handleSchedulingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrShiftNotFound):
		response.NotFound(c, 13101, "班次不存在")
	case errors.Is(err, service.ErrConsultantNotFound):
		response.NotFound(c, 13102, "顾问不存在")
	case errors.Is(err, service.ErrBatchNotFound):
		response.NotFound(c, 13103, "批次不存在")
	case errors.Is(err, service.ErrBatchNotConfirmable):
		response.BadRequest(c, 13104, "批次当前状态不可确认")
	case errors.Is(err, service.ErrBatchNotCancelable):
		response.BadRequest(c, 13105, "批次当前状态不可取消")
	case errors.Is(err, service.ErrBatchNotUndoable):
		response.BadRequest(c, 13106, "批次当前状态不可撤销")
	case errors.Is(err, service.ErrUndoWindowExpired):
		response.BadRequest(c, 13107, "撤销宽限期已过")
	case errors.Is(err, service.ErrCandidateIneligible):
		response.BadRequest(c, 13108, "候选人未通过资格校验")
	case errors.Is(err, service.ErrRuleNotOverridable):
		response.BadRequest(c, 13109, "该规则不允许特权覆盖")
	case errors.Is(err, service.ErrOverrideStillBlocked):
		response.Conflict(c, 13110, "存在未被点名的硬违规，覆盖被拒绝")
	case errors.Is(err, service.ErrBatchFailed):
		response.Error(c, http.StatusInternalServerError, 13201, "批次确认失败，已整体回滚")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 13111, "数据已被并发修改，请重试")
	default:
		response.InternalError(c)
	}
}
