package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// EligibilityHandler 资格校验模块 HTTP 处理器
type EligibilityHandler struct {
	eligibilitySvc service.EligibilityService
}

// NewEligibilityHandler 创建 EligibilityHandler
func NewEligibilityHandler(eligibilitySvc service.EligibilityService) *EligibilityHandler {
	return &EligibilityHandler{eligibilitySvc: eligibilitySvc}
}

// Check 资格校验；可选 shift_id 叠加班次相关检查
// GET /api/v1/scheduling/eligibility/:id
func (h *EligibilityHandler) Check(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 12001, "顾问ID不能为空")
		return
	}
	shiftID := c.Query("shift_id")

	result, err := h.eligibilitySvc.Check(c.Request.Context(), id, shiftID)
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, result)
}

// Invalidate 资质变更钩子：立即失效该顾问的资格缓存
// POST /api/v1/scheduling/eligibility/:id/invalidate
func (h *EligibilityHandler) Invalidate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 12001, "顾问ID不能为空")
		return
	}

	if err := h.eligibilitySvc.Invalidate(c.Request.Context(), id); err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, gin.H{"invalidated": true})
}

// Certifications 证书子报告
// GET /api/v1/scheduling/eligibility/:id/certifications
func (h *EligibilityHandler) Certifications(c *gin.Context) {
	id := c.Param("id")
	report, err := h.eligibilitySvc.CertificationReport(c.Request.Context(), id)
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, report)
}

// Licenses 执照子报告
// GET /api/v1/scheduling/eligibility/:id/licenses
func (h *EligibilityHandler) Licenses(c *gin.Context) {
	id := c.Param("id")
	report, err := h.eligibilitySvc.LicenseReport(c.Request.Context(), id)
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, report)
}

// Background 背景调查子报告
// GET /api/v1/scheduling/eligibility/:id/background
func (h *EligibilityHandler) Background(c *gin.Context) {
	id := c.Param("id")
	report, err := h.eligibilitySvc.BackgroundReport(c.Request.Context(), id)
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, report)
}

// Compliance 合规子报告
// GET /api/v1/scheduling/eligibility/:id/compliance
func (h *EligibilityHandler) Compliance(c *gin.Context) {
	id := c.Param("id")
	report, err := h.eligibilitySvc.ComplianceReport(c.Request.Context(), id)
	if err != nil {
		h.handleEligibilityError(c, err)
		return
	}
	response.OK(c, report)
}

func (h *EligibilityHandler) handleEligibilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConsultantNotFound):
		response.NotFound(c, 12101, "顾问不存在")
	case errors.Is(err, service.ErrShiftNotFound):
		response.NotFound(c, 12102, "班次不存在")
	default:
		response.InternalError(c)
	}
}
