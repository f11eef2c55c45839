package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// AuditHandler 审计日志模块 HTTP 处理器
type AuditHandler struct {
	auditSvc service.AuditService
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List 审计日志分页查询
// GET /api/v1/scheduling/audit
func (h *AuditHandler) List(c *gin.Context) {
	var req dto.AuditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	list, total, err := h.auditSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
