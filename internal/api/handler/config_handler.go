package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

// ConfigHandler 调度配置模块 HTTP 处理器
type ConfigHandler struct {
	configSvc service.ConfigService
}

// NewConfigHandler 创建 ConfigHandler
func NewConfigHandler(configSvc service.ConfigService) *ConfigHandler {
	return &ConfigHandler{configSvc: configSvc}
}

// GetActive 获取当前激活配置
// GET /api/v1/scheduling/config
func (h *ConfigHandler) GetActive(c *gin.Context) {
	cfg, err := h.configSvc.GetActive(c.Request.Context())
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.OK(c, cfg)
}

// Save 保存新配置版本
// POST /api/v1/scheduling/config
func (h *ConfigHandler) Save(c *gin.Context) {
	var req dto.SaveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cfg, err := h.configSvc.Save(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.Created(c, cfg)
}

// Rollback 回滚到历史版本（生成新版本）
// POST /api/v1/scheduling/config/rollback
func (h *ConfigHandler) Rollback(c *gin.Context) {
	var req dto.RollbackConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cfg, err := h.configSvc.Rollback(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.Created(c, cfg)
}

// History 配置版本历史
// GET /api/v1/scheduling/config/history
func (h *ConfigHandler) History(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	list, total, err := h.configSvc.History(c.Request.Context(), &page)
	if err != nil {
		h.handleConfigError(c, err)
		return
	}
	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

func (h *ConfigHandler) handleConfigError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWeightsSumInvalid):
		response.BadRequest(c, 14101, "权重之和必须为 1.0")
	case errors.Is(err, service.ErrUnknownFactor):
		response.BadRequest(c, 14102, "存在未知评分因子")
	case errors.Is(err, service.ErrRulesContradict):
		response.BadRequest(c, 14103, "业务规则互相矛盾")
	case errors.Is(err, service.ErrConfigVersionNotFound):
		response.NotFound(c, 14104, "配置版本不存在")
	default:
		response.InternalError(c)
	}
}
