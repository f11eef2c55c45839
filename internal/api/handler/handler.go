package handler

import "github.com/MDx-Vision/nicehr-sub005/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Scheduling  *SchedulingHandler
	Config      *ConfigHandler
	Eligibility *EligibilityHandler
	Audit       *AuditHandler
	Export      *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Scheduling:  NewSchedulingHandler(svc.Scoring, svc.AutoAssign),
		Config:      NewConfigHandler(svc.Config),
		Eligibility: NewEligibilityHandler(svc.Eligibility),
		Audit:       NewAuditHandler(svc.Audit),
		Export:      NewExportHandler(svc.Export),
	}
}
