package service

import (
	"context"
	"fmt"
	"time"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

// AuditService 审计日志查询服务接口（日志本身由各业务路径写入）
type AuditService interface {
	List(ctx context.Context, req *dto.AuditListRequest) ([]dto.AuditEntryResponse, int64, error)
}

type auditService struct {
	repo *repository.Repository
}

// NewAuditService 创建审计查询服务实例
func NewAuditService(repo *repository.Repository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) List(ctx context.Context, req *dto.AuditListRequest) ([]dto.AuditEntryResponse, int64, error) {
	entries, total, err := s.repo.Audit.List(ctx, req.Category, req.RefID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		return nil, 0, fmt.Errorf("查询审计日志失败: %w", err)
	}
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out = append(out, dto.AuditEntryResponse{
			AuditID:   e.AuditID,
			Category:  e.Category,
			RefID:     e.RefID,
			Actor:     e.Actor,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, total, nil
}
