package service

import (
	"context"
	"testing"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

func seedAuditEntries(repos *testRepos) {
	actor := "user-1"
	refBatch := "batch-1"
	refConfig := "config-1"
	entries := []model.AuditEntry{
		{Category: model.AuditBatch, RefID: &refBatch, Actor: &actor, Detail: model.JSONMap{"mode": "best_effort"}},
		{Category: model.AuditAssignment, RefID: &refBatch, Actor: &actor, Detail: model.JSONMap{"shift_id": "shift-1"}},
		{Category: model.AuditAssignment, RefID: &refBatch, Actor: &actor, Detail: model.JSONMap{"shift_id": "shift-2"}},
		{Category: model.AuditConfig, RefID: &refConfig, Actor: &actor, Detail: model.JSONMap{"version": 1}},
	}
	repos.audit.BatchCreate(context.Background(), entries)
}

func TestAuditList_按类别过滤(t *testing.T) {
	repos := newTestRepos()
	seedAuditEntries(repos)
	svc := NewAuditService(repos.toRepository())

	list, total, err := svc.List(context.Background(), &dto.AuditListRequest{
		Category: model.AuditAssignment,
	})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 2 {
		t.Errorf("期望总数 2，实际: %d", total)
	}
	for _, e := range list {
		if e.Category != model.AuditAssignment {
			t.Errorf("期望类别 %s，实际: %s", model.AuditAssignment, e.Category)
		}
	}
}

func TestAuditList_按引用ID过滤(t *testing.T) {
	repos := newTestRepos()
	seedAuditEntries(repos)
	svc := NewAuditService(repos.toRepository())

	list, total, err := svc.List(context.Background(), &dto.AuditListRequest{
		RefID: "config-1",
	})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 1 {
		t.Errorf("期望总数 1，实际: %d", total)
	}
	if len(list) != 1 || list[0].Category != model.AuditConfig {
		t.Errorf("期望 1 条配置审计，实际: %+v", list)
	}
}

func TestAuditList_分页(t *testing.T) {
	repos := newTestRepos()
	seedAuditEntries(repos)
	svc := NewAuditService(repos.toRepository())

	req := &dto.AuditListRequest{}
	req.Page = 2
	req.PageSize = 3
	list, total, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 4 {
		t.Errorf("期望总数 4，实际: %d", total)
	}
	if len(list) != 1 {
		t.Errorf("期望第二页 1 条，实际: %d", len(list))
	}
}
