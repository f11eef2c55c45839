package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
)

var ErrExportRangeInvalid = errors.New("导出区间不合法")

// ExportService 指派花名册导出服务接口
type ExportService interface {
	AssignmentsXLSX(ctx context.Context, req *dto.ExportAssignmentsRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建导出服务实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// AssignmentsXLSX 导出区间内全部已确认指派为 xlsx，返回文件内容与文件名
func (s *exportService) AssignmentsXLSX(ctx context.Context, req *dto.ExportAssignmentsRequest) (*bytes.Buffer, string, error) {
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportRangeInvalid, err)
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportRangeInvalid, err)
	}
	if !to.After(from) {
		return nil, "", ErrExportRangeInvalid
	}
	// 终点取闭区间，含 to 当天
	toExclusive := to.AddDate(0, 0, 1)

	assignments, err := s.repo.Assignment.ListConfirmedBetween(ctx, from, toExclusive)
	if err != nil {
		return nil, "", fmt.Errorf("查询已确认指派失败: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("导出文件关闭失败", zap.Error(cerr))
		}
	}()

	const sheet = "指派明细"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"指派 ID", "班次 ID", "医院", "顾问", "开始时间", "结束时间", "时长(h)", "优先级", "得分", "是否覆盖"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", fmt.Errorf("写表头失败: %w", err)
		}
	}

	for row, a := range assignments {
		hospital := ""
		start, end := "", ""
		hours := 0.0
		priority := ""
		if a.Shift != nil {
			start = a.Shift.StartAt.Format("2006-01-02 15:04")
			end = a.Shift.EndAt.Format("2006-01-02 15:04")
			hours = a.Shift.Hours()
			priority = a.Shift.Priority
			if a.Shift.Hospital != nil {
				hospital = a.Shift.Hospital.Name
			}
		}
		consultant := a.ConsultantID
		if a.Consultant != nil {
			consultant = a.Consultant.Name
		}
		overridden := "否"
		if a.Overridden {
			overridden = "是"
		}
		values := []interface{}{
			a.AssignmentID, a.ShiftID, hospital, consultant,
			start, end, hours, priority, a.ScoreSnapshot, overridden,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", fmt.Errorf("写数据行失败: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("生成导出文件失败: %w", err)
	}
	filename := fmt.Sprintf("assignments_%s_%s.xlsx", req.From, req.To)
	return buf, filename, nil
}
