package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// Assignments 导出区间内已确认指派花名册（xlsx）
// GET /api/v1/scheduling/export/assignments
func (h *ExportHandler) Assignments(c *gin.Context) {
	var req dto.ExportAssignmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.AssignmentsXLSX(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrExportRangeInvalid) {
			response.BadRequest(c, 16101, "导出区间不合法")
			return
		}
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
