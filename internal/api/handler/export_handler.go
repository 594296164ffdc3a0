package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/service"
	"github.com/Nari0122/Mathlearningdashboard-sub000/pkg/response"
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

// ExportMonthExcel 导出月度课表
// GET /api/v1/students/:studentId/schedules/export/excel?month=2026-03
func (h *ExportHandler) ExportMonthExcel(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 16001, "学生ID不能为空")
		return
	}
	month := c.Query("month")

	buf, filename, err := h.exportSvc.ExportMonthExcel(c.Request.Context(), studentID, month)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", xlsxContentType)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ICSFeed 日程 iCalendar 订阅源
// GET /api/v1/students/:studentId/schedules/export/ics
func (h *ExportHandler) ICSFeed(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 16001, "学生ID不能为空")
		return
	}

	feed, err := h.exportSvc.ICSFeed(c.Request.Context(), studentID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 16101, "学生不存在")
	case errors.Is(err, service.ErrMonthRequired):
		response.BadRequest(c, 16102, "month 不能为空")
	default:
		response.InternalError(c)
	}
}
