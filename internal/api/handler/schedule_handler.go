package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/dto"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/service"
	pkgerrors "github.com/Nari0122/Mathlearningdashboard-sub000/pkg/errors"
	"github.com/Nari0122/Mathlearningdashboard-sub000/pkg/response"
)

// ScheduleHandler 日程模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Create 新增日程
// POST /api/v1/students/:studentId/schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 13001, "学生ID不能为空")
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	record, err := h.scheduleSvc.Create(c.Request.Context(), studentID, operatorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, record)
}

// Get 获取单条日程
// GET /api/v1/students/:studentId/schedules/:scheduleId
func (h *ScheduleHandler) Get(c *gin.Context) {
	studentID := c.Param("studentId")
	scheduleID := c.Param("scheduleId")
	if studentID == "" || scheduleID == "" {
		response.BadRequest(c, 13001, "学生ID与日程ID不能为空")
		return
	}

	record, err := h.scheduleSvc.Get(c.Request.Context(), studentID, scheduleID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, record)
}

// List 获取日程列表
// GET /api/v1/students/:studentId/schedules?month=2026-03
func (h *ScheduleHandler) List(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 13001, "学生ID不能为空")
		return
	}

	var req dto.ScheduleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	records, err := h.scheduleSvc.List(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// Update 普通编辑（带快照检测）
// PUT /api/v1/students/:studentId/schedules/:scheduleId
// 检测到并发编辑时返回 409，data 中携带 conflict 标记与最新记录
func (h *ScheduleHandler) Update(c *gin.Context) {
	studentID := c.Param("studentId")
	scheduleID := c.Param("scheduleId")
	if studentID == "" || scheduleID == "" {
		response.BadRequest(c, 13001, "学生ID与日程ID不能为空")
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	outcome, err := h.scheduleSvc.Update(c.Request.Context(), studentID, scheduleID, operatorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	if outcome.Conflict {
		response.Conflict(c, 13120, "检测到并发编辑，请刷新后重试或强制保存", gin.H{
			"conflict":    true,
			"latest_data": outcome.Latest,
		})
		return
	}

	response.OK(c, outcome.Record)
}

// PostponeOrChange 延期/变更/取消
// POST /api/v1/students/:studentId/schedules/:scheduleId/change
func (h *ScheduleHandler) PostponeOrChange(c *gin.Context) {
	studentID := c.Param("studentId")
	scheduleID := c.Param("scheduleId")
	if studentID == "" || scheduleID == "" {
		response.BadRequest(c, 13001, "学生ID与日程ID不能为空")
		return
	}

	var req dto.PostponeChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	operatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	record, err := h.scheduleSvc.PostponeOrChange(c.Request.Context(), studentID, scheduleID, operatorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, record)
}

// Delete 删除日程
// DELETE /api/v1/students/:studentId/schedules/:scheduleId
func (h *ScheduleHandler) Delete(c *gin.Context) {
	studentID := c.Param("studentId")
	scheduleID := c.Param("scheduleId")
	if studentID == "" || scheduleID == "" {
		response.BadRequest(c, 13001, "学生ID与日程ID不能为空")
		return
	}

	if err := h.scheduleSvc.Delete(c.Request.Context(), studentID, scheduleID); err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListChangeLogs 获取变更日志
// GET /api/v1/students/:studentId/schedules/change-logs
func (h *ScheduleHandler) ListChangeLogs(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 13001, "学生ID不能为空")
		return
	}

	var req dto.ChangeLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	logs, total, err := h.scheduleSvc.ListChangeLogs(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

// handleScheduleError 统一处理日程模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 13101, "日程记录不存在")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13102, "学生不存在")
	case errors.Is(err, service.ErrInvalidTimeRange):
		response.BadRequest(c, 13103, "开始时间必须早于结束时间")
	case errors.Is(err, service.ErrDateRequired):
		response.BadRequest(c, 13104, "单次课必须指定日期")
	case errors.Is(err, service.ErrDayOfWeekRequired):
		response.BadRequest(c, 13105, "固定时段必须指定星期几")
	case errors.Is(err, service.ErrDateNotAllowed):
		response.BadRequest(c, 13106, "固定时段不能设置日期")
	case errors.Is(err, service.ErrDayOfWeekNotAllowed):
		response.BadRequest(c, 13107, "单次课不能设置星期几")
	case errors.Is(err, service.ErrStatusNotAllowed):
		response.BadRequest(c, 13108, "固定时段不支持状态变更")
	case errors.Is(err, service.ErrRecordTerminal):
		response.BadRequest(c, 13109, "记录已处于终态，不允许普通编辑")
	case errors.Is(err, service.ErrNotSession):
		response.BadRequest(c, 13110, "固定时段不支持延期/变更操作")
	case errors.Is(err, service.ErrNewTimeRequired):
		response.BadRequest(c, 13111, "延期/变更必须同时给出新日期与新时间")
	case errors.Is(err, service.ErrReasonRequired):
		response.BadRequest(c, 13112, "变更原因不能为空")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 13121, "记录正被并发修改，请稍后重试", nil)
	default:
		response.InternalError(c)
	}
}
