package dto

// ── 日程模块 DTO ──

// CreateScheduleRequest 新增日程请求（单次课或每周固定时段）
type CreateScheduleRequest struct {
	Kind          string  `json:"kind"           binding:"required,oneof=recurring session"`
	DayOfWeek     *int    `json:"day_of_week"    binding:"omitempty,min=0,max=6"`
	Date          *string `json:"date"           binding:"omitempty,datetime=2006-01-02"`
	StartTime     string  `json:"start_time"     binding:"required,datetime=15:04"`
	EndTime       string  `json:"end_time"       binding:"required,datetime=15:04"`
	SessionNumber *int    `json:"session_number" binding:"omitempty,min=0"`
	Notes         string  `json:"notes"          binding:"omitempty,max=500"`
}

// SchedulePatch 普通编辑的增量字段（nil 表示不修改）
// 状态只允许普通流转（scheduled/completed/absent）；终态流转走延期/变更接口
type SchedulePatch struct {
	Date          *string `json:"date"           binding:"omitempty,datetime=2006-01-02"`
	DayOfWeek     *int    `json:"day_of_week"    binding:"omitempty,min=0,max=6"`
	StartTime     *string `json:"start_time"     binding:"omitempty,datetime=15:04"`
	EndTime       *string `json:"end_time"       binding:"omitempty,datetime=15:04"`
	SessionNumber *int    `json:"session_number" binding:"omitempty,min=0"`
	Status        *string `json:"status"         binding:"omitempty,oneof=scheduled completed absent"`
	Notes         *string `json:"notes"          binding:"omitempty,max=500"`
}

// ScheduleSnapshot 调用方上次读取的比较字段快照
// 与当前记录逐字段比较以检测并发编辑；为空时等同 force（调用方显式放弃检测）
type ScheduleSnapshot struct {
	Date               *string `json:"date"`
	DayOfWeek          *int    `json:"day_of_week"`
	StartTime          string  `json:"start_time"`
	EndTime            string  `json:"end_time"`
	Status             string  `json:"status"`
	ScheduleChangeType *string `json:"schedule_change_type"`
}

// UpdateScheduleRequest 编辑日程请求
type UpdateScheduleRequest struct {
	Patch    SchedulePatch     `json:"patch"    binding:"required"`
	Snapshot *ScheduleSnapshot `json:"snapshot"`
	Force    bool              `json:"force"`
}

// PostponeChangeRequest 延期/变更/取消请求
// cancel 之外的类型必须同时给出新日期与新时间对
type PostponeChangeRequest struct {
	ChangeType   string  `json:"change_type"    binding:"required,oneof=makeup postpone cancel reschedule"`
	Reason       string  `json:"reason"         binding:"required,min=1,max=500"`
	NewDate      *string `json:"new_date"       binding:"omitempty,datetime=2006-01-02"`
	NewStartTime *string `json:"new_start_time" binding:"omitempty,datetime=15:04"`
	NewEndTime   *string `json:"new_end_time"   binding:"omitempty,datetime=15:04"`
}

// ScheduleListRequest 日程列表查询参数
type ScheduleListRequest struct {
	Month string `form:"month" binding:"omitempty,datetime=2006-01"` // session 按月过滤；recurring 恒返回
}

// ChangeLogListRequest 变更日志列表查询参数
type ChangeLogListRequest struct {
	PaginationRequest
}

// ── 响应 ──

// OriginalSnapshot 变更前时段（首次延期/变更时归档）
type OriginalSnapshot struct {
	Date      *string `json:"date,omitempty"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
}

// ScheduleResponse 日程记录响应
type ScheduleResponse struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"student_id"`
	Kind               string            `json:"kind"`
	DayOfWeek          *int              `json:"day_of_week,omitempty"`
	Date               *string           `json:"date,omitempty"`
	StartTime          string            `json:"start_time"`
	EndTime            string            `json:"end_time"`
	SessionNumber      *int              `json:"session_number,omitempty"`
	Status             string            `json:"status"`
	ScheduleChangeType *string           `json:"schedule_change_type,omitempty"`
	ChangeBadge        string            `json:"change_badge,omitempty"` // makeup → "보강"
	ChangeReason       string            `json:"change_reason,omitempty"`
	OriginalSnapshot   *OriginalSnapshot `json:"original_snapshot,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	Version            int               `json:"version"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
}

// UpdateScheduleOutcome 编辑日程的三态结果
// 成功时 Record 有值；冲突时 Conflict=true 且 Latest 携带最新记录，未发生写入
type UpdateScheduleOutcome struct {
	Record   *ScheduleResponse `json:"record,omitempty"`
	Conflict bool              `json:"conflict,omitempty"`
	Latest   *ScheduleResponse `json:"latest_data,omitempty"`
}

// ScheduleChangeLogResponse 变更日志响应
type ScheduleChangeLogResponse struct {
	ID                string  `json:"id"`
	ScheduleID        string  `json:"schedule_id"`
	StudentID         string  `json:"student_id"`
	ChangeType        string  `json:"change_type"`
	Reason            string  `json:"reason,omitempty"`
	OriginalDate      *string `json:"original_date,omitempty"`
	OriginalStartTime *string `json:"original_start_time,omitempty"`
	OriginalEndTime   *string `json:"original_end_time,omitempty"`
	NewDate           *string `json:"new_date,omitempty"`
	NewStartTime      *string `json:"new_start_time,omitempty"`
	NewEndTime        *string `json:"new_end_time,omitempty"`
	OperatorID        string  `json:"operator_id"`
	CreatedAt         string  `json:"created_at"`
}
