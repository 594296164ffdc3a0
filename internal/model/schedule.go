package model

import (
	"strconv"
	"time"
)

// ── 日程枚举 ──

// ScheduleKind 日程记录种类
type ScheduleKind string

const (
	KindRecurring ScheduleKind = "recurring" // 每周固定时段
	KindSession   ScheduleKind = "session"   // 具体日期的单次课
)

// ScheduleStatus 日程状态
type ScheduleStatus string

const (
	StatusScheduled ScheduleStatus = "scheduled" // session 初始状态
	StatusCompleted ScheduleStatus = "completed"
	StatusAbsent    ScheduleStatus = "absent"
	StatusPostponed ScheduleStatus = "postponed"
	StatusChanged   ScheduleStatus = "changed"
	StatusCancelled ScheduleStatus = "cancelled"
	StatusActive    ScheduleStatus = "active" // recurring 唯一生命周期状态
)

// IsTerminal 终态判断：postponed/changed/cancelled 之后普通编辑一律拒绝，
// 仅延期/变更路径与删除可再作用于该记录
func (s ScheduleStatus) IsTerminal() bool {
	return s == StatusPostponed || s == StatusChanged || s == StatusCancelled
}

// ScheduleChangeType 延期/变更类型
type ScheduleChangeType string

const (
	ChangeMakeup     ScheduleChangeType = "makeup"     // 보강（补课）→ changed
	ChangePostpone   ScheduleChangeType = "postpone"   // → postponed
	ChangeCancel     ScheduleChangeType = "cancel"     // → cancelled，时间字段不动
	ChangeReschedule ScheduleChangeType = "reschedule" // → changed
)

// TargetStatus 该变更类型作用后的记录状态
func (t ScheduleChangeType) TargetStatus() ScheduleStatus {
	switch t {
	case ChangePostpone:
		return StatusPostponed
	case ChangeCancel:
		return StatusCancelled
	default:
		return StatusChanged
	}
}

// ── 日程记录 ──

// ScheduleRecord 日程记录表 — 对应 schedule_records
// 一条记录是某学生的一个物理上课时段：recurring 以星期几锚定，session 以日期锚定
type ScheduleRecord struct {
	ScheduleID    string       `gorm:"type:uuid;primaryKey"       json:"schedule_id"`
	StudentID     string       `gorm:"type:uuid;not null"         json:"student_id"`
	Kind          ScheduleKind `gorm:"type:varchar(10);not null"  json:"kind"`
	DayOfWeek     *int         `gorm:"type:smallint"              json:"day_of_week,omitempty"` // recurring: 0(일)~6(토)
	Date          *string      `gorm:"type:varchar(10)"           json:"date,omitempty"`        // session: YYYY-MM-DD
	StartTime     string       `gorm:"type:varchar(5);not null"   json:"start_time"`            // HH:MM
	EndTime       string       `gorm:"type:varchar(5);not null"   json:"end_time"`
	SessionNumber *int         `json:"session_number,omitempty"`

	Status             ScheduleStatus      `gorm:"type:varchar(20);not null" json:"status"`
	ScheduleChangeType *ScheduleChangeType `gorm:"type:varchar(20)"          json:"schedule_change_type,omitempty"`
	ChangeReason       string              `gorm:"type:varchar(500)"         json:"change_reason,omitempty"`

	// 首次延期/变更时归档的变更前时段；之后不再覆盖，保证原始时段可追溯
	OriginalDate      *string `gorm:"type:varchar(10)" json:"original_date,omitempty"`
	OriginalStartTime *string `gorm:"type:varchar(5)"  json:"original_start_time,omitempty"`
	OriginalEndTime   *string `gorm:"type:varchar(5)"  json:"original_end_time,omitempty"`

	Notes string `gorm:"type:varchar(500)" json:"notes,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (ScheduleRecord) TableName() string { return "schedule_records" }

// HasOriginal 是否已归档过变更前时段
func (r *ScheduleRecord) HasOriginal() bool {
	return r.OriginalDate != nil || r.OriginalStartTime != nil || r.OriginalEndTime != nil
}

// ── 冲突比较键 ──

// CompareKey 快照比较的值对象
// session 的锚点是 date，recurring 的锚点是 day_of_week；
// 时间对与状态、变更类型一并参与逐字段相等比较
type CompareKey struct {
	Anchor     string // session: date；recurring: day_of_week 的十进制串
	StartTime  string
	EndTime    string
	Status     ScheduleStatus
	ChangeType string // 未设置时为空串
}

// CompareKey 取记录当前的比较键
func (r *ScheduleRecord) CompareKey() CompareKey {
	key := CompareKey{
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Status:    r.Status,
	}
	if r.Kind == KindRecurring {
		if r.DayOfWeek != nil {
			key.Anchor = strconv.Itoa(*r.DayOfWeek)
		}
	} else if r.Date != nil {
		key.Anchor = *r.Date
	}
	if r.ScheduleChangeType != nil {
		key.ChangeType = string(*r.ScheduleChangeType)
	}
	return key
}

// ── 变更日志 ──

// ScheduleChangeLog 日程变更记录表 — 对应 schedule_change_logs（纯审计日志）
// 延期/变更/取消与强制保存各写一行；原时段与新时段并排留痕
type ScheduleChangeLog struct {
	ChangeLogID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	ScheduleID        string  `gorm:"type:uuid;not null"                             json:"schedule_id"`
	StudentID         string  `gorm:"type:uuid;not null"                             json:"student_id"`
	ChangeType        string  `gorm:"type:varchar(20);not null"                      json:"change_type"` // postpone | change | cancel | force_save
	Reason            string  `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	OriginalDate      *string `gorm:"type:varchar(10)"                               json:"original_date,omitempty"`
	OriginalStartTime *string `gorm:"type:varchar(5)"                                json:"original_start_time,omitempty"`
	OriginalEndTime   *string `gorm:"type:varchar(5)"                                json:"original_end_time,omitempty"`
	NewDate           *string `gorm:"type:varchar(10)"                               json:"new_date,omitempty"`
	NewStartTime      *string `gorm:"type:varchar(5)"                                json:"new_start_time,omitempty"`
	NewEndTime        *string `gorm:"type:varchar(5)"                                json:"new_end_time,omitempty"`
	OperatorID        string    `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ScheduleChangeLog) TableName() string { return "schedule_change_logs" }
