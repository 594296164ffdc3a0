package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
	pkgerrors "github.com/Nari0122/Mathlearningdashboard-sub000/pkg/errors"
)

// ScheduleRepository 日程记录数据访问接口
// Mutation Service 的唯一持久化边界：不做任何跨调用缓存，
// 每次编辑都重新读取当前状态后再比较快照
type ScheduleRepository interface {
	Create(ctx context.Context, record *model.ScheduleRecord) error
	GetByStudentAndID(ctx context.Context, studentID, id string) (*model.ScheduleRecord, error)
	// Put 整条记录原子替换（version CAS）
	// 两个并发写入不可能交错出混合记录：版本不匹配时返回 ErrOptimisticLock
	Put(ctx context.Context, record *model.ScheduleRecord) error
	Delete(ctx context.Context, studentID, id string) error
	ListByStudent(ctx context.Context, studentID, month string) ([]model.ScheduleRecord, error)
}

// ScheduleChangeLogRepository 日程变更日志数据访问接口
type ScheduleChangeLogRepository interface {
	Create(ctx context.Context, log *model.ScheduleChangeLog) error
	ListByStudent(ctx context.Context, studentID string, offset, limit int) ([]model.ScheduleChangeLog, int64, error)
}

// ── ScheduleRecord Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, record *model.ScheduleRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *scheduleRepo) GetByStudentAndID(ctx context.Context, studentID, id string) (*model.ScheduleRecord, error) {
	var record model.ScheduleRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND schedule_id = ?", studentID, id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *scheduleRepo) Put(ctx context.Context, record *model.ScheduleRecord) error {
	oldVersion := record.Version
	result := r.db.WithContext(ctx).
		Model(record).
		Where("schedule_id = ? AND version = ?", record.ScheduleID, oldVersion).
		Updates(map[string]interface{}{
			"day_of_week":          record.DayOfWeek,
			"date":                 record.Date,
			"start_time":           record.StartTime,
			"end_time":             record.EndTime,
			"session_number":       record.SessionNumber,
			"status":               record.Status,
			"schedule_change_type": record.ScheduleChangeType,
			"change_reason":        record.ChangeReason,
			"original_date":        record.OriginalDate,
			"original_start_time":  record.OriginalStartTime,
			"original_end_time":    record.OriginalEndTime,
			"notes":                record.Notes,
			"updated_by":           record.UpdatedBy,
			"version":              oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	record.Version = oldVersion + 1
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, studentID, id string) error {
	return r.db.WithContext(ctx).
		Where("student_id = ? AND schedule_id = ?", studentID, id).
		Delete(&model.ScheduleRecord{}).Error
}

func (r *scheduleRepo) ListByStudent(ctx context.Context, studentID, month string) ([]model.ScheduleRecord, error) {
	var records []model.ScheduleRecord
	q := r.db.WithContext(ctx).
		Where("student_id = ?", studentID)
	if month != "" {
		// session 按月过滤；recurring 固定时段不受月份影响，一并返回
		q = q.Where("kind = ? OR date LIKE ?", model.KindRecurring, month+"%")
	}
	err := q.Order("kind DESC, date ASC, day_of_week ASC, start_time ASC").
		Find(&records).Error
	return records, err
}

// ── ScheduleChangeLog Repository 实现 ──

type scheduleChangeLogRepo struct {
	db *gorm.DB
}

func NewScheduleChangeLogRepo(db *gorm.DB) ScheduleChangeLogRepository {
	return &scheduleChangeLogRepo{db: db}
}

func (r *scheduleChangeLogRepo) Create(ctx context.Context, log *model.ScheduleChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *scheduleChangeLogRepo) ListByStudent(ctx context.Context, studentID string, offset, limit int) ([]model.ScheduleChangeLog, int64, error) {
	var logs []model.ScheduleChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ScheduleChangeLog{}).
		Where("student_id = ?", studentID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
