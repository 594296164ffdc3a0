package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/dto"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/repository"
	pkgerrors "github.com/Nari0122/Mathlearningdashboard-sub000/pkg/errors"
)

// ── 错误定义 ──

var (
	ErrStudentNotFound     = errors.New("学生不存在")
	ErrScheduleNotFound    = errors.New("日程记录不存在")
	ErrInvalidTimeRange    = errors.New("开始时间必须早于结束时间")
	ErrDateRequired        = errors.New("单次课必须指定日期")
	ErrDayOfWeekRequired   = errors.New("固定时段必须指定星期几")
	ErrDateNotAllowed      = errors.New("固定时段不能设置日期")
	ErrDayOfWeekNotAllowed = errors.New("单次课不能设置星期几")
	ErrStatusNotAllowed    = errors.New("固定时段不支持状态变更")
	ErrRecordTerminal      = errors.New("记录已处于终态，不允许普通编辑")
	ErrNotSession          = errors.New("固定时段不支持延期/变更操作")
	ErrNewTimeRequired     = errors.New("延期/变更必须同时给出新日期与新时间")
	ErrReasonRequired      = errors.New("变更原因不能为空")
)

// makeupBadge 补课记录在前端日历上的角标文案
const makeupBadge = "보강"

// 授权路径（延期/变更、强制保存）的 CAS 重试上限：
// 这些写入必须落地，版本冲突时重读重放而不是报错给调用方
const maxPutRetries = 3

// ScheduleService 日程变更引擎接口
// Update 返回三态结果：成功 / 冲突（未写入）/ 错误；
// PostponeOrChange 绕过快照检测，属授权覆盖路径
type ScheduleService interface {
	Create(ctx context.Context, studentID, operatorID string, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error)
	Get(ctx context.Context, studentID, scheduleID string) (*dto.ScheduleResponse, error)
	List(ctx context.Context, studentID string, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error)
	Update(ctx context.Context, studentID, scheduleID, operatorID string, req *dto.UpdateScheduleRequest) (*dto.UpdateScheduleOutcome, error)
	PostponeOrChange(ctx context.Context, studentID, scheduleID, operatorID string, req *dto.PostponeChangeRequest) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, studentID, scheduleID string) error
	ListChangeLogs(ctx context.Context, studentID string, req *dto.ChangeLogListRequest) ([]dto.ScheduleChangeLogResponse, int64, error)
}

type scheduleService struct {
	studentRepo   repository.StudentRepository
	scheduleRepo  repository.ScheduleRepository
	changeLogRepo repository.ScheduleChangeLogRepository
	logger        *zap.Logger
}

// NewScheduleService 创建日程服务
func NewScheduleService(
	studentRepo repository.StudentRepository,
	scheduleRepo repository.ScheduleRepository,
	changeLogRepo repository.ScheduleChangeLogRepository,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleService{
		studentRepo:   studentRepo,
		scheduleRepo:  scheduleRepo,
		changeLogRepo: changeLogRepo,
		logger:        logger,
	}
}

// ═══════════════════════════════════════════
// 新增日程
// ═══════════════════════════════════════════

func (s *scheduleService) Create(ctx context.Context, studentID, operatorID string, req *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, err
	}

	kind := model.ScheduleKind(req.Kind)
	switch kind {
	case model.KindSession:
		if req.Date == nil {
			return nil, ErrDateRequired
		}
	case model.KindRecurring:
		if req.DayOfWeek == nil {
			return nil, ErrDayOfWeekRequired
		}
	}
	if req.StartTime >= req.EndTime {
		return nil, ErrInvalidTimeRange
	}

	// session 初始状态 scheduled；recurring 生命周期内恒为 active
	status := model.StatusScheduled
	if kind == model.KindRecurring {
		status = model.StatusActive
	}

	record := &model.ScheduleRecord{
		ScheduleID:    uuid.NewString(),
		StudentID:     studentID,
		Kind:          kind,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		SessionNumber: req.SessionNumber,
		Status:        status,
		Notes:         req.Notes,
	}
	if kind == model.KindSession {
		record.Date = req.Date
	} else {
		record.DayOfWeek = req.DayOfWeek
	}
	record.CreatedBy = &operatorID
	record.UpdatedBy = &operatorID
	record.Version = 1

	if err := s.scheduleRepo.Create(ctx, record); err != nil {
		s.logger.Error("创建日程失败", zap.Error(err))
		return nil, err
	}
	return toScheduleResponse(record), nil
}

// ═══════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════

func (s *scheduleService) Get(ctx context.Context, studentID, scheduleID string) (*dto.ScheduleResponse, error) {
	record, err := s.getRecord(ctx, studentID, scheduleID)
	if err != nil {
		return nil, err
	}
	return toScheduleResponse(record), nil
}

func (s *scheduleService) List(ctx context.Context, studentID string, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error) {
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, err
	}

	records, err := s.scheduleRepo.ListByStudent(ctx, studentID, req.Month)
	if err != nil {
		s.logger.Error("查询日程列表失败", zap.Error(err))
		return nil, err
	}

	responses := make([]dto.ScheduleResponse, 0, len(records))
	for i := range records {
		responses = append(responses, *toScheduleResponse(&records[i]))
	}
	return responses, nil
}

// ═══════════════════════════════════════════
// 普通编辑（快照检测）
// ═══════════════════════════════════════════

// Update 先检测后写入：
//  1. 终态记录一律拒绝（校验失败，不算冲突）
//  2. 非 force 且快照与当前记录不一致 → 返回冲突 + 最新记录，不写入
//  3. 通过后整条 CAS 替换；版本竞争在 force 下重读重放，否则同样按冲突返回
func (s *scheduleService) Update(ctx context.Context, studentID, scheduleID, operatorID string, req *dto.UpdateScheduleRequest) (*dto.UpdateScheduleOutcome, error) {
	record, err := s.getRecord(ctx, studentID, scheduleID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if record.Status.IsTerminal() {
			return nil, ErrRecordTerminal
		}

		if !req.Force && detectConflict(record, req.Snapshot) {
			s.logger.Info("检测到并发编辑冲突",
				zap.String("schedule_id", scheduleID),
				zap.Int("version", record.Version))
			return &dto.UpdateScheduleOutcome{Conflict: true, Latest: toScheduleResponse(record)}, nil
		}

		// force_save 留痕用：写入前的时段
		prevDate, prevStart, prevEnd := record.Date, record.StartTime, record.EndTime

		if err := applyPatch(record, &req.Patch); err != nil {
			return nil, err
		}
		record.UpdatedBy = &operatorID

		err = s.scheduleRepo.Put(ctx, record)
		if err == nil {
			if req.Force {
				s.writeChangeLog(ctx, record, "force_save", "",
					prevDate, prevStart, prevEnd, record.Date, record.StartTime, record.EndTime, operatorID)
			}
			return &dto.UpdateScheduleOutcome{Record: toScheduleResponse(record)}, nil
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新日程失败", zap.Error(err))
			return nil, err
		}

		// 读取与写入之间有并发写入抢先提交
		record, err = s.getRecord(ctx, studentID, scheduleID)
		if err != nil {
			return nil, err
		}
		if !req.Force {
			return &dto.UpdateScheduleOutcome{Conflict: true, Latest: toScheduleResponse(record)}, nil
		}
		if attempt >= maxPutRetries {
			s.logger.Error("强制保存重试耗尽", zap.String("schedule_id", scheduleID))
			return nil, pkgerrors.ErrOptimisticLock
		}
	}
}

// applyPatch 将增量字段套用到记录上，nil 字段不动
// 锚点字段只接受与记录种类匹配的那一个
func applyPatch(record *model.ScheduleRecord, patch *dto.SchedulePatch) error {
	if record.Kind == model.KindRecurring {
		if patch.Date != nil {
			return ErrDateNotAllowed
		}
		if patch.Status != nil {
			return ErrStatusNotAllowed
		}
		if patch.DayOfWeek != nil {
			record.DayOfWeek = patch.DayOfWeek
		}
	} else {
		if patch.DayOfWeek != nil {
			return ErrDayOfWeekNotAllowed
		}
		if patch.Date != nil {
			record.Date = patch.Date
		}
		if patch.Status != nil {
			record.Status = model.ScheduleStatus(*patch.Status)
		}
	}
	if patch.StartTime != nil {
		record.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		record.EndTime = *patch.EndTime
	}
	if patch.SessionNumber != nil {
		record.SessionNumber = patch.SessionNumber
	}
	if patch.Notes != nil {
		record.Notes = *patch.Notes
	}
	if record.StartTime >= record.EndTime {
		return ErrInvalidTimeRange
	}
	return nil
}

// ═══════════════════════════════════════════
// 延期 / 变更 / 取消（授权覆盖路径）
// ═══════════════════════════════════════════

// PostponeOrChange 不做快照检测：带事由的授权操作总是作用于当前最新记录。
// 首次改动时间前把变更前时段归档进 original_* 字段，之后不再覆盖，
// 保证无论后续改多少次，最初的原始时段始终可追溯
func (s *scheduleService) PostponeOrChange(ctx context.Context, studentID, scheduleID, operatorID string, req *dto.PostponeChangeRequest) (*dto.ScheduleResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, ErrReasonRequired
	}

	record, err := s.getRecord(ctx, studentID, scheduleID)
	if err != nil {
		return nil, err
	}
	if record.Kind != model.KindSession {
		return nil, ErrNotSession
	}

	changeType := model.ScheduleChangeType(req.ChangeType)
	if changeType != model.ChangeCancel {
		if req.NewDate == nil || req.NewStartTime == nil || req.NewEndTime == nil {
			return nil, ErrNewTimeRequired
		}
		if *req.NewStartTime >= *req.NewEndTime {
			return nil, ErrInvalidTimeRange
		}
	}

	var prevDate *string
	var prevStart, prevEnd string

	for attempt := 0; ; attempt++ {
		prevDate, prevStart, prevEnd = record.Date, record.StartTime, record.EndTime

		if changeType != model.ChangeCancel {
			// 归档只发生一次：二次延期不会覆盖最初的原始时段
			if !record.HasOriginal() {
				record.OriginalDate = record.Date
				start, end := record.StartTime, record.EndTime
				record.OriginalStartTime = &start
				record.OriginalEndTime = &end
			}
			record.Date = req.NewDate
			record.StartTime = *req.NewStartTime
			record.EndTime = *req.NewEndTime
		}

		record.Status = changeType.TargetStatus()
		record.ScheduleChangeType = &changeType
		record.ChangeReason = req.Reason
		record.UpdatedBy = &operatorID

		err = s.scheduleRepo.Put(ctx, record)
		if err == nil {
			break
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("延期/变更写入失败", zap.Error(err))
			return nil, err
		}
		if attempt >= maxPutRetries {
			s.logger.Error("延期/变更重试耗尽", zap.String("schedule_id", scheduleID))
			return nil, pkgerrors.ErrOptimisticLock
		}
		record, err = s.getRecord(ctx, studentID, scheduleID)
		if err != nil {
			return nil, err
		}
	}

	logType := "change"
	switch changeType {
	case model.ChangePostpone:
		logType = "postpone"
	case model.ChangeCancel:
		logType = "cancel"
	}
	if changeType == model.ChangeCancel {
		s.writeChangeLog(ctx, record, logType, req.Reason,
			prevDate, prevStart, prevEnd, nil, "", "", operatorID)
	} else {
		s.writeChangeLog(ctx, record, logType, req.Reason,
			prevDate, prevStart, prevEnd, record.Date, record.StartTime, record.EndTime, operatorID)
	}

	return toScheduleResponse(record), nil
}

// ═══════════════════════════════════════════
// 删除
// ═══════════════════════════════════════════

// Delete 硬删除，不做快照检测与终态限制
func (s *scheduleService) Delete(ctx context.Context, studentID, scheduleID string) error {
	if _, err := s.getRecord(ctx, studentID, scheduleID); err != nil {
		return err
	}
	if err := s.scheduleRepo.Delete(ctx, studentID, scheduleID); err != nil {
		s.logger.Error("删除日程失败", zap.Error(err))
		return err
	}
	return nil
}

// ═══════════════════════════════════════════
// 变更日志
// ═══════════════════════════════════════════

func (s *scheduleService) ListChangeLogs(ctx context.Context, studentID string, req *dto.ChangeLogListRequest) ([]dto.ScheduleChangeLogResponse, int64, error) {
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, 0, err
	}

	logs, total, err := s.changeLogRepo.ListByStudent(ctx, studentID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.Error(err))
		return nil, 0, err
	}

	responses := make([]dto.ScheduleChangeLogResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, *toChangeLogResponse(&logs[i]))
	}
	return responses, total, nil
}

// ── 内部辅助 ──

func (s *scheduleService) getRecord(ctx context.Context, studentID, scheduleID string) (*model.ScheduleRecord, error) {
	record, err := s.scheduleRepo.GetByStudentAndID(ctx, studentID, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	return record, nil
}

// writeChangeLog 审计日志写入失败不阻断主流程，只记录错误
func (s *scheduleService) writeChangeLog(ctx context.Context, record *model.ScheduleRecord,
	changeType, reason string, origDate *string, origStart, origEnd string,
	newDate *string, newStart, newEnd string, operatorID string) {

	log := &model.ScheduleChangeLog{
		ScheduleID:   record.ScheduleID,
		StudentID:    record.StudentID,
		ChangeType:   changeType,
		Reason:       reason,
		OriginalDate: origDate,
		NewDate:      newDate,
		OperatorID:   operatorID,
	}
	if origStart != "" {
		log.OriginalStartTime = &origStart
	}
	if origEnd != "" {
		log.OriginalEndTime = &origEnd
	}
	if newStart != "" {
		log.NewStartTime = &newStart
	}
	if newEnd != "" {
		log.NewEndTime = &newEnd
	}
	if err := s.changeLogRepo.Create(ctx, log); err != nil {
		s.logger.Error("写入变更日志失败",
			zap.String("schedule_id", record.ScheduleID),
			zap.Error(err))
	}
}

func toScheduleResponse(record *model.ScheduleRecord) *dto.ScheduleResponse {
	resp := &dto.ScheduleResponse{
		ID:            record.ScheduleID,
		StudentID:     record.StudentID,
		Kind:          string(record.Kind),
		DayOfWeek:     record.DayOfWeek,
		Date:          record.Date,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		SessionNumber: record.SessionNumber,
		Status:        string(record.Status),
		ChangeReason:  record.ChangeReason,
		Notes:         record.Notes,
		Version:       record.Version,
		CreatedAt:     record.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:     record.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
	if record.ScheduleChangeType != nil {
		ct := string(*record.ScheduleChangeType)
		resp.ScheduleChangeType = &ct
		if *record.ScheduleChangeType == model.ChangeMakeup {
			resp.ChangeBadge = makeupBadge
		}
	}
	if record.HasOriginal() {
		orig := &dto.OriginalSnapshot{Date: record.OriginalDate}
		if record.OriginalStartTime != nil {
			orig.StartTime = *record.OriginalStartTime
		}
		if record.OriginalEndTime != nil {
			orig.EndTime = *record.OriginalEndTime
		}
		resp.OriginalSnapshot = orig
	}
	return resp
}

func toChangeLogResponse(log *model.ScheduleChangeLog) *dto.ScheduleChangeLogResponse {
	return &dto.ScheduleChangeLogResponse{
		ID:                log.ChangeLogID,
		ScheduleID:        log.ScheduleID,
		StudentID:         log.StudentID,
		ChangeType:        log.ChangeType,
		Reason:            log.Reason,
		OriginalDate:      log.OriginalDate,
		OriginalStartTime: log.OriginalStartTime,
		OriginalEndTime:   log.OriginalEndTime,
		NewDate:           log.NewDate,
		NewStartTime:      log.NewStartTime,
		NewEndTime:        log.NewEndTime,
		OperatorID:        log.OperatorID,
		CreatedAt:         log.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
