package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/repository"
)

// ErrMonthRequired Excel 导出必须指定月份
var ErrMonthRequired = errors.New("导出必须指定月份")

// 上课时间按教室所在时区解释
const scheduleTimezone = "Asia/Seoul"

// weekday 数字（0=周日）到 iCalendar BYDAY 的映射
var icalWeekdays = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ExportService 日程导出：Excel 月度课表 + iCalendar 订阅源
type ExportService interface {
	ExportMonthExcel(ctx context.Context, studentID, month string) (*bytes.Buffer, string, error)
	ICSFeed(ctx context.Context, studentID string) (string, error)
}

type exportService struct {
	studentRepo  repository.StudentRepository
	scheduleRepo repository.ScheduleRepository
	logger       *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(studentRepo repository.StudentRepository, scheduleRepo repository.ScheduleRepository, logger *zap.Logger) ExportService {
	return &exportService{
		studentRepo:  studentRepo,
		scheduleRepo: scheduleRepo,
		logger:       logger,
	}
}

// ═══════════════════════════════════════════
// Excel 月度课表
// ═══════════════════════════════════════════

func (s *exportService) ExportMonthExcel(ctx context.Context, studentID, month string) (*bytes.Buffer, string, error) {
	if month == "" {
		return nil, "", ErrMonthRequired
	}
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return nil, "", err
	}
	records, err := s.scheduleRepo.ListByStudent(ctx, studentID, month)
	if err != nil {
		s.logger.Error("查询日程列表失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Schedule"
	f.SetSheetName("Sheet1", sheet)

	title := fmt.Sprintf("%s %s 课表", student.Name, month)
	_ = f.SetCellValue(sheet, "A1", title)
	_ = f.MergeCell(sheet, "A1", "H1")

	headers := []string{"种类", "日期/星期", "开始", "结束", "课次", "状态", "变更事由", "备注"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A2", "H2", headerStyle)
	}

	for i := range records {
		r := &records[i]
		row := i + 3
		values := []interface{}{
			string(r.Kind),
			anchorLabel(r),
			r.StartTime,
			r.EndTime,
			intOrBlank(r.SessionNumber),
			string(r.Status),
			r.ChangeReason,
			r.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("生成 Excel 失败", zap.Error(err))
		return nil, "", err
	}
	filename := fmt.Sprintf("schedule_%s_%s.xlsx", student.Name, month)
	return buf, filename, nil
}

// anchorLabel 列表里的锚点列：session 显示日期，recurring 显示星期
func anchorLabel(r *model.ScheduleRecord) string {
	if r.Kind == model.KindSession {
		if r.Date != nil {
			return *r.Date
		}
		return ""
	}
	if r.DayOfWeek != nil {
		weekdays := [7]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}
		if *r.DayOfWeek >= 0 && *r.DayOfWeek <= 6 {
			return weekdays[*r.DayOfWeek]
		}
	}
	return ""
}

func intOrBlank(n *int) interface{} {
	if n == nil {
		return ""
	}
	return *n
}

// ═══════════════════════════════════════════
// iCalendar 订阅源
// ═══════════════════════════════════════════

// ICSFeed 生成该学生全部日程的 iCalendar 文本
// recurring 以每周 RRULE 表达；已取消的记录不进日历
func (s *exportService) ICSFeed(ctx context.Context, studentID string) (string, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.Error(err))
		return "", err
	}
	records, err := s.scheduleRepo.ListByStudent(ctx, studentID, "")
	if err != nil {
		s.logger.Error("查询日程列表失败", zap.Error(err))
		return "", err
	}

	loc, err := time.LoadLocation(scheduleTimezone)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//math-dashboard//schedule//KO")
	cal.SetName(fmt.Sprintf("%s 课表", student.Name))

	now := time.Now().In(loc)
	for i := range records {
		r := &records[i]
		if r.Status == model.StatusCancelled {
			continue
		}

		var start, end time.Time
		switch r.Kind {
		case model.KindSession:
			if r.Date == nil {
				continue
			}
			start, err = time.ParseInLocation("2006-01-02 15:04", *r.Date+" "+r.StartTime, loc)
			if err != nil {
				s.logger.Warn("日程时间解析失败，跳过",
					zap.String("schedule_id", r.ScheduleID), zap.Error(err))
				continue
			}
			end, err = time.ParseInLocation("2006-01-02 15:04", *r.Date+" "+r.EndTime, loc)
			if err != nil {
				continue
			}
		case model.KindRecurring:
			if r.DayOfWeek == nil {
				continue
			}
			start, end, err = nextWeeklyOccurrence(now, *r.DayOfWeek, r.StartTime, r.EndTime, loc)
			if err != nil {
				s.logger.Warn("日程时间解析失败，跳过",
					zap.String("schedule_id", r.ScheduleID), zap.Error(err))
				continue
			}
		}

		event := cal.AddEvent(r.ScheduleID)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetDtStampTime(now)

		summary := fmt.Sprintf("%s 课程", student.Name)
		if r.ScheduleChangeType != nil && *r.ScheduleChangeType == model.ChangeMakeup {
			summary = fmt.Sprintf("[%s] %s", makeupBadge, summary)
		}
		event.SetSummary(summary)
		if r.ChangeReason != "" {
			event.SetDescription(r.ChangeReason)
		} else if r.Notes != "" {
			event.SetDescription(r.Notes)
		}
		if r.Kind == model.KindRecurring {
			event.AddRrule(fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s", icalWeekdays[*r.DayOfWeek]))
		}
	}

	return cal.Serialize(), nil
}

// nextWeeklyOccurrence 计算某星期时段从 now 起的下一次发生时间，作为 RRULE 的 DTSTART
func nextWeeklyOccurrence(now time.Time, dayOfWeek int, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	st, err := time.Parse("15:04", startTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	et, err := time.Parse("15:04", endTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	daysAhead := (dayOfWeek - int(now.Weekday()) + 7) % 7
	day := now.AddDate(0, 0, daysAhead)
	start := time.Date(day.Year(), day.Month(), day.Day(), st.Hour(), st.Minute(), 0, 0, loc)
	if daysAhead == 0 && start.Before(now) {
		start = start.AddDate(0, 0, 7)
	}
	end := time.Date(start.Year(), start.Month(), start.Day(), et.Hour(), et.Minute(), 0, 0, loc)
	return start, end, nil
}
