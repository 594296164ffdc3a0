package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
	pkgerrors "github.com/Nari0122/Mathlearningdashboard-sub000/pkg/errors"
)

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students map[string]*model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) List(_ context.Context, includeInactive bool) ([]model.Student, error) {
	var result []model.Student
	for _, s := range m.students {
		if !includeInactive && !s.IsActive {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

// ── Mock ScheduleRepository ──

// mockScheduleRepo 内存版日程存储，Put 模拟数据库侧的 version CAS：
// 传入版本与存储版本不一致时返回 ErrOptimisticLock
type mockScheduleRepo struct {
	records map[string]*model.ScheduleRecord
	// putHook 在每次 Put 生效前调用，用于在测试中模拟并发交错写入
	putHook func()
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{records: make(map[string]*model.ScheduleRecord)}
}

func (m *mockScheduleRepo) Create(_ context.Context, record *model.ScheduleRecord) error {
	clone := *record
	m.records[record.ScheduleID] = &clone
	return nil
}

func (m *mockScheduleRepo) GetByStudentAndID(_ context.Context, studentID, id string) (*model.ScheduleRecord, error) {
	r, ok := m.records[id]
	if !ok || r.StudentID != studentID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *mockScheduleRepo) Put(_ context.Context, record *model.ScheduleRecord) error {
	if m.putHook != nil {
		m.putHook()
	}
	stored, ok := m.records[record.ScheduleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != record.Version {
		return pkgerrors.ErrOptimisticLock
	}
	clone := *record
	clone.Version = record.Version + 1
	m.records[record.ScheduleID] = &clone
	record.Version = clone.Version
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, studentID, id string) error {
	if r, ok := m.records[id]; ok && r.StudentID == studentID {
		delete(m.records, id)
	}
	return nil
}

func (m *mockScheduleRepo) ListByStudent(_ context.Context, studentID, month string) ([]model.ScheduleRecord, error) {
	var result []model.ScheduleRecord
	for _, r := range m.records {
		if r.StudentID != studentID {
			continue
		}
		if month != "" && r.Kind == model.KindSession {
			if r.Date == nil || len(*r.Date) < 7 || (*r.Date)[:7] != month {
				continue
			}
		}
		result = append(result, *r)
	}
	return result, nil
}

// ── Mock ScheduleChangeLogRepository ──

type mockChangeLogRepo struct {
	logs      []model.ScheduleChangeLog
	idCounter int
}

func newMockChangeLogRepo() *mockChangeLogRepo {
	return &mockChangeLogRepo{}
}

func (m *mockChangeLogRepo) Create(_ context.Context, log *model.ScheduleChangeLog) error {
	m.idCounter++
	if log.ChangeLogID == "" {
		log.ChangeLogID = fmt.Sprintf("log-%d", m.idCounter)
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockChangeLogRepo) ListByStudent(_ context.Context, studentID string, offset, limit int) ([]model.ScheduleChangeLog, int64, error) {
	var matched []model.ScheduleChangeLog
	for _, l := range m.logs {
		if l.StudentID == studentID {
			matched = append(matched, l)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
