//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/repository"
	pkgerrors "github.com/Nari0122/Mathlearningdashboard-sub000/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=math_dashboard_test sslmode=disable TimeZone=Asia/Seoul"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	err = testDB.AutoMigrate(
		&model.Student{},
		&model.ScheduleRecord{},
		&model.ScheduleChangeLog{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestData 创建学生与一条单次课，返回清理函数
func setupTestData(t *testing.T) (student *model.Student, record *model.ScheduleRecord, cleanup func()) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewRepository(testDB)

	student = &model.Student{Name: "테스트학생", Grade: "中2", Subject: "数学", IsActive: true}
	if err := testDB.WithContext(ctx).Create(student).Error; err != nil {
		t.Fatalf("创建测试学生失败: %v", err)
	}

	date := "2026-03-02"
	record = &model.ScheduleRecord{
		ScheduleID: "11111111-1111-1111-1111-111111111111",
		StudentID:  student.StudentID,
		Kind:       model.KindSession,
		Date:       &date,
		StartTime:  "16:00",
		EndTime:    "18:00",
		Status:     model.StatusScheduled,
	}
	record.Version = 1
	if err := repo.Schedule.Create(ctx, record); err != nil {
		t.Fatalf("创建测试日程失败: %v", err)
	}

	cleanup = func() {
		testDB.Where("student_id = ?", student.StudentID).Delete(&model.ScheduleChangeLog{})
		testDB.Where("student_id = ?", student.StudentID).Delete(&model.ScheduleRecord{})
		testDB.Delete(student)
	}
	return student, record, cleanup
}

// ═══════════════════════════════════════════════════════════
// ScheduleRepository
// ═══════════════════════════════════════════════════════════

func TestScheduleRepo_PutCAS(t *testing.T) {
	_, record, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewScheduleRepo(testDB)

	record.EndTime = "19:00"
	if err := repo.Put(ctx, record); err != nil {
		t.Fatalf("Put 应成功: %v", err)
	}
	if record.Version != 2 {
		t.Errorf("期望 version=2，实际=%d", record.Version)
	}

	stored, err := repo.GetByStudentAndID(ctx, record.StudentID, record.ScheduleID)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if stored.EndTime != "19:00" || stored.Version != 2 {
		t.Errorf("落库结果错误: end_time=%s version=%d", stored.EndTime, stored.Version)
	}
}

// 两个并发写入者交错提交：后写的一方版本号已过期，必须被 CAS 拒绝
func TestScheduleRepo_PutCAS_Interleave(t *testing.T) {
	_, record, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewScheduleRepo(testDB)

	writerA, err := repo.GetByStudentAndID(ctx, record.StudentID, record.ScheduleID)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	writerB, err := repo.GetByStudentAndID(ctx, record.StudentID, record.ScheduleID)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}

	writerA.StartTime = "15:00"
	if err := repo.Put(ctx, writerA); err != nil {
		t.Fatalf("A 先提交应成功: %v", err)
	}

	writerB.EndTime = "19:00"
	if err := repo.Put(ctx, writerB); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("B 后提交应返回 ErrOptimisticLock，实际: %v", err)
	}

	// 混合记录不可能出现
	stored, _ := repo.GetByStudentAndID(ctx, record.StudentID, record.ScheduleID)
	if stored.StartTime != "15:00" || stored.EndTime != "18:00" {
		t.Errorf("出现交错写入: start=%s end=%s", stored.StartTime, stored.EndTime)
	}
}

func TestScheduleRepo_ListByStudent_MonthFilter(t *testing.T) {
	student, _, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewScheduleRepo(testDB)

	april := "2026-04-06"
	aprilRecord := &model.ScheduleRecord{
		ScheduleID: "22222222-2222-2222-2222-222222222222",
		StudentID:  student.StudentID,
		Kind:       model.KindSession,
		Date:       &april,
		StartTime:  "16:00",
		EndTime:    "18:00",
		Status:     model.StatusScheduled,
	}
	aprilRecord.Version = 1
	if err := repo.Create(ctx, aprilRecord); err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	dow := 1
	recurring := &model.ScheduleRecord{
		ScheduleID: "33333333-3333-3333-3333-333333333333",
		StudentID:  student.StudentID,
		Kind:       model.KindRecurring,
		DayOfWeek:  &dow,
		StartTime:  "19:00",
		EndTime:    "21:00",
		Status:     model.StatusActive,
	}
	recurring.Version = 1
	if err := repo.Create(ctx, recurring); err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	records, err := repo.ListByStudent(ctx, student.StudentID, "2026-03")
	if err != nil {
		t.Fatalf("ListByStudent 失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望 3月 session + recurring 共 2 条，实际 %d 条", len(records))
	}
	for _, r := range records {
		if r.ScheduleID == aprilRecord.ScheduleID {
			t.Error("4月记录不应出现在3月列表")
		}
	}
}

// ═══════════════════════════════════════════════════════════
// ScheduleChangeLogRepository
// ═══════════════════════════════════════════════════════════

func TestChangeLogRepo_CreateAndList(t *testing.T) {
	student, record, cleanup := setupTestData(t)
	defer cleanup()
	ctx := context.Background()
	repo := repository.NewScheduleChangeLogRepo(testDB)

	origDate := "2026-03-02"
	newDate := "2026-03-09"
	log := &model.ScheduleChangeLog{
		ScheduleID:   record.ScheduleID,
		StudentID:    student.StudentID,
		ChangeType:   "postpone",
		Reason:       "강사 개인사정",
		OriginalDate: &origDate,
		NewDate:      &newDate,
		OperatorID:   "44444444-4444-4444-4444-444444444444",
	}
	if err := repo.Create(ctx, log); err != nil {
		t.Fatalf("创建变更日志失败: %v", err)
	}

	logs, total, err := repo.ListByStudent(ctx, student.StudentID, 0, 20)
	if err != nil {
		t.Fatalf("ListByStudent 失败: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("期望 1 条，实际 total=%d len=%d", total, len(logs))
	}
	if logs[0].Reason != "강사 개인사정" {
		t.Errorf("事由错误: %s", logs[0].Reason)
	}
}
