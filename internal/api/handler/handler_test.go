package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/dto"
	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock ScheduleService ──

type mockScheduleService struct {
	createResult     *dto.ScheduleResponse
	createErr        error
	getResult        *dto.ScheduleResponse
	getErr           error
	listResult       []dto.ScheduleResponse
	listErr          error
	updateResult     *dto.UpdateScheduleOutcome
	updateErr        error
	postponeResult   *dto.ScheduleResponse
	postponeErr      error
	deleteErr        error
	changeLogsResult []dto.ScheduleChangeLogResponse
	changeLogsTotal  int64
	changeLogsErr    error
}

func (m *mockScheduleService) Create(_ context.Context, _, _ string, _ *dto.CreateScheduleRequest) (*dto.ScheduleResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockScheduleService) Get(_ context.Context, _, _ string) (*dto.ScheduleResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockScheduleService) List(_ context.Context, _ string, _ *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockScheduleService) Update(_ context.Context, _, _, _ string, _ *dto.UpdateScheduleRequest) (*dto.UpdateScheduleOutcome, error) {
	return m.updateResult, m.updateErr
}
func (m *mockScheduleService) PostponeOrChange(_ context.Context, _, _, _ string, _ *dto.PostponeChangeRequest) (*dto.ScheduleResponse, error) {
	return m.postponeResult, m.postponeErr
}
func (m *mockScheduleService) Delete(_ context.Context, _, _ string) error {
	return m.deleteErr
}
func (m *mockScheduleService) ListChangeLogs(_ context.Context, _ string, _ *dto.ChangeLogListRequest) ([]dto.ScheduleChangeLogResponse, int64, error) {
	return m.changeLogsResult, m.changeLogsTotal, m.changeLogsErr
}

// ── Mock ExportService ──

type mockExportService struct {
	excelBuf      *bytes.Buffer
	excelFilename string
	excelErr      error
	icsFeed       string
	icsErr        error
}

func (m *mockExportService) ExportMonthExcel(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.excelBuf, m.excelFilename, m.excelErr
}
func (m *mockExportService) ICSFeed(_ context.Context, _ string) (string, error) {
	return m.icsFeed, m.icsErr
}

// ── 测试路由 ──

// setupTestRouter 注入固定身份（绕过 JWT 中间件）并挂载日程路由
func setupTestRouter(scheduleSvc service.ScheduleService, exportSvc service.ExportService) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "op-1")
		c.Set("role", "teacher")
		c.Next()
	})

	sh := NewScheduleHandler(scheduleSvc)
	eh := NewExportHandler(exportSvc)

	students := r.Group("/api/v1/students/:studentId")
	schedules := students.Group("/schedules")
	schedules.GET("", sh.List)
	schedules.POST("", sh.Create)
	schedules.GET("/change-logs", sh.ListChangeLogs)
	schedules.GET("/export/excel", eh.ExportMonthExcel)
	schedules.GET("/export/ics", eh.ICSFeed)
	schedules.GET("/:scheduleId", sh.Get)
	schedules.PUT("/:scheduleId", sh.Update)
	schedules.DELETE("/:scheduleId", sh.Delete)
	schedules.POST("/:scheduleId/change", sh.PostponeOrChange)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// ScheduleHandler 测试
// ═══════════════════════════════════════════════════════════

func TestScheduleHandler_Create(t *testing.T) {
	svc := &mockScheduleService{
		createResult: &dto.ScheduleResponse{ID: "sch-1", Status: "scheduled", Version: 1},
	}
	r := setupTestRouter(svc, &mockExportService{})

	w := doJSON(r, http.MethodPost, "/api/v1/students/stu-1/schedules", gin.H{
		"kind": "session", "date": "2026-03-02", "start_time": "16:00", "end_time": "18:00",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestScheduleHandler_Create_BindingFailure(t *testing.T) {
	r := setupTestRouter(&mockScheduleService{}, &mockExportService{})

	// kind 非法
	w := doJSON(r, http.MethodPost, "/api/v1/students/stu-1/schedules", gin.H{
		"kind": "weekly", "start_time": "16:00", "end_time": "18:00",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestScheduleHandler_Update_Conflict(t *testing.T) {
	svc := &mockScheduleService{
		updateResult: &dto.UpdateScheduleOutcome{
			Conflict: true,
			Latest:   &dto.ScheduleResponse{ID: "sch-1", StartTime: "15:00", Version: 2},
		},
	}
	r := setupTestRouter(svc, &mockExportService{})

	w := doJSON(r, http.MethodPut, "/api/v1/students/stu-1/schedules/sch-1", gin.H{
		"patch":    gin.H{"end_time": "19:00"},
		"snapshot": gin.H{"start_time": "16:00", "end_time": "18:00", "status": "scheduled"},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("期望 409，实际 %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Conflict   bool                  `json:"conflict"`
			LatestData *dto.ScheduleResponse `json:"latest_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if !resp.Data.Conflict {
		t.Error("data.conflict 应为 true")
	}
	if resp.Data.LatestData == nil || resp.Data.LatestData.StartTime != "15:00" {
		t.Error("data.latest_data 应携带最新记录")
	}
}

func TestScheduleHandler_Update_Success(t *testing.T) {
	svc := &mockScheduleService{
		updateResult: &dto.UpdateScheduleOutcome{
			Record: &dto.ScheduleResponse{ID: "sch-1", EndTime: "19:00", Version: 2},
		},
	}
	r := setupTestRouter(svc, &mockExportService{})

	w := doJSON(r, http.MethodPut, "/api/v1/students/stu-1/schedules/sch-1", gin.H{
		"patch": gin.H{"end_time": "19:00"},
		"force": true,
	})
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestScheduleHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"日程不存在", service.ErrScheduleNotFound, http.StatusNotFound},
		{"学生不存在", service.ErrStudentNotFound, http.StatusNotFound},
		{"终态拒绝", service.ErrRecordTerminal, http.StatusBadRequest},
		{"时间范围非法", service.ErrInvalidTimeRange, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockScheduleService{getErr: tt.err}
			r := setupTestRouter(svc, &mockExportService{})

			w := doJSON(r, http.MethodGet, "/api/v1/students/stu-1/schedules/sch-1", nil)
			if w.Code != tt.wantCode {
				t.Errorf("期望 %d，实际 %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestScheduleHandler_Postpone(t *testing.T) {
	svc := &mockScheduleService{
		postponeResult: &dto.ScheduleResponse{
			ID: "sch-1", Status: "postponed", ChangeReason: "강사 개인사정",
		},
	}
	r := setupTestRouter(svc, &mockExportService{})

	w := doJSON(r, http.MethodPost, "/api/v1/students/stu-1/schedules/sch-1/change", gin.H{
		"change_type": "postpone", "reason": "강사 개인사정",
		"new_date": "2026-03-09", "new_start_time": "16:00", "new_end_time": "18:00",
	})
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestScheduleHandler_Postpone_NotSession(t *testing.T) {
	svc := &mockScheduleService{postponeErr: service.ErrNotSession}
	r := setupTestRouter(svc, &mockExportService{})

	w := doJSON(r, http.MethodPost, "/api/v1/students/stu-1/schedules/sch-r/change", gin.H{
		"change_type": "cancel", "reason": "사유",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestScheduleHandler_Delete(t *testing.T) {
	r := setupTestRouter(&mockScheduleService{}, &mockExportService{})

	w := doJSON(r, http.MethodDelete, "/api/v1/students/stu-1/schedules/sch-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
}

func TestScheduleHandler_Unauthenticated(t *testing.T) {
	// 不注入 user_id，模拟中间件缺失
	r := gin.New()
	sh := NewScheduleHandler(&mockScheduleService{})
	r.POST("/api/v1/students/:studentId/schedules", sh.Create)

	w := doJSON(r, http.MethodPost, "/api/v1/students/stu-1/schedules", gin.H{
		"kind": "session", "date": "2026-03-02", "start_time": "16:00", "end_time": "18:00",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler 测试
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportMonthExcel(t *testing.T) {
	exportSvc := &mockExportService{
		excelBuf:      bytes.NewBufferString("xlsx-bytes"),
		excelFilename: "schedule_김민준_2026-03.xlsx",
	}
	r := setupTestRouter(&mockScheduleService{}, exportSvc)

	w := doJSON(r, http.MethodGet, "/api/v1/students/stu-1/schedules/export/excel?month=2026-03", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type 错误: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("应设置附件下载头，实际: %s", cd)
	}
}

func TestExportHandler_ICSFeed(t *testing.T) {
	exportSvc := &mockExportService{icsFeed: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}
	r := setupTestRouter(&mockScheduleService{}, exportSvc)

	w := doJSON(r, http.MethodGet, "/api/v1/students/stu-1/schedules/export/ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/calendar") {
		t.Errorf("Content-Type 错误: %s", ct)
	}
	if !strings.Contains(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Error("响应体应为 iCalendar 文本")
	}
}

func TestExportHandler_MonthRequired(t *testing.T) {
	exportSvc := &mockExportService{excelErr: service.ErrMonthRequired}
	r := setupTestRouter(&mockScheduleService{}, exportSvc)

	w := doJSON(r, http.MethodGet, "/api/v1/students/stu-1/schedules/export/excel", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}
