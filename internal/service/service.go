package service

import (
	"go.uber.org/zap"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/repository"
)

// Service 所有业务服务的聚合入口
type Service struct {
	Schedule ScheduleService
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(repo *repository.Repository, logger *zap.Logger) *Service {
	return &Service{
		Schedule: NewScheduleService(repo.Student, repo.Schedule, repo.ScheduleChangeLog, logger),
		Export:   NewExportService(repo.Student, repo.Schedule, logger),
	}
}
