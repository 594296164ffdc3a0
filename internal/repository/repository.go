package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Student           StudentRepository
	Schedule          ScheduleRepository
	ScheduleChangeLog ScheduleChangeLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Student:           NewStudentRepo(db),
		Schedule:          NewScheduleRepo(db),
		ScheduleChangeLog: NewScheduleChangeLogRepo(db),
	}
}
