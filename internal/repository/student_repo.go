package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Nari0122/Mathlearningdashboard-sub000/internal/model"
)

// StudentRepository 学生数据访问接口
// 引擎侧只读：档案维护由外部协作方负责
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
	List(ctx context.Context, includeInactive bool) ([]model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) List(ctx context.Context, includeInactive bool) ([]model.Student, error) {
	var students []model.Student
	q := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&students).Error
	return students, err
}
