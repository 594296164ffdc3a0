package model

// Student 学生表 — 对应 students
// 本引擎只做所有者存在性查询；学生档案的增删改由外部协作方通过共享库维护
type Student struct {
	StudentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	Name      string `gorm:"type:varchar(50);not null"                      json:"name"`
	Grade     string `gorm:"type:varchar(20)"                               json:"grade,omitempty"`
	Subject   string `gorm:"type:varchar(50)"                               json:"subject,omitempty"`
	IsActive  bool   `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }
