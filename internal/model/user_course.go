package model

import "time"

// UserCourse 学员选课记录，(user_id, course_id) 唯一
type UserCourse struct {
	Timestamps
	UserID          uint       `gorm:"not null;uniqueIndex:idx_user_course,priority:1" json:"userId"`
	CourseID        uint       `gorm:"not null;uniqueIndex:idx_user_course,priority:2;index" json:"courseId"`
	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	Progress        int        `gorm:"not null;default:0" json:"progress"`
	CurrentLessonID *uint      `gorm:"index" json:"currentLessonId"`
	Certificate     string     `gorm:"size:512" json:"certificate,omitempty"`
	Course          *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (UserCourse) TableName() string {
	return "user_courses"
}

func (uc *UserCourse) IsCompleted() bool {
	return uc.CompletedAt != nil
}
