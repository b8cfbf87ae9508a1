package model

import (
	"time"

	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Timestamps 不带软删除的基础字段，用于需要唯一索引约束的表
type Timestamps struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AllModels 返回需要自动迁移的全部模型，生产库与测试库共用
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&User{},
		&Course{},
		&Lesson{},
		&Quiz{},
		&Question{},
		&Option{},
		&UserCourse{},
		&QuizAttempt{},
		&UserAnswer{},
	}
}
