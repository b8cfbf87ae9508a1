// Package testutil 提供基于内存 SQLite 的测试数据库与测试数据构造函数。
package testutil

import (
	"testing"

	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 打开迁移完成的内存数据库。只保留一个连接，事务内必须使用 tx。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db, nil))
	return db
}

func Company(t *testing.T, db *gorm.DB, name string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name}
	require.NoError(t, db.Create(c).Error)
	return c
}

// User 创建用户，密码字段不做哈希
func User(t *testing.T, db *gorm.DB, companyID uint, email string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{CompanyID: companyID, Name: email, Email: email, Password: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Course(t *testing.T, db *gorm.DB, companyID uint, title string) *model.Course {
	t.Helper()
	c := &model.Course{
		CompanyID:     companyID,
		Title:         title,
		Type:          model.CourseFoodSafety,
		Published:     true,
		RequiredScore: 70,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func Lesson(t *testing.T, db *gorm.DB, courseID uint, order int) *model.Lesson {
	t.Helper()
	l := &model.Lesson{CourseID: courseID, Title: "lesson", Order: order}
	require.NoError(t, db.Create(l).Error)
	return l
}

func Quiz(t *testing.T, db *gorm.DB, courseID uint, passingScore *int) *model.Quiz {
	t.Helper()
	q := &model.Quiz{CourseID: courseID, Title: "quiz", PassingScore: passingScore}
	require.NoError(t, db.Omit("Questions").Create(q).Error)
	return q
}

// Question 创建一道单选题，返回题目及其正确、错误选项
func Question(t *testing.T, db *gorm.DB, quizID uint, points, order int) (*model.Question, *model.Option, *model.Option) {
	t.Helper()
	q := &model.Question{QuizID: quizID, Text: "question", Type: model.QuestionMultipleChoice, Points: points, Order: order}
	require.NoError(t, db.Omit("Options").Create(q).Error)
	right := &model.Option{QuestionID: q.ID, Text: "right", IsCorrect: true}
	wrong := &model.Option{QuestionID: q.ID, Text: "wrong", IsCorrect: false}
	require.NoError(t, db.Create(right).Error)
	require.NoError(t, db.Create(wrong).Error)
	return q, right, wrong
}

func IntPtr(v int) *int {
	return &v
}

func BoolPtr(v bool) *bool {
	return &v
}
