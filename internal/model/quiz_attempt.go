package model

import "time"

// QuizAttempt 一次答题，完成后不可再修改
type QuizAttempt struct {
	Timestamps
	UserID       uint       `gorm:"index;not null" json:"userId"`
	QuizID       uint       `gorm:"index;not null" json:"quizId"`
	UserCourseID *uint      `gorm:"index" json:"userCourseId"`
	StartedAt    time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	Score        *int       `json:"score"`
	Passed       bool       `gorm:"index" json:"passed"`
	TimeSpent    int        `json:"timeSpent"` // 秒
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) IsCompleted() bool {
	return a.CompletedAt != nil
}

// UserAnswer 每次答题中每道题最多一条答案
type UserAnswer struct {
	Timestamps
	QuizAttemptID uint    `gorm:"not null;uniqueIndex:idx_attempt_question,priority:1" json:"quizAttemptId"`
	QuestionID    uint    `gorm:"not null;uniqueIndex:idx_attempt_question,priority:2" json:"questionId"`
	OptionID      *uint   `json:"optionId"`
	Text          *string `gorm:"type:text" json:"text"`
	IsCorrect     bool    `json:"isCorrect"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}
