package model

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMatching       QuestionType = "matching"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionMatching:
		return true
	}
	return false
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID           uint       `gorm:"index;not null" json:"courseId"`
	LessonID           *uint      `gorm:"index" json:"lessonId"`
	Title              string     `gorm:"size:255;not null" json:"title"`
	PassingScore       *int       `json:"passingScore"` // 为空时使用课程 requiredScore
	TimeLimit          int        `json:"timeLimit"`    // 分钟，0 表示不限时
	RandomizeQuestions bool       `json:"randomizeQuestions"`
	Questions          []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type Question struct {
	Timestamps
	QuizID  uint         `gorm:"index;not null" json:"quizId"`
	Text    string       `gorm:"type:text;not null" json:"text"`
	Type    QuestionType `gorm:"size:30;not null" json:"type"`
	Points  int          `gorm:"not null" json:"points"`
	Order   int          `gorm:"column:sort_order;not null" json:"order"`
	Options []Option     `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Option 选项，IsCorrect 为标准答案，测验完成前不可暴露给学员
type Option struct {
	Timestamps
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

func (Option) TableName() string {
	return "options"
}
