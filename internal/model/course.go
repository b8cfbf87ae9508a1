package model

type CourseType string

const (
	CourseFoodSafety      CourseType = "food_safety"
	CourseHACCP           CourseType = "haccp"
	CourseAllergens       CourseType = "allergens"
	CourseHygiene         CourseType = "hygiene"
	CourseManagement      CourseType = "management"
	CourseCustomerService CourseType = "customer_service"
)

var courseTypes = map[CourseType]bool{
	CourseFoodSafety:      true,
	CourseHACCP:           true,
	CourseAllergens:       true,
	CourseHygiene:         true,
	CourseManagement:      true,
	CourseCustomerService: true,
}

func (t CourseType) Valid() bool {
	return courseTypes[t]
}

// swagger:model Course
type Course struct {
	BaseModel
	CompanyID     uint       `gorm:"index;not null" json:"companyId"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Type          CourseType `gorm:"size:50;not null" json:"type"`
	Level         string     `gorm:"size:50" json:"level"`
	Duration      int        `json:"duration"` // 分钟
	Published     bool       `gorm:"index" json:"published"`
	RequiredScore int        `gorm:"not null" json:"requiredScore"`
}

func (Course) TableName() string {
	return "courses"
}

// Lesson 课时，order 在同一课程内唯一，决定学习顺序
type Lesson struct {
	Timestamps
	CourseID uint   `gorm:"not null;uniqueIndex:idx_lesson_course_order,priority:1" json:"courseId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	VideoURL string `gorm:"size:512" json:"videoUrl,omitempty"`
	Order    int    `gorm:"column:sort_order;not null;uniqueIndex:idx_lesson_course_order,priority:2" json:"order"`
	Duration int    `json:"duration"` // 分钟
}

func (Lesson) TableName() string {
	return "lessons"
}
