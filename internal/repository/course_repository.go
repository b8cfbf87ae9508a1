package repository

import (
	"appcc_edu_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Course{}, id).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.First(&course, id).Error; err != nil {
		return nil, notFound(err, "course", id)
	}
	return &course, nil
}

// ListByCompany 列出公司课程，publishedOnly 时仅返回已发布课程
func (r *CourseRepository) ListByCompany(companyID uint, publishedOnly bool) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.Where("company_id = ?", companyID)
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	err := query.Order("id ASC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CreateLesson(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *CourseRepository) UpdateLesson(lesson *model.Lesson) error {
	return r.DB.Save(lesson).Error
}

// DeleteLesson 删除课时，并清空指向该课时的学员当前课时指针
func (r *CourseRepository) DeleteLesson(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.UserCourse{}).
			Where("current_lesson_id = ?", id).
			Update("current_lesson_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Quiz{}).
			Where("lesson_id = ?", id).
			Update("lesson_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Lesson{}, id).Error
	})
}

func (r *CourseRepository) FindLessonByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.DB.First(&lesson, id).Error; err != nil {
		return nil, notFound(err, "lesson", id)
	}
	return &lesson, nil
}

// ListLessons 按 order 升序返回课程的全部课时
func (r *CourseRepository) ListLessons(courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("course_id = ?", courseID).
		Order("sort_order ASC").Order("id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *CourseRepository) ListLessonIDs(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Order("sort_order ASC").Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// FirstLesson 返回 order 最小的课时，课程无课时时返回 nil
func (r *CourseRepository) FirstLesson(courseID uint) (*model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("course_id = ?", courseID).
		Order("sort_order ASC").Order("id ASC").
		Limit(1).Find(&lessons).Error
	if err != nil || len(lessons) == 0 {
		return nil, err
	}
	return &lessons[0], nil
}
