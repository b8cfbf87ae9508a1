package repository

import (
	"appcc_edu_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Omit("Questions").Create(quiz).Error
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Omit("Questions").Save(quiz).Error
}

func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Quiz{}, id).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.First(&quiz, id).Error; err != nil {
		return nil, notFound(err, "quiz", id)
	}
	return &quiz, nil
}

// FindWithQuestions 加载测验及按 order 排序的题目和选项
func (r *QuizRepository) FindWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&quiz, id).Error
	if err != nil {
		return nil, notFound(err, "quiz", id)
	}
	return &quiz, nil
}

func (r *QuizRepository) ListByCourse(courseID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("course_id = ?", courseID).Order("id ASC").Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) ListIDsByCourse(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Quiz{}).Where("course_id = ?", courseID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// CreateQuestion 创建题目及其选项
func (r *QuizRepository) CreateQuestion(question *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		options := question.Options
		question.Options = nil
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].ID = 0
			options[i].QuestionID = question.ID
		}
		if len(options) > 0 {
			if err := tx.Create(&options).Error; err != nil {
				return err
			}
		}
		question.Options = options
		return nil
	})
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var question model.Question
	if err := r.DB.First(&question, id).Error; err != nil {
		return nil, notFound(err, "question", id)
	}
	return &question, nil
}

func (r *QuizRepository) DeleteQuestion(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}

// ListQuestions 按 order 返回测验题目（不含选项）
func (r *QuizRepository) ListQuestions(quizID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("quiz_id = ?", quizID).
		Order("sort_order ASC").Order("id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *QuizRepository) CreateOption(option *model.Option) error {
	return r.DB.Create(option).Error
}

func (r *QuizRepository) FindOptionByID(id uint) (*model.Option, error) {
	var option model.Option
	if err := r.DB.First(&option, id).Error; err != nil {
		return nil, notFound(err, "option", id)
	}
	return &option, nil
}
