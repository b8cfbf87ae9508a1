package repository

import (
	"appcc_edu_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	if err := r.DB.First(&attempt, id).Error; err != nil {
		return nil, notFound(err, "attempt", id)
	}
	return &attempt, nil
}

// FindByIDForUpdate 加行锁读取答题记录，需在事务中调用
func (r *AttemptRepository) FindByIDForUpdate(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	if err := forUpdate(r.DB).First(&attempt, id).Error; err != nil {
		return nil, notFound(err, "attempt", id)
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByUserAndQuiz(userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("started_at DESC").Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}

// MarkCompleted 条件更新 completed_at 为空的记录，返回 false 表示已被其他请求完成
func (r *AttemptRepository) MarkCompleted(attempt *model.QuizAttempt, completedAt time.Time) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL", attempt.ID).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"score":        attempt.Score,
			"passed":       attempt.Passed,
			"time_spent":   attempt.TimeSpent,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AttemptRepository) FindAnswer(attemptID, questionID uint) (*model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := r.DB.Where("quiz_attempt_id = ? AND question_id = ?", attemptID, questionID).
		Limit(1).Find(&answers).Error
	if err != nil || len(answers) == 0 {
		return nil, err
	}
	return &answers[0], nil
}

// SaveAnswer 按 (attempt, question) 写入答案，已有答案时覆盖
func (r *AttemptRepository) SaveAnswer(answer *model.UserAnswer) error {
	existing, err := r.FindAnswer(answer.QuizAttemptID, answer.QuestionID)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.DB.Create(answer).Error
	}
	answer.ID = existing.ID
	answer.CreatedAt = existing.CreatedAt
	answer.UpdatedAt = time.Now()
	return r.DB.Model(existing).Updates(map[string]interface{}{
		"option_id":  answer.OptionID,
		"text":       answer.Text,
		"is_correct": answer.IsCorrect,
		"updated_at": answer.UpdatedAt,
	}).Error
}

func (r *AttemptRepository) ListAnswers(attemptID uint) ([]model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := r.DB.Where("quiz_attempt_id = ?", attemptID).Order("id ASC").Find(&answers).Error
	return answers, err
}

// PassedQuizIDs 返回用户在课程中已通过的测验 ID（去重）
func (r *AttemptRepository) PassedQuizIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.QuizAttempt{}).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id AND quizzes.deleted_at IS NULL").
		Where("quiz_attempts.user_id = ? AND quizzes.course_id = ? AND quiz_attempts.passed = ? AND quiz_attempts.completed_at IS NOT NULL",
			userID, courseID, true).
		Distinct().
		Pluck("quiz_attempts.quiz_id", &ids).Error
	return ids, err
}
