package service

import (
	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/util"
	"appcc_edu_backend/pkg/logger"
	"appcc_edu_backend/pkg/monitoring"
	"appcc_edu_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AssessmentService struct {
	DB             *gorm.DB
	QuizRepo       *repository.QuizRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	AttemptRepo    *repository.AttemptRepository
	Policy         *AccessPolicy
	Progress       *ProgressService
	Cfg            *config.Config
}

func NewAssessmentService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	attemptRepo *repository.AttemptRepository,
	policy *AccessPolicy,
	progress *ProgressService,
	cfg *config.Config,
) *AssessmentService {
	return &AssessmentService{
		DB:             db,
		QuizRepo:       quizRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		AttemptRepo:    attemptRepo,
		Policy:         policy,
		Progress:       progress,
		Cfg:            cfg,
	}
}

// PassingScore 及格线：测验设置优先，其次课程 requiredScore（0 也是有效值）
func (s *AssessmentService) PassingScore(quiz *model.Quiz, course *model.Course) int {
	if quiz.PassingScore != nil {
		return *quiz.PassingScore
	}
	if course != nil {
		return course.RequiredScore
	}
	return s.DefaultPassingScore()
}

// DefaultPassingScore 新建课程未指定 requiredScore 时使用的及格线
func (s *AssessmentService) DefaultPassingScore() int {
	if s != nil && s.Cfg != nil {
		return s.Cfg.Learning.DefaultPassingScore
	}
	return util.DefaultPassingScore
}

// StartAttempt 开始一次答题，要求学员已选修测验所属课程，不限制次数
func (s *AssessmentService) StartAttempt(ctx context.Context, actor Actor, quizID uint) (*model.QuizAttempt, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.Authorize(actor, Rule{CompanyID: course.CompanyID}); err != nil {
		return nil, err
	}

	uc, err := s.EnrollmentRepo.FindByUserAndCourse(actor.UserID, quiz.CourseID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrNotEnrolled
		}
		return nil, err
	}

	attempt := &model.QuizAttempt{
		UserID:       actor.UserID,
		QuizID:       quiz.ID,
		UserCourseID: &uc.ID,
		StartedAt:    time.Now(),
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}

	logger.Log.Info("Quiz attempt started",
		zap.Uint("attempt_id", attempt.ID),
		zap.Uint("user_id", actor.UserID),
		zap.Uint("quiz_id", quiz.ID))
	return attempt, nil
}

// AnswerInput 提交答案，optionId 与 text 至少提供一个
type AnswerInput struct {
	QuestionID uint    `json:"questionId"`
	OptionID   *uint   `json:"optionId"`
	Text       *string `json:"text"`
}

func (in AnswerInput) validate() error {
	verr := &util.ValidationError{}
	if in.QuestionID == 0 {
		verr.Add("questionId", "required")
	}
	if in.OptionID == nil && (in.Text == nil || strings.TrimSpace(*in.Text) == "") {
		verr.Add("optionId", "either optionId or text is required")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// SubmitAnswer 记录答案。同一题重复提交时覆盖之前的答案；答题完成后拒绝提交。
func (s *AssessmentService) SubmitAnswer(ctx context.Context, actor Actor, attemptID uint, in AnswerInput) (*model.UserAnswer, error) {
	var answer *model.UserAnswer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempts := s.AttemptRepo.WithTx(tx)
		quizzes := s.QuizRepo.WithTx(tx)

		attempt, err := attempts.FindByIDForUpdate(attemptID)
		if err != nil {
			return err
		}
		if err := s.Policy.CanMutateOwn(actor, attempt.UserID, 0); err != nil {
			return err
		}
		if attempt.IsCompleted() {
			return util.ErrAttemptAlreadyCompleted
		}
		// 已交卷优先返回 409，再校验答案内容
		if err := in.validate(); err != nil {
			return err
		}

		question, err := quizzes.FindQuestionByID(in.QuestionID)
		if err != nil {
			return err
		}
		if question.QuizID != attempt.QuizID {
			return util.ErrQuestionMismatch
		}

		answer = &model.UserAnswer{
			QuizAttemptID: attempt.ID,
			QuestionID:    question.ID,
		}
		if in.OptionID != nil {
			option, err := quizzes.FindOptionByID(*in.OptionID)
			if err != nil {
				return err
			}
			if option.QuestionID != question.ID {
				return util.ErrOptionMismatch
			}
			answer.OptionID = &option.ID
			// 提交时固化正误，之后修改选项不影响评分
			answer.IsCorrect = option.IsCorrect
		} else {
			text := strings.TrimSpace(*in.Text)
			answer.Text = &text
			answer.IsCorrect = false
		}

		if err := attempts.SaveAnswer(answer); err != nil {
			if repository.IsDuplicate(err) {
				return fmt.Errorf("answer for question %d: %w", question.ID, util.ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// AttemptResult 交卷结果
type AttemptResult struct {
	Attempt        *model.QuizAttempt `json:"attempt"`
	Score          int                `json:"score"`
	Passed         bool               `json:"passed"`
	CorrectAnswers int                `json:"correctAnswers"`
	TotalQuestions int                `json:"totalQuestions"`
	TimeSpent      int                `json:"timeSpent"`
	EarnedPoints   int                `json:"earnedPoints"`
	TotalPoints    int                `json:"totalPoints"`
	PassingScore   int                `json:"passingScore"`
	Enrollment     *model.UserCourse  `json:"enrollment,omitempty"`
}

// FinalizeAttempt 交卷评分。在锁定答题记录的事务中读取答案并写入成绩，
// 以 completed_at IS NULL 作为条件更新，重复交卷返回 util.ErrAttemptAlreadyCompleted。
// 进度重算在事务提交后进行，失败不影响评分结果。
func (s *AssessmentService) FinalizeAttempt(ctx context.Context, actor Actor, attemptID uint) (result *AttemptResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "AssessmentService.FinalizeAttempt",
		attribute.Int64("attempt.id", int64(attemptID)))
	defer func() { tracing.EndSpan(span, err) }()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempts := s.AttemptRepo.WithTx(tx)
		quizzes := s.QuizRepo.WithTx(tx)

		attempt, err := attempts.FindByIDForUpdate(attemptID)
		if err != nil {
			return err
		}
		if err := s.Policy.CanMutateOwn(actor, attempt.UserID, 0); err != nil {
			return err
		}
		if attempt.IsCompleted() {
			return util.ErrAttemptAlreadyCompleted
		}

		quiz, err := quizzes.FindByID(attempt.QuizID)
		if err != nil {
			return err
		}
		course, err := s.CourseRepo.WithTx(tx).FindByID(quiz.CourseID)
		if err != nil {
			return err
		}
		questions, err := quizzes.ListQuestions(quiz.ID)
		if err != nil {
			return err
		}
		answers, err := attempts.ListAnswers(attempt.ID)
		if err != nil {
			return err
		}

		grade := GradeAttempt(questions, answers)
		passingScore := s.PassingScore(quiz, course)

		now := time.Now()
		score := grade.Score
		attempt.Score = &score
		attempt.Passed = grade.IsPassed(passingScore)
		attempt.TimeSpent = int(now.Sub(attempt.StartedAt).Seconds())
		if attempt.TimeSpent < 0 {
			attempt.TimeSpent = 0
		}

		ok, err := attempts.MarkCompleted(attempt, now)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrAttemptAlreadyCompleted
		}
		attempt.CompletedAt = &now

		result = &AttemptResult{
			Attempt:        attempt,
			Score:          score,
			Passed:         attempt.Passed,
			CorrectAnswers: grade.CorrectAnswers,
			TotalQuestions: grade.TotalQuestions,
			TimeSpent:      attempt.TimeSpent,
			EarnedPoints:   grade.EarnedPoints,
			TotalPoints:    grade.TotalPoints,
			PassingScore:   passingScore,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ObserveAttempt(result.Passed)
	span.SetAttributes(attribute.Int("score", result.Score), attribute.Bool("passed", result.Passed))
	logger.Log.Info("Quiz attempt finalized",
		zap.Uint("attempt_id", result.Attempt.ID),
		zap.Uint("user_id", result.Attempt.UserID),
		zap.Uint("quiz_id", result.Attempt.QuizID),
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed))

	if result.Attempt.UserCourseID != nil && s.Progress != nil {
		result.Enrollment = s.Progress.RecomputeBestEffort(ctx, *result.Attempt.UserCourseID)
	}
	return result, nil
}

// OptionView 选项视图，答题完成前不包含正误
type OptionView struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

// QuestionResult 单题结果
type QuestionResult struct {
	QuestionID uint               `json:"questionId"`
	Text       string             `json:"text"`
	Type       model.QuestionType `json:"type"`
	Points     int                `json:"points"`
	Order      int                `json:"order"`
	Options    []OptionView       `json:"options"`
	Answer     *AnswerView        `json:"answer"`
	IsCorrect  *bool              `json:"isCorrect,omitempty"`
}

// AttemptResults 答题明细
type AttemptResults struct {
	Attempt      *model.QuizAttempt `json:"attempt"`
	QuizID       uint               `json:"quizId"`
	QuizTitle    string             `json:"quizTitle"`
	PassingScore int                `json:"passingScore"`
	Grade        *Grade             `json:"grade,omitempty"`
	Questions    []QuestionResult   `json:"questions"`
}

// GetResults 返回逐题明细，仅本人或本公司管理员可查看。
// 未完成的答题对学员隐藏标准答案。
func (s *AssessmentService) GetResults(ctx context.Context, actor Actor, attemptID uint) (*AttemptResults, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.QuizRepo.FindWithQuestions(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanReadOwn(actor, attempt.UserID, course.CompanyID); err != nil {
		return nil, err
	}

	answers, err := s.AttemptRepo.ListAnswers(attempt.ID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uint]*model.UserAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	reveal := attempt.IsCompleted() || actor.IsAdmin()
	res := &AttemptResults{
		Attempt:      attempt,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		PassingScore: s.PassingScore(quiz, course),
		Questions:    make([]QuestionResult, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		qr := QuestionResult{
			QuestionID: q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Points:     q.Points,
			Order:      q.Order,
			Options:    optionViews(q.Options, reveal),
		}
		if a, ok := byQuestion[q.ID]; ok {
			qr.Answer = NewAnswerView(a, reveal)
			qr.IsCorrect = qr.Answer.IsCorrect
		} else if reveal {
			correct := false
			qr.IsCorrect = &correct
		}
		res.Questions = append(res.Questions, qr)
	}
	if attempt.IsCompleted() {
		g := GradeAttempt(quiz.Questions, answers)
		res.Grade = &g
	}
	return res, nil
}

// AnswerView 答案视图，reveal 为 false 时不包含正误
type AnswerView struct {
	ID            uint      `json:"id"`
	QuizAttemptID uint      `json:"quizAttemptId"`
	QuestionID    uint      `json:"questionId"`
	OptionID      *uint     `json:"optionId"`
	Text          *string   `json:"text"`
	IsCorrect     *bool     `json:"isCorrect,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewAnswerView(a *model.UserAnswer, reveal bool) *AnswerView {
	v := &AnswerView{
		ID:            a.ID,
		QuizAttemptID: a.QuizAttemptID,
		QuestionID:    a.QuestionID,
		OptionID:      a.OptionID,
		Text:          a.Text,
		UpdatedAt:     a.UpdatedAt,
	}
	if reveal {
		correct := a.IsCorrect
		v.IsCorrect = &correct
	}
	return v
}

func optionViews(options []model.Option, reveal bool) []OptionView {
	views := make([]OptionView, 0, len(options))
	for _, o := range options {
		v := OptionView{ID: o.ID, Text: o.Text}
		if reveal {
			correct := o.IsCorrect
			v.IsCorrect = &correct
		}
		views = append(views, v)
	}
	return views
}

// ListAttempts 当前用户在某测验下的全部答题记录
func (s *AssessmentService) ListAttempts(ctx context.Context, actor Actor, quizID uint) ([]model.QuizAttempt, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.Authorize(actor, Rule{CompanyID: course.CompanyID}); err != nil {
		return nil, err
	}
	return s.AttemptRepo.ListByUserAndQuiz(actor.UserID, quizID)
}
