package service_test

import (
	"context"
	"testing"
	"time"

	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/testutil"
	"appcc_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGradeAttempt(t *testing.T) {
	questions := []model.Question{
		{Timestamps: model.Timestamps{ID: 1}, Points: 1},
		{Timestamps: model.Timestamps{ID: 2}, Points: 2},
		{Timestamps: model.Timestamps{ID: 3}, Points: 3},
	}

	t.Run("weighted score", func(t *testing.T) {
		answers := []model.UserAnswer{
			{QuestionID: 1, IsCorrect: true},
			{QuestionID: 2, IsCorrect: false},
			{QuestionID: 3, IsCorrect: true},
		}
		g := service.GradeAttempt(questions, answers)
		assert.Equal(t, 4, g.EarnedPoints)
		assert.Equal(t, 6, g.TotalPoints)
		assert.Equal(t, 67, g.Score)
		assert.Equal(t, 2, g.CorrectAnswers)
		assert.Equal(t, 3, g.TotalQuestions)
		assert.False(t, g.IsPassed(70))
		assert.True(t, g.IsPassed(60))
	})

	t.Run("unanswered questions count as wrong", func(t *testing.T) {
		g := service.GradeAttempt(questions, []model.UserAnswer{{QuestionID: 3, IsCorrect: true}})
		assert.Equal(t, 50, g.Score)
	})

	t.Run("answers to unknown questions are ignored", func(t *testing.T) {
		g := service.GradeAttempt(questions, []model.UserAnswer{{QuestionID: 42, IsCorrect: true}})
		assert.Equal(t, 0, g.EarnedPoints)
	})

	t.Run("zero questions", func(t *testing.T) {
		g := service.GradeAttempt(nil, nil)
		assert.Equal(t, 0, g.Score)
		assert.False(t, g.IsPassed(0))
	})
}

type quizFixture struct {
	learner  *model.User
	course   *model.Course
	quiz     *model.Quiz
	right    []*model.Option
	wrong    []*model.Option
	question []*model.Question
}

func newQuizFixture(t *testing.T, e *env, points []int, passing *int) *quizFixture {
	t.Helper()
	company := testutil.Company(t, e.db, "acme")
	f := &quizFixture{
		learner: testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner),
		course:  testutil.Course(t, e.db, company.ID, "Higiene"),
	}
	f.quiz = testutil.Quiz(t, e.db, f.course.ID, passing)
	for i, p := range points {
		q, right, wrong := testutil.Question(t, e.db, f.quiz.ID, p, i+1)
		f.question = append(f.question, q)
		f.right = append(f.right, right)
		f.wrong = append(f.wrong, wrong)
	}
	return f
}

func TestAttemptLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("start requires enrollment", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)

		_, err := e.assessment.StartAttempt(ctx, actorOf(f.learner), f.quiz.ID)
		assert.ErrorIs(t, err, util.ErrNotEnrolled)
		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("weighted scoring end to end", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1, 2, 3}, testutil.IntPtr(70))
		actor := actorOf(f.learner)
		uc, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)

		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)
		require.NotNil(t, attempt.UserCourseID)
		assert.Equal(t, uc.ID, *attempt.UserCourseID)
		assert.Nil(t, attempt.Score)
		assert.Nil(t, attempt.CompletedAt)

		for i, opt := range []*model.Option{f.right[0], f.wrong[1], f.right[2]} {
			answer, err := e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
				QuestionID: f.question[i].ID,
				OptionID:   &opt.ID,
			})
			require.NoError(t, err)
			assert.Equal(t, opt.IsCorrect, answer.IsCorrect)
		}

		res, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, res.EarnedPoints)
		assert.Equal(t, 6, res.TotalPoints)
		assert.Equal(t, 67, res.Score)
		assert.False(t, res.Passed)
		assert.Equal(t, 2, res.CorrectAnswers)
		assert.Equal(t, 3, res.TotalQuestions)
		assert.GreaterOrEqual(t, res.TimeSpent, 0)
		require.NotNil(t, res.Attempt.CompletedAt)
	})

	t.Run("zero question quiz finalizes to zero", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, nil, testutil.IntPtr(0))
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)

		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)
		res, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Score)
		assert.False(t, res.Passed)
	})

	t.Run("completed attempt rejects answers and finalization", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		_, err = e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)

		_, err = e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		assert.ErrorIs(t, err, util.ErrAttemptAlreadyCompleted)
		assert.ErrorIs(t, err, util.ErrConflict)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: f.question[0].ID,
			OptionID:   &f.right[0].ID,
		})
		assert.ErrorIs(t, err, util.ErrConflict)

		// 已交卷时即使答案不完整也返回 409
		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{})
		assert.ErrorIs(t, err, util.ErrAttemptAlreadyCompleted)
		assert.NotErrorIs(t, err, util.ErrValidation)

		stored, err := e.attemptRepo.ListAnswers(attempt.ID)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("incomplete answer on an open attempt is a validation error", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{QuestionID: f.question[0].ID})
		var verr *util.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "optionId")
	})

	t.Run("losing a concurrent finalization is a conflict", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		first, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)

		// 模拟另一请求在锁之前读到了未完成的记录
		require.NoError(t, e.db.Callback().Query().After("gorm:query").Register("test:stale_attempt", func(db *gorm.DB) {
			if a, ok := db.Statement.Dest.(*model.QuizAttempt); ok {
				a.CompletedAt = nil
			}
		}))

		_, err = e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		assert.ErrorIs(t, err, util.ErrAttemptAlreadyCompleted)

		require.NoError(t, e.db.Callback().Query().Remove("test:stale_attempt"))
		stored, err := e.attemptRepo.FindByID(attempt.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.CompletedAt)
		assert.WithinDuration(t, *first.Attempt.CompletedAt, *stored.CompletedAt, time.Millisecond)
	})

	t.Run("resubmission replaces the previous answer", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		in := service.AnswerInput{QuestionID: f.question[0].ID, OptionID: &f.wrong[0].ID}
		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, in)
		require.NoError(t, err)
		in.OptionID = &f.right[0].ID
		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, in)
		require.NoError(t, err)

		stored, err := e.attemptRepo.ListAnswers(attempt.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.True(t, stored[0].IsCorrect)
		assert.Equal(t, f.right[0].ID, *stored[0].OptionID)
	})

	t.Run("mismatched question and option are validation errors", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1, 1}, nil)
		otherQuiz := testutil.Quiz(t, e.db, f.course.ID, nil)
		foreignQuestion, _, _ := testutil.Question(t, e.db, otherQuiz.ID, 1, 1)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: foreignQuestion.ID,
			OptionID:   &f.right[0].ID,
		})
		assert.ErrorIs(t, err, util.ErrQuestionMismatch)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: f.question[0].ID,
			OptionID:   &f.right[1].ID,
		})
		assert.ErrorIs(t, err, util.ErrOptionMismatch)
		assert.ErrorIs(t, err, util.ErrValidation)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{QuestionID: f.question[0].ID})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("free text answers are never correct", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		text := "lavarse las manos"
		answer, err := e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: f.question[0].ID,
			Text:       &text,
		})
		require.NoError(t, err)
		assert.False(t, answer.IsCorrect)
		assert.Nil(t, answer.OptionID)
	})

	t.Run("grading is fixed at submission time", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: f.question[0].ID,
			OptionID:   &f.right[0].ID,
		})
		require.NoError(t, err)
		require.NoError(t, e.db.Model(f.right[0]).Update("is_correct", false).Error)

		res, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, res.Score)
	})

	t.Run("other users cannot touch the attempt", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		intruder := testutil.User(t, e.db, f.course.CompanyID, "x@example.com", model.RoleLearner)
		actor := actorOf(f.learner)
		_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)

		_, err = e.assessment.SubmitAnswer(ctx, actorOf(intruder), attempt.ID, service.AnswerInput{
			QuestionID: f.question[0].ID,
			OptionID:   &f.right[0].ID,
		})
		assert.ErrorIs(t, err, util.ErrForbidden)
		_, err = e.assessment.FinalizeAttempt(ctx, actorOf(intruder), attempt.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)
		_, err = e.assessment.GetResults(ctx, actorOf(intruder), attempt.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("unknown attempt is not found", func(t *testing.T) {
		e := newEnv(t)
		f := newQuizFixture(t, e, []int{1}, nil)
		_, err := e.assessment.FinalizeAttempt(ctx, actorOf(f.learner), 12345)
		assert.ErrorIs(t, err, util.ErrNotFound)
	})
}

func TestGetResults(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := newQuizFixture(t, e, []int{1, 1}, nil)
	admin := testutil.User(t, e.db, f.course.CompanyID, "admin@example.com", model.RoleAdmin)
	actor := actorOf(f.learner)
	_, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
	require.NoError(t, err)
	attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
	require.NoError(t, err)
	_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
		QuestionID: f.question[0].ID,
		OptionID:   &f.right[0].ID,
	})
	require.NoError(t, err)

	t.Run("open attempt hides ground truth from the learner", func(t *testing.T) {
		res, err := e.assessment.GetResults(ctx, actor, attempt.ID)
		require.NoError(t, err)
		require.Len(t, res.Questions, 2)
		assert.Nil(t, res.Grade)
		for _, q := range res.Questions {
			assert.Nil(t, q.IsCorrect)
			for _, o := range q.Options {
				assert.Nil(t, o.IsCorrect)
			}
		}
		require.NotNil(t, res.Questions[0].Answer)
		assert.Nil(t, res.Questions[0].Answer.IsCorrect)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		res, err := e.assessment.GetResults(ctx, actorOf(admin), attempt.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Questions[0].IsCorrect)
		assert.True(t, *res.Questions[0].IsCorrect)
	})

	t.Run("completed attempt shows per question breakdown", func(t *testing.T) {
		_, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)

		res, err := e.assessment.GetResults(ctx, actor, attempt.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Grade)
		assert.Equal(t, 50, res.Grade.Score)
		require.NotNil(t, res.Questions[0].IsCorrect)
		assert.True(t, *res.Questions[0].IsCorrect)
		require.NotNil(t, res.Questions[1].IsCorrect)
		assert.False(t, *res.Questions[1].IsCorrect)
		assert.Nil(t, res.Questions[1].Answer)
	})
}

// 两节课时加一个课程测验（3 题，及格线 70）的完整流程
func TestCourseCompletionScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := newQuizFixture(t, e, []int{1, 1, 1}, testutil.IntPtr(70))
	actor := actorOf(f.learner)
	testutil.Lesson(t, e.db, f.course.ID, 1)
	l2 := testutil.Lesson(t, e.db, f.course.ID, 2)

	uc, err := e.enrollment.Enroll(ctx, actor, f.course.ID)
	require.NoError(t, err)

	uc, err = e.enrollment.AdvanceLesson(ctx, actor, uc.ID, l2.ID)
	require.NoError(t, err)
	assert.Equal(t, 67, uc.Progress)

	take := func(correct int) *service.AttemptResult {
		attempt, err := e.assessment.StartAttempt(ctx, actor, f.quiz.ID)
		require.NoError(t, err)
		for i := range f.question {
			opt := f.wrong[i]
			if i < correct {
				opt = f.right[i]
			}
			_, err := e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
				QuestionID: f.question[i].ID,
				OptionID:   &opt.ID,
			})
			require.NoError(t, err)
		}
		res, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)
		return res
	}

	failed := take(2)
	assert.Equal(t, 67, failed.Score)
	assert.False(t, failed.Passed)

	_, snap, err := e.progress.RecomputeProgress(ctx, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CompletedItems)
	assert.Equal(t, 3, snap.TotalItems)
	assert.Equal(t, 67, snap.Progress)
	stored, err := e.enrollRepo.FindByID(uc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CompletedAt)

	passed := take(3)
	assert.Equal(t, 100, passed.Score)
	assert.True(t, passed.Passed)
	require.NotNil(t, passed.Enrollment)
	assert.Equal(t, 100, passed.Enrollment.Progress)

	_, snap, err = e.progress.RecomputeProgress(ctx, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.CompletedItems)
	assert.Equal(t, 100, snap.Progress)
	stored, err = e.enrollRepo.FindByID(uc.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CompletedAt)

	attempts, err := e.assessment.ListAttempts(ctx, actor, f.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestCoursePassingThreshold(t *testing.T) {
	ctx := context.Background()

	// 题目一道，学员答错，得分为 0
	failOnce := func(t *testing.T, e *env, course *model.Course, quizPassing *int) *service.AttemptResult {
		t.Helper()
		admin := actorOf(testutil.User(t, e.db, course.CompanyID, "admin@example.com", model.RoleAdmin))
		learner := testutil.User(t, e.db, course.CompanyID, "l@example.com", model.RoleLearner)

		quiz, err := e.catalog.CreateQuiz(ctx, admin, course.ID, service.QuizInput{Title: "Final", PassingScore: quizPassing})
		require.NoError(t, err)
		question, err := e.catalog.CreateQuestion(ctx, admin, quiz.ID, service.QuestionInput{
			Text: "¿Temperatura de refrigeración?",
			Type: model.QuestionMultipleChoice,
			Options: []service.OptionInput{
				{Text: "0-5 ºC", IsCorrect: true},
				{Text: "10-15 ºC"},
			},
		})
		require.NoError(t, err)

		actor := actorOf(learner)
		_, err = e.enrollment.Enroll(ctx, actor, course.ID)
		require.NoError(t, err)
		attempt, err := e.assessment.StartAttempt(ctx, actor, quiz.ID)
		require.NoError(t, err)
		_, err = e.assessment.SubmitAnswer(ctx, actor, attempt.ID, service.AnswerInput{
			QuestionID: question.ID,
			OptionID:   &question.Options[1].ID,
		})
		require.NoError(t, err)

		res, err := e.assessment.FinalizeAttempt(ctx, actor, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Score)
		return res
	}

	newCourse := func(t *testing.T, e *env, requiredScore *int) *model.Course {
		t.Helper()
		company := testutil.Company(t, e.db, "acme")
		admin := actorOf(testutil.User(t, e.db, company.ID, "author@example.com", model.RoleAdmin))
		course, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{
			Title:         "Higiene",
			Type:          model.CourseHygiene,
			Published:     testutil.BoolPtr(true),
			RequiredScore: requiredScore,
		})
		require.NoError(t, err)
		return course
	}

	t.Run("explicit zero course threshold is honored", func(t *testing.T) {
		e := newEnv(t)
		course := newCourse(t, e, testutil.IntPtr(0))
		assert.Equal(t, 0, course.RequiredScore)

		res := failOnce(t, e, course, nil)
		assert.Equal(t, 0, res.PassingScore)
		assert.True(t, res.Passed)
	})

	t.Run("omitted course threshold uses the configured default", func(t *testing.T) {
		e := newEnv(t)
		e.cfg.Learning.DefaultPassingScore = 80
		course := newCourse(t, e, nil)
		assert.Equal(t, 80, course.RequiredScore)

		res := failOnce(t, e, course, nil)
		assert.Equal(t, 80, res.PassingScore)
		assert.False(t, res.Passed)
	})

	t.Run("quiz threshold takes precedence", func(t *testing.T) {
		e := newEnv(t)
		course := newCourse(t, e, testutil.IntPtr(0))

		res := failOnce(t, e, course, testutil.IntPtr(50))
		assert.Equal(t, 50, res.PassingScore)
		assert.False(t, res.Passed)
	})
}
