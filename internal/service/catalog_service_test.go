package service_test

import (
	"context"
	"testing"

	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/testutil"
	"appcc_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogAuthoring(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	company := testutil.Company(t, e.db, "acme")
	other := testutil.Company(t, e.db, "other")
	admin := actorOf(testutil.User(t, e.db, company.ID, "admin@example.com", model.RoleAdmin))
	foreignAdmin := actorOf(testutil.User(t, e.db, other.ID, "admin@other.com", model.RoleAdmin))
	learner := actorOf(testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner))

	course, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{
		Title:     "Manipulador de alimentos",
		Type:      model.CourseFoodSafety,
		Published: testutil.BoolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, company.ID, course.CompanyID)
	assert.Equal(t, 70, course.RequiredScore)

	t.Run("update keeps published and requiredScore when omitted", func(t *testing.T) {
		c, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{
			Title:         "APPCC básico",
			Type:          model.CourseHACCP,
			Published:     testutil.BoolPtr(true),
			RequiredScore: testutil.IntPtr(55),
		})
		require.NoError(t, err)

		updated, err := e.catalog.UpdateCourse(ctx, admin, c.ID, service.CourseInput{Title: "APPCC avanzado", Type: model.CourseHACCP})
		require.NoError(t, err)
		assert.Equal(t, "APPCC avanzado", updated.Title)
		assert.True(t, updated.Published)
		assert.Equal(t, 55, updated.RequiredScore)

		updated, err = e.catalog.UpdateCourse(ctx, admin, c.ID, service.CourseInput{
			Title:         "APPCC avanzado",
			Type:          model.CourseHACCP,
			Published:     testutil.BoolPtr(false),
			RequiredScore: testutil.IntPtr(0),
		})
		require.NoError(t, err)
		assert.False(t, updated.Published)
		assert.Equal(t, 0, updated.RequiredScore)

		stored, err := e.catalog.GetCourse(ctx, admin, c.ID)
		require.NoError(t, err)
		assert.False(t, stored.Published)
		assert.Equal(t, 0, stored.RequiredScore)
	})

	t.Run("invalid course type is rejected with field detail", func(t *testing.T) {
		_, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{Title: "x", Type: "cooking"})
		var verr *util.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "type")
	})

	t.Run("learners cannot author", func(t *testing.T) {
		_, err := e.catalog.CreateCourse(ctx, learner, service.CourseInput{Title: "x", Type: model.CourseHACCP})
		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("admins of another company cannot author", func(t *testing.T) {
		_, err := e.catalog.CreateLesson(ctx, foreignAdmin, course.ID, service.LessonInput{Title: "x", Order: 1})
		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("lesson order is unique per course", func(t *testing.T) {
		_, err := e.catalog.CreateLesson(ctx, admin, course.ID, service.LessonInput{Title: "Intro", Order: 1})
		require.NoError(t, err)
		_, err = e.catalog.CreateLesson(ctx, admin, course.ID, service.LessonInput{Title: "Again", Order: 1})
		assert.ErrorIs(t, err, util.ErrConflict)
	})

	t.Run("quiz lesson must belong to the course", func(t *testing.T) {
		otherCourse := testutil.Course(t, e.db, company.ID, "Otro")
		lesson := testutil.Lesson(t, e.db, otherCourse.ID, 1)
		_, err := e.catalog.CreateQuiz(ctx, admin, course.ID, service.QuizInput{Title: "Q", LessonID: &lesson.ID})
		assert.ErrorIs(t, err, util.ErrLessonMismatch)
	})

	t.Run("passing score must be a percentage", func(t *testing.T) {
		_, err := e.catalog.CreateQuiz(ctx, admin, course.ID, service.QuizInput{Title: "Q", PassingScore: testutil.IntPtr(120)})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("learner quiz view hides the answers", func(t *testing.T) {
		quiz, err := e.catalog.CreateQuiz(ctx, admin, course.ID, service.QuizInput{Title: "Final", RandomizeQuestions: true})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := e.catalog.CreateQuestion(ctx, admin, quiz.ID, service.QuestionInput{
				Text:  "¿Temperatura de refrigeración?",
				Type:  model.QuestionMultipleChoice,
				Order: i,
				Options: []service.OptionInput{
					{Text: "0-5 ºC", IsCorrect: true},
					{Text: "10-15 ºC"},
				},
			})
			require.NoError(t, err)
		}

		_, err = e.catalog.GetQuiz(ctx, learner, quiz.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)

		_, err = e.enrollment.Enroll(ctx, learner, course.ID)
		require.NoError(t, err)

		view, err := e.catalog.GetQuiz(ctx, learner, quiz.ID)
		require.NoError(t, err)
		require.Len(t, view.Questions, 3)
		assert.Equal(t, 70, view.PassingScore)
		for _, q := range view.Questions {
			assert.Equal(t, 1, q.Points)
			require.Len(t, q.Options, 2)
			for _, o := range q.Options {
				assert.Nil(t, o.IsCorrect)
			}
		}

		adminView, err := e.catalog.GetQuiz(ctx, admin, quiz.ID)
		require.NoError(t, err)
		require.NotNil(t, adminView.Questions[0].Options[0].IsCorrect)
		assert.True(t, *adminView.Questions[0].Options[0].IsCorrect)
	})

	t.Run("deleting a lesson clears enrollment pointers", func(t *testing.T) {
		c, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{Title: "Alérgenos", Type: model.CourseAllergens, Published: testutil.BoolPtr(true)})
		require.NoError(t, err)
		lesson, err := e.catalog.CreateLesson(ctx, admin, c.ID, service.LessonInput{Title: "Única", Order: 1})
		require.NoError(t, err)
		uc, err := e.enrollment.Enroll(ctx, learner, c.ID)
		require.NoError(t, err)
		require.NotNil(t, uc.CurrentLessonID)

		require.NoError(t, e.catalog.DeleteLesson(ctx, admin, lesson.ID))

		stored, err := e.enrollRepo.FindByID(uc.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.CurrentLessonID)
	})

	t.Run("listing depends on role", func(t *testing.T) {
		_, err := e.catalog.CreateCourse(ctx, admin, service.CourseInput{Title: "Borrador", Type: model.CourseHygiene})
		require.NoError(t, err)

		adminList, err := e.catalog.ListCourses(ctx, admin)
		require.NoError(t, err)
		learnerList, err := e.catalog.ListCourses(ctx, learner)
		require.NoError(t, err)
		assert.Greater(t, len(adminList), len(learnerList))
		for _, c := range learnerList {
			assert.True(t, c.Published)
		}
	})
}
