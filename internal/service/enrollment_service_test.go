package service_test

import (
	"context"
	"testing"

	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/testutil"
	"appcc_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll(t *testing.T) {
	ctx := context.Background()

	t.Run("second enrollment is a conflict and keeps one row", func(t *testing.T) {
		e := newEnv(t)
		company := testutil.Company(t, e.db, "acme")
		learner := testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner)
		course := testutil.Course(t, e.db, company.ID, "Higiene")

		first, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, first.Progress)
		assert.Nil(t, first.CurrentLessonID)
		assert.Nil(t, first.CompletedAt)
		assert.False(t, first.StartedAt.IsZero())

		again, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
		assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)
		assert.ErrorIs(t, err, util.ErrConflict)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)

		var count int64
		require.NoError(t, e.db.Model(&model.UserCourse{}).Where("user_id = ? AND course_id = ?", learner.ID, course.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("current lesson defaults to the lowest order", func(t *testing.T) {
		e := newEnv(t)
		company := testutil.Company(t, e.db, "acme")
		learner := testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner)
		course := testutil.Course(t, e.db, company.ID, "Higiene")
		testutil.Lesson(t, e.db, course.ID, 5)
		lowest := testutil.Lesson(t, e.db, course.ID, 2)

		uc, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
		require.NoError(t, err)
		require.NotNil(t, uc.CurrentLessonID)
		assert.Equal(t, lowest.ID, *uc.CurrentLessonID)
	})

	t.Run("missing course is not found", func(t *testing.T) {
		e := newEnv(t)
		company := testutil.Company(t, e.db, "acme")
		learner := testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner)

		_, err := e.enrollment.Enroll(ctx, actorOf(learner), 404)
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("other company course is forbidden", func(t *testing.T) {
		e := newEnv(t)
		acme := testutil.Company(t, e.db, "acme")
		other := testutil.Company(t, e.db, "other")
		learner := testutil.User(t, e.db, acme.ID, "l@example.com", model.RoleLearner)
		course := testutil.Course(t, e.db, other.ID, "Higiene")

		_, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("unpublished course is forbidden for learners", func(t *testing.T) {
		e := newEnv(t)
		company := testutil.Company(t, e.db, "acme")
		learner := testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner)
		course := testutil.Course(t, e.db, company.ID, "Borrador")
		require.NoError(t, e.db.Model(course).Update("published", false).Error)

		_, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)
	})
}

func TestAdvanceLesson(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	company := testutil.Company(t, e.db, "acme")
	learner := testutil.User(t, e.db, company.ID, "l@example.com", model.RoleLearner)
	intruder := testutil.User(t, e.db, company.ID, "x@example.com", model.RoleLearner)
	course := testutil.Course(t, e.db, company.ID, "Higiene")
	otherCourse := testutil.Course(t, e.db, company.ID, "Otro")
	testutil.Lesson(t, e.db, course.ID, 1)
	l2 := testutil.Lesson(t, e.db, course.ID, 2)
	foreign := testutil.Lesson(t, e.db, otherCourse.ID, 1)

	uc, err := e.enrollment.Enroll(ctx, actorOf(learner), course.ID)
	require.NoError(t, err)

	t.Run("owner advances and progress is recomputed", func(t *testing.T) {
		updated, err := e.enrollment.AdvanceLesson(ctx, actorOf(learner), uc.ID, l2.ID)
		require.NoError(t, err)
		assert.Equal(t, l2.ID, *updated.CurrentLessonID)
		assert.Equal(t, 100, updated.Progress)
		assert.NotNil(t, updated.CompletedAt)
	})

	t.Run("lesson from another course is rejected", func(t *testing.T) {
		_, err := e.enrollment.AdvanceLesson(ctx, actorOf(learner), uc.ID, foreign.ID)
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("unknown lesson is not found", func(t *testing.T) {
		_, err := e.enrollment.AdvanceLesson(ctx, actorOf(learner), uc.ID, 9999)
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("non owner is forbidden", func(t *testing.T) {
		_, err := e.enrollment.AdvanceLesson(ctx, actorOf(intruder), uc.ID, l2.ID)
		assert.ErrorIs(t, err, util.ErrForbidden)
	})
}
