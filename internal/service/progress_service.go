package service

import (
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/pkg/logger"
	"appcc_edu_backend/pkg/monitoring"
	"appcc_edu_backend/pkg/tracing"
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressSnapshot 一次进度计算的结果
type ProgressSnapshot struct {
	CompletedItems int `json:"completedItems"`
	TotalItems     int `json:"totalItems"`
	Progress       int `json:"progress"`
}

// Percent 返回 round(part/total*100)，结果限制在 [0,100]，total 为 0 时返回 0
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return ClampPercent(int(math.Round(float64(part) * 100 / float64(total))))
}

func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeProgress 根据课时指针位置与已通过测验计算课程进度。
// 当前课时及其之前的课时视为已学习；只统计仍属于该课程的测验，每个测验最多计一次。
func ComputeProgress(lessonIDs, quizIDs []uint, currentLessonID *uint, passedQuizIDs []uint) ProgressSnapshot {
	viewed := 0
	if currentLessonID != nil {
		for i, id := range lessonIDs {
			if id == *currentLessonID {
				viewed = i + 1
				break
			}
		}
	}

	inCourse := make(map[uint]bool, len(quizIDs))
	for _, id := range quizIDs {
		inCourse[id] = true
	}
	passed := 0
	for _, id := range passedQuizIDs {
		if inCourse[id] {
			passed++
			delete(inCourse, id)
		}
	}

	total := len(lessonIDs) + len(quizIDs)
	completed := viewed + passed
	return ProgressSnapshot{
		CompletedItems: completed,
		TotalItems:     total,
		Progress:       Percent(completed, total),
	}
}

type ProgressService struct {
	DB             *gorm.DB
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	AttemptRepo    *repository.AttemptRepository
	Outlines       *OutlineCache
	Certificates   *CertificateService
}

func NewProgressService(
	db *gorm.DB,
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	outlines *OutlineCache,
	certificates *CertificateService,
) *ProgressService {
	return &ProgressService{
		DB:             db,
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		QuizRepo:       quizRepo,
		AttemptRepo:    attemptRepo,
		Outlines:       outlines,
		Certificates:   certificates,
	}
}

// Outline 读取课程结构，优先使用缓存
func (s *ProgressService) Outline(ctx context.Context, tx *gorm.DB, courseID uint) (*CourseOutline, error) {
	if outline, ok := s.Outlines.Get(ctx, courseID); ok {
		return outline, nil
	}
	lessonIDs, err := s.CourseRepo.WithTx(tx).ListLessonIDs(courseID)
	if err != nil {
		return nil, err
	}
	quizIDs, err := s.QuizRepo.WithTx(tx).ListIDsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	outline := &CourseOutline{LessonIDs: lessonIDs, QuizIDs: quizIDs}
	s.Outlines.Set(ctx, courseID, outline)
	return outline, nil
}

// RecomputeProgress 从当前数据重新推导选课进度，可重复调用。
// 进度达到 100 时首次写入 completedAt，之后不会被清除。
func (s *ProgressService) RecomputeProgress(ctx context.Context, userCourseID uint) (uc *model.UserCourse, snap ProgressSnapshot, err error) {
	ctx, span := tracing.StartSpan(ctx, "ProgressService.RecomputeProgress",
		attribute.Int64("user_course.id", int64(userCourseID)))
	defer func() { tracing.EndSpan(span, err) }()

	newlyCompleted := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		uc, err = s.EnrollmentRepo.WithTx(tx).FindByIDForUpdate(userCourseID)
		if err != nil {
			return err
		}

		outline, err := s.Outline(ctx, tx, uc.CourseID)
		if err != nil {
			return err
		}

		passed, err := s.AttemptRepo.WithTx(tx).PassedQuizIDs(uc.UserID, uc.CourseID)
		if err != nil {
			return err
		}

		snap = ComputeProgress(outline.LessonIDs, outline.QuizIDs, uc.CurrentLessonID, passed)

		var completedAt *time.Time
		if snap.Progress == 100 && uc.CompletedAt == nil {
			now := time.Now()
			completedAt = &now
			newlyCompleted = true
		}

		if err := s.EnrollmentRepo.WithTx(tx).SaveProgress(uc.ID, snap.Progress, completedAt); err != nil {
			return err
		}
		uc.Progress = snap.Progress
		if completedAt != nil {
			uc.CompletedAt = completedAt
		}
		return nil
	})
	if err != nil {
		return nil, ProgressSnapshot{}, err
	}

	span.SetAttributes(attribute.Int("progress", snap.Progress))
	logger.Log.Debug("Progress recomputed",
		zap.Uint("user_course_id", uc.ID),
		zap.Uint("user_id", uc.UserID),
		zap.Uint("course_id", uc.CourseID),
		zap.Int("completed_items", snap.CompletedItems),
		zap.Int("total_items", snap.TotalItems),
		zap.Int("progress", snap.Progress))

	if newlyCompleted {
		monitoring.CoursesCompleted.Inc()
		logger.Log.Info("Course completed",
			zap.Uint("user_course_id", uc.ID),
			zap.Uint("user_id", uc.UserID),
			zap.Uint("course_id", uc.CourseID))
		if s.Certificates != nil {
			if _, certErr := s.Certificates.Issue(ctx, uc); certErr != nil {
				logger.Log.Error("Certificate issuance failed",
					zap.Uint("user_course_id", uc.ID), zap.Error(certErr))
			}
		}
	}
	return uc, snap, nil
}

// RecomputeBestEffort 在评分或课时推进之后调用，失败只记录日志
func (s *ProgressService) RecomputeBestEffort(ctx context.Context, userCourseID uint) *model.UserCourse {
	uc, _, err := s.RecomputeProgress(ctx, userCourseID)
	if err != nil {
		monitoring.ProgressRecomputeFailures.Inc()
		logger.Log.Error("Progress recompute failed",
			zap.Uint("user_course_id", userCourseID), zap.Error(err))
		return nil
	}
	return uc
}
