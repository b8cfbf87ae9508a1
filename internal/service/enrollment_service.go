package service

import (
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/util"
	"appcc_edu_backend/pkg/logger"
	"appcc_edu_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	Policy         *AccessPolicy
	Progress       *ProgressService
	Certificates   *CertificateService
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	policy *AccessPolicy,
	progress *ProgressService,
	certificates *CertificateService,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		Policy:         policy,
		Progress:       progress,
		Certificates:   certificates,
	}
}

// Enroll 学员选课。已选过时返回已有记录和 util.ErrAlreadyEnrolled。
func (s *EnrollmentService) Enroll(ctx context.Context, actor Actor, courseID uint) (*model.UserCourse, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanViewListing(actor, course); err != nil {
		return nil, err
	}

	existing, err := s.EnrollmentRepo.FindByUserAndCourse(actor.UserID, courseID)
	if err == nil {
		return existing, util.ErrAlreadyEnrolled
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	first, err := s.CourseRepo.FirstLesson(courseID)
	if err != nil {
		return nil, err
	}

	uc := &model.UserCourse{
		UserID:    actor.UserID,
		CourseID:  courseID,
		StartedAt: time.Now(),
		Progress:  0,
	}
	if first != nil {
		uc.CurrentLessonID = &first.ID
	}

	if err := s.EnrollmentRepo.Create(uc); err != nil {
		if repository.IsDuplicate(err) {
			// 并发选课，唯一索引兜底
			existing, findErr := s.EnrollmentRepo.FindByUserAndCourse(actor.UserID, courseID)
			if findErr != nil {
				return nil, util.ErrAlreadyEnrolled
			}
			return existing, util.ErrAlreadyEnrolled
		}
		return nil, err
	}

	monitoring.EnrollmentsTotal.Inc()
	logger.Log.Info("Enrollment created",
		zap.Uint("user_course_id", uc.ID),
		zap.Uint("user_id", uc.UserID),
		zap.Uint("course_id", uc.CourseID))
	return uc, nil
}

// loadOwned 读取选课记录及其课程，用于租户检查
func (s *EnrollmentService) loadOwned(userCourseID uint) (*model.UserCourse, *model.Course, error) {
	uc, err := s.EnrollmentRepo.FindByID(userCourseID)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.CourseRepo.FindByID(uc.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return uc, course, nil
}

// AdvanceLesson 移动当前课时指针，随后尽力重新计算进度
func (s *EnrollmentService) AdvanceLesson(ctx context.Context, actor Actor, userCourseID, lessonID uint) (*model.UserCourse, error) {
	uc, course, err := s.loadOwned(userCourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanMutateOwn(actor, uc.UserID, course.CompanyID); err != nil {
		return nil, err
	}

	lesson, err := s.CourseRepo.FindLessonByID(lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != uc.CourseID {
		return nil, util.ErrLessonMismatch
	}

	if err := s.EnrollmentRepo.UpdateCurrentLesson(uc.ID, lesson.ID); err != nil {
		return nil, err
	}
	uc.CurrentLessonID = &lesson.ID

	logger.Log.Debug("Lesson advanced",
		zap.Uint("user_course_id", uc.ID),
		zap.Uint("lesson_id", lesson.ID))

	if updated := s.Progress.RecomputeBestEffort(ctx, uc.ID); updated != nil {
		return updated, nil
	}
	return uc, nil
}

func (s *EnrollmentService) Get(ctx context.Context, actor Actor, userCourseID uint) (*model.UserCourse, error) {
	uc, course, err := s.loadOwned(userCourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanReadOwn(actor, uc.UserID, course.CompanyID); err != nil {
		return nil, err
	}
	uc.Course = course
	return uc, nil
}

func (s *EnrollmentService) ListMine(ctx context.Context, actor Actor) ([]model.UserCourse, error) {
	if actor.UserID == 0 {
		return nil, util.ErrUnauthenticated
	}
	return s.EnrollmentRepo.ListByUser(actor.UserID)
}

// Recompute 显式重新计算进度，用于尽力计算失败后的重试
func (s *EnrollmentService) Recompute(ctx context.Context, actor Actor, userCourseID uint) (*model.UserCourse, ProgressSnapshot, error) {
	uc, course, err := s.loadOwned(userCourseID)
	if err != nil {
		return nil, ProgressSnapshot{}, err
	}
	if err := s.Policy.CanReadOwn(actor, uc.UserID, course.CompanyID); err != nil {
		return nil, ProgressSnapshot{}, err
	}
	return s.Progress.RecomputeProgress(ctx, uc.ID)
}

// CertificateInfo 证书引用
type CertificateInfo struct {
	UserCourseID uint       `json:"userCourseId"`
	CourseID     uint       `json:"courseId"`
	CompletedAt  *time.Time `json:"completedAt"`
	URL          string     `json:"url"`
}

// Certificate 返回证书；已完成但签发失败时在此重试
func (s *EnrollmentService) Certificate(ctx context.Context, actor Actor, userCourseID uint) (*CertificateInfo, error) {
	uc, course, err := s.loadOwned(userCourseID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanReadOwn(actor, uc.UserID, course.CompanyID); err != nil {
		return nil, err
	}
	if uc.CompletedAt == nil {
		return nil, fmt.Errorf("certificate for enrollment %d: %w", uc.ID, util.ErrNotFound)
	}
	if uc.Certificate == "" && s.Certificates != nil {
		if _, err := s.Certificates.Issue(ctx, uc); err != nil {
			return nil, err
		}
	}
	if uc.Certificate == "" {
		return nil, fmt.Errorf("certificate for enrollment %d: %w", uc.ID, util.ErrNotFound)
	}
	return &CertificateInfo{
		UserCourseID: uc.ID,
		CourseID:     uc.CourseID,
		CompletedAt:  uc.CompletedAt,
		URL:          uc.Certificate,
	}, nil
}
