package service_test

import (
	"testing"
	"time"

	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/testutil"

	"gorm.io/gorm"
)

type env struct {
	db           *gorm.DB
	cfg          *config.Config
	enrollment   *service.EnrollmentService
	assessment   *service.AssessmentService
	progress     *service.ProgressService
	catalog      *service.CatalogService
	auth         *service.AuthService
	certificates *service.CertificateService
	enrollRepo   *repository.EnrollmentRepository
	attemptRepo  *repository.AttemptRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWT:      config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage:  config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Learning: config.LearningConfig{DefaultPassingScore: 70},
	}

	users := repository.NewUserRepository(db)
	companies := repository.NewCompanyRepository(db)
	courses := repository.NewCourseRepository(db)
	quizzes := repository.NewQuizRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	attempts := repository.NewAttemptRepository(db)

	policy := service.NewAccessPolicy()
	outlines := service.NewOutlineCache(nil, 0)
	storage := service.NewStorageService(cfg)
	certificates := service.NewCertificateService(storage, users, courses, enrollments)
	progress := service.NewProgressService(db, enrollments, courses, quizzes, attempts, outlines, certificates)
	assessment := service.NewAssessmentService(db, quizzes, courses, enrollments, attempts, policy, progress, cfg)

	return &env{
		db:           db,
		cfg:          cfg,
		enrollment:   service.NewEnrollmentService(enrollments, courses, policy, progress, certificates),
		assessment:   assessment,
		progress:     progress,
		catalog:      service.NewCatalogService(courses, quizzes, enrollments, policy, outlines, assessment),
		auth:         service.NewAuthService(users, companies, policy, cfg),
		certificates: certificates,
		enrollRepo:   enrollments,
		attemptRepo:  attempts,
	}
}

func actorOf(u *model.User) service.Actor {
	return service.Actor{UserID: u.ID, CompanyID: u.CompanyID, Role: u.Role}
}
