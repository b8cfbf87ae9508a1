package service

import (
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/util"
	"appcc_edu_backend/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CertificateDocument 证书内容，以 JSON 形式存储
type CertificateDocument struct {
	Code         string    `json:"code"`
	CompanyID    uint      `json:"companyId"`
	UserID       uint      `json:"userId"`
	LearnerName  string    `json:"learnerName"`
	LearnerEmail string    `json:"learnerEmail"`
	CourseID     uint      `json:"courseId"`
	CourseTitle  string    `json:"courseTitle"`
	CourseType   string    `json:"courseType"`
	CompletedAt  time.Time `json:"completedAt"`
	IssuedAt     time.Time `json:"issuedAt"`
}

type CertificateService struct {
	Storage        *StorageService
	UserRepo       *repository.UserRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewCertificateService(
	storage *StorageService,
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *CertificateService {
	return &CertificateService{
		Storage:        storage,
		UserRepo:       userRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

// Issue 为已完成的选课生成证书，已有证书时直接返回
func (s *CertificateService) Issue(ctx context.Context, uc *model.UserCourse) (string, error) {
	if uc.Certificate != "" {
		return uc.Certificate, nil
	}
	if uc.CompletedAt == nil {
		return "", fmt.Errorf("enrollment %d is not completed: %w", uc.ID, util.ErrConflict)
	}

	user, err := s.UserRepo.FindByID(uc.UserID)
	if err != nil {
		return "", err
	}
	course, err := s.CourseRepo.FindByID(uc.CourseID)
	if err != nil {
		return "", err
	}

	doc := CertificateDocument{
		Code:         uuid.NewString(),
		CompanyID:    course.CompanyID,
		UserID:       user.ID,
		LearnerName:  user.Name,
		LearnerEmail: user.Email,
		CourseID:     course.ID,
		CourseTitle:  course.Title,
		CourseType:   string(course.Type),
		CompletedAt:  *uc.CompletedAt,
		IssuedAt:     time.Now(),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("certificates/%d/%d-%s.json", course.CompanyID, uc.ID, doc.Code)
	url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(raw), int64(len(raw)), util.MimeJSON)
	if err != nil {
		return "", err
	}

	stored, err := s.EnrollmentRepo.SetCertificate(uc.ID, url)
	if err != nil {
		return "", err
	}
	if !stored {
		// 并发签发时以先写入的为准
		if delErr := s.Storage.Delete(ctx, filename); delErr != nil {
			logger.Log.Warn("Failed to remove duplicate certificate", zap.String("file", filename), zap.Error(delErr))
		}
		current, err := s.EnrollmentRepo.FindByID(uc.ID)
		if err != nil {
			return "", err
		}
		uc.Certificate = current.Certificate
		return uc.Certificate, nil
	}

	uc.Certificate = url
	logger.Log.Info("Certificate issued",
		zap.Uint("user_course_id", uc.ID),
		zap.Uint("user_id", uc.UserID),
		zap.String("code", doc.Code))
	return url, nil
}
