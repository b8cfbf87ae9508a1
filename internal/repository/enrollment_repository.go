package repository

import (
	"appcc_edu_backend/internal/model"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

// Create 插入选课记录，重复时返回 gorm.ErrDuplicatedKey
func (r *EnrollmentRepository) Create(uc *model.UserCourse) error {
	return r.DB.Omit("Course").Create(uc).Error
}

func (r *EnrollmentRepository) FindByID(id uint) (*model.UserCourse, error) {
	var uc model.UserCourse
	if err := r.DB.First(&uc, id).Error; err != nil {
		return nil, notFound(err, "enrollment", id)
	}
	return &uc, nil
}

// FindByIDForUpdate 加行锁读取，需在事务中调用
func (r *EnrollmentRepository) FindByIDForUpdate(id uint) (*model.UserCourse, error) {
	var uc model.UserCourse
	if err := forUpdate(r.DB).First(&uc, id).Error; err != nil {
		return nil, notFound(err, "enrollment", id)
	}
	return &uc, nil
}

func (r *EnrollmentRepository) FindByUserAndCourse(userID, courseID uint) (*model.UserCourse, error) {
	var uc model.UserCourse
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&uc).Error
	if err != nil {
		return nil, notFound(err, "enrollment", fmt.Sprintf("user=%d course=%d", userID, courseID))
	}
	return &uc, nil
}

func (r *EnrollmentRepository) ExistsForUserAndCourse(userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// ListByUser 列出用户全部选课，附带课程信息
func (r *EnrollmentRepository) ListByUser(userID uint) ([]model.UserCourse, error) {
	var list []model.UserCourse
	err := r.DB.Preload("Course").
		Where("user_id = ?", userID).
		Order("started_at DESC").Order("id DESC").
		Find(&list).Error
	return list, err
}

func (r *EnrollmentRepository) UpdateCurrentLesson(id uint, lessonID uint) error {
	return r.DB.Model(&model.UserCourse{}).Where("id = ?", id).
		Update("current_lesson_id", lessonID).Error
}

// SaveProgress 写入进度；completedAt 仅在为空时写入，不会被清除
func (r *EnrollmentRepository) SaveProgress(id uint, progress int, completedAt *time.Time) error {
	updates := map[string]interface{}{"progress": progress}
	if err := r.DB.Model(&model.UserCourse{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	if completedAt == nil {
		return nil
	}
	return r.DB.Model(&model.UserCourse{}).
		Where("id = ? AND completed_at IS NULL", id).
		Update("completed_at", *completedAt).Error
}

// SetCertificate 仅在证书为空时写入，返回是否写入成功
func (r *EnrollmentRepository) SetCertificate(id uint, certificate string) (bool, error) {
	res := r.DB.Model(&model.UserCourse{}).
		Where("id = ? AND (certificate IS NULL OR certificate = '')", id).
		Update("certificate", certificate)
	return res.RowsAffected > 0, res.Error
}
