package controller

import (
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 选课
// @Description 已选过该课程时返回 409，data 为已有的选课记录
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response{data=model.UserCourse}
// @Failure 403 {object} util.Response "课程未发布或不属于本公司"
// @Failure 409 {object} util.Response{data=model.UserCourse} "已选课"
// @Router /api/courses/{id}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	uc, err := c.EnrollmentService.Enroll(ctx.Request.Context(), actor, courseID)
	if err != nil {
		if errors.Is(err, util.ErrAlreadyEnrolled) && uc != nil {
			ctx.JSON(http.StatusConflict, util.Response{
				Code:    http.StatusConflict,
				Message: "已选择该课程",
				Data:    uc,
			})
			return
		}
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, uc)
}

// MyCourses godoc
// @Summary 我的课程
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserCourse}
// @Router /api/me/courses [get]
func (c *EnrollmentController) MyCourses(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.EnrollmentService.ListMine(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetEnrollment godoc
// @Summary 选课详情
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "选课ID"
// @Success 200 {object} util.Response{data=model.UserCourse}
// @Router /api/user-courses/{id} [get]
func (c *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	uc, err := c.EnrollmentService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, uc)
}

type UpdateProgressRequest struct {
	CurrentLessonID uint `json:"currentLessonId" binding:"required"`
}

// UpdateProgress godoc
// @Summary 更新当前课时
// @Description 移动课时指针后重新计算进度
// @Tags 学习
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "选课ID"
// @Param body body UpdateProgressRequest true "当前课时"
// @Success 200 {object} util.Response{data=model.UserCourse}
// @Failure 400 {object} util.Response "课时不属于该课程"
// @Router /api/user-courses/{id}/progress [put]
func (c *EnrollmentController) UpdateProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req UpdateProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	uc, err := c.EnrollmentService.AdvanceLesson(ctx.Request.Context(), actor, id, req.CurrentLessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, uc)
}

// Recompute godoc
// @Summary 重新计算进度
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "选课ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/user-courses/{id}/recompute [post]
func (c *EnrollmentController) Recompute(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	uc, snap, err := c.EnrollmentService.Recompute(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"enrollment": uc,
		"snapshot":   snap,
	})
}

// Certificate godoc
// @Summary 课程证书
// @Description 课程完成后可获取，未完成返回 404
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "选课ID"
// @Success 200 {object} util.Response{data=service.CertificateInfo}
// @Router /api/user-courses/{id}/certificate [get]
func (c *EnrollmentController) Certificate(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	info, err := c.EnrollmentService.Certificate(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, info)
}
