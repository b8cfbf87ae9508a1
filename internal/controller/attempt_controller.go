package controller

import (
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController 答题：开始、作答、交卷、查看结果
type AttemptController struct {
	AssessmentService *service.AssessmentService
}

func NewAttemptController(assessmentService *service.AssessmentService) *AttemptController {
	return &AttemptController{AssessmentService: assessmentService}
}

// StartAttempt godoc
// @Summary 开始答题
// @Description 已选课学员可开始新的答题，不限次数
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Failure 403 {object} util.Response "未选课"
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.AssessmentService.StartAttempt(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// ListAttempts godoc
// @Summary 我的答题记录
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.AssessmentService.ListAttempts(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// SubmitAnswer godoc
// @Summary 提交答案
// @Description 同一题重复提交时覆盖之前的答案，交卷后返回 409
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Param body body service.AnswerInput true "答案"
// @Success 201 {object} util.Response{data=service.AnswerView}
// @Failure 400 {object} util.Response "题目或选项不匹配"
// @Failure 409 {object} util.Response "答题已完成"
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.AnswerInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer, err := c.AssessmentService.SubmitAnswer(ctx.Request.Context(), actor, attemptID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	// 交卷前不返回正误
	util.Created(ctx, service.NewAnswerView(answer, false))
}

// CompleteAttempt godoc
// @Summary 交卷
// @Description 评分并更新课程进度，重复交卷返回 409
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "答题已完成"
// @Router /api/attempts/{id}/complete [post]
func (c *AttemptController) CompleteAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	result, err := c.AssessmentService.FinalizeAttempt(ctx.Request.Context(), actor, attemptID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetResults godoc
// @Summary 答题明细
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptResults}
// @Router /api/attempts/{id}/results [get]
func (c *AttemptController) GetResults(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	results, err := c.AssessmentService.GetResults(ctx.Request.Context(), actor, attemptID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, results)
}
