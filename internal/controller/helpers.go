package controller

import (
	"appcc_edu_backend/internal/service"
	"appcc_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentActor 从上下文取出当前用户，未登录时已写入 401
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, ok := util.ParseID(ctx.Param(name))
	if !ok {
		util.BadRequest(ctx, "无效的"+name)
		return 0, false
	}
	return id, true
}
