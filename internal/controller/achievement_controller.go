package controller

import (
	"strconv"

	"tutor_backend/internal/service"
	"tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AchievementController struct {
	AchievementService *service.AchievementService
}

func NewAchievementController(achievementService *service.AchievementService) *AchievementController {
	return &AchievementController{AchievementService: achievementService}
}

// @Summary 成就目录
// @Tags 成就
// @Produce json
// @Param category query string false "分类"
// @Param rarity query string false "稀有度"
// @Success 200 {object} util.Response
// @Router /api/achievements [get]
func (c *AchievementController) ListCatalog(ctx *gin.Context) {
	items, err := c.AchievementService.ListCatalog(ctx.Request.Context(), ctx.Query("category"), ctx.Query("rarity"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// @Summary 获取用户成就
// @Tags 成就
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/users/me/achievements [get]
func (c *AchievementController) GetUserAchievements(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	summary, err := c.AchievementService.GetUserAchievements(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 最近获得的成就
// @Tags 成就
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限，默认 5"
// @Success 200 {object} util.Response
// @Router /api/users/me/achievements/recent [get]
func (c *AchievementController) GetRecent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	items, err := c.AchievementService.GetRecent(ctx.Request.Context(), user.UserID, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// @Summary 标记成就已通知
// @Tags 成就
// @Produce json
// @Security BearerAuth
// @Param id path string true "成就ID"
// @Success 200 {object} util.Response
// @Router /api/users/me/achievements/{id}/notified [post]
func (c *AchievementController) MarkNotified(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.AchievementService.MarkNotified(ctx.Request.Context(), user.UserID, ctx.Param("id")); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
