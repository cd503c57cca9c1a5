package controller

import (
	"strconv"

	"tutor_backend/internal/service"
	"tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningPathController struct {
	LearningPathService *service.LearningPathService
}

func NewLearningPathController(learningPathService *service.LearningPathService) *LearningPathController {
	return &LearningPathController{LearningPathService: learningPathService}
}

// @Summary 获取学习路径列表
// @Tags 学习路径
// @Produce json
// @Param subject query []string false "学科，可多选"
// @Param difficulty query string false "难度"
// @Param search query string false "标题、描述或标签搜索"
// @Param limit query int false "数量上限"
// @Success 200 {object} util.Response
// @Router /api/learning-paths [get]
func (c *LearningPathController) ListPaths(ctx *gin.Context) {
	var filter service.PathFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	paths, err := c.LearningPathService.ListPaths(ctx.Request.Context(), filter)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.List(ctx, paths)
}

// @Summary 获取学习路径详情
// @Tags 学习路径
// @Produce json
// @Param pathId path string true "路径ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/learning-paths/{pathId} [get]
func (c *LearningPathController) GetPath(ctx *gin.Context) {
	path, err := c.LearningPathService.GetPath(ctx.Request.Context(), ctx.Param("pathId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, path)
}

// @Summary 获取推荐路径
// @Description 排除已报名的路径
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限，默认 6"
// @Success 200 {object} util.Response
// @Router /api/users/me/learning-paths/recommended [get]
func (c *LearningPathController) Recommend(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	paths, err := c.LearningPathService.Recommend(ctx.Request.Context(), user.UserID, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, paths)
}

// @Summary 报名学习路径
// @Description 重复报名返回已有记录
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param pathId path string true "路径ID"
// @Success 200 {object} util.Response
// @Router /api/users/me/learning-paths/{pathId}/enroll [post]
func (c *LearningPathController) Enroll(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	enrollment, err := c.LearningPathService.Enroll(ctx.Request.Context(), user.UserID, ctx.Param("pathId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// @Summary 获取全部路径进度
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/users/me/learning-paths/progress [get]
func (c *LearningPathController) GetAllProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.LearningPathService.GetUserProgress(ctx.Request.Context(), user.UserID, nil)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 获取单个路径进度
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param pathId path string true "路径ID"
// @Success 200 {object} util.Response
// @Router /api/users/me/learning-paths/{pathId}/progress [get]
func (c *LearningPathController) GetPathProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	pathID := ctx.Param("pathId")
	progress, err := c.LearningPathService.GetUserProgress(ctx.Request.Context(), user.UserID, &pathID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, progress[0])
}

// @Summary 更新模块进度
// @Description progress ≥ 100 完成模块并解锁下一个模块，已完成模块不会回退
// @Tags 学习路径
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pathId path string true "路径ID"
// @Param moduleId path string true "模块ID"
// @Param request body service.ModuleProgressUpdate true "进度"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/users/me/learning-paths/{pathId}/modules/{moduleId}/progress [patch]
func (c *LearningPathController) UpdateModuleProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ModuleProgressUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.LearningPathService.UpdateModuleProgress(ctx.Request.Context(), user.UserID, ctx.Param("pathId"), ctx.Param("moduleId"), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}
