package controller

import (
	"strconv"

	"tutor_backend/internal/model"
	"tutor_backend/internal/service"
	"tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GoalController 处理学习目标的API请求
type GoalController struct {
	GoalService *service.GoalService
}

func NewGoalController(goalService *service.GoalService) *GoalController {
	return &GoalController{GoalService: goalService}
}

type GoalStatusRequest struct {
	Status model.GoalStatus `json:"status" binding:"required,oneof=active paused completed cancelled expired"`
}

type GoalProgressRequest struct {
	CurrentValue int `json:"currentValue" binding:"min=0"`
}

// @Summary 获取学习目标
// @Tags 学习目标
// @Produce json
// @Security BearerAuth
// @Param status query string false "状态过滤"
// @Param limit query int false "数量上限"
// @Success 200 {object} util.Response
// @Router /api/users/me/goals [get]
func (c *GoalController) ListGoals(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	goals, err := c.GoalService.ListGoals(ctx.Request.Context(), user.UserID, model.GoalStatus(ctx.Query("status")), limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, goals)
}

// @Summary 创建学习目标
// @Tags 学习目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param goal body service.CreateGoalRequest true "学习目标信息"
// @Success 201 {object} util.Response
// @Router /api/users/me/goals [post]
func (c *GoalController) CreateGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateGoalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	goal, err := c.GoalService.CreateGoal(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, goal)
}

// @Summary 更新学习目标
// @Tags 学习目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标ID"
// @Param goal body service.UpdateGoalRequest true "更新内容"
// @Success 200 {object} util.Response
// @Router /api/users/me/goals/{id} [patch]
func (c *GoalController) UpdateGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.UpdateGoalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	goal, err := c.GoalService.UpdateGoal(ctx.Request.Context(), user.UserID, ctx.Param("id"), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, goal)
}

// @Summary 删除学习目标
// @Tags 学习目标
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标ID"
// @Success 200 {object} util.Response
// @Router /api/users/me/goals/{id} [delete]
func (c *GoalController) DeleteGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.GoalService.DeleteGoal(ctx.Request.Context(), user.UserID, ctx.Param("id")); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 完成学习目标
// @Tags 学习目标
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/users/me/goals/{id}/complete [post]
func (c *GoalController) CompleteGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	goal, err := c.GoalService.CompleteGoal(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, goal)
}

// @Summary 修改目标状态
// @Tags 学习目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标ID"
// @Param request body GoalStatusRequest true "目标状态"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/users/me/goals/{id}/status [patch]
func (c *GoalController) ChangeStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req GoalStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	goal, err := c.GoalService.ChangeStatus(ctx.Request.Context(), user.UserID, ctx.Param("id"), req.Status)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, goal)
}

// @Summary 更新目标进度
// @Tags 学习目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "目标ID"
// @Param request body GoalProgressRequest true "当前值"
// @Success 200 {object} util.Response
// @Router /api/users/me/goals/{id}/progress [patch]
func (c *GoalController) UpdateProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req GoalProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	goal, err := c.GoalService.UpdateProgress(ctx.Request.Context(), user.UserID, ctx.Param("id"), req.CurrentValue)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, goal)
}
