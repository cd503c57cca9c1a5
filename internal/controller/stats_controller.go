package controller

import (
	"strconv"
	"strings"

	"tutor_backend/internal/service"
	"tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StatsController struct {
	StatsService *service.StatsService
}

func NewStatsController(statsService *service.StatsService) *StatsController {
	return &StatsController{StatsService: statsService}
}

// @Summary 个人学习统计
// @Description 会话数、发送消息数、学习时长、连续学习天数等
// @Tags 学习统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.UserStats}
// @Router /api/users/me/stats [get]
func (c *StatsController) GetStats(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.StatsService.GetUserStats(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 学习仪表盘
// @Tags 学习统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.Dashboard}
// @Router /api/users/me/dashboard [get]
func (c *StatsController) GetDashboard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	dashboard, err := c.StatsService.GetDashboard(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, dashboard)
}

// @Summary 最近的辅导会话
// @Tags 学习统计
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限，默认 10"
// @Param subject query string false "学科ID"
// @Success 200 {object} util.Response{data=[]service.RecentSession}
// @Router /api/users/me/sessions/recent [get]
func (c *StatsController) GetRecentSessions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	sessions, err := c.StatsService.GetRecentSessions(ctx.Request.Context(), user.UserID, ctx.Query("subject"), limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

// @Summary 学习分析
// @Tags 学习统计
// @Produce json
// @Security BearerAuth
// @Param period query string false "week/month/year/all，默认 month"
// @Param subjects query string false "逗号分隔的学科ID"
// @Success 200 {object} util.Response{data=service.Analytics}
// @Router /api/users/me/analytics [get]
func (c *StatsController) GetAnalytics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	analytics, err := c.StatsService.GetAnalytics(ctx.Request.Context(), user.UserID, ctx.Query("period"), splitList(ctx.Query("subjects")))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, analytics)
}

// @Summary 图表数据
// @Tags 学习统计
// @Produce json
// @Security BearerAuth
// @Param chartType path string true "sessions/messages/study_time/subjects"
// @Param period query string false "week/month/year/all，默认 month"
// @Success 200 {object} util.Response{data=[]service.ChartPoint}
// @Router /api/users/me/charts/{chartType} [get]
func (c *StatsController) GetChart(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	points, err := c.StatsService.GetChartData(ctx.Request.Context(), user.UserID, ctx.Param("chartType"), ctx.Query("period"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, points)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
