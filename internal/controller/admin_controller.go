package controller

import (
	"tutor_backend/internal/service"
	"tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	SubjectService *service.SubjectService
}

func NewAdminController(subjectService *service.SubjectService) *AdminController {
	return &AdminController{SubjectService: subjectService}
}

// @Summary 获取全部学科（含停用）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/subjects [get]
func (c *AdminController) ListSubjects(ctx *gin.Context) {
	subjects, err := c.SubjectService.ListAll(ctx.Request.Context())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, subjects)
}

// @Summary 更新学科配置
// @Description 更新后立即刷新本实例缓存并通知其他实例
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "学科ID"
// @Param request body service.UpdateSubjectRequest true "更新内容"
// @Success 200 {object} util.Response
// @Router /api/admin/subjects/{id} [patch]
func (c *AdminController) UpdateSubject(ctx *gin.Context) {
	var req service.UpdateSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	subject, err := c.SubjectService.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, subject)
}
