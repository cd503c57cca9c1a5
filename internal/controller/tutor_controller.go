package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"tutor_backend/internal/service"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

type TutorController struct {
	TutorService       *service.TutorService
	ProgressionService *service.ProgressionService
	// WebSocket 握手的来源校验，与 CORS 白名单一致
	Origins *security.OriginPolicy
}

func NewTutorController(tutorService *service.TutorService, progressionService *service.ProgressionService, origins *security.OriginPolicy) *TutorController {
	return &TutorController{TutorService: tutorService, ProgressionService: progressionService, Origins: origins}
}

type CreateSessionRequest struct {
	SubjectID *string `json:"subjectId"`
	Title     string  `json:"title" binding:"max=255"`
}

type SendMessageRequest struct {
	Content string `json:"content" form:"content"`
}

type UpdateDurationRequest struct {
	Duration int `json:"duration" binding:"min=0"`
}

// @Summary 获取可用学科
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/tutor/subjects [get]
func (c *TutorController) ListSubjects(ctx *gin.Context) {
	util.Success(ctx, c.TutorService.ListSubjects())
}

// @Summary 创建辅导会话
// @Tags 辅导
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSessionRequest true "会话信息"
// @Success 201 {object} util.Response
// @Router /api/tutor/sessions [post]
func (c *TutorController) CreateSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.TutorService.StartSession(ctx.Request.Context(), user.UserID, req.SubjectID, req.Title)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// @Summary 获取会话列表
// @Description 返回活跃会话，按最近更新排序，附带最后一条消息
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Param subject query string false "学科"
// @Param search query string false "标题搜索"
// @Success 200 {object} util.Response
// @Router /api/tutor/sessions [get]
func (c *TutorController) ListSessions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sessions, err := c.TutorService.ListSessions(ctx.Request.Context(), user.UserID, service.SessionFilter{
		Subject: ctx.Query("subject"),
		Search:  ctx.Query("search"),
	})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.List(ctx, sessions)
}

// @Summary 获取会话消息
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/tutor/sessions/{id}/messages [get]
func (c *TutorController) ListMessages(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	messages, err := c.TutorService.ListMessages(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, messages)
}

// @Summary 发送消息
// @Description 缓冲模式，返回用户消息、助手回复与经验变化。附件使用 multipart/form-data 的 attachments 字段
// @Tags 辅导
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param request body SendMessageRequest true "消息内容"
// @Success 200 {object} util.Response
// @Router /api/tutor/sessions/{id}/messages [post]
func (c *TutorController) SendMessage(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	content, uploads, err := bindMessage(ctx)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exchange, err := c.TutorService.SubmitMessage(ctx.Request.Context(), ctx.Param("id"), user.UserID, content, uploads)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exchange)
}

// @Summary 流式发送消息
// @Description SSE 事件：user_message、chunk、done 或 error（携带兜底回复）
// @Tags 辅导
// @Accept json,mpfd
// @Produce text/event-stream
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param request body SendMessageRequest true "消息内容"
// @Success 200 {string} string "event stream"
// @Router /api/tutor/sessions/{id}/messages/stream [post]
func (c *TutorController) StreamMessage(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	content, uploads, err := bindMessage(ctx)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	events, err := c.TutorService.SubmitMessageStream(ctx.Request.Context(), ctx.Param("id"), user.UserID, content, uploads)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	// 设置SSE响应头
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)

	for ev := range events {
		switch ev.Type {
		case service.EventUserMessage:
			ctx.SSEvent(string(ev.Type), ev.Message)
		case service.EventChunk:
			ctx.SSEvent(string(ev.Type), gin.H{"content": ev.Content})
		default:
			ctx.SSEvent(string(ev.Type), ev)
		}
		ctx.Writer.Flush()
	}
}

// @Summary 会话 WebSocket
// @Description 上行 {"type":"message","data":{"content":"..."}} 或 {"type":"duration","data":{"seconds":N}}，下行与 SSE 相同的事件
// @Tags 辅导
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param token query string false "访问令牌"
// @Router /api/tutor/sessions/{id}/ws [get]
func (c *TutorController) Socket(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sessionID := ctx.Param("id")
	if err := c.TutorService.CheckSession(ctx.Request.Context(), sessionID, user.UserID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	service.ServeTutorSocket(c.TutorService, c.Origins, ctx.Writer, ctx.Request, sessionID, user.UserID)
}

// @Summary 上报会话时长
// @Description 时长只增不减，增量计入学科学习时长
// @Tags 辅导
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param request body UpdateDurationRequest true "累计秒数"
// @Success 200 {object} util.Response
// @Router /api/tutor/sessions/{id}/duration [post]
func (c *TutorController) UpdateDuration(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateDurationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.TutorService.UpdateDuration(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.Duration)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 结束会话
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/tutor/sessions/{id} [delete]
func (c *TutorController) EndSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.TutorService.EndSession(ctx.Request.Context(), ctx.Param("id"), user.UserID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 获取学科进度
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/tutor/progress [get]
func (c *TutorController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressionService.GetProgress(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 获取单个学科进度
// @Tags 辅导
// @Produce json
// @Security BearerAuth
// @Param subject path string true "学科ID"
// @Success 200 {object} util.Response
// @Router /api/tutor/progress/{subject} [get]
func (c *TutorController) GetSubjectProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressionService.GetSubjectProgress(ctx.Request.Context(), user.UserID, ctx.Param("subject"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// bindMessage 支持 JSON 与 multipart 两种请求体
func bindMessage(ctx *gin.Context) (string, []service.Upload, error) {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		var req SendMessageRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return "", nil, err
		}
		return req.Content, nil, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return "", nil, err
	}
	content := strings.Join(form.Value["content"], "\n")

	var uploads []service.Upload
	for _, fh := range form.File["attachments"] {
		data, err := readUpload(fh)
		if err != nil {
			return "", nil, err
		}
		uploads = append(uploads, service.Upload{Name: fh.Filename, Data: data})
	}
	return content, uploads, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
