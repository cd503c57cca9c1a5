package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccessDenied    = errors.New("access denied")

	ErrNotFound            = errors.New("resource not found")
	ErrSessionNotFound     = wrapKind("session not found", ErrNotFound)
	ErrSubjectNotFound     = wrapKind("subject not found", ErrNotFound)
	ErrPathNotFound        = wrapKind("learning path not found", ErrNotFound)
	ErrModuleNotFound      = wrapKind("module not found", ErrNotFound)
	ErrEnrollmentNotFound  = wrapKind("enrollment not found", ErrNotFound)
	ErrGoalNotFound        = wrapKind("goal not found", ErrNotFound)
	ErrAchievementNotFound = wrapKind("achievement not found", ErrNotFound)

	ErrInvalidState          = errors.New("invalid state")
	ErrModuleLocked          = wrapKind("module is locked", ErrInvalidState)
	ErrInvalidGoalTransition = wrapKind("invalid goal status transition", ErrInvalidState)

	ErrInvalidInput      = errors.New("invalid input")
	ErrGenerationFailure = errors.New("text generation failed")
	ErrStoreFailure      = errors.New("store failure")
	ErrConflict          = wrapKind("concurrent update conflict", ErrStoreFailure)
)

// kindError 携带具体信息，同时归属到某一错误类别
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func wrapKind(msg string, kind error) error {
	return &kindError{msg: msg, kind: kind}
}

// StatusFor 将服务层错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError 输出统一错误响应，5xx 记录日志并隐藏细节
func HandleServiceError(c *gin.Context, err error) {
	switch status := StatusFor(err); status {
	case http.StatusInternalServerError:
		LogInternalError(c, err)
	case http.StatusNotFound:
		NotFound(c, rootMessage(err))
	case http.StatusConflict:
		Conflict(c, rootMessage(err))
	case http.StatusUnprocessableEntity:
		Unprocessable(c, rootMessage(err))
	default:
		Error(c, status, rootMessage(err))
	}
}

// rootMessage 优先取具体类别错误的信息
func rootMessage(err error) string {
	var k *kindError
	if errors.As(err, &k) {
		return k.msg
	}
	return err.Error()
}
