package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://app.example.com"})
	assert.True(t, policy.Allowed(""))
	assert.True(t, policy.Allowed("https://app.example.com"))
	assert.False(t, policy.Allowed("https://evil.example.org"))

	empty := NewOriginPolicy(nil)
	assert.True(t, empty.Allowed(""))
	assert.False(t, empty.Allowed("https://app.example.com"))

	all := NewOriginPolicy([]string{"*"})
	assert.True(t, all.Allowed("https://anything.example.net"))
}

func TestCORSUsesPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(NewOriginPolicy([]string{"https://app.example.com"})))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	request := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := request("https://app.example.com")
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = request("https://evil.example.org")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimiterRejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewLimiter(2, time.Minute)
	rejected := 0
	limiter.OnReject = func(c *gin.Context) {
		rejected++
		c.Status(http.StatusTooManyRequests)
	}

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rejected)
}
