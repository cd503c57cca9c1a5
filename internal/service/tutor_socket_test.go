package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tutor_backend/pkg/security"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTutorSocket_ChecksOrigin(t *testing.T) {
	f := newFixture(t)
	session, err := f.tutor.StartSession(context.Background(), "u1", strPtr("mathematics"), "")
	require.NoError(t, err)

	origins := security.NewOriginPolicy([]string{"https://app.example.com"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeTutorSocket(f.tutor, origins, w, r, session.ID, "u1")
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		return websocket.DefaultDialer.Dial(url, header)
	}

	_, resp, err := dial("https://evil.example.org")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{"https://app.example.com", ""} {
		conn, _, err := dial(origin)
		require.NoError(t, err, origin)
		conn.Close()
	}
}
