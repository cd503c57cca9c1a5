package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"tutor_backend/pkg/logger"
	"tutor_backend/pkg/security"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

func newUpgrader(origins *security.OriginPolicy) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return origins.Allowed(r.Header.Get("Origin"))
		},
	}
}

// 客户端上行消息类型
const (
	SocketSendMessage    = "message"
	SocketReportDuration = "duration"
)

type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsOutbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// TutorSocket 单个会话的 WebSocket 连接，同一时间只处理一次交互
type TutorSocket struct {
	Tutor     *TutorService
	Conn      *websocket.Conn
	SessionID string
	UserID    string
	Send      chan []byte
	Limiter   *rate.Limiter

	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// ServeTutorSocket 升级连接并阻塞到连接关闭，调用前需已校验会话归属
func ServeTutorSocket(tutor *TutorService, origins *security.OriginPolicy, w http.ResponseWriter, r *http.Request, sessionID, userID string) {
	conn, err := newUpgrader(origins).Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s := &TutorSocket{
		Tutor:     tutor,
		Conn:      conn,
		SessionID: sessionID,
		UserID:    userID,
		Send:      make(chan []byte, sendBuffer),
		// 每秒最多 1 条，允许突发 5 条
		Limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		ctx:     ctx,
		cancel:  cancel,
	}

	go s.writePump()
	s.readPump()
}

func (s *TutorSocket) readPump() {
	defer func() {
		s.cancel()
		s.Conn.Close()
	}()
	s.Conn.SetReadLimit(maxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error { s.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err), zap.String("session_id", s.SessionID))
			}
			return
		}

		if !s.Limiter.Allow() {
			s.push(string(EventError), rateLimited())
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.push(string(EventError), socketError("invalid message"))
			continue
		}

		switch msg.Type {
		case SocketSendMessage:
			var body struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				s.push(string(EventError), socketError("invalid message"))
				continue
			}
			if !s.busy.CompareAndSwap(false, true) {
				s.push(string(EventError), socketError("a reply is already in progress"))
				continue
			}
			go s.exchange(body.Content)

		case SocketReportDuration:
			var body struct {
				Seconds int `json:"seconds"`
			}
			if err := json.Unmarshal(msg.Data, &body); err != nil {
				s.push(string(EventError), socketError("invalid message"))
				continue
			}
			res, err := s.Tutor.UpdateDuration(s.ctx, s.SessionID, s.UserID, body.Seconds)
			if err != nil {
				s.push(string(EventError), socketError(err.Error()))
				continue
			}
			s.push(SocketReportDuration, res)

		default:
			s.push(string(EventError), socketError("unknown message type"))
		}
	}
}

// exchange 把流式事件逐条转发给客户端，连接关闭时放弃流
func (s *TutorSocket) exchange(content string) {
	defer s.busy.Store(false)

	events, err := s.Tutor.SubmitMessageStream(s.ctx, s.SessionID, s.UserID, content, nil)
	if err != nil {
		s.push(string(EventError), socketError(err.Error()))
		return
	}
	for ev := range events {
		s.push(string(ev.Type), ev)
	}
}

func (s *TutorSocket) push(eventType string, data interface{}) {
	payload, err := json.Marshal(wsOutbound{Type: eventType, Data: data})
	if err != nil {
		logger.Log.Error("Failed to encode websocket message", zap.Error(err))
		return
	}
	select {
	case s.Send <- payload:
	case <-s.ctx.Done():
	}
}

func (s *TutorSocket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()
	for {
		select {
		case message := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.cancel()
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func socketError(message string) StreamEvent {
	return StreamEvent{Type: EventError, Error: message}
}

func rateLimited() StreamEvent {
	return socketError(http.StatusText(http.StatusTooManyRequests))
}

// CheckSession 校验会话归属，供传输层在建立连接前调用
func (s *TutorService) CheckSession(ctx context.Context, sessionID, userID string) error {
	_, err := s.ownedSession(ctx, sessionID, userID)
	return err
}
